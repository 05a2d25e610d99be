package model

import (
	"strings"
	"testing"
	"time"
)

func TestFormatMessageTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)

	sameDay := FormatMessageTime(now.Add(-2*time.Hour), now)
	if strings.Contains(sameDay, "ago") || strings.Contains(sameDay, ",") {
		t.Fatalf("same-day stamp should be time only, got %q", sameDay)
	}

	oneDay := FormatMessageTime(now.Add(-26*time.Hour), now)
	if !strings.HasSuffix(oneDay, "1 day ago") {
		t.Fatalf("want singular day suffix, got %q", oneDay)
	}

	fiveDays := FormatMessageTime(now.Add(-5*24*time.Hour), now)
	if !strings.HasSuffix(fiveDays, "5 days ago") {
		t.Fatalf("want plural days suffix, got %q", fiveDays)
	}

	old := FormatMessageTime(now.Add(-90*24*time.Hour), now)
	if strings.Contains(old, "ago") || !strings.Contains(old, "2025") {
		t.Fatalf("old stamp should carry a date, got %q", old)
	}
}
