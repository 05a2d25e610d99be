package storage

import (
	"context"
	"errors"
	"testing"

	"chatsync/internal/errs"
	"chatsync/internal/model"
)

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory()

	in := []model.Channel{
		{ID: 1, Type: model.ChannelGroup, Name: "general", Members: []int64{1, 2}},
		{ID: 2, Type: model.ChannelSingle, Members: []int64{1, 3}},
	}
	if err := PutJSON(ctx, s, KeyChannels, in); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}

	out, err := GetJSON[[]model.Channel](ctx, s, KeyChannels)
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(out) != 2 || out[0].Name != "general" || out[1].Type != model.ChannelSingle {
		t.Fatalf("bad round trip: %+v", out)
	}
}

func TestGetJSON_Absent(t *testing.T) {
	t.Parallel()
	_, err := GetJSON[model.User](context.Background(), NewMemory(), KeyUser)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory()
	for _, k := range SnapshotKeys {
		if err := s.Put(ctx, k, []byte("x")); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	if err := Clear(ctx, s); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, k := range SnapshotKeys {
		if _, err := s.Get(ctx, k); !errors.Is(err, errs.ErrNotFound) {
			t.Fatalf("key %s survived clear", k)
		}
	}
	// clearing twice is equivalent to once
	if err := Clear(ctx, s); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}
