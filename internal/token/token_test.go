package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mint(t *testing.T, claims Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestDecodeUser(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := mint(t, Claims{
		ID:       7,
		WsID:     3,
		WsName:   "acme",
		Fullname: "Alice Example",
		Email:    "alice@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	u, err := DecodeUser(raw)
	if err != nil {
		t.Fatalf("DecodeUser: %v", err)
	}
	if u.ID != 7 || u.WsID != 3 || u.WsName != "acme" || u.Email != "alice@example.com" {
		t.Fatalf("bad user: %+v", u)
	}

	ws := Workspace(u)
	if ws.ID != 3 || ws.Name != "acme" {
		t.Fatalf("bad workspace: %+v", ws)
	}

	got, ok := ExpiresAt(raw)
	if !ok || !got.Equal(exp) {
		t.Fatalf("ExpiresAt = %v, %v; want %v, true", got, ok, exp)
	}
}

func TestDecodeUser_Garbage(t *testing.T) {
	t.Parallel()

	if _, err := DecodeUser("not-a-token"); err == nil {
		t.Fatalf("want error on malformed token")
	}
	if _, ok := ExpiresAt("not-a-token"); ok {
		t.Fatalf("want no expiry from malformed token")
	}
}

// An expired token must still decode: the client resumes lazily and lets the
// server reject it on the next call.
func TestDecodeUser_ExpiredStillDecodes(t *testing.T) {
	t.Parallel()

	raw := mint(t, Claims{
		ID: 1, WsID: 1, WsName: "w", Email: "x@y.z",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	u, err := DecodeUser(raw)
	if err != nil {
		t.Fatalf("DecodeUser expired: %v", err)
	}
	if u.ID != 1 {
		t.Fatalf("bad user: %+v", u)
	}
}
