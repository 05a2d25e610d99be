package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"chatsync/internal/errs"
	"chatsync/internal/model"
)

func TestSignin(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/signin" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.c" || body["password"] != "pw" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	}))
	defer srv.Close()

	g := New(srv.URL, zap.NewNop())

	tok, err := g.Signin(context.Background(), "a@b.c", "pw")
	if err != nil || tok != "tok-1" {
		t.Fatalf("Signin = %q, %v", tok, err)
	}

	_, err = g.Signin(context.Background(), "a@b.c", "wrong")
	if !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Fatalf("want ErrAuthenticationFailed, got %v", err)
	}
}

func TestBearerInjection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-7" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]model.User{{ID: 1, Email: "a@b.c"}})
	}))
	defer srv.Close()

	g := New(srv.URL, zap.NewNop())
	g.SetToken("tok-7")

	users, err := g.ListUsers(context.Background())
	if err != nil || len(users) != 1 {
		t.Fatalf("ListUsers = %v, %v", users, err)
	}
}

func TestAuthedCallWithoutToken(t *testing.T) {
	t.Parallel()

	g := New("http://unused.invalid", zap.NewNop())
	if _, err := g.ListChats(context.Background()); !errors.Is(err, errs.ErrNoSession) {
		t.Fatalf("want ErrNoSession, got %v", err)
	}
}

func TestDenialFiresExpiryHookAndReRaises(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := New(srv.URL, zap.NewNop())
	g.SetToken("stale")

	fired := 0
	g.OnSessionExpired(func() { fired++ })

	_, err := g.ListChats(context.Background())
	if !errors.Is(err, errs.ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
	if fired != 1 {
		t.Fatalf("expiry hook fired %d times", fired)
	}
}

func TestTransportFailure(t *testing.T) {
	t.Parallel()

	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	g := New(srv.URL, zap.NewNop())
	g.SetToken("tok")
	_, err := g.ListChats(context.Background())
	if !errors.Is(err, errs.ErrNetworkUnavailable) {
		t.Fatalf("want ErrNetworkUnavailable, got %v", err)
	}
}

func TestSendMessageAndNewestFirstPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/chats/5":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(model.Message{ID: 9, ChatID: 5, Content: body["content"].(string)})
		case r.Method == http.MethodGet && r.URL.Path == "/chats/5/messages":
			_ = json.NewEncoder(w).Encode([]model.Message{{ID: 3, ChatID: 5}, {ID: 2, ChatID: 5}, {ID: 1, ChatID: 5}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	g := New(srv.URL, zap.NewNop())
	g.SetToken("tok")

	msg, err := g.SendMessage(context.Background(), 5, "hi", nil)
	if err != nil || msg.ID != 9 || msg.Content != "hi" {
		t.Fatalf("SendMessage = %+v, %v", msg, err)
	}

	page, err := g.ListMessages(context.Background(), 5)
	if err != nil || len(page) != 3 || page[0].ID != 3 {
		t.Fatalf("ListMessages = %+v, %v (page stays newest-first at this layer)", page, err)
	}
}

func TestUpload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart parse: %v", err)
		}
		if n := len(r.MultipartForm.File["files"]); n != 2 {
			t.Errorf("want 2 files, got %d", n)
		}
		_ = json.NewEncoder(w).Encode([]string{"/files/1/a.png", "/files/1/b.png"})
	}))
	defer srv.Close()

	g := New(srv.URL, zap.NewNop())
	g.SetToken("tok")

	paths, err := g.Upload(context.Background(), []UploadFile{
		{Name: "a.png", Content: []byte{1}},
		{Name: "b.png", Content: []byte{2}},
	})
	if err != nil || len(paths) != 2 {
		t.Fatalf("Upload = %v, %v", paths, err)
	}

	if url := g.FileURL(paths[0]); url != srv.URL+"/files/1/a.png?token=tok" {
		t.Fatalf("FileURL = %q", url)
	}
}
