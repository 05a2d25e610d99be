// Package gateway wraps the chat REST API: it injects the session bearer token
// into every authenticated call and intercepts authorization denials centrally.
//
// Denial policy: a 401/403 on an authenticated call fires the registered
// session-expiry hook (forced logout) and then still returns
// errs.ErrSessionExpired, so callers can tell "logged out underneath me" from
// success.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatsync/internal/errs"
	"chatsync/internal/model"
)

// Gateway is the outbound client for one chat API base URL.
type Gateway struct {
	base   string
	client *http.Client
	log    *zap.Logger

	mu        sync.RWMutex
	token     string
	onExpired func()
}

// New constructs a Gateway for the given API base (no trailing slash).
func New(base string, log *zap.Logger) *Gateway {
	return &Gateway{
		base:   base,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// OnSessionExpired registers the hook fired when an authenticated call is
// denied. The store points this at its logout sequence.
func (g *Gateway) OnSessionExpired(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExpired = fn
}

// SetToken installs the bearer token used for authenticated calls.
func (g *Gateway) SetToken(tok string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = tok
}

// ClearToken removes the bearer token.
func (g *Gateway) ClearToken() { g.SetToken("") }

// Token returns the current bearer token ("" when logged out).
func (g *Gateway) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// FileURL builds a directly fetchable URL for a server file path, carrying the
// token as a query parameter the way uploaded attachments are viewed.
func (g *Gateway) FileURL(path string) string {
	return g.base + path + "?token=" + url.QueryEscape(g.Token())
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Signin exchanges credentials for a bearer token.
func (g *Gateway) Signin(ctx context.Context, email, password string) (string, error) {
	var resp tokenResponse
	err := g.do(ctx, http.MethodPost, "/signin", map[string]string{
		"email":    email,
		"password": password,
	}, &resp, false)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Signup registers a new user and workspace, returning a bearer token.
func (g *Gateway) Signup(ctx context.Context, email, fullname, password, workspace string) (string, error) {
	var resp tokenResponse
	err := g.do(ctx, http.MethodPost, "/signup", map[string]string{
		"email":     email,
		"fullname":  fullname,
		"password":  password,
		"workspace": workspace,
	}, &resp, false)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// ListUsers fetches the workspace user directory.
func (g *Gateway) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := g.do(ctx, http.MethodGet, "/users", nil, &users, true); err != nil {
		return nil, err
	}
	return users, nil
}

// ListChats fetches the session user's channel list.
func (g *Gateway) ListChats(ctx context.Context) ([]model.Channel, error) {
	var chats []model.Channel
	if err := g.do(ctx, http.MethodGet, "/chats", nil, &chats, true); err != nil {
		return nil, err
	}
	return chats, nil
}

// ListMessages fetches a channel's message page as served: newest first.
func (g *Gateway) ListMessages(ctx context.Context, chatID int64) ([]model.Message, error) {
	var msgs []model.Message
	path := fmt.Sprintf("/chats/%d/messages", chatID)
	if err := g.do(ctx, http.MethodGet, path, nil, &msgs, true); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a message. The echo arrives over the push stream; callers
// must not assume the returned message was appended locally.
func (g *Gateway) SendMessage(ctx context.Context, chatID int64, content string, files []string) (model.Message, error) {
	var msg model.Message
	path := fmt.Sprintf("/chats/%d", chatID)
	payload := map[string]any{"content": content, "files": files}
	if err := g.do(ctx, http.MethodPost, path, payload, &msg, true); err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

// UploadFile is one file to push to POST /upload.
type UploadFile struct {
	Name    string
	Content []byte
}

// Upload sends files as multipart form data and returns server paths.
func (g *Gateway) Upload(ctx context.Context, files []UploadFile) ([]string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("multipart: %w", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("multipart: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var paths []string
	if err := g.send(req, &paths, true); err != nil {
		return nil, err
	}
	return paths, nil
}

// do issues a JSON request and decodes the JSON response into out (if non-nil).
func (g *Gateway) do(ctx context.Context, method, path string, payload, out any, authed bool) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return g.send(req, out, authed)
}

func (g *Gateway) send(req *http.Request, out any, authed bool) error {
	if authed {
		tok := g.Token()
		if tok == "" {
			return errs.ErrNoSession
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", errs.ErrNetworkUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if !authed {
			return fmt.Errorf("%w: %s", errs.ErrAuthenticationFailed, readSnippet(resp.Body))
		}
		g.log.Warn("authorization denied, forcing logout",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
		)
		g.mu.RLock()
		fn := g.onExpired
		g.mu.RUnlock()
		if fn != nil {
			fn()
		}
		return errs.ErrSessionExpired
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, readSnippet(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return string(bytes.TrimSpace(b))
}
