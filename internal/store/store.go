// Package store holds the authoritative client state and the actions that
// mutate it: session bootstrap, logout, restore, channel switching,
// fetch-on-demand history, send, and push receive.
//
// Locking rule: the mutex guards the state maps only and is never held across
// a network call or a durable write, so the gateway's session-expiry hook can
// re-enter Logout safely.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatsync/internal/errs"
	"chatsync/internal/gateway"
	"chatsync/internal/model"
	"chatsync/internal/storage"
	"chatsync/internal/stream"
	"chatsync/internal/token"
)

// Gateway is the slice of the network layer the store drives.
type Gateway interface {
	SetToken(tok string)
	ClearToken()
	OnSessionExpired(fn func())
	Signin(ctx context.Context, email, password string) (string, error)
	Signup(ctx context.Context, email, fullname, password, workspace string) (string, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ListChats(ctx context.Context) ([]model.Channel, error)
	ListMessages(ctx context.Context, chatID int64) ([]model.Message, error)
	SendMessage(ctx context.Context, chatID int64, content string, files []string) (model.Message, error)
	Upload(ctx context.Context, files []gateway.UploadFile) ([]string, error)
	FileURL(path string) string
}

// Events is the subset of the analytics sink the store feeds. All methods are
// fire-and-forget.
type Events interface {
	UserLogin(email string)
	UserLogout(email string)
	UserRegister(email string, workspaceID int64)
	ChatCreated(workspaceID int64)
	MessageSent(chatID int64, msgType string, size, totalFiles int)
}

// StreamHandle is a live push subscription owned by the store.
type StreamHandle interface {
	Close()
}

// StreamFactory opens a subscription for the given token, delivering into sink.
type StreamFactory func(ctx context.Context, tok string, sink stream.Sink) StreamHandle

// Store is the single authoritative state container for one client process.
type Store struct {
	gw        Gateway
	db        storage.Store
	events    Events
	newStream StreamFactory
	log       *zap.Logger

	mu        sync.RWMutex
	user      *model.User
	tok       string
	workspace model.Workspace
	channels  []model.Channel
	messages  map[int64][]model.Message
	users     map[int64]model.User
	activeID  int64
	handle    StreamHandle
	onMessage func(model.Message)
}

// New wires the store to its collaborators and installs the forced-logout hook
// on the gateway.
func New(gw Gateway, db storage.Store, events Events, newStream StreamFactory, log *zap.Logger) *Store {
	s := &Store{
		gw:        gw,
		db:        db,
		events:    events,
		newStream: newStream,
		log:       log,
		messages:  make(map[int64][]model.Message),
		users:     make(map[int64]model.User),
	}
	gw.OnSessionExpired(func() {
		if err := s.Logout(context.Background()); err != nil {
			log.Warn("forced logout incomplete", zap.Error(err))
		}
	})
	return s
}

// SetMessageListener registers a callback invoked after each push message is
// committed. One listener; pass nil to remove.
func (s *Store) SetMessageListener(fn func(model.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// Signin authenticates and bootstraps the session.
func (s *Store) Signin(ctx context.Context, email, password string) (model.User, error) {
	tok, err := s.gw.Signin(ctx, email, password)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.bootstrap(ctx, tok)
	if err != nil {
		return model.User{}, err
	}
	s.events.UserLogin(email)
	return u, nil
}

// Signup registers a user plus workspace and bootstraps the session.
func (s *Store) Signup(ctx context.Context, email, fullname, password, workspace string) (model.User, error) {
	tok, err := s.gw.Signup(ctx, email, fullname, password, workspace)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.bootstrap(ctx, tok)
	if err != nil {
		return model.User{}, err
	}
	s.events.UserRegister(email, u.WsID)
	return u, nil
}

// bootstrap decodes the token, performs the two dependent fetches, then
// commits the whole session atomically. Any failure leaves the store and the
// durable snapshot untouched.
func (s *Store) bootstrap(ctx context.Context, tok string) (model.User, error) {
	u, err := token.DecodeUser(tok)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", errs.ErrBootstrapIncomplete, err)
	}
	ws := token.Workspace(u)

	s.gw.SetToken(tok)
	users, err := s.gw.ListUsers(ctx)
	if err != nil {
		s.gw.ClearToken()
		return model.User{}, fmt.Errorf("%w: fetch users: %w", errs.ErrBootstrapIncomplete, err)
	}
	chans, err := s.gw.ListChats(ctx)
	if err != nil {
		s.gw.ClearToken()
		return model.User{}, fmt.Errorf("%w: fetch chats: %w", errs.ErrBootstrapIncomplete, err)
	}

	dir := make(map[int64]model.User, len(users))
	for _, x := range users {
		dir[x.ID] = x
	}

	s.mu.Lock()
	s.user = &u
	s.tok = tok
	s.workspace = ws
	s.channels = chans
	s.users = dir
	s.messages = make(map[int64][]model.Message)
	s.activeID = 0
	s.mu.Unlock()

	s.persistSession(ctx)
	s.startStream()
	return u, nil
}

// persistSession mirrors the committed session into durable storage.
// Persist failures degrade to memory-only state and are logged, not fatal.
func (s *Store) persistSession(ctx context.Context) {
	s.mu.RLock()
	user := s.user
	tok := s.tok
	ws := s.workspace
	chans := append([]model.Channel(nil), s.channels...)
	dir := make(map[int64]model.User, len(s.users))
	for k, v := range s.users {
		dir[k] = v
	}
	s.mu.RUnlock()

	if user == nil {
		return
	}
	steps := []struct {
		key string
		fn  func() error
	}{
		{storage.KeyUser, func() error { return storage.PutJSON(ctx, s.db, storage.KeyUser, *user) }},
		{storage.KeyToken, func() error { return s.db.Put(ctx, storage.KeyToken, []byte(tok)) }},
		{storage.KeyWorkspace, func() error { return storage.PutJSON(ctx, s.db, storage.KeyWorkspace, ws) }},
		{storage.KeyChannels, func() error { return storage.PutJSON(ctx, s.db, storage.KeyChannels, chans) }},
		{storage.KeyUsers, func() error { return storage.PutJSON(ctx, s.db, storage.KeyUsers, dir) }},
	}
	for _, st := range steps {
		if err := st.fn(); err != nil {
			s.log.Warn("persist failed", zap.String("key", st.key), zap.Error(err))
		}
	}
}

// Logout clears session, workspace, channels and message cache from memory and
// durable storage, and closes the stream handle. Idempotent.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	email := ""
	had := s.user != nil || s.tok != ""
	if s.user != nil {
		email = s.user.Email
	}
	s.user = nil
	s.tok = ""
	s.workspace = model.Workspace{}
	s.channels = nil
	s.messages = make(map[int64][]model.Message)
	s.users = make(map[int64]model.User)
	s.activeID = 0
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h != nil {
		h.Close()
	}
	s.gw.ClearToken()
	if err := storage.Clear(ctx, s.db); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	if had {
		s.events.UserLogout(email)
	}
	return nil
}

// Restore reconstructs state from the durable snapshot at process start and,
// if a token is present, starts the stream. The token is not re-validated:
// an expired session surfaces on the next authenticated call.
func (s *Store) Restore(ctx context.Context) error {
	tok, err := s.db.Get(ctx, storage.KeyToken)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("restore token: %w", err)
	}

	user := loadKey[model.User](ctx, s, storage.KeyUser)
	ws := loadKey[model.Workspace](ctx, s, storage.KeyWorkspace)
	chans := loadKey[[]model.Channel](ctx, s, storage.KeyChannels)
	msgs := loadKey[map[int64][]model.Message](ctx, s, storage.KeyMessages)
	dir := loadKey[map[int64]model.User](ctx, s, storage.KeyUsers)
	activeID := loadKey[int64](ctx, s, storage.KeyActiveChannel)

	s.mu.Lock()
	if user != nil {
		s.user = user
	}
	s.tok = ""
	if tok != nil {
		s.tok = string(tok)
	}
	if ws != nil {
		s.workspace = *ws
	}
	if chans != nil {
		s.channels = *chans
	}
	if msgs != nil {
		s.messages = *msgs
	}
	if s.messages == nil {
		s.messages = make(map[int64][]model.Message)
	}
	if dir != nil {
		s.users = *dir
	}
	if activeID != nil {
		for _, c := range s.channels {
			if c.ID == *activeID {
				s.activeID = *activeID
				break
			}
		}
	}
	hasToken := s.tok != ""
	rawTok := s.tok
	s.mu.Unlock()

	if hasToken {
		s.gw.SetToken(rawTok)
		s.startStream()
	}
	return nil
}

// loadKey reads one snapshot key, tolerating absence and logging decode rot.
func loadKey[T any](ctx context.Context, s *Store, key string) *T {
	v, err := storage.GetJSON[T](ctx, s.db, key)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.log.Warn("snapshot key unreadable", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	return &v
}

// SetActiveChannel resolves the id against the channel list, marks it active
// and persists the choice.
func (s *Store) SetActiveChannel(ctx context.Context, channelID int64) error {
	s.mu.Lock()
	found := false
	for _, c := range s.channels {
		if c.ID == channelID {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return errs.ErrChannelNotFound
	}
	s.activeID = channelID
	s.mu.Unlock()

	if err := storage.PutJSON(ctx, s.db, storage.KeyActiveChannel, channelID); err != nil {
		s.log.Warn("persist failed", zap.String("key", storage.KeyActiveChannel), zap.Error(err))
	}
	return nil
}

// AddChannel appends a freshly created channel, initializes its message list
// and persists channels plus the message cache (the one opportunistic write
// the cache gets).
func (s *Store) AddChannel(ctx context.Context, ch model.Channel) {
	s.mu.Lock()
	s.channels = append(s.channels, ch)
	if _, ok := s.messages[ch.ID]; !ok {
		s.messages[ch.ID] = []model.Message{}
	}
	chans := append([]model.Channel(nil), s.channels...)
	msgs := make(map[int64][]model.Message, len(s.messages))
	for k, v := range s.messages {
		msgs[k] = append([]model.Message(nil), v...)
	}
	wsID := s.workspace.ID
	s.mu.Unlock()

	if err := storage.PutJSON(ctx, s.db, storage.KeyChannels, chans); err != nil {
		s.log.Warn("persist failed", zap.String("key", storage.KeyChannels), zap.Error(err))
	}
	if err := storage.PutJSON(ctx, s.db, storage.KeyMessages, msgs); err != nil {
		s.log.Warn("persist failed", zap.String("key", storage.KeyMessages), zap.Error(err))
	}
	s.events.ChatCreated(wsID)
}

// FetchMessages loads a channel's history on demand: a network call is issued
// only when the cached list is empty, and the server's newest-first page is
// reversed to ascending order before commit. A channel that is legitimately
// empty is re-fetched on every visit.
func (s *Store) FetchMessages(ctx context.Context, channelID int64) ([]model.Message, error) {
	s.mu.RLock()
	cached := s.messages[channelID]
	tok := s.tok
	s.mu.RUnlock()

	if len(cached) > 0 {
		return append([]model.Message(nil), cached...), nil
	}
	if tok == "" {
		return nil, errs.ErrNoSession
	}

	page, err := s.gw.ListMessages(ctx, channelID)
	if err != nil {
		s.log.Warn("fetch messages failed", zap.Int64("chatId", channelID), zap.Error(err))
		return nil, err
	}

	msgs := make([]model.Message, 0, len(page))
	now := time.Now()
	for i := len(page) - 1; i >= 0; i-- {
		m := page[i]
		m.FormattedCreatedAt = model.FormatMessageTime(m.CreatedAt, now)
		msgs = append(msgs, m)
	}

	s.mu.Lock()
	if s.tok != tok {
		// logged out while the fetch was in flight; drop the stale page
		s.mu.Unlock()
		return nil, errs.ErrNoSession
	}
	s.messages[channelID] = msgs
	out := append([]model.Message(nil), msgs...)
	s.mu.Unlock()
	return out, nil
}

// SendMessage posts a message. The sent message is NOT appended locally; the
// echo arrives via the push stream.
func (s *Store) SendMessage(ctx context.Context, channelID int64, content string, files []string) (model.Message, error) {
	msg, err := s.gw.SendMessage(ctx, channelID, content, files)
	if err != nil {
		return model.Message{}, err
	}
	msgType := "text"
	if len(files) > 0 {
		msgType = "file"
	}
	s.events.MessageSent(channelID, msgType, len(content), len(files))
	return msg, nil
}

// UploadFiles pushes attachments and returns their server paths with
// token-authenticated view URLs.
func (s *Store) UploadFiles(ctx context.Context, files []gateway.UploadFile) ([]model.Upload, error) {
	paths, err := s.gw.Upload(ctx, files)
	if err != nil {
		return nil, err
	}
	out := make([]model.Upload, 0, len(paths))
	for _, p := range paths {
		out = append(out, model.Upload{Path: p, URL: s.gw.FileURL(p)})
	}
	return out, nil
}

// ReceiveMessage commits a pushed message: tail append on the target channel,
// active or not. Push delivery is never persisted; the durable message cache
// is only written at channel creation.
func (s *Store) ReceiveMessage(ev stream.NewMessage) {
	msg := ev.Message
	msg.FormattedCreatedAt = model.FormatMessageTime(msg.CreatedAt, time.Now())

	s.mu.Lock()
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	fn := s.onMessage
	s.mu.Unlock()

	if fn != nil {
		fn(msg)
	}
}

// startStream replaces the singleton stream handle: close the old one first,
// then open a new subscription for the current token.
func (s *Store) startStream() {
	s.mu.Lock()
	old := s.handle
	s.handle = nil
	tok := s.tok
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if tok == "" {
		return
	}

	h := s.newStream(context.Background(), tok, s)
	s.mu.Lock()
	if s.tok != tok {
		// logged out while opening; the new handle must not survive
		s.mu.Unlock()
		h.Close()
		return
	}
	s.handle = h
	s.mu.Unlock()
}

// Close tears down the stream handle. Durable storage is owned by the caller.
func (s *Store) Close() {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()
	if h != nil {
		h.Close()
	}
}
