// Package analytics emits best-effort usage beacons to the collector endpoint.
//
// Beacons are binary protobuf envelopes posted with the session token as a
// query parameter. Emission never blocks the caller and failures are swallowed:
// the collector is an external sink the client must work without.
//
// Envelope layout (field numbers, proto3 wire format):
//
//	AnalyticsEvent: 1 context (EventContext)
//	  oneof event_type:
//	  8 app_start {} | 9 app_exit {1 exit_code} | 10 user_login {1 email}
//	  11 user_logout {1 email} | 12 user_register {1 email, 2 workspace_id}
//	  13 chat_created {1 workspace_id}
//	  14 message_sent {1 chat_id, 2 type, 3 size, 4 total_files}
//	  15 chat_joined {1 chat_id} | 16 chat_left {1 chat_id}
//	  17 navigation {1 from, 2 to}
//	EventContext: 1 client_id, 2 app_version, 3 system_os, 4 system_arch,
//	  5 system_locale, 6 system_timezone, 7 client_ts (unix millis)
package analytics

import (
	"bytes"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope field numbers.
const (
	fieldContext      = 1
	fieldAppStart     = 8
	fieldAppExit      = 9
	fieldUserLogin    = 10
	fieldUserLogout   = 11
	fieldUserRegister = 12
	fieldChatCreated  = 13
	fieldMessageSent  = 14
	fieldChatJoined   = 15
	fieldChatLeft     = 16
	fieldNavigation   = 17
)

// Sink posts beacons to one collector URL.
type Sink struct {
	url      string
	client   *http.Client
	log      *zap.Logger
	token    func() string
	clientID string
	appVer   string

	wg sync.WaitGroup
}

// New constructs a Sink. token is read at emission time so beacons follow the
// current session; it may return "" (the collector accepts anonymous events).
func New(collectorURL, appVersion string, token func() string, log *zap.Logger) *Sink {
	id, err := uuid.NewV4()
	clientID := id.String()
	if err != nil {
		clientID = "unknown"
	}
	return &Sink{
		url:      collectorURL,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      log,
		token:    token,
		clientID: clientID,
		appVer:   appVersion,
	}
}

// Close waits for in-flight beacons. Call on shutdown, after AppExit.
func (s *Sink) Close() { s.wg.Wait() }

func (s *Sink) AppStart() { s.emit(fieldAppStart, nil) }

func (s *Sink) AppExit(code int) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(code))
	s.emit(fieldAppExit, b)
}

func (s *Sink) UserLogin(email string)  { s.emit(fieldUserLogin, appendString(nil, 1, email)) }
func (s *Sink) UserLogout(email string) { s.emit(fieldUserLogout, appendString(nil, 1, email)) }

func (s *Sink) UserRegister(email string, workspaceID int64) {
	b := appendString(nil, 1, email)
	b = appendString(b, 2, strconv.FormatInt(workspaceID, 10))
	s.emit(fieldUserRegister, b)
}

func (s *Sink) ChatCreated(workspaceID int64) {
	s.emit(fieldChatCreated, appendString(nil, 1, strconv.FormatInt(workspaceID, 10)))
}

func (s *Sink) MessageSent(chatID int64, msgType string, size, totalFiles int) {
	b := appendString(nil, 1, strconv.FormatInt(chatID, 10))
	b = appendString(b, 2, msgType)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(size))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(totalFiles))
	s.emit(fieldMessageSent, b)
}

func (s *Sink) ChatJoined(chatID int64) {
	s.emit(fieldChatJoined, appendString(nil, 1, strconv.FormatInt(chatID, 10)))
}

func (s *Sink) ChatLeft(chatID int64) {
	s.emit(fieldChatLeft, appendString(nil, 1, strconv.FormatInt(chatID, 10)))
}

func (s *Sink) Navigation(from, to string) {
	b := appendString(nil, 1, from)
	s.emit(fieldNavigation, appendString(b, 2, to))
}

// emit wraps the variant in the envelope and posts it in the background.
func (s *Sink) emit(field protowire.Number, payload []byte) {
	var b []byte
	b = protowire.AppendTag(b, fieldContext, protowire.BytesType)
	b = protowire.AppendBytes(b, s.context())
	b = protowire.AppendTag(b, field, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)

	tok := s.token()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.post(b, tok)
	}()
}

func (s *Sink) post(body []byte, tok string) {
	endpoint := s.url
	if tok != "" {
		endpoint += "?token=" + url.QueryEscape(tok)
	}
	resp, err := s.client.Post(endpoint, "application/protobuf", bytes.NewReader(body))
	if err != nil {
		s.log.Debug("analytics beacon dropped", zap.Error(err))
		return
	}
	_ = resp.Body.Close()
}

func (s *Sink) context() []byte {
	zone, _ := time.Now().Zone()
	b := appendString(nil, 1, s.clientID)
	b = appendString(b, 2, s.appVer)
	b = appendString(b, 3, runtime.GOOS)
	b = appendString(b, 4, runtime.GOARCH)
	b = appendString(b, 5, os.Getenv("LANG"))
	b = appendString(b, 6, zone)
	b = protowire.AppendTag(b, 7, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(time.Now().UnixMilli()))
	return b
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}
