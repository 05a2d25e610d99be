// Package model defines domain entities shared by the store, gateway and stream layers.
//
// JSON tags follow the chat API wire format (camelCase).
package model

import (
	"fmt"
	"time"
)

// ChannelType enumerates the chat kinds served by the API.
type ChannelType string

const (
	ChannelSingle        ChannelType = "single"
	ChannelGroup         ChannelType = "group"
	ChannelPrivateHidden ChannelType = "privateChannel"
	ChannelPublic        ChannelType = "publicChannel"
)

// User is a workspace member. During bootstrap the session user is decoded
// from token claims; the directory entries come from GET /users.
type User struct {
	ID        int64     `json:"id"`
	WsID      int64     `json:"wsId,omitempty"`
	WsName    string    `json:"wsName,omitempty"`
	Fullname  string    `json:"fullname"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Workspace is the single workspace a session belongs to, derived from token claims.
type Workspace struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Channel is one chat the session user is a member of. Recipient is a derived
// field computed on read for single-type channels and never persisted.
type Channel struct {
	ID        int64       `json:"id"`
	WsID      int64       `json:"wsId,omitempty"`
	Name      string      `json:"name,omitempty"`
	Type      ChannelType `json:"type"`
	Members   []int64     `json:"members"`
	Agents    []int64     `json:"agents,omitempty"`
	CreatedAt time.Time   `json:"createdAt,omitempty"`

	Recipient *User `json:"recipient,omitempty"`
}

// Message belongs to exactly one channel's list. FormattedCreatedAt is derived
// at commit time from CreatedAt and is recomputed whenever a message enters state.
type Message struct {
	ID                 int64     `json:"id"`
	ChatID             int64     `json:"chatId"`
	SenderID           int64     `json:"senderId"`
	Content            string    `json:"content"`
	ModifiedContent    string    `json:"modifiedContent,omitempty"`
	Files              []string  `json:"files,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	FormattedCreatedAt string    `json:"formattedCreatedAt,omitempty"`
}

// Upload is a file accepted by POST /upload: the server path plus a
// token-authenticated URL a viewer can fetch directly.
type Upload struct {
	Path string `json:"path"`
	URL  string `json:"fullUrl"`
}

// FormatMessageTime renders a message timestamp for display: time of day for
// today, time plus day distance under thirty days, time plus short date beyond.
func FormatMessageTime(ts, now time.Time) string {
	clock := ts.Local().Format("15:04")
	days := int(now.Sub(ts).Hours() / 24)
	switch {
	case days <= 0:
		return clock
	case days < 30:
		unit := "days"
		if days == 1 {
			unit = "day"
		}
		return fmt.Sprintf("%s, %d %s ago", clock, days, unit)
	default:
		return fmt.Sprintf("%s, %s", clock, ts.Local().Format("Jan 2, 2006"))
	}
}
