package stream

import (
	"encoding/json"
	"fmt"

	"chatsync/internal/model"
)

// EventNewMessage is the only named push event the client consumes. The notify
// server also emits chat-membership events; those decode to Unknown and are
// dropped by the subscriber.
const EventNewMessage = "NewMessage"

// Event is a decoded push notification: NewMessage or Unknown.
type Event interface{ isEvent() }

// NewMessage carries a message pushed for one channel. The transport envelope
// ("event" tag) is already stripped.
type NewMessage struct {
	Message model.Message
}

// Unknown is any push the client has no handler for.
type Unknown struct {
	Name string
	Data []byte
}

func (NewMessage) isEvent() {}
func (Unknown) isEvent()    {}

// Decode maps a named SSE event to its variant. Payloads of known events that
// fail to parse are errors, not Unknown: they signal a contract break.
func Decode(name string, data []byte) (Event, error) {
	if name != EventNewMessage {
		return Unknown{Name: name, Data: data}, nil
	}
	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if msg.ChatID == 0 {
		return nil, fmt.Errorf("decode %s: missing chatId", name)
	}
	return NewMessage{Message: msg}, nil
}
