package domain

import (
	"bytes"
	"encoding/json"
	"regexp"
	"time"
)

const (
	// MessageTypeText is the only message type the backend accepts on chat.send
	MessageTypeText = "text"

	// sentAt layout, same shape as a browser's Date.toISOString()
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// integers small enough to survive a round trip through a JavaScript number
var integerID = regexp.MustCompile(`^-?(0|[1-9][0-9]{0,14})$`)

// ID is a server-side identifier. The backend emits numbers for some ids and
// strings for others; any other JSON value is kept as its raw text.
// Integer ids encode as JSON numbers, everything else as a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		*id = ID(b)
	}
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if integerID.MatchString(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// ChatMessage is published to /app/chat.send/{chatroomId} and broadcast back on /topic/chat/{chatroomId}.
// Decoding never fails on valid JSON: fields of an unexpected kind keep their
// raw text and Raw holds the frame as received.
type ChatMessage struct {
	Type           string          `json:"type"`
	Content        string          `json:"content"`
	UserID         ID              `json:"userId"`
	SenderNickname string          `json:"sender_nickname"`
	ChatroomID     ID              `json:"chatroomId"`
	SentAt         Timestamp       `json:"sentAt"`
	Raw            json.RawMessage `json:"-"`
}

func NewChatMessage(content string, userID ID, nickname string, chatroomID ID, at time.Time) ChatMessage {
	return ChatMessage{
		Type:           MessageTypeText,
		Content:        content,
		UserID:         userID,
		SenderNickname: nickname,
		ChatroomID:     chatroomID,
		SentAt:         NewTimestamp(at),
	}
}

func (m *ChatMessage) UnmarshalJSON(b []byte) error {
	if !json.Valid(b) {
		// surfaces the syntax error
		var v any
		return json.Unmarshal(b, &v)
	}
	*m = ChatMessage{Raw: append(json.RawMessage(nil), b...)}

	var fields struct {
		Type           json.RawMessage `json:"type"`
		Content        json.RawMessage `json:"content"`
		UserID         ID              `json:"userId"`
		SenderNickname json.RawMessage `json:"sender_nickname"`
		ChatroomID     ID              `json:"chatroomId"`
		SentAt         Timestamp       `json:"sentAt"`
	}
	// a frame that is not an object carries no known fields
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil
	}
	m.Type = looseString(fields.Type)
	m.Content = looseString(fields.Content)
	m.UserID = fields.UserID
	m.SenderNickname = looseString(fields.SenderNickname)
	m.ChatroomID = fields.ChatroomID
	m.SentAt = fields.SentAt
	return nil
}

// Time is SentAt as a time, zero when the server sent something unreadable.
func (m ChatMessage) Time() time.Time {
	return m.SentAt.Time()
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Presence is the body of join and leave notifications.
type Presence struct {
	UserID   ID     `json:"userId"`
	Nickname string `json:"nickname"`
}

// ParticipantUpdate is owned by the server and handed to subscribers untouched.
type ParticipantUpdate = json.RawMessage

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
