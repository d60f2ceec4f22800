package client

import (
	"strings"

	"chatlink/chat"
)

// pushMessage sends the input line. The server echoes it back on the room
// topic, so nothing is appended locally.
func (m *model) pushMessage() (quit bool) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return false
	}
	if content == "/exit" || content == "/quit" {
		return true
	}

	opts := m.client.options
	if chat.SendMessage(m.client.messenger, content, opts.UserId, opts.Nickname, m.roomId) {
		m.input.SetValue("")
		m.status = ""
	} else {
		m.status = "not connected, message kept"
	}
	return false
}
