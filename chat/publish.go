// Package chat wraps the STOMP client with the backend's chat destinations.
package chat

import (
	"encoding/json"
	"time"

	"chatlink/domain"
	"github.com/sirupsen/logrus"
)

const (
	sendPrefix         = "/app/chat.send/"
	joinPrefix         = "/app/chat.join/"
	leavePrefix        = "/app/chat.leave/"
	messagesPrefix     = "/topic/chat/"
	participantsPrefix = "/topic/participants/"

	contentTypeJSON = "application/json"
)

var now = time.Now

// Publisher is the part of connect.Client the send helpers need.
type Publisher interface {
	Connected() bool
	Publish(destination, contentType string, body []byte, headers map[string]string) error
}

// SendMessage publishes a text message to the room. It reports false, and
// publishes nothing, while the client is not connected.
func SendMessage(p Publisher, content string, userID domain.ID, nickname string, chatroomID domain.ID) bool {
	msg := domain.NewChatMessage(content, userID, nickname, chatroomID, now())
	return publish(p, "message", sendPrefix+chatroomID.String(), msg)
}

func SendJoinMessage(p Publisher, userID domain.ID, nickname string, chatroomID domain.ID) bool {
	return publish(p, "join", joinPrefix+chatroomID.String(), domain.Presence{UserID: userID, Nickname: nickname})
}

func SendLeaveMessage(p Publisher, userID domain.ID, nickname string, chatroomID domain.ID) bool {
	return publish(p, "leave", leavePrefix+chatroomID.String(), domain.Presence{UserID: userID, Nickname: nickname})
}

func publish(p Publisher, kind, destination string, v any) bool {
	if p == nil || !p.Connected() {
		logrus.Warnf("send %s to %s skipped: client not connected", kind, destination)
		return false
	}
	body, err := json.Marshal(v)
	if err != nil {
		logrus.Errorf("send %s encode err:%s", kind, err.Error())
		return false
	}
	if err := p.Publish(destination, contentTypeJSON, body, nil); err != nil {
		logrus.Errorf("send %s to %s err:%s", kind, destination, err.Error())
		return false
	}
	return true
}
