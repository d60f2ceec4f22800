package client

import (
	"encoding/json"
	"errors"
	"time"

	"chatlink/chat"
	"chatlink/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

var errNoRooms = errors.New("server lists no chat rooms")

type chatMsg domain.ChatMessage

type participantsMsg domain.ParticipantUpdate

type streamClosedMsg struct{}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) subscribe() tea.Cmd {
	messages, err := chat.SubscribeToMessages(m.client.messenger, m.roomId)
	if err != nil {
		logrus.Errorf("subscribe messages err:%s", err.Error())
		return nil
	}
	participants, err := chat.SubscribeToParticipants(m.client.messenger, m.roomId)
	if err != nil {
		messages.Unsubscribe()
		logrus.Errorf("subscribe participants err:%s", err.Error())
		return nil
	}
	m.messageStream = messages
	m.participantStream = participants
	return tea.Batch(waitMessage(messages.C), waitParticipants(participants.C))
}

func waitMessage(c <-chan domain.ChatMessage) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-c
		if !ok {
			return streamClosedMsg{}
		}
		return chatMsg(msg)
	}
}

func waitParticipants(c <-chan domain.ParticipantUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-c
		if !ok {
			return streamClosedMsg{}
		}
		return participantsMsg(u)
	}
}

// syncPresence joins the room once per connection; a reconnect joins again.
func (m *model) syncPresence() {
	connected := m.client.messenger.Connected()
	if !connected {
		m.joined = false
		return
	}
	if !m.joined && m.roomId != "" {
		m.joined = chat.SendJoinMessage(m.client.messenger, m.client.options.UserId, m.client.options.Nickname, m.roomId)
	}
}

func (m *model) leave() {
	if m.joined {
		chat.SendLeaveMessage(m.client.messenger, m.client.options.UserId, m.client.options.Nickname, m.roomId)
		m.joined = false
	}
	if m.messageStream != nil {
		m.messageStream.Unsubscribe()
	}
	if m.participantStream != nil {
		m.participantStream.Unsubscribe()
	}
}

func (m *model) reconnectCount() int64 {
	return metrics.GetOrRegisterCounter("stomp.reconnects", m.client.messenger.Metrics()).Count()
}

// decodeParticipants understands a bare participant list or an object carrying
// one under "participants". Anything else is left to the server.
func decodeParticipants(u domain.ParticipantUpdate) ([]domain.Participant, bool) {
	var list []domain.Participant
	if err := json.Unmarshal(u, &list); err == nil {
		return list, true
	}
	var wrapped struct {
		Participants []domain.Participant `json:"participants"`
	}
	if err := json.Unmarshal(u, &wrapped); err == nil && wrapped.Participants != nil {
		return wrapped.Participants, true
	}
	return nil, false
}
