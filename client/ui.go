package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatlink/chat"
	"chatlink/domain"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

const maxMessages = 500

type model struct {
	ctx    context.Context
	client *Client

	roomId       domain.ID
	rooms        []domain.Room
	messages     []domain.ChatMessage
	participants []domain.Participant

	input      textinput.Model
	activeView string // chat or users
	status     string
	err        error
	width      int
	height     int
	loading    bool
	joined     bool
	connected  bool
	reconnects int64
	now        time.Time

	messageStream     *chat.Stream[domain.ChatMessage]
	participantStream *chat.Stream[domain.ParticipantUpdate]
}

func newModel(ctx context.Context, c *Client) model {
	ti := textinput.New()
	ti.Placeholder = "message ('/exit' to leave)"
	ti.Focus()
	ti.CharLimit = 1000
	ti.Prompt = ">>> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#57E2E5"))

	return model{
		ctx:        ctx,
		client:     c,
		roomId:     c.options.RoomId,
		input:      ti,
		activeView: "chat",
		status:     "loading room...",
		loading:    true,
		now:        time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.client.loadCmd(m.ctx), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.leave()
			return m, tea.Quit
		case "enter":
			if !m.loading && m.pushMessage() {
				m.leave()
				return m, tea.Quit
			}
		case "tab":
			if m.activeView == "chat" {
				m.activeView = "users"
			} else {
				m.activeView = "chat"
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			logrus.Errorf("load room err:%s", msg.err.Error())
			m.err = msg.err
			return m, nil
		}
		m.roomId = msg.roomId
		m.rooms = msg.rooms
		m.messages = msg.history
		m.participants = msg.participants
		m.status = ""
		m.syncPresence()
		cmds = append(cmds, m.subscribe())
	case chatMsg:
		m.messages = append(m.messages, domain.ChatMessage(msg))
		if len(m.messages) > maxMessages {
			m.messages = m.messages[len(m.messages)-maxMessages:]
		}
		cmds = append(cmds, waitMessage(m.messageStream.C))
	case participantsMsg:
		if list, ok := decodeParticipants(domain.ParticipantUpdate(msg)); ok {
			m.participants = list
		}
		cmds = append(cmds, waitParticipants(m.participantStream.C))
	case streamClosedMsg:
		m.status = "subscription closed"
	case tickMsg:
		m.now = time.Time(msg)
		m.connected = m.client.messenger.Connected()
		m.reconnects = m.reconnectCount()
		if !m.loading && m.err == nil {
			m.syncPresence()
		}
		cmds = append(cmds, tick())
	case error:
		m.err = msg
		return m, nil
	}

	if !m.loading && m.activeView == "chat" {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) roomName() string {
	for _, r := range m.rooms {
		if r.ID == m.roomId {
			if r.Name != "" {
				return r.Name
			}
			break
		}
	}
	return "room " + m.roomId.String()
}

func (m model) connState() string {
	switch {
	case m.connected:
		return "connected"
	case m.reconnects > 0:
		return fmt.Sprintf("reconnecting (%d)", m.reconnects)
	default:
		return "connecting"
	}
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("error: %v\npress esc to quit", m.err)
	}
	if m.width == 0 {
		return "initializing..."
	}

	state := m.connState()
	if m.status != "" {
		state += " | " + m.status
	}
	statusBar := statusBarStyle.Width(m.width).Render(fmt.Sprintf("user: %s | %s | %s | %s",
		m.client.options.Nickname, m.roomName(), state, m.now.Format("15:04:05")))

	var body string
	switch m.activeView {
	case "users":
		var users strings.Builder
		users.WriteString(userListStyle.Render(fmt.Sprintf(" participants (%d):\n\n", len(m.participants))))
		for _, p := range m.participants {
			name := p.Nickname
			if p.UserID == m.client.options.UserId {
				name += " (you)"
			}
			users.WriteString(fmt.Sprintf("• %s\n", name))
		}
		body = userListContainerStyle.Render(users.String())
	default:
		header := chatHeaderStyle.Render(m.roomName())

		var lines []string
		for _, msg := range m.visibleMessages() {
			line := fmt.Sprintf("[%s] %s: %s", msg.Time().Local().Format("15:04"), msg.SenderNickname, msg.Content)
			if msg.UserID == m.client.options.UserId {
				line = myMessageStyle.Render(line)
			} else {
				line = otherMessageStyle.Render(line)
			}
			lines = append(lines, line)
		}
		messagesArea := messagesStyle.Render(strings.Join(lines, "\n"))

		inputArea := ""
		if !m.loading {
			inputArea = m.input.View()
		}
		body = lipgloss.JoinVertical(lipgloss.Left, header, messagesArea, inputArea)
	}

	helpText := helpStyle.Render("keys: [TAB] participants  [ENTER] send  [ESC] leave")
	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, statusBar, body, helpText))
}

// visibleMessages is the tail that fits the message area.
func (m model) visibleMessages() []domain.ChatMessage {
	n := messagesStyle.GetHeight() - 1
	if n <= 0 || len(m.messages) <= n {
		return m.messages
	}
	return m.messages[len(m.messages)-n:]
}
