package client

// A terminal client for one chat room: REST for rooms, history and
// participants, STOMP for live traffic.

import (
	"context"
	"time"

	"chatlink/chat"
	"chatlink/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rcrowley/go-metrics"
)

const defaultLoadTimeout = 10 * time.Second

// Api is the REST side the client reads from.
type Api interface {
	GetChatHistory(ctx context.Context, chatroomID domain.ID) ([]domain.ChatMessage, error)
	GetChatrooms(ctx context.Context) ([]domain.Room, error)
	GetRoomParticipants(ctx context.Context, chatroomID domain.ID) ([]domain.Participant, error)
}

// Messenger is the STOMP side, satisfied by *connect.Client.
type Messenger interface {
	chat.Publisher
	chat.Subscriber
	Activate(ctx context.Context)
	Deactivate()
	Metrics() metrics.Registry
}

type Options struct {
	UserId      domain.ID
	Nickname    string
	RoomId      domain.ID // empty picks the first room the server lists
	LoadTimeout time.Duration
}

type Client struct {
	api       Api
	messenger Messenger
	options   Options
}

func New(api Api, messenger Messenger, options Options) *Client {
	if options.LoadTimeout <= 0 {
		options.LoadTimeout = defaultLoadTimeout
	}
	return &Client{api: api, messenger: messenger, options: options}
}

// Run activates the messaging client and blocks in the TUI until the user quits.
func (c *Client) Run(ctx context.Context) error {
	c.messenger.Activate(ctx)
	defer c.messenger.Deactivate()

	p := tea.NewProgram(newModel(ctx, c), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
