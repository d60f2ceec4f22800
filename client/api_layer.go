package client

import (
	"context"

	"chatlink/domain"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

type loadedMsg struct {
	roomId       domain.ID
	rooms        []domain.Room
	history      []domain.ChatMessage
	participants []domain.Participant
	err          error
}

func (c *Client) loadCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, c.options.LoadTimeout)
		defer cancel()
		return c.load(ctx, c.options.RoomId)
	}
}

// load fetches rooms, history and participants concurrently. Without a room id
// the room list is needed first to pick one.
func (c *Client) load(ctx context.Context, roomId domain.ID) loadedMsg {
	res := loadedMsg{roomId: roomId}
	if roomId == "" {
		rooms, err := c.api.GetChatrooms(ctx)
		if err != nil {
			res.err = err
			return res
		}
		if len(rooms) == 0 {
			res.err = errNoRooms
			return res
		}
		res.rooms = rooms
		res.roomId = rooms[0].ID
	}

	g, ctx := errgroup.WithContext(ctx)
	if res.rooms == nil {
		g.Go(func() error {
			rooms, err := c.api.GetChatrooms(ctx)
			res.rooms = rooms
			return err
		})
	}
	g.Go(func() error {
		history, err := c.api.GetChatHistory(ctx, res.roomId)
		res.history = history
		return err
	})
	g.Go(func() error {
		participants, err := c.api.GetRoomParticipants(ctx, res.roomId)
		res.participants = participants
		return err
	})
	res.err = g.Wait()
	return res
}
