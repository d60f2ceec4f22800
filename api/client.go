package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatlink/auth"
	"chatlink/config"
	"chatlink/domain"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	historyPath      = "/history"
	roomsPath        = "/rooms"
	participantsPath = "/participants"
)

// Client talks to the chat REST api. Every request goes through an auth hook
// that reads the token source at send time.
type Client struct {
	http   *resty.Client
	tokens auth.TokenSource
}

type options struct {
	timeout    time.Duration
	httpClient *http.Client
}

type Option func(*options)

// WithTimeout bounds each request; zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient swaps the underlying *http.Client, e.g. for a custom transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func New(baseURL string, tokens auth.TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = config.DefaultApiBaseUrl
	}
	if tokens == nil {
		tokens = auth.Static("")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	rc := resty.New()
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	}
	rc.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if o.timeout > 0 {
		rc.SetTimeout(o.timeout)
	}

	c := &Client{http: rc, tokens: tokens}
	rc.OnBeforeRequest(c.authorize)
	return c
}

// authorize attaches the bearer token when one is stored; no token means an
// anonymous request, not an error.
func (c *Client) authorize(_ *resty.Client, r *resty.Request) error {
	tok, err := c.tokens.Token(r.Context())
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if h := auth.BearerHeader(tok); h != "" {
		r.SetHeader("Authorization", h)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return &StatusError{
			Method:     http.MethodGet,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
	if len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// GetChatHistory fetches /history, or /history/{chatroomID} when an id is given.
// Failures are logged here and returned to the caller unchanged.
func (c *Client) GetChatHistory(ctx context.Context, chatroomID domain.ID) ([]domain.ChatMessage, error) {
	path := historyPath
	if chatroomID != "" {
		path += "/" + url.PathEscape(chatroomID.String())
	}
	var history []domain.ChatMessage
	if err := c.get(ctx, path, &history); err != nil {
		logrus.Errorf("get chat history err:%s", err.Error())
		return nil, err
	}
	return history, nil
}

func (c *Client) GetChatrooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := c.get(ctx, roomsPath, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) GetRoomParticipants(ctx context.Context, chatroomID domain.ID) ([]domain.Participant, error) {
	var participants []domain.Participant
	path := participantsPath + "/" + url.PathEscape(chatroomID.String())
	if err := c.get(ctx, path, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}
