package sockjs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatlink/tools"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	TransportWebsocket = "websocket"
	TransportStreaming = "xhr-streaming"
	TransportPolling   = "xhr-polling"

	defaultOpenTimeout = 5 * time.Second
)

// DefaultTransports is the order sockjs-client negotiates in.
var DefaultTransports = []string{TransportWebsocket, TransportStreaming, TransportPolling}

// Info is the server's answer to GET {url}/info.
type Info struct {
	Websocket    bool     `json:"websocket"`
	CookieNeeded bool     `json:"cookie_needed"`
	Origins      []string `json:"origins"`
	Entropy      int64    `json:"entropy"`
}

// Dialer opens SockJS sessions against one endpoint, falling back through
// Transports in order until one delivers the open frame.
type Dialer struct {
	URL         string
	Transports  []string
	Header      http.Header
	OpenTimeout time.Duration

	// HTTP carries info and XHR requests; nil builds a resty client with a cookie jar.
	HTTP *resty.Client
	// Websocket dials the websocket transport; nil uses websocket.DefaultDialer.
	Websocket *websocket.Dialer
}

func (d *Dialer) httpClient() *resty.Client {
	if d.HTTP == nil {
		d.HTTP = resty.New()
	}
	return d.HTTP
}

func (d *Dialer) transports() []string {
	if len(d.Transports) == 0 {
		return DefaultTransports
	}
	return d.Transports
}

func (d *Dialer) Info(ctx context.Context) (*Info, error) {
	info := new(Info)
	resp, err := d.httpClient().R().
		SetContext(ctx).
		SetHeaderMultiValues(d.Header).
		SetResult(info).
		ForceContentType("application/json").
		Get(d.base() + "/info")
	if err != nil {
		return nil, fmt.Errorf("sockjs info: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sockjs info: status %d", resp.StatusCode())
	}
	return info, nil
}

func (d *Dialer) base() string {
	return strings.TrimRight(d.URL, "/")
}

// Dial opens a session using the first transport that works.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	info, err := d.Info(ctx)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, name := range d.transports() {
		if name == TransportWebsocket && !info.Websocket {
			logrus.Debugf("sockjs: server disabled websocket, skipping")
			continue
		}
		conn, err := d.dialTransport(ctx, name)
		if err == nil {
			logrus.Infof("sockjs: session open over %s", name)
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logrus.Warnf("sockjs: transport %s failed: %s", name, err.Error())
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrNoTransport, errors.Join(errs...))
}

func (d *Dialer) dialTransport(ctx context.Context, name string) (*Conn, error) {
	sessionURL := d.base() + "/" + tools.NewServerId() + "/" + tools.NewSessionId()

	var t transport
	switch name {
	case TransportWebsocket:
		dialer := d.Websocket
		if dialer == nil {
			dialer = websocket.DefaultDialer
		}
		ws, err := dialWebsocket(ctx, dialer, sessionURL, d.Header)
		if err != nil {
			return nil, err
		}
		t = ws
	case TransportStreaming, TransportPolling:
		t = &xhrTransport{
			client:     d.httpClient(),
			header:     d.Header,
			sessionURL: sessionURL,
			streaming:  name == TransportStreaming,
		}
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}

	conn := newConn(t)
	timeout := d.OpenTimeout
	if timeout <= 0 {
		timeout = defaultOpenTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-conn.opened:
		return conn, nil
	case <-conn.done:
		return nil, conn.Err()
	case <-timer.C:
		conn.Close()
		return nil, ErrOpenTimeout
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}
}

func websocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}
