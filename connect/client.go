package connect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"chatlink/auth"
	"chatlink/sockjs"
	"chatlink/tools"
	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by Publish while no STOMP session is up.
var ErrNotConnected = errors.New("connect: not connected")

var errConnectionLost = errors.New("connect: connection lost")

const disconnectWait = 2 * time.Second

// Client keeps one STOMP session alive over a Dialer and reconnects after the
// configured delay whenever the session drops.
type Client struct {
	dialer   Dialer
	opts     Options
	registry metrics.Registry

	connects   metrics.Counter
	reconnects metrics.Counter
	publishes  metrics.Counter
	messages   metrics.Counter

	connected atomic.Bool

	mu     sync.Mutex
	conn   *stomp.Conn
	subs   map[*Subscription]struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// CreateClient builds a client for the chat backend's SockJS endpoint. The
// token is read once here and sent as a CONNECT header on every (re)connect.
func CreateClient(tokens auth.TokenSource, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if tokens != nil {
		tok, err := tokens.Token(context.Background())
		if err != nil {
			return nil, fmt.Errorf("connect token: %w", err)
		}
		if h := auth.BearerHeader(tok); h != "" {
			o.ConnectHeaders["Authorization"] = h
		}
	}

	var d Dialer
	if tools.IsNetworkAddr(o.URL) {
		d = NetDialer{Address: o.URL}
	} else {
		u, err := url.Parse(o.URL)
		if err != nil {
			return nil, fmt.Errorf("connect url %q: %w", o.URL, err)
		}
		if o.Host == "" {
			o.Host = u.Hostname()
		}
		d = SockJSDialer{&sockjs.Dialer{
			URL:         o.URL,
			Transports:  o.Transports,
			OpenTimeout: o.OpenTimeout,
		}}
	}
	return newClient(d, o), nil
}

// NewClient builds a client over any byte stream dialer.
func NewClient(dialer Dialer, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newClient(dialer, o)
}

func newClient(dialer Dialer, o Options) *Client {
	r := metrics.NewRegistry()
	return &Client{
		dialer:     dialer,
		opts:       o,
		registry:   r,
		connects:   metrics.GetOrRegisterCounter("stomp.connects", r),
		reconnects: metrics.GetOrRegisterCounter("stomp.reconnects", r),
		publishes:  metrics.GetOrRegisterCounter("stomp.publishes", r),
		messages:   metrics.GetOrRegisterCounter("stomp.messages", r),
		subs:       make(map[*Subscription]struct{}),
	}
}

// Activate starts connecting in the background. Calling it on an active client is a no-op.
func (c *Client) Activate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.supervise(ctx, c.done)
}

// Deactivate disconnects, stops reconnecting and closes every subscription stream.
func (c *Client) Deactivate() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	subs := c.subs
	c.subs = make(map[*Subscription]struct{})
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	for s := range subs {
		s.terminate()
	}
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Metrics exposes the client's counters: stomp.connects, stomp.reconnects,
// stomp.publishes and stomp.messages.
func (c *Client) Metrics() metrics.Registry {
	return c.registry
}

// Publish sends one frame. It does not queue while disconnected.
func (c *Client) Publish(destination, contentType string, body []byte, headers map[string]string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	opts := make([]func(*frame.Frame) error, 0, len(headers))
	for k, v := range headers {
		opts = append(opts, stomp.SendOpt.Header(k, v))
	}
	if err := conn.Send(destination, contentType, body, opts...); err != nil {
		return fmt.Errorf("send %s: %w", destination, err)
	}
	c.publishes.Inc(1)
	return nil
}

// Subscribe registers destination. The subscription is issued now when
// connected and re-issued after every reconnect until Unsubscribe.
func (c *Client) Subscribe(destination string) (*Subscription, error) {
	s := newSubscription(c, destination)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		if err := s.attach(c.conn); err != nil {
			return nil, err
		}
	}
	c.subs[s] = struct{}{}
	return s, nil
}

func (c *Client) remove(s *Subscription) *stomp.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, s)
	cur := s.current
	s.current = nil
	return cur
}

func (c *Client) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if c.opts.ReconnectDelay <= 0 {
			logrus.Warnf("stomp session ended, reconnect disabled: %s", err)
			return
		}
		logrus.Warnf("stomp session ended: %s, reconnecting in %s", err, c.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReconnectDelay):
		}
		c.reconnects.Inc(1)
	}
}

// session runs one connection from dial to loss.
func (c *Client) session(ctx context.Context) error {
	rwc, err := c.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	wc := watch(rwc)

	// stomp.Connect has no context; closing the stream unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = wc.Close() })
	conn, err := stomp.Connect(wc, c.connectOptions()...)
	stop()
	if err != nil {
		_ = wc.Close()
		return fmt.Errorf("stomp connect: %w", err)
	}
	if ctx.Err() != nil {
		c.disconnect(conn, wc)
		return ctx.Err()
	}

	c.mu.Lock()
	c.conn = conn
	c.connected.Store(true)
	for s := range c.subs {
		if err := s.attach(conn); err != nil {
			logrus.Errorf("resubscribe %s err:%s", s.destination, err.Error())
		}
	}
	c.mu.Unlock()
	c.connects.Inc(1)
	logrus.Infof("stomp connected, version %s", conn.Version())

	if c.opts.OnConnect != nil {
		c.opts.OnConnect()
	}

	select {
	case <-wc.lost:
		_ = wc.Close()
		err = errConnectionLost
	case <-ctx.Done():
		c.disconnect(conn, wc)
		err = ctx.Err()
	}

	c.mu.Lock()
	c.conn = nil
	c.connected.Store(false)
	for s := range c.subs {
		s.current = nil
	}
	c.mu.Unlock()
	return err
}

func (c *Client) disconnect(conn *stomp.Conn, wc *watchedConn) {
	errc := make(chan error, 1)
	go func() { errc <- conn.Disconnect() }()
	select {
	case err := <-errc:
		if err != nil {
			logrus.Debugf("stomp disconnect: %s", err)
		}
	case <-time.After(disconnectWait):
		logrus.Debugf("stomp disconnect receipt timed out")
	}
	_ = wc.Close()
}

func (c *Client) connectOptions() []func(*stomp.Conn) error {
	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.AcceptVersion(stomp.V10, stomp.V11, stomp.V12),
		stomp.ConnOpt.HeartBeat(c.opts.HeartbeatOutgoing, c.opts.HeartbeatIncoming),
	}
	if c.opts.Host != "" {
		opts = append(opts, stomp.ConnOpt.Host(c.opts.Host))
	}
	for k, v := range c.opts.ConnectHeaders {
		opts = append(opts, stomp.ConnOpt.Header(k, v))
	}
	return opts
}
