package sockjs

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// transport moves raw frames for one session. receive blocks until the
// session ends, calling handle for every frame; handle returns false to stop.
type transport interface {
	name() string
	receive(ctx context.Context, handle func(frame string) bool) error
	send(ctx context.Context, payload []byte) error
	close() error
}

// Conn is an open SockJS session exposed as a byte stream: reads return the
// concatenated message payloads, each Write becomes one message.
type Conn struct {
	t      transport
	ctx    context.Context
	cancel context.CancelFunc

	opened   chan struct{}
	incoming chan string
	done     chan struct{}
	buf      []byte

	openOnce  sync.Once
	closeOnce sync.Once
	writeMu   sync.Mutex
	errMu     sync.Mutex
	err       error
}

var _ io.ReadWriteCloser = (*Conn)(nil)

func newConn(t transport) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		t:        t,
		ctx:      ctx,
		cancel:   cancel,
		opened:   make(chan struct{}),
		incoming: make(chan string, 64),
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// Transport names the transport that carries this session.
func (c *Conn) Transport() string { return c.t.name() }

func (c *Conn) run() {
	err := c.t.receive(c.ctx, c.handle)
	if err == nil {
		err = io.EOF
	}
	c.shutdown(err)
}

func (c *Conn) handle(frame string) bool {
	if frame == "" {
		return true
	}
	switch frame[0] {
	case frameOpen:
		c.openOnce.Do(func() { close(c.opened) })
	case frameHeartbeat:
	case frameArray:
		var msgs []string
		if err := json.Unmarshal([]byte(frame[1:]), &msgs); err != nil {
			logrus.Warnf("sockjs %s: bad message frame: %s", c.t.name(), err.Error())
			return true
		}
		for _, m := range msgs {
			if !c.deliver(m) {
				return false
			}
		}
	case frameMessage:
		var m string
		if err := json.Unmarshal([]byte(frame[1:]), &m); err != nil {
			logrus.Warnf("sockjs %s: bad message frame: %s", c.t.name(), err.Error())
			return true
		}
		return c.deliver(m)
	case frameClose:
		c.shutdown(parseClose(frame[1:]))
		return false
	default:
		logrus.Debugf("sockjs %s: unknown frame %q", c.t.name(), frame)
	}
	return true
}

func (c *Conn) deliver(m string) bool {
	select {
	case c.incoming <- m:
		return true
	case <-c.done:
		return false
	}
}

func (c *Conn) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		select {
		case m := <-c.incoming:
			c.buf = []byte(m)
		case <-c.done:
			select {
			case m := <-c.incoming:
				c.buf = []byte(m)
				continue
			default:
			}
			return 0, c.Err()
		}
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	select {
	case <-c.done:
		return 0, c.Err()
	default:
	}
	payload, err := encodeMessages(string(p))
	if err != nil {
		return 0, err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.t.send(c.ctx, payload); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Conn) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

// Done is closed once the session is over.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the session ended, nil while it is open.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
		c.cancel()
		if cerr := c.t.close(); cerr != nil {
			logrus.Debugf("sockjs %s: close transport: %s", c.t.name(), cerr.Error())
		}
	})
}
