package connect

import (
	"sync"

	"github.com/go-stomp/stomp/v3"
	"github.com/sirupsen/logrus"
)

const subscriptionBuffer = 64

// Message is one MESSAGE frame as delivered to a subscription.
type Message struct {
	Destination string
	ContentType string
	MessageID   string
	Body        []byte
}

// Subscription streams the frames of one destination across reconnects.
// C is closed by Unsubscribe or by deactivating the client.
type Subscription struct {
	C <-chan Message

	client      *Client
	destination string
	out         chan Message
	done        chan struct{}
	once        sync.Once

	mu     sync.Mutex // guards closed and sends on out
	closed bool

	current *stomp.Subscription // guarded by client.mu
}

func newSubscription(c *Client, destination string) *Subscription {
	out := make(chan Message, subscriptionBuffer)
	return &Subscription{
		C:           out,
		client:      c,
		destination: destination,
		out:         out,
		done:        make(chan struct{}),
	}
}

func (s *Subscription) Destination() string {
	return s.destination
}

// Unsubscribe closes C and drops the broker subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	cur := s.client.remove(s)
	s.terminate()
	if cur == nil {
		return
	}
	// stomp waits for the broker here; pump keeps draining until it is done.
	go func() {
		if err := cur.Unsubscribe(); err != nil {
			logrus.Debugf("unsubscribe %s: %s", s.destination, err)
		}
	}()
}

// attach subscribes on conn; callers hold client.mu.
func (s *Subscription) attach(conn *stomp.Conn) error {
	sub, err := conn.Subscribe(s.destination, stomp.AckAuto)
	if err != nil {
		return err
	}
	s.current = sub
	go s.pump(sub)
	return nil
}

func (s *Subscription) pump(sub *stomp.Subscription) {
	for msg := range sub.C {
		if msg.Err != nil {
			logrus.Debugf("subscription %s ended: %s", s.destination, msg.Err)
			return
		}
		m := Message{
			Destination: msg.Destination,
			ContentType: msg.ContentType,
			Body:        msg.Body,
		}
		if msg.Header != nil {
			m.MessageID = msg.Header.Get("message-id")
		}
		s.client.messages.Inc(1)
		s.forward(m)
	}
}

func (s *Subscription) forward(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- m:
	case <-s.done:
	}
}

func (s *Subscription) terminate() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.out)
		s.mu.Unlock()
	})
}
