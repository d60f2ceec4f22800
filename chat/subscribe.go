package chat

import (
	"encoding/json"
	"sync"

	"chatlink/connect"
	"chatlink/domain"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// DecodeErrors counts frames dropped because their body was not valid JSON,
// across every stream in the process.
var DecodeErrors = metrics.GetOrRegisterCounter("chat.decode.errors", nil)

// Subscriber is the part of connect.Client the subscribe helpers need.
type Subscriber interface {
	Subscribe(destination string) (*connect.Subscription, error)
}

// Stream yields one decoded value per valid frame. C closes after Unsubscribe
// or when the client is deactivated.
type Stream[T any] struct {
	C <-chan T

	sub     *connect.Subscription
	dropped metrics.Counter
	done    chan struct{}
	once    sync.Once
}

func (s *Stream[T]) Unsubscribe() {
	s.once.Do(func() { close(s.done) })
	s.sub.Unsubscribe()
}

// Dropped is the number of frames this stream skipped as invalid JSON.
func (s *Stream[T]) Dropped() int64 {
	return s.dropped.Count()
}

func SubscribeToMessages(s Subscriber, chatroomID domain.ID) (*Stream[domain.ChatMessage], error) {
	return subscribe[domain.ChatMessage](s, messagesPrefix+chatroomID.String())
}

// SubscribeToParticipants streams the server's participant updates for a room
// as raw JSON; their shape belongs to the server.
func SubscribeToParticipants(s Subscriber, chatroomID domain.ID) (*Stream[domain.ParticipantUpdate], error) {
	return subscribe[domain.ParticipantUpdate](s, participantsPrefix+chatroomID.String())
}

func subscribe[T any](s Subscriber, destination string) (*Stream[T], error) {
	sub, err := s.Subscribe(destination)
	if err != nil {
		return nil, err
	}
	out := make(chan T)
	st := &Stream[T]{
		C:       out,
		sub:     sub,
		dropped: metrics.NewCounter(),
		done:    make(chan struct{}),
	}
	go st.decode(out)
	return st, nil
}

func (s *Stream[T]) decode(out chan<- T) {
	defer close(out)
	for m := range s.sub.C {
		var v T
		if err := json.Unmarshal(m.Body, &v); err != nil {
			s.dropped.Inc(1)
			DecodeErrors.Inc(1)
			logrus.Warnf("drop malformed frame on %s err:%s", m.Destination, err.Error())
			continue
		}
		select {
		case out <- v:
		case <-s.done:
			return
		}
	}
}
