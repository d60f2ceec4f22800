package connect_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chatlink/auth"
	"chatlink/connect"
	"chatlink/internal/stomptest"
	"chatlink/sockjs"
	"github.com/gin-gonic/gin"
	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/require"
)

func counter(c *connect.Client, name string) int64 {
	return metrics.GetOrRegisterCounter(name, c.Metrics()).Count()
}

func activate(t *testing.T, c *connect.Client) {
	t.Helper()
	c.Activate(context.Background())
	t.Cleanup(c.Deactivate)
	require.Eventually(t, c.Connected, 5*time.Second, 10*time.Millisecond)
}

// awaitLive publishes token until it shows up on sub, proving the broker has
// registered the subscription.
func awaitLive(t *testing.T, pub *stomp.Conn, sub *connect.Subscription, token string) {
	t.Helper()
	require.Eventually(t, func() bool {
		if err := pub.Send(sub.Destination(), "text/plain", []byte(token)); err != nil {
			return false
		}
		deadline := time.After(50 * time.Millisecond)
		for {
			select {
			case m := <-sub.C:
				if string(m.Body) == token {
					return true
				}
			case <-deadline:
				return false
			}
		}
	}, 5*time.Second, 10*time.Millisecond)
}

// next returns the next message whose body is not a marker token.
func next(t *testing.T, sub *connect.Subscription) connect.Message {
	t.Helper()
	for {
		select {
		case m, ok := <-sub.C:
			require.True(t, ok, "stream closed")
			if strings.HasPrefix(string(m.Body), "marker") {
				continue
			}
			return m
		case <-time.After(5 * time.Second):
			require.FailNow(t, "no message within 5s")
		}
	}
}

func TestClient_Publish(t *testing.T) {
	addr := stomptest.StartBroker(t)

	t.Run("it should refuse to publish before connecting", func(t *testing.T) {
		c := connect.NewClient(connect.NetDialer{Address: addr})

		err := c.Publish("/app/chat.send/1", "application/json", []byte(`{}`), nil)
		require.ErrorIs(t, err, connect.ErrNotConnected)
		require.False(t, c.Connected())
		require.Zero(t, counter(c, "stomp.publishes"))
	})

	t.Run("it should send the frame with content type and headers", func(t *testing.T) {
		raw := stomptest.Dial(t, addr)
		sub, err := raw.Subscribe("/app/chat.send/1", stomp.AckAuto)
		require.NoError(t, err)
		stomptest.Sync(t, raw)

		c := connect.NewClient(connect.NetDialer{Address: addr}, connect.WithHeartbeat(0, 0))
		activate(t, c)

		err = c.Publish("/app/chat.send/1", "application/json", []byte(`{"content":"hi"}`), map[string]string{"x-trace": "abc"})
		require.NoError(t, err)

		msg := stomptest.Receive(t, sub)
		require.Equal(t, `{"content":"hi"}`, string(msg.Body))
		require.Equal(t, "application/json", msg.ContentType)
		require.Equal(t, "abc", msg.Header.Get("x-trace"))
		require.EqualValues(t, 1, counter(c, "stomp.publishes"))
		require.EqualValues(t, 1, counter(c, "stomp.connects"))
	})
}

func TestClient_Subscribe(t *testing.T) {
	addr := stomptest.StartBroker(t)
	pub := stomptest.Dial(t, addr)

	t.Run("it should deliver frames in order", func(t *testing.T) {
		c := connect.NewClient(connect.NetDialer{Address: addr}, connect.WithHeartbeat(0, 0))
		activate(t, c)

		sub, err := c.Subscribe("/topic/chat/1")
		require.NoError(t, err)
		awaitLive(t, pub, sub, "marker")

		for _, body := range []string{"one", "two", "three"} {
			require.NoError(t, pub.Send("/topic/chat/1", "application/json", []byte(body)))
		}
		require.Equal(t, "one", string(next(t, sub).Body))
		require.Equal(t, "two", string(next(t, sub).Body))
		m := next(t, sub)
		require.Equal(t, "three", string(m.Body))
		require.Equal(t, "/topic/chat/1", m.Destination)
		require.GreaterOrEqual(t, counter(c, "stomp.messages"), int64(3))
	})

	t.Run("it should issue subscriptions made before connecting", func(t *testing.T) {
		c := connect.NewClient(connect.NetDialer{Address: addr}, connect.WithHeartbeat(0, 0))
		sub, err := c.Subscribe("/topic/chat/2")
		require.NoError(t, err)

		activate(t, c)
		awaitLive(t, pub, sub, "marker")
	})

	t.Run("it should close the stream on unsubscribe", func(t *testing.T) {
		c := connect.NewClient(connect.NetDialer{Address: addr}, connect.WithHeartbeat(0, 0))
		activate(t, c)

		sub, err := c.Subscribe("/topic/chat/3")
		require.NoError(t, err)
		awaitLive(t, pub, sub, "marker")

		sub.Unsubscribe()
		sub.Unsubscribe()
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.C:
				return !ok
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)
		require.True(t, c.Connected())
	})

	t.Run("it should close every stream on deactivate", func(t *testing.T) {
		c := connect.NewClient(connect.NetDialer{Address: addr}, connect.WithHeartbeat(0, 0))
		activate(t, c)

		sub, err := c.Subscribe("/topic/chat/4")
		require.NoError(t, err)

		c.Deactivate()
		require.False(t, c.Connected())
		for range sub.C {
		}
		require.ErrorIs(t, c.Publish("/app/x", "text/plain", nil, nil), connect.ErrNotConnected)
	})
}

// trackingDialer remembers the last connection so tests can cut it.
type trackingDialer struct {
	connect.NetDialer
	mu   sync.Mutex
	last io.Closer
}

func (d *trackingDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	rwc, err := d.NetDialer.Dial(ctx)
	if err == nil {
		d.mu.Lock()
		d.last = rwc
		d.mu.Unlock()
	}
	return rwc, err
}

func (d *trackingDialer) cut() {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.last.Close()
}

func TestClient_Reconnect(t *testing.T) {
	addr := stomptest.StartBroker(t)
	pub := stomptest.Dial(t, addr)

	t.Run("it should reconnect and resubscribe after the connection drops", func(t *testing.T) {
		d := &trackingDialer{NetDialer: connect.NetDialer{Address: addr}}
		var mu sync.Mutex
		connects := 0
		c := connect.NewClient(d,
			connect.WithHeartbeat(0, 0),
			connect.WithReconnectDelay(50*time.Millisecond),
			connect.WithOnConnect(func() {
				mu.Lock()
				connects++
				mu.Unlock()
			}),
		)
		activate(t, c)

		sub, err := c.Subscribe("/topic/participants/7")
		require.NoError(t, err)
		awaitLive(t, pub, sub, "marker-1")

		d.cut()
		require.Eventually(t, func() bool {
			return counter(c, "stomp.connects") == 2 && c.Connected()
		}, 5*time.Second, 10*time.Millisecond)
		require.EqualValues(t, 1, counter(c, "stomp.reconnects"))

		awaitLive(t, pub, sub, "marker-2")
		require.NoError(t, pub.Send("/topic/participants/7", "application/json", []byte("after")))
		require.Equal(t, "after", string(next(t, sub).Body))

		mu.Lock()
		require.Equal(t, 2, connects)
		mu.Unlock()
	})

	t.Run("it should stay down when the reconnect delay is zero", func(t *testing.T) {
		d := &trackingDialer{NetDialer: connect.NetDialer{Address: addr}}
		c := connect.NewClient(d, connect.WithHeartbeat(0, 0), connect.WithReconnectDelay(0))
		activate(t, c)

		d.cut()
		require.Eventually(t, func() bool { return !c.Connected() }, 5*time.Second, 10*time.Millisecond)
		time.Sleep(100 * time.Millisecond)
		require.False(t, c.Connected())
		require.EqualValues(t, 1, counter(c, "stomp.connects"))
	})

	t.Run("it should keep retrying while the broker is unreachable", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		dead := "tcp@" + l.Addr().String()
		require.NoError(t, l.Close())

		var mu sync.Mutex
		dials := 0
		d := connect.DialerFunc(func(ctx context.Context) (io.ReadWriteCloser, error) {
			mu.Lock()
			dials++
			mu.Unlock()
			return connect.NetDialer{Address: dead}.Dial(ctx)
		})
		c := connect.NewClient(d, connect.WithReconnectDelay(10*time.Millisecond))
		c.Activate(context.Background())
		defer c.Deactivate()

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return dials >= 3
		}, 5*time.Second, 10*time.Millisecond)
		require.False(t, c.Connected())
	})
}

// sockjsBridge serves the SockJS websocket transport and relays it to a STOMP
// broker, recording the first client payload (the CONNECT frame) of every session.
type sockjsBridge struct {
	broker  string
	connect chan string

	mu    sync.Mutex
	conns []*websocket.Conn
}

// drop closes every open session.
func (b *sockjsBridge) drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ws := range b.conns {
		_ = ws.Close()
	}
	b.conns = nil
}

func (b *sockjsBridge) nextConnect(t *testing.T) string {
	t.Helper()
	select {
	case f := <-b.connect:
		return f
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no CONNECT frame within 5s")
		return ""
	}
}

func newSockJSBridge(t *testing.T, broker string) (*httptest.Server, *sockjsBridge) {
	gin.SetMode(gin.TestMode)
	b := &sockjsBridge{broker: strings.TrimPrefix(broker, "tcp@"), connect: make(chan string, 8)}
	r := gin.New()
	r.GET("/ws/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"websocket": true, "cookie_needed": false, "origins": []string{"*:*"}, "entropy": 1})
	})
	r.GET("/ws/:server/:session/websocket", b.serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, b
}

func (b *sockjsBridge) serve(c *gin.Context) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	b.mu.Lock()
	b.conns = append(b.conns, ws)
	b.mu.Unlock()
	tcp, err := net.Dial("tcp", b.broker)
	if err != nil {
		return
	}
	defer tcp.Close()

	var wmu sync.Mutex
	write := func(s string) error {
		wmu.Lock()
		defer wmu.Unlock()
		return ws.WriteMessage(websocket.TextMessage, []byte(s))
	}
	if write("o") != nil {
		return
	}

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := tcp.Read(buf)
			if err != nil {
				_ = ws.Close()
				return
			}
			frame, _ := json.Marshal([]string{string(buf[:n])})
			if write("a"+string(frame)) != nil {
				return
			}
		}
	}()

	first := true
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var payloads []string
		if json.Unmarshal(data, &payloads) != nil {
			return
		}
		for _, p := range payloads {
			if first {
				b.connect <- p
				first = false
			}
			if _, err := tcp.Write([]byte(p)); err != nil {
				return
			}
		}
	}
}

func TestCreateClient(t *testing.T) {
	addr := stomptest.StartBroker(t)

	t.Run("it should send the bearer token in the CONNECT frame", func(t *testing.T) {
		srv, bridge := newSockJSBridge(t, addr)
		c, err := connect.CreateClient(auth.Static("tok-1"),
			connect.WithURL(srv.URL+"/ws"),
			connect.WithTransports("websocket"),
			connect.WithHeartbeat(0, 0))
		require.NoError(t, err)
		activate(t, c)

		frame := bridge.nextConnect(t)
		require.True(t, strings.HasPrefix(frame, "CONNECT") || strings.HasPrefix(frame, "STOMP"), frame)
		require.Contains(t, frame, "Authorization:Bearer tok-1\n")
		require.Contains(t, frame, "host:127.0.0.1\n")

		pub := stomptest.Dial(t, addr)
		sub, err := c.Subscribe("/topic/chat/9")
		require.NoError(t, err)
		awaitLive(t, pub, sub, "marker")
	})

	t.Run("it should omit the header without a token", func(t *testing.T) {
		srv, bridge := newSockJSBridge(t, addr)
		c, err := connect.CreateClient(auth.Static(""),
			connect.WithURL(srv.URL+"/ws"),
			connect.WithTransports("websocket"),
			connect.WithHeartbeat(0, 0))
		require.NoError(t, err)
		activate(t, c)

		frame := bridge.nextConnect(t)
		require.NotContains(t, frame, "Authorization")
	})

	t.Run("it should negotiate the default heartbeats", func(t *testing.T) {
		srv, bridge := newSockJSBridge(t, addr)
		c, err := connect.CreateClient(auth.Static("tok-1"), connect.WithURL(srv.URL+"/ws"))
		require.NoError(t, err)
		activate(t, c)

		frame := bridge.nextConnect(t)
		require.Contains(t, frame, "heart-beat:4000,4000\n")
	})

	t.Run("it should default to the chat endpoint settings", func(t *testing.T) {
		c, err := connect.CreateClient(nil)
		require.NoError(t, err)

		opts := connect.OptionsOf(c)
		require.Equal(t, 5000*time.Millisecond, opts.ReconnectDelay)
		require.Equal(t, 4000*time.Millisecond, opts.HeartbeatIncoming)
		require.Equal(t, 4000*time.Millisecond, opts.HeartbeatOutgoing)
		require.Equal(t, []string{"websocket", "xhr-streaming", "xhr-polling"}, opts.Transports)
		require.Equal(t, "localhost", opts.Host)

		d, ok := connect.DialerOf(c).(connect.SockJSDialer)
		require.True(t, ok)
		require.Equal(t, "http://localhost/ws", d.URL)
		require.Equal(t, sockjs.DefaultTransports, d.Transports)
	})

	t.Run("it should keep the token read at creation across reconnects", func(t *testing.T) {
		ctx := context.Background()
		store := auth.NewMemoryStore()
		require.NoError(t, store.Set(ctx, "token", "tok-a"))

		srv, bridge := newSockJSBridge(t, addr)
		c, err := connect.CreateClient(auth.FromStore(store, "token"),
			connect.WithURL(srv.URL+"/ws"),
			connect.WithTransports("websocket"),
			connect.WithReconnectDelay(20*time.Millisecond),
			connect.WithHeartbeat(0, 0))
		require.NoError(t, err)
		require.NoError(t, store.Set(ctx, "token", "tok-b"))
		activate(t, c)
		require.Contains(t, bridge.nextConnect(t), "Authorization:Bearer tok-a\n")

		bridge.drop()
		frame := bridge.nextConnect(t)
		require.Contains(t, frame, "Authorization:Bearer tok-a\n")
		require.NotContains(t, frame, "tok-b")
		require.Eventually(t, c.Connected, 5*time.Second, 10*time.Millisecond)
		require.EqualValues(t, 1, counter(c, "stomp.reconnects"))
	})

	t.Run("it should fail when the token cannot be read", func(t *testing.T) {
		_, err := connect.CreateClient(failingSource{})
		require.Error(t, err)
	})

	t.Run("it should dial raw STOMP for network addresses", func(t *testing.T) {
		c, err := connect.CreateClient(nil, connect.WithURL(addr), connect.WithHeartbeat(0, 0))
		require.NoError(t, err)
		activate(t, c)
	})
}

type failingSource struct{}

func (failingSource) Token(context.Context) (string, error) {
	return "", io.ErrUnexpectedEOF
}
