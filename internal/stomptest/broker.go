// Package stomptest runs an in-process STOMP broker for tests.
package stomptest

import (
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/server"
	"github.com/stretchr/testify/require"
)

var syncSeq atomic.Int64

// StartBroker listens on a random local port and returns its address in
// network@address form.
func StartBroker(t testing.TB) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(l) }()
	t.Cleanup(func() { _ = l.Close() })
	return "tcp@" + l.Addr().String()
}

// Dial opens a plain go-stomp connection to the broker at addr.
func Dial(t testing.TB, addr string) *stomp.Conn {
	t.Helper()
	conn, err := stomp.Dial("tcp", addr[len("tcp@"):])
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.MustDisconnect() })
	return conn
}

// Sync returns once the broker has processed every frame conn sent before it.
func Sync(t testing.TB, conn *stomp.Conn) {
	t.Helper()
	dest := "/queue/sync-" + strconv.FormatInt(syncSeq.Add(1), 10)
	require.NoError(t, conn.Send(dest, "text/plain", nil, stomp.SendOpt.Receipt))
}

// Receive waits for the next message on sub.
func Receive(t testing.TB, sub *stomp.Subscription) *stomp.Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		require.NoError(t, msg.Err)
		return msg
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no message within 5s")
		return nil
	}
}
