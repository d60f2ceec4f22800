package connect

import (
	"context"
	"io"
	"net"
	"sync"

	"chatlink/sockjs"
	"chatlink/tools"
)

// Dialer opens the byte stream the STOMP session runs over.
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

type DialerFunc func(ctx context.Context) (io.ReadWriteCloser, error)

func (f DialerFunc) Dial(ctx context.Context) (io.ReadWriteCloser, error) { return f(ctx) }

// NetDialer speaks raw STOMP to a broker socket, Address in network@address form.
type NetDialer struct {
	Address string
}

func (d NetDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	network, addr, err := tools.ParseNetwork(d.Address)
	if err != nil {
		return nil, err
	}
	var nd net.Dialer
	return nd.DialContext(ctx, network, addr)
}

// SockJSDialer tunnels STOMP through a SockJS endpoint.
type SockJSDialer struct {
	*sockjs.Dialer
}

func (d SockJSDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	conn, err := d.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// watchedConn reports the first read failure or close on lost, which is how
// the client notices a dropped session.
type watchedConn struct {
	io.ReadWriteCloser
	lost     chan struct{}
	lostOnce sync.Once
	closeErr error
	closed   sync.Once
}

func watch(rwc io.ReadWriteCloser) *watchedConn {
	return &watchedConn{ReadWriteCloser: rwc, lost: make(chan struct{})}
}

func (w *watchedConn) Read(p []byte) (int, error) {
	n, err := w.ReadWriteCloser.Read(p)
	if err != nil {
		w.signal()
	}
	return n, err
}

func (w *watchedConn) Close() error {
	w.signal()
	w.closed.Do(func() { w.closeErr = w.ReadWriteCloser.Close() })
	return w.closeErr
}

func (w *watchedConn) signal() {
	w.lostOnce.Do(func() { close(w.lost) })
}
