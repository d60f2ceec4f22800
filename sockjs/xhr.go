package sockjs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// xhrTransport covers both xhr-streaming and xhr-polling; they differ only in
// how long one receive request stays open.
type xhrTransport struct {
	client     *resty.Client
	header     http.Header
	sessionURL string
	streaming  bool
}

func (t *xhrTransport) name() string {
	if t.streaming {
		return TransportStreaming
	}
	return TransportPolling
}

func (t *xhrTransport) receive(ctx context.Context, handle func(string) bool) error {
	path := "/xhr"
	if t.streaming {
		path = "/xhr_streaming"
	}
	for {
		resp, err := t.client.R().
			SetContext(ctx).
			SetHeaderMultiValues(t.header).
			SetDoNotParseResponse(true).
			Post(t.sessionURL + path)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		body := resp.RawBody()
		if resp.StatusCode() != http.StatusOK {
			body.Close()
			return fmt.Errorf("sockjs %s: status %d", t.name(), resp.StatusCode())
		}
		more, err := readFrames(body, handle)
		body.Close()
		if !more {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}
	}
}

// readFrames feeds newline separated frames to handle until the body ends.
// It reports false once handle asked to stop.
func readFrames(body io.Reader, handle func(string) bool) (bool, error) {
	r := bufio.NewReader(body)
	for {
		line, err := r.ReadString('\n')
		if frame := strings.TrimRight(line, "\r\n"); frame != "" {
			if !handle(frame) {
				return false, nil
			}
		}
		if err != nil {
			return true, err
		}
	}
}

func (t *xhrTransport) send(ctx context.Context, payload []byte) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeaderMultiValues(t.header).
		SetHeader("Content-Type", "text/plain;charset=UTF-8").
		SetBody(payload).
		Post(t.sessionURL + "/xhr_send")
	if err != nil {
		return err
	}
	if code := resp.StatusCode(); code != http.StatusNoContent && code != http.StatusOK {
		return fmt.Errorf("sockjs xhr_send: status %d: %s", code, resp.String())
	}
	return nil
}

// receive stops when the Conn cancels its context
func (t *xhrTransport) close() error { return nil }
