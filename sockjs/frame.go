package sockjs

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	frameOpen      = 'o'
	frameHeartbeat = 'h'
	frameArray     = 'a'
	frameMessage   = 'm'
	frameClose     = 'c'
)

var (
	ErrClosed      = errors.New("sockjs: connection closed")
	ErrNoTransport = errors.New("sockjs: no transport could open a session")
	ErrOpenTimeout = errors.New("sockjs: timed out waiting for open frame")
)

// CloseError carries the code and reason of a server "c" frame.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("sockjs: closed by server: %d %s", e.Code, e.Reason)
}

func parseClose(payload string) *CloseError {
	var raw []json.RawMessage
	ce := &CloseError{Code: 1006, Reason: "malformed close frame"}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil || len(raw) == 0 {
		return ce
	}
	_ = json.Unmarshal(raw[0], &ce.Code)
	ce.Reason = ""
	if len(raw) > 1 {
		_ = json.Unmarshal(raw[1], &ce.Reason)
	}
	return ce
}

// encodeMessages is the body the client sends: a JSON array of strings.
func encodeMessages(msgs ...string) ([]byte, error) {
	return json.Marshal(msgs)
}
