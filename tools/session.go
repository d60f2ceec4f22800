package tools

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// NewServerId picks the three digit server segment of a SockJS session url.
func NewServerId() string {
	return fmt.Sprintf("%03d", rand.Intn(1000))
}

// NewSessionId returns a url-safe session id without dots.
func NewSessionId() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
