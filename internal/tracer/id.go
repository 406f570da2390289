package tracer

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSessionID generates a guard session ID ("g-" + 12 hex chars).
func NewSessionID() string {
	return prefixedID("g", 12)
}

// NewRequestID generates a short ID for one proxied or RPC request.
func NewRequestID() string {
	return prefixedID("r", 8)
}

// UTCNowISO returns the current UTC time in ISO format with Z suffix.
func UTCNowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func prefixedID(prefix string, hexLen int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + hex[:hexLen]
}
