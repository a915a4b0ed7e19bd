package logger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var counter uint64

// GenerateRequestID generates a unique request ID
// Format: timestamp-counter-random, e.g. 20231201102830-000001-a3f2b1
func GenerateRequestID() string {
	timestamp := time.Now().Format("20060102150405")
	count := atomic.AddUint64(&counter, 1)
	return fmt.Sprintf("%s-%06d-%s", timestamp, count, randomHex(3))
}

// ShortRequestID generates a shorter request ID, e.g. 000001-a3f2b1.
// Used for per-message ids inside a WebSocket session.
func ShortRequestID() string {
	count := atomic.AddUint64(&counter, 1)
	return fmt.Sprintf("%06d-%s", count, randomHex(3))
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
