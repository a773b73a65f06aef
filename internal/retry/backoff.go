// Package retry provides backoff helpers shared by network adapters.
package retry

import (
	"math/rand"
	"time"
)

// Backoff returns exponential backoff with jitter. Base delay is doubled
// each attempt, with random jitter up to 25%, capped at 30 seconds.
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}
