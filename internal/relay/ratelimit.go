package relay

import (
	"sync"
	"time"
)

// tokenBucket is a hand-rolled per-instance rate limiter covering both a
// message-count budget and a cumulative-byte budget (§4.H "per-instance
// rate limits (messages/minute, cumulative bytes)"). golang.org/x/time/rate
// is not available in the retrieval pack; every rate limiter found there is
// hand-rolled, so this follows that pattern rather than the stdlib-adjacent
// package.
type tokenBucket struct {
	mu sync.Mutex

	msgCapacity  float64
	msgTokens    float64
	msgRefillPS  float64 // tokens/sec

	byteCapacity float64
	byteTokens   float64
	byteRefillPS float64

	last time.Time
}

// newTokenBucket builds a limiter refilling msgsPerMinute messages and
// bytesPerMinute bytes every minute, starting full.
func newTokenBucket(msgsPerMinute int, bytesPerMinute int64, now time.Time) *tokenBucket {
	return &tokenBucket{
		msgCapacity:  float64(msgsPerMinute),
		msgTokens:    float64(msgsPerMinute),
		msgRefillPS:  float64(msgsPerMinute) / 60.0,
		byteCapacity: float64(bytesPerMinute),
		byteTokens:   float64(bytesPerMinute),
		byteRefillPS: float64(bytesPerMinute) / 60.0,
		last:         now,
	}
}

// Allow charges one message and n bytes against the bucket, refilling for
// elapsed time first. Returns false (and charges nothing) if either budget
// would go negative.
func (b *tokenBucket) Allow(now time.Time, n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.msgTokens = minF(b.msgCapacity, b.msgTokens+elapsed*b.msgRefillPS)
		b.byteTokens = minF(b.byteCapacity, b.byteTokens+elapsed*b.byteRefillPS)
		b.last = now
	}

	if b.msgTokens < 1 || b.byteTokens < float64(n) {
		return false
	}
	b.msgTokens--
	b.byteTokens -= float64(n)
	return true
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
