package infrastructure

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MessageRateLimiter keeps one token bucket per client id so a single
// sender cannot flood the reply pipeline.
type MessageRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	rate      rate.Limit
	burst     int
	idleAfter time.Duration
	now       func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMessageRateLimiter allows perSecond messages per client with the given
// burst. Buckets idle for ten minutes are dropped by Cleanup.
func NewMessageRateLimiter(perSecond float64, burst int) *MessageRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MessageRateLimiter{
		buckets:   make(map[string]*clientBucket),
		rate:      rate.Limit(perSecond),
		burst:     burst,
		idleAfter: 10 * time.Minute,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

func (rl *MessageRateLimiter) WithClock(now func() time.Time) *MessageRateLimiter {
	rl.now = now
	return rl
}

// Allow consumes one token for clientID if available.
func (rl *MessageRateLimiter) Allow(clientID string) bool {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[clientID]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.buckets[clientID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// WaitTime returns how long clientID has to wait for its next message.
func (rl *MessageRateLimiter) WaitTime(clientID string) time.Duration {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[clientID]
	if !ok || b.limiter.TokensAt(now) >= 1 || rl.rate <= 0 {
		return 0
	}
	needed := 1 - b.limiter.TokensAt(now)
	return time.Duration(needed / float64(rl.rate) * float64(time.Second))
}

func (rl *MessageRateLimiter) Reset(clientID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, clientID)
}

// Cleanup drops idle buckets and returns how many were removed.
func (rl *MessageRateLimiter) Cleanup() int {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for id, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.idleAfter {
			delete(rl.buckets, id)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until Stop.
func (rl *MessageRateLimiter) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-rl.stop:
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}

func (rl *MessageRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// RateLimiterStats is what /health reports about the limiter.
type RateLimiterStats struct {
	ActiveClients int     `json:"active_clients"`
	Rate          float64 `json:"rate"`
	Burst         int     `json:"burst"`
}

func (rl *MessageRateLimiter) GetStats() RateLimiterStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return RateLimiterStats{
		ActiveClients: len(rl.buckets),
		Rate:          float64(rl.rate),
		Burst:         rl.burst,
	}
}
