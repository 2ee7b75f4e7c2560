package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig bounds how often one client may search. Zero disables a
// limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// RateLimiter tracks per-client request windows. Minute and hour limits use
// sliding windows over request timestamps; the daily quotas reset at local
// midnight.
type RateLimiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	now     func() time.Time
	clients map[string]*clientUsage
}

type clientUsage struct {
	recent        []time.Time // accepted requests of the last hour, oldest first
	day           time.Time
	requestsToday int
	dataToday     int64
}

// Usage is a snapshot of one client's consumption.
type Usage struct {
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int
	DataToday          int64
}

// NewRateLimiter creates a rate limiter with the given limits.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*clientUsage),
	}
}

// Allow admits one request of dataSize bytes from clientID or returns a
// *RateLimitError or *QuotaExceededError. Rejected requests are not counted.
func (rl *RateLimiter) Allow(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.usage(clientID, now)

	if n := rl.cfg.RequestsPerMinute; n > 0 {
		inWindow := countSince(u.recent, now.Add(-time.Minute))
		if inWindow >= n {
			oldest := u.recent[len(u.recent)-inWindow]
			return &RateLimitError{Type: "minute", Limit: n, RetryAfter: oldest.Add(time.Minute).Sub(now)}
		}
	}
	if n := rl.cfg.RequestsPerHour; n > 0 && len(u.recent) >= n {
		oldest := u.recent[len(u.recent)-n]
		return &RateLimitError{Type: "hour", Limit: n, RetryAfter: oldest.Add(time.Hour).Sub(now)}
	}

	resets := u.day.AddDate(0, 0, 1)
	if n := rl.cfg.MaxRequestsPerDay; n > 0 && u.requestsToday >= n {
		return &QuotaExceededError{Type: "requests", Limit: int64(n), Used: int64(u.requestsToday), Resets: resets}
	}
	if n := rl.cfg.MaxDataPerDay; n > 0 && u.dataToday+dataSize > n {
		return &QuotaExceededError{Type: "data", Limit: n, Used: u.dataToday, Resets: resets}
	}

	u.recent = append(u.recent, now)
	u.requestsToday++
	u.dataToday += dataSize
	return nil
}

// usage returns the client's record with expired state dropped.
func (rl *RateLimiter) usage(clientID string, now time.Time) *clientUsage {
	day := startOfDay(now)
	u, ok := rl.clients[clientID]
	if !ok {
		u = &clientUsage{day: day}
		rl.clients[clientID] = u
	}
	if !u.day.Equal(day) {
		u.day = day
		u.requestsToday = 0
		u.dataToday = 0
	}
	cutoff := now.Add(-time.Hour)
	drop := 0
	for drop < len(u.recent) && !u.recent[drop].After(cutoff) {
		drop++
	}
	u.recent = u.recent[drop:]
	return u
}

// Usage returns current usage statistics for a client.
func (rl *RateLimiter) Usage(clientID string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if _, ok := rl.clients[clientID]; !ok {
		return Usage{}
	}
	now := rl.now()
	u := rl.usage(clientID, now)
	return Usage{
		RequestsLastMinute: countSince(u.recent, now.Add(-time.Minute)),
		RequestsLastHour:   len(u.recent),
		RequestsToday:      u.requestsToday,
		DataToday:          u.dataToday,
	}
}

// countSince counts timestamps strictly after t in an ascending slice.
func countSince(ts []time.Time, t time.Time) int {
	n := 0
	for i := len(ts) - 1; i >= 0 && ts[i].After(t); i-- {
		n++
	}
	return n
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // until the oldest request leaves the window
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
