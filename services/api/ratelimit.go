package api

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit is a parsed rate specification such as "100 per hour".
type Limit struct {
	Requests int
	Window   time.Duration
}

var limitWindows = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    time.Hour * 24,
}

// ParseLimit parses specs of the form "<n> per <second|minute|hour|day>".
func ParseLimit(spec string) (Limit, error) {
	fields := strings.Fields(strings.ToLower(spec))
	if len(fields) != 3 || fields[1] != "per" {
		return Limit{}, fmt.Errorf("invalid rate limit spec %q, want e.g. \"100 per hour\"", spec)
	}
	requests, err := strconv.Atoi(fields[0])
	if err != nil || requests <= 0 {
		return Limit{}, fmt.Errorf("invalid rate limit count %q", fields[0])
	}
	window, ok := limitWindows[fields[2]]
	if !ok {
		return Limit{}, fmt.Errorf("invalid rate limit window %q", fields[2])
	}
	return Limit{Requests: requests, Window: window}, nil
}

func (l Limit) String() string {
	for name, window := range limitWindows {
		if window == l.Window {
			return fmt.Sprintf("%d per %s", l.Requests, name)
		}
	}
	return fmt.Sprintf("%d per %s", l.Requests, l.Window)
}

// LimiterStore tracks request budgets per caller identity. The storage
// backend is deliberately pluggable; the in-memory store below is the
// default.
type LimiterStore interface {
	Allow(identity string) bool
}

// MemoryLimiterStore keeps one token bucket per caller identity,
// replenishing at Limit.Requests per Limit.Window.
type MemoryLimiterStore struct {
	mu       sync.Mutex
	limit    Limit
	limiters map[string]*rate.Limiter
}

func NewMemoryLimiterStore(limit Limit) *MemoryLimiterStore {
	return &MemoryLimiterStore{
		limit:    limit,
		limiters: map[string]*rate.Limiter{},
	}
}

func (s *MemoryLimiterStore) Allow(identity string) bool {
	s.mu.Lock()
	limiter, ok := s.limiters[identity]
	if !ok {
		limiter = rate.NewLimiter(
			rate.Every(s.limit.Window/time.Duration(s.limit.Requests)),
			s.limit.Requests,
		)
		s.limiters[identity] = limiter
	}
	s.mu.Unlock()

	return limiter.Allow()
}
