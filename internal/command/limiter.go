package command

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterSet hands out one token bucket per player.
type limiterSet struct {
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
	byUser map[string]*rate.Limiter
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet{limit: limit, burst: burst, byUser: make(map[string]*rate.Limiter)}
}

func (s *limiterSet) allow(playerID string) bool {
	if s == nil || s.limit == rate.Inf {
		return true
	}
	s.mu.Lock()
	l, ok := s.byUser[playerID]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.byUser[playerID] = l
	}
	s.mu.Unlock()
	return l.Allow()
}

func (s *limiterSet) forget(playerID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.byUser, playerID)
	s.mu.Unlock()
}
