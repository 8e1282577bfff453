package jukebox

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ActionKind separates the throttles for different requests.
type ActionKind string

const (
	ActionSearch ActionKind = "search"
	ActionSubmit ActionKind = "submit"
)

type limiterKey struct {
	kind      ActionKind
	requester string
}

// Limiter enforces a minimum interval between accepted actions of one kind
// from one requester. Only accepted actions move the window.
type Limiter struct {
	mu        sync.Mutex
	clock     clock.Clock
	intervals map[ActionKind]time.Duration
	last      *lru.Cache[limiterKey, time.Time]
}

// NewLimiter remembers at most size requesters per kind. A zero or negative
// interval disables the throttle for that kind.
func NewLimiter(clk clock.Clock, size int, intervals map[ActionKind]time.Duration) (*Limiter, error) {
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[limiterKey, time.Time](size)
	if err != nil {
		return nil, err
	}
	iv := make(map[ActionKind]time.Duration, len(intervals))
	for k, v := range intervals {
		iv[k] = v
	}
	return &Limiter{
		clock:     clk,
		intervals: iv,
		last:      cache,
	}, nil
}

// Allow records the action and returns nil, or returns ErrRateLimited
// without recording anything.
func (l *Limiter) Allow(kind ActionKind, requester string) error {
	interval := l.intervals[kind]
	if interval <= 0 {
		return nil
	}

	key := limiterKey{kind: kind, requester: requester}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if last, ok := l.last.Get(key); ok {
		if wait := interval - now.Sub(last); wait > 0 {
			return fmt.Errorf("%w: %s again in %s", ErrRateLimited, kind, wait.Round(time.Millisecond))
		}
	}
	l.last.Add(key, now)
	return nil
}
