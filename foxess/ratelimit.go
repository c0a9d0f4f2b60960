package foxess

import (
	"sync"
	"time"
)

// RequestType distinguishes read-only queries from mutating updates, which
// the upstream holds to a longer minimum interval.
type RequestType string

const (
	RequestQuery  RequestType = "query"
	RequestUpdate RequestType = "update"
)

// Upstream quota: 1440 requests per device per rolling 24 hours, with a
// minimum gap between consecutive requests.
const (
	dailyLimit     = 1440
	rateWindow     = 24 * time.Hour
	queryInterval  = 1 * time.Second
	updateInterval = 2 * time.Second
)

// Limiter tracks request history over a rolling 24-hour window plus the
// minimum inter-request interval. The interval is global to the instance,
// not per endpoint: the upstream quota is per device/account, so query and
// update traffic share one last-request timestamp. It never sleeps; callers
// act on the reported wait.
type Limiter struct {
	mu      sync.Mutex
	history []time.Time
	last    time.Time
	now     func() time.Time
}

// NewLimiter returns a limiter with empty history.
func NewLimiter() *Limiter {
	return &Limiter{now: time.Now}
}

// CanProceed reports whether a request of the given type would be allowed
// right now. History older than 24 hours is pruned on every check so the
// quota stays accurate and memory bounded.
func (l *Limiter) CanProceed(rt RequestType) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, _ := l.check(rt)
	return ok
}

// Record notes that a permitted request was actually attempted. It appends
// to history and moves the shared last-request timestamp unconditionally.
func (l *Limiter) Record(rt RequestType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commit()
}

// Acquire is the atomic check-then-commit used on the request path: two
// concurrent callers cannot both pass the interval check. On denial it
// returns a RateLimitError carrying the retry hint.
func (l *Limiter) Acquire(rt RequestType) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, wait := l.check(rt)
	if !ok {
		return &RateLimitError{RetryAfter: wait, Remaining: dailyLimit - len(l.history)}
	}
	l.commit()
	return nil
}

// Wait returns how long the caller should wait before the next request of
// the given type. Zero means the interval has already elapsed.
func (l *Limiter) Wait(rt RequestType) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if wait := minInterval(rt) - l.now().Sub(l.last); wait > 0 {
		return wait
	}
	return 0
}

// RemainingToday returns how many requests are left in the rolling window.
func (l *Limiter) RemainingToday() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune()
	return dailyLimit - len(l.history)
}

// check assumes l.mu is held. It prunes, then reports admissibility and the
// wait hint for a denial.
func (l *Limiter) check(rt RequestType) (bool, time.Duration) {
	l.prune()
	now := l.now()
	if len(l.history) >= dailyLimit {
		// Capacity frees up when the oldest recorded request ages out.
		return false, l.history[0].Add(rateWindow).Sub(now)
	}
	if elapsed := now.Sub(l.last); elapsed < minInterval(rt) {
		return false, minInterval(rt) - elapsed
	}
	return true, 0
}

// commit assumes l.mu is held.
func (l *Limiter) commit() {
	now := l.now()
	l.history = append(l.history, now)
	l.last = now
}

// prune drops history outside the trailing 24 hours. The history is
// append-only and therefore sorted, so a single scan finds the cutoff.
func (l *Limiter) prune() {
	cutoff := l.now().Add(-rateWindow)
	i := 0
	for i < len(l.history) && !l.history[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.history = append(l.history[:0:0], l.history[i:]...)
	}
}

func minInterval(rt RequestType) time.Duration {
	if rt == RequestUpdate {
		return updateInterval
	}
	return queryInterval
}
