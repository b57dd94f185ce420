package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CooldownGuard enforces a per-user delay between download requests so one
// user cannot monopolize the queue. Each user gets a limiter allowing one
// request per cooldown interval with a burst of one.
type CooldownGuard struct {
	mu       sync.Mutex
	cooldown time.Duration
	limiters map[int64]*rate.Limiter
	lastSeen map[int64]time.Time
}

// NewCooldownGuard creates a guard with the given cooldown interval.
// A zero or negative cooldown disables the guard entirely.
func NewCooldownGuard(cooldown time.Duration) *CooldownGuard {
	return &CooldownGuard{
		cooldown: cooldown,
		limiters: make(map[int64]*rate.Limiter),
		lastSeen: make(map[int64]time.Time),
	}
}

// Allow reports whether userID may start a download now. When the answer is
// no, the returned duration says how long the user has to wait.
func (g *CooldownGuard) Allow(userID int64) (bool, time.Duration) {
	if g.cooldown <= 0 {
		return true, 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	limiter, ok := g.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(g.cooldown), 1)
		g.limiters[userID] = limiter
	}
	g.lastSeen[userID] = time.Now()

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	if delay > 0 {
		// Not allowed yet - give the token back so the wait time does not
		// grow with every rejected attempt.
		reservation.Cancel()
		return false, delay
	}
	return true, 0
}

// Prune drops limiters for users idle longer than maxIdle to keep the map
// from growing without bound. Returns the number of entries removed.
func (g *CooldownGuard) Prune(maxIdle time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxIdle)
	for userID, seen := range g.lastSeen {
		if seen.Before(cutoff) {
			delete(g.lastSeen, userID)
			delete(g.limiters, userID)
			removed++
		}
	}
	return removed
}
