package bot

import (
	"sync"
	"time"
)

// RateLimiter: in-memory лимит на действие пользователя.
// Действия без лимита в limits не ограничиваются.
type RateLimiter struct {
	mu       sync.Mutex
	lastCall map[int64]map[string]time.Time
	limits   map[string]time.Duration
	exempt   func(userID int64) bool
	now      func() time.Time
}

func NewRateLimiter(exempt func(userID int64) bool) *RateLimiter {
	return &RateLimiter{
		lastCall: make(map[int64]map[string]time.Time),
		limits: map[string]time.Duration{
			"claim":   3 * time.Second,
			"support": 30 * time.Second,
		},
		exempt: exempt,
		now:    time.Now,
	}
}

// IsLimited returns true if user is rate-limited for this action
func (r *RateLimiter) IsLimited(userID int64, action string) bool {
	if r == nil {
		return false
	}
	// Админ не лимитируется
	if r.exempt != nil && r.exempt(userID) {
		return false
	}
	limit, ok := r.limits[action]
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if r.lastCall[userID] == nil {
		r.lastCall[userID] = make(map[string]time.Time)
	}
	if last, seen := r.lastCall[userID][action]; seen && now.Sub(last) < limit {
		return true
	}
	r.lastCall[userID][action] = now
	return false
}
