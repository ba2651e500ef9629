package auth

import (
	"sync"
	"time"
)

type attemptRecord struct {
	count       int
	lastAttempt time.Time
}

// LoginLimiter counts failed logins per identifier and locks it out once the
// limit is reached. The counter resets after the lockout window passes without
// a new failure.
type LoginLimiter struct {
	mu       sync.Mutex
	attempts map[string]attemptRecord
	max      int
	window   time.Duration
	now      func() time.Time
}

func NewLoginLimiter(maxAttempts int, window time.Duration) *LoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginLimiter{
		attempts: make(map[string]attemptRecord),
		max:      maxAttempts,
		window:   window,
		now:      time.Now,
	}
}

// Locked reports whether key is locked out and for how much longer.
func (l *LoginLimiter) Locked(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.attempts[key]
	if !ok {
		return false, 0
	}
	elapsed := l.now().Sub(rec.lastAttempt)
	if elapsed > l.window {
		delete(l.attempts, key)
		return false, 0
	}
	if rec.count >= l.max {
		return true, l.window - elapsed
	}
	return false, 0
}

// Fail records a failed attempt for key.
func (l *LoginLimiter) Fail(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec := l.attempts[key]
	if now.Sub(rec.lastAttempt) > l.window {
		rec.count = 0
	}
	rec.count++
	rec.lastAttempt = now
	l.attempts[key] = rec
}

// Reset clears key after a successful login.
func (l *LoginLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.attempts, key)
	l.mu.Unlock()
}
