package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jordanlanch/partnerdb/pkg/cache"
	"github.com/jordanlanch/partnerdb/pkg/clock"
	"github.com/jordanlanch/partnerdb/pkg/domain"
)

const (
	DefaultMaxAttempts = 5
	DefaultLockout     = 15 * time.Minute

	// attemptRetention bounds how long a failure history is kept, matching
	// the lifetime of a login session
	attemptRetention = 24 * time.Hour
)

// Attempts is the failure history of one client
type Attempts struct {
	Count int
	Last  time.Time
}

// AttemptStore persists failure histories keyed by client session
type AttemptStore interface {
	Get(ctx context.Context, key string) (Attempts, error)
	Put(ctx context.Context, key string, a Attempts, ttl time.Duration) error
	Reset(ctx context.Context, key string) error
}

// LoginLimiter locks a client out after too many failed logins. The lockout
// runs from the last failed attempt and a success clears the history.
type LoginLimiter struct {
	store       AttemptStore
	clock       clock.Clock
	maxAttempts int
	lockout     time.Duration
}

// NewLoginLimiter creates a limiter. Non-positive limits fall back to the defaults.
func NewLoginLimiter(store AttemptStore, clk clock.Clock, maxAttempts int, lockout time.Duration) *LoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockout
	}
	return &LoginLimiter{
		store:       store,
		clock:       clk,
		maxAttempts: maxAttempts,
		lockout:     lockout,
	}
}

// Check returns a too-many-attempts error while key is locked out
func (l *LoginLimiter) Check(ctx context.Context, key string) error {
	a, err := l.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read login attempts: %w", err)
	}
	if remaining := l.remaining(a); remaining > 0 {
		return domain.NewTooManyAttemptsError(remaining)
	}
	return nil
}

// Fail records a failed attempt and reports whether key is now locked out
func (l *LoginLimiter) Fail(ctx context.Context, key string) (bool, error) {
	a, err := l.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read login attempts: %w", err)
	}

	a.Count++
	a.Last = l.clock.Now()

	if err := l.store.Put(ctx, key, a, attemptRetention); err != nil {
		return false, fmt.Errorf("failed to record login attempt: %w", err)
	}
	return l.remaining(a) > 0, nil
}

// Succeed clears the failure history of key
func (l *LoginLimiter) Succeed(ctx context.Context, key string) error {
	if err := l.store.Reset(ctx, key); err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}

func (l *LoginLimiter) remaining(a Attempts) time.Duration {
	if a.Count < l.maxAttempts || a.Last.IsZero() {
		return 0
	}
	until := a.Last.Add(l.lockout)
	now := l.clock.Now()
	if !now.Before(until) {
		return 0
	}
	return until.Sub(now)
}

// MemoryAttemptStore keeps attempts in process memory
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]Attempts
}

// NewMemoryAttemptStore creates an empty in-memory store
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{attempts: make(map[string]Attempts)}
}

// Get returns the attempts recorded for key
func (s *MemoryAttemptStore) Get(_ context.Context, key string) (Attempts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[key], nil
}

// Put stores attempts for key. The ttl is not enforced in memory.
func (s *MemoryAttemptStore) Put(_ context.Context, key string, a Attempts, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[key] = a
	return nil
}

// Reset forgets key
func (s *MemoryAttemptStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, key)
	return nil
}

// RedisAttemptStore keeps attempts in a Redis hash per client
type RedisAttemptStore struct {
	cache *cache.Client
}

// NewRedisAttemptStore creates a store on top of the shared Redis client
func NewRedisAttemptStore(c *cache.Client) *RedisAttemptStore {
	return &RedisAttemptStore{cache: c}
}

func (s *RedisAttemptStore) key(key string) string {
	return "login:attempts:" + key
}

// Get returns the attempts recorded for key
func (s *RedisAttemptStore) Get(ctx context.Context, key string) (Attempts, error) {
	fields, err := s.cache.GetFields(ctx, s.key(key))
	if err != nil {
		return Attempts{}, err
	}
	if len(fields) == 0 {
		return Attempts{}, nil
	}

	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return Attempts{}, fmt.Errorf("corrupt attempt count: %w", err)
	}
	nanos, err := strconv.ParseInt(fields["last"], 10, 64)
	if err != nil {
		return Attempts{}, fmt.Errorf("corrupt attempt time: %w", err)
	}
	return Attempts{Count: count, Last: time.Unix(0, nanos).UTC()}, nil
}

// Put stores attempts for key, expiring after ttl
func (s *RedisAttemptStore) Put(ctx context.Context, key string, a Attempts, ttl time.Duration) error {
	if a.Last.IsZero() {
		return errors.New("attempt time is required")
	}
	return s.cache.SetFields(ctx, s.key(key), map[string]interface{}{
		"count": a.Count,
		"last":  a.Last.UnixNano(),
	}, ttl)
}

// Reset forgets key
func (s *RedisAttemptStore) Reset(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, s.key(key))
}
