// internal/auth/otp.go
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"collectsync-service/internal/pkg/xerrors"
)

// OTPTTL is how long a login code stays valid.
const OTPTTL = 5 * time.Minute

// OTPStore keeps one pending login code per staff account. Codes are single
// use: Consume removes the code whether or not it matched.
type OTPStore interface {
	Save(ctx context.Context, staffID, code string, ttl time.Duration) error
	Consume(ctx context.Context, staffID, code string) (bool, error)
}

// RateLimiter throttles PIN attempts per staff account.
type RateLimiter interface {
	Allow(ctx context.Context, staffID string) (bool, error)
}

// GenerateOTP returns a 6-digit numeric code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// --- Redis implementations ---

type RedisOTPStore struct {
	client *redis.Client
}

func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client}
}

func (s *RedisOTPStore) Save(ctx context.Context, staffID, code string, ttl time.Duration) error {
	return s.client.Set(ctx, otpKey(staffID), code, ttl).Err()
}

func (s *RedisOTPStore) Consume(ctx context.Context, staffID, code string) (bool, error) {
	stored, err := s.client.GetDel(ctx, otpKey(staffID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1, nil
}

// RedisRateLimiter allows maxAttempts per window per staff account.
type RedisRateLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewRedisRateLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, staffID string) (bool, error) {
	key := fmt.Sprintf("pin_attempts:%s", staffID)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		// Degrade open: a broken limiter must not lock everyone out.
		return true, xerrors.Wrap(err, "rate limiter unavailable")
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}
	return count <= int64(l.maxAttempts), nil
}

func otpKey(staffID string) string {
	return fmt.Sprintf("otp:%s", staffID)
}

// --- In-memory implementations for tests and redis-less deployments ---

type MemoryOTPStore struct {
	mu    sync.Mutex
	codes map[string]memoryOTP
}

type memoryOTP struct {
	code      string
	expiresAt time.Time
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{codes: make(map[string]memoryOTP)}
}

func (s *MemoryOTPStore) Save(_ context.Context, staffID, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[staffID] = memoryOTP{code: code, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryOTPStore) Consume(_ context.Context, staffID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[staffID]
	delete(s.codes, staffID)
	if !ok || time.Now().After(stored.expiresAt) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored.code), []byte(code)) == 1, nil
}

type MemoryRateLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	attempts    map[string][]time.Time
}

func NewMemoryRateLimiter(maxAttempts int, window time.Duration) *MemoryRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryRateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		attempts:    make(map[string][]time.Time),
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, staffID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)
	recent := l.attempts[staffID][:0]
	for _, t := range l.attempts[staffID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	l.attempts[staffID] = recent
	return len(recent) <= l.maxAttempts, nil
}
