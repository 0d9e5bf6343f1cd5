// Package cache provides the short-lived key/value state used by the
// Momoso API: refresh token fingerprints, OTP codes, verification flags,
// OAuth state, idempotency records and rate limit counters.
//
// The Store interface keeps services independent of Redis. RedisStore is
// the production implementation; tests run it against miniredis.
//
// # Keys
//
// Keys are plain strings built with the helpers in keys.go so that every
// component agrees on the layout:
//
//	refresh_token:{userID}
//	verified:{phone}
//	email_verification:{email}
//	email_verified:{email}
//	oauth_state:{state}
//	idempotency:{scope}:{key}
//	ratelimit:{scope}:{subject}
//
// Every write carries a TTL. A missing or expired key is reported as
// ErrMiss; use errors.Is to check for it.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss indicates the key does not exist or has expired.
	ErrMiss = errors.New("cache miss")

	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("cache unavailable")
)

// Store defines the key/value operations the services rely on
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// GetDel atomically reads and removes key
	GetDel(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Incr bumps a counter that expires window after its first increment
	// and returns the new count and its remaining lifetime
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Config holds Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
}
