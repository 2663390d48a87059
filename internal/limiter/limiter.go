// Package limiter throttles sign-in attempts per (username, client address).
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Key identifies a sign-in source. Addresses are kept only as a hash.
type Key struct {
	Username string
	IPHash   []byte
}

// KeyFor builds the key for username signing in from ip.
func KeyFor(username, ip string) Key {
	h := sha256.Sum256([]byte(ip))
	return Key{Username: username, IPHash: h[:]}
}

// Policy locks a key out for BlockFor after MaxFails failures, where failures
// further apart than Window restart the count.
type Policy struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// DefaultPolicy allows five failures per quarter hour.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// Limiter records sign-in outcomes. A positive wait means the key is locked out
// for that long.
type Limiter interface {
	Check(ctx context.Context, k Key) (wait time.Duration, err error)
	Failure(ctx context.Context, k Key) (wait time.Duration, err error)
	Reset(ctx context.Context, k Key) error
}
