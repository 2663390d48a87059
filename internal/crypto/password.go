// Package crypto hashes account passwords with Argon2id.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost settings.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
	SaltLen   int
}

// DefaultParams are tuned for server-side hashing.
var DefaultParams = Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// Hasher derives and checks password hashes.
type Hasher struct {
	p     Params
	dummy []byte
}

// NewHasher returns a hasher using p.
func NewHasher(p Params) *Hasher {
	return &Hasher{p: p, dummy: make([]byte, p.SaltLen)}
}

// Hash returns the hash of password under a fresh random salt.
func (h *Hasher) Hash(password string) (hash, salt []byte, err error) {
	salt = make([]byte, h.p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, err
	}
	return h.derive(password, salt), salt, nil
}

// Verify reports whether password matches hash under salt.
func (h *Hasher) Verify(password string, salt, hash []byte) bool {
	return subtle.ConstantTimeCompare(h.derive(password, salt), hash) == 1
}

// Burn spends the same work as Verify, for accounts that do not exist.
func (h *Hasher) Burn(password string) {
	_ = h.derive(password, h.dummy)
}

func (h *Hasher) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, h.p.Time, h.p.MemoryKiB, h.p.Threads, h.p.KeyLen)
}
