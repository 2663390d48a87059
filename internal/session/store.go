package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/and161185/bloomplan/internal/config"
)

// ErrNoToken is returned by stores holding no session.
var ErrNoToken = errors.New("no stored token")

// Token is a persisted access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token is present and not expired at now.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// Store persists the session token between CLI runs.
type Store interface {
	Load() (Token, error)
	Save(Token) error
	Clear() error
}

// DefaultDir is $XDG_CONFIG_HOME/bloomplan or ~/.config/bloomplan.
func DefaultDir() string { return config.Dir() }

// FileStore keeps the token in <dir>/token.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

// Path returns the token file location.
func (s *FileStore) Path() string { return filepath.Join(s.dir, "token.json") }

// Load reads the stored token.
func (s *FileStore) Load() (Token, error) {
	b, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return Token{}, ErrNoToken
	}
	if err != nil {
		return Token{}, err
	}
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return Token{}, fmt.Errorf("decode %s: %w", s.Path(), err)
	}
	if t.AccessToken == "" {
		return Token{}, ErrNoToken
	}
	return t, nil
}

// Save writes the token with owner-only permissions.
func (s *FileStore) Save(t Token) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path(), b, 0o600)
}

// Clear removes the token file; a missing file is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

const keyringService = "bloomplan"

// KeyringStore keeps the token in the OS keyring under one account name.
type KeyringStore struct {
	user string
}

// NewKeyringStore returns a keyring store; user defaults to "session".
func NewKeyringStore(user string) *KeyringStore {
	if user == "" {
		user = "session"
	}
	return &KeyringStore{user: user}
}

// Load reads the stored token.
func (s *KeyringStore) Load() (Token, error) {
	v, err := keyring.Get(keyringService, s.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return Token{}, ErrNoToken
	}
	if err != nil {
		return Token{}, fmt.Errorf("keyring get: %w", err)
	}
	var t Token
	if err := json.Unmarshal([]byte(v), &t); err != nil {
		return Token{}, fmt.Errorf("keyring decode: %w", err)
	}
	return t, nil
}

// Save stores the token.
func (s *KeyringStore) Save(t Token) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, s.user, string(b)); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// Clear deletes the stored token; nothing stored is not an error.
func (s *KeyringStore) Clear() error {
	if err := keyring.Delete(keyringService, s.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

// KeyringAvailable reports whether the OS keyring answers at all.
func KeyringAvailable() bool {
	_, err := keyring.Get(keyringService, "availability-check")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
