// Package session tracks the signed-in customer of the CLI: it restores the stored
// token on start, signs in and out, and hands the access token to the RPC layer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/model"
)

// FallbackTTL is assumed when neither the server nor the token states an expiry.
const FallbackTTL = 15 * time.Minute

// Remote is the auth part of the plan API.
type Remote interface {
	Login(ctx context.Context, username, password string) (model.Tokens, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (model.Profile, error)
}

// Service holds the current session.
type Service struct {
	remote Remote
	store  Store
	log    *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	tok     Token
	profile *model.Profile
}

// New builds a session service. remote may be nil until SetRemote is called.
func New(remote Remote, store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{remote: remote, store: store, log: log, now: time.Now}
}

// SetRemote attaches the API client. The client usually needs Token first, so it
// is built after the service.
func (s *Service) SetRemote(r Remote) { s.remote = r }

// Token returns the current access token or "".
func (s *Service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.tok.Valid(s.now()) {
		return ""
	}
	return s.tok.AccessToken
}

// Profile returns the signed-in profile, if any.
func (s *Service) Profile() (model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return model.Profile{}, false
	}
	return *s.profile, true
}

// Init restores a stored session. A missing, expired or rejected token leaves the
// session anonymous without error; rejected tokens are removed from the store.
func (s *Service) Init(ctx context.Context) (model.Profile, bool, error) {
	tok, err := s.store.Load()
	if errors.Is(err, ErrNoToken) {
		return model.Profile{}, false, nil
	}
	if err != nil {
		return model.Profile{}, false, fmt.Errorf("load session: %w", err)
	}
	if !tok.Valid(s.now()) {
		s.log.Debug("stored token expired", zap.Time("expires_at", tok.ExpiresAt))
		_ = s.store.Clear()
		return model.Profile{}, false, nil
	}

	s.setToken(tok)
	p, err := s.remote.Profile(ctx)
	if errors.Is(err, errs.ErrUnauthorized) {
		s.log.Info("stored token rejected, signing out")
		s.reset()
		if cerr := s.store.Clear(); cerr != nil {
			s.log.Warn("clear session", zap.Error(cerr))
		}
		return model.Profile{}, false, nil
	}
	if err != nil {
		return model.Profile{}, false, fmt.Errorf("restore session: %w", err)
	}
	s.setProfile(p)
	return p, true, nil
}

// Login signs in, persists the token and loads the profile.
func (s *Service) Login(ctx context.Context, username, password string) (model.Profile, error) {
	toks, err := s.remote.Login(ctx, username, password)
	if err != nil {
		return model.Profile{}, err
	}
	exp := toks.ExpiresAt
	if exp.IsZero() {
		if e, ok := ExpiryFromJWT(toks.AccessToken); ok {
			exp = e
		} else {
			exp = s.now().Add(FallbackTTL)
		}
	}
	tok := Token{AccessToken: toks.AccessToken, ExpiresAt: exp}
	if err := s.store.Save(tok); err != nil {
		return model.Profile{}, fmt.Errorf("save session: %w", err)
	}
	s.setToken(tok)

	p, err := s.remote.Profile(ctx)
	if err != nil {
		return model.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	s.setProfile(p)
	s.log.Info("signed in", zap.String("user", p.Username))
	return p, nil
}

// Logout revokes the token on the server when possible and always clears local state.
func (s *Service) Logout(ctx context.Context) error {
	if s.Token() != "" && s.remote != nil {
		if err := s.remote.Logout(ctx); err != nil {
			s.log.Warn("remote logout failed", zap.Error(err))
		}
	}
	s.reset()
	return s.store.Clear()
}

func (s *Service) setToken(t Token) {
	s.mu.Lock()
	s.tok = t
	s.mu.Unlock()
}

func (s *Service) setProfile(p model.Profile) {
	s.mu.Lock()
	s.profile = &p
	s.mu.Unlock()
}

func (s *Service) reset() {
	s.mu.Lock()
	s.tok = Token{}
	s.profile = nil
	s.mu.Unlock()
}

// ExpiryFromJWT reads the exp claim without verifying the signature.
func ExpiryFromJWT(tok string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
