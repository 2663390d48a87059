// Package service contains application services for authentication and plans.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgcrypto "github.com/and161185/bloomplan/internal/crypto"
	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/limiter"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified identity behind an access token.
type Claims struct {
	UserID    uuid.UUID
	JTI       string
	ExpiresAt time.Time
}

// AuthService defines authentication operations.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, username, password string) (userID string, err error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, username, password string, ip string) (tokens model.Tokens, user model.User, err error)
	// Authenticate verifies an access token and rejects revoked ones.
	Authenticate(ctx context.Context, token string) (Claims, error)
	// Logout revokes the token behind claims.
	Logout(ctx context.Context, c Claims) error
	// Profile returns the public view of a user.
	Profile(ctx context.Context, userID uuid.UUID) (model.Profile, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	pw        *pkgcrypto.Hasher
	now       func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:     users,
		signKey:   signKey,
		accessTTL: accessTTL,
		lim:       lim,
		pw:        pkgcrypto.NewHasher(pkgcrypto.DefaultParams),
		now:       time.Now,
	}
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	hash, salt, err := s.pw.Hash(password)
	if err != nil {
		return "", err
	}
	u := &model.User{
		ID:       uid,
		Username: username,
		PwdHash:  hash,
		SaltAuth: salt,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return uid.String(), nil
}

// LoginWithIP authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (model.Tokens, model.User, error) {
	key := limiter.KeyFor(username, ip)

	wait, err := s.lim.Check(ctx, key)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if wait > 0 {
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, wait.Round(time.Second))
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		s.pw.Burn(password)
	}
	if err != nil || !s.pw.Verify(password, u.SaltAuth, u.PwdHash) {
		if wait, ferr := s.lim.Failure(ctx, key); ferr == nil && wait > 0 {
			return model.Tokens{}, model.User{}, fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, wait.Round(time.Second))
		}
		// unknown user and wrong password look the same
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	_ = s.lim.Reset(ctx, key)

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// issueAccessToken creates a signed HS256 JWT with a unique token id.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// Authenticate parses and verifies an HS256 access token.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (Claims, error) {
	if token == "" {
		return Claims{}, errs.ErrUnauthorized
	}
	var rc jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &rc, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected alg")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return Claims{}, errs.ErrUnauthorized
	}
	uid, err := uuid.FromString(rc.Subject)
	if err != nil || rc.ExpiresAt == nil {
		return Claims{}, errs.ErrUnauthorized
	}
	c := Claims{UserID: uid, JTI: rc.ID, ExpiresAt: rc.ExpiresAt.Time}
	if c.JTI != "" {
		revoked, err := s.users.IsTokenRevoked(ctx, c.JTI)
		if err != nil {
			return Claims{}, err
		}
		if revoked {
			return Claims{}, errs.ErrUnauthorized
		}
	}
	return c, nil
}

// Logout revokes the token until its natural expiry.
func (s *AuthServiceImpl) Logout(ctx context.Context, c Claims) error {
	if c.JTI == "" {
		return nil
	}
	return s.users.RevokeToken(ctx, c.JTI, c.UserID, c.ExpiresAt)
}

// Profile loads the user's public profile.
func (s *AuthServiceImpl) Profile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	return model.ProfileOf(*u), nil
}
