package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	pkgcrypto "github.com/and161185/bloomplan/internal/crypto"
	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/limiter"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	byName map[string]*model.User

	createErr error
	getErr    error

	revoked   map[string]time.Time
	revokeErr error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}
func (f *fakeUsers) RevokeToken(_ context.Context, jti string, _ uuid.UUID, exp time.Time) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	if f.revoked == nil {
		f.revoked = map[string]time.Time{}
	}
	f.revoked[jti] = exp
	return nil
}
func (f *fakeUsers) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	if f.revokeErr != nil {
		return false, f.revokeErr
	}
	_, ok := f.revoked[jti]
	return ok, nil
}

type fakeLimiter struct {
	lockedFor time.Duration
	checkErr  error

	blockAfterFail time.Duration
	failErr        error

	resetErr error

	checkCalls   int
	failureCalls int
	resetCalls   int
	lastKey      limiter.Key
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Check(_ context.Context, k limiter.Key) (time.Duration, error) {
	l.checkCalls++
	l.lastKey = k
	return l.lockedFor, l.checkErr
}
func (l *fakeLimiter) Reset(context.Context, limiter.Key) error {
	l.resetCalls++
	return l.resetErr
}
func (l *fakeLimiter) Failure(context.Context, limiter.Key) (time.Duration, error) {
	l.failureCalls++
	return l.blockAfterFail, l.failErr
}

var cheapHash = pkgcrypto.Params{Time: 1, MemoryKiB: 64, Threads: 1, KeyLen: 32, SaltLen: 16}

func newAuth(users repository.UserRepository, key []byte, ttl time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	s := NewAuthService(users, key, ttl, lim)
	s.pw = pkgcrypto.NewHasher(cheapHash)
	return s
}

func addUser(t *testing.T, s *AuthServiceImpl, users *fakeUsers, name, password string) *model.User {
	t.Helper()
	hash, salt, err := s.pw.Hash(password)
	require.NoError(t, err)
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: name, PwdHash: hash, SaltAuth: salt}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{}}
	s := newAuth(users, []byte("k"), time.Minute, &fakeLimiter{})

	if _, err := s.Register(context.Background(), "", ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error on empty username/password")
	}

	id, err := s.Register(context.Background(), "alice", "pwd")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatalf("empty user id")
	}

	if _, err := s.Register(context.Background(), "alice", "pwd2"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want repo error on duplicate username")
	}

	users.createErr = errors.New("boom")
	if _, err := s.Register(context.Background(), "bob", "pwd"); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAuth_LoginWithIP_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{byName: map[string]*model.User{}}
	lim := &fakeLimiter{}
	s := newAuth(users, []byte("secret"), 2*time.Minute, lim)
	u := addUser(t, s, users, "alice", "correct")

	lim.checkErr = errors.New("lim-err")
	if _, _, err := s.LoginWithIP(context.Background(), "alice", "correct", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.checkErr = nil
	if want := limiter.KeyFor("alice", "1.2.3.4"); lim.lastKey.Username != want.Username || !bytes.Equal(lim.lastKey.IPHash, want.IPHash) {
		t.Fatalf("limiter keyed by %+v", lim.lastKey)
	}

	lim.lockedFor = time.Minute
	if _, _, err := s.LoginWithIP(context.Background(), "alice", "correct", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.lockedFor = 0

	users.getErr = errs.ErrNotFound
	if _, _, err := s.LoginWithIP(context.Background(), "nope", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing user, got %v", err)
	}
	users.getErr = nil

	lim.blockAfterFail = 15 * time.Minute
	if _, _, err := s.LoginWithIP(context.Background(), "alice", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}

	lim.blockAfterFail = 0
	if _, _, err := s.LoginWithIP(context.Background(), "alice", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	tok, gotUser, err := s.LoginWithIP(context.Background(), "alice", "correct", "127.0.0.1:123")
	if err != nil {
		t.Fatalf("LoginWithIP success: %v", err)
	}
	if tok.AccessToken == "" || tok.ExpiresAt.Before(time.Now()) {
		t.Fatalf("bad token: %+v", tok)
	}
	if gotUser.ID != u.ID || gotUser.Username != "alice" {
		t.Fatalf("bad user returned: %+v", gotUser)
	}
	if lim.resetCalls == 0 {
		t.Fatalf("expected Reset() to be called")
	}
}

func TestAuth_issueAccessToken_UsedViaLoginTTL(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{byName: map[string]*model.User{}}
	lim := &fakeLimiter{}
	s := newAuth(users, []byte("k"), 1*time.Second, lim)
	addUser(t, s, users, "bob", "p")

	tk, _, err := s.LoginWithIP(context.Background(), "bob", "p", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tk.AccessToken == "" {
		t.Fatalf("empty token")
	}

	if time.Until(tk.ExpiresAt) <= 0 {
		t.Fatalf("token already expired: %v", tk.ExpiresAt)
	}
}

func loggedIn(t *testing.T) (*AuthServiceImpl, *fakeUsers, model.Tokens, uuid.UUID) {
	t.Helper()
	users := &fakeUsers{byName: map[string]*model.User{}}
	s := newAuth(users, []byte("secret"), time.Minute, &fakeLimiter{})
	id, err := s.Register(context.Background(), "carol", "pw")
	require.NoError(t, err)
	tok, _, err := s.LoginWithIP(context.Background(), "carol", "pw", "")
	require.NoError(t, err)
	return s, users, tok, uuid.Must(uuid.FromString(id))
}

func TestAuth_Authenticate(t *testing.T) {
	t.Parallel()
	s, _, tok, uid := loggedIn(t)

	c, err := s.Authenticate(context.Background(), tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, uid, c.UserID)
	require.NotEmpty(t, c.JTI)
	require.WithinDuration(t, tok.ExpiresAt, c.ExpiresAt, time.Second)

	_, err = s.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = s.Authenticate(context.Background(), tok.AccessToken+"x")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	other := newAuth(&fakeUsers{}, []byte("other-key"), time.Minute, &fakeLimiter{})
	_, err = other.Authenticate(context.Background(), tok.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized, "signature from another key")
}

func TestAuth_Authenticate_Expired(t *testing.T) {
	t.Parallel()
	s, _, tok, _ := loggedIn(t)
	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err := s.Authenticate(context.Background(), tok.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// still inside the leeway
	s.now = func() time.Time { return tok.ExpiresAt.Add(10 * time.Second) }
	_, err = s.Authenticate(context.Background(), tok.AccessToken)
	require.NoError(t, err)
}

func TestAuth_LogoutRevokes(t *testing.T) {
	t.Parallel()
	s, users, tok, _ := loggedIn(t)
	c, err := s.Authenticate(context.Background(), tok.AccessToken)
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background(), c))
	require.Contains(t, users.revoked, c.JTI)
	require.Equal(t, c.ExpiresAt, users.revoked[c.JTI])

	_, err = s.Authenticate(context.Background(), tok.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	require.NoError(t, s.Logout(context.Background(), Claims{}), "token without id is a no-op")
}

func TestAuth_RevocationLookupError(t *testing.T) {
	t.Parallel()
	s, users, tok, _ := loggedIn(t)
	users.revokeErr = errors.New("db down")
	_, err := s.Authenticate(context.Background(), tok.AccessToken)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrUnauthorized)
}

func TestAuth_Profile(t *testing.T) {
	t.Parallel()
	s, _, _, uid := loggedIn(t)
	p, err := s.Profile(context.Background(), uid)
	require.NoError(t, err)
	require.Equal(t, "carol", p.Username)
	require.Equal(t, uid, p.UserID)

	_, err = s.Profile(context.Background(), uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}
