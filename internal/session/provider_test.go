package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"focusflow/internal/apperr"
	"focusflow/internal/logger"
	"focusflow/internal/model"
	"focusflow/internal/repository"
	"focusflow/internal/repository/repotest"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestProvider(t *testing.T, revocations RevocationStore) (*Provider, *repository.UserRepository) {
	t.Helper()
	users := repository.NewUserRepository(repotest.NewDB(t))
	p := NewProvider(users, Options{
		Secret:      []byte("test-secret"),
		TTL:         time.Hour,
		Revocations: revocations,
		BcryptCost:  bcrypt.MinCost,
	}, logger.Discard())
	return p, users
}

func TestProvider_SignupLoginLogout(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()
	rec := &recorder{}
	p.Subscribe(rec.record)

	s, err := p.Signup(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, s.Identity.Status)
	assert.Equal(t, "ada@example.com", s.Identity.User.Email)
	assert.NotEmpty(t, s.Token)

	id := p.Resolve(ctx, s.Token)
	assert.Equal(t, StatusPresent, id.Status)
	assert.Equal(t, s.Identity.UserID(), id.UserID())
	assert.Equal(t, s.Identity.SessionID, id.SessionID)

	s2, err := p.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, s.Identity.SessionID, s2.Identity.SessionID)

	require.NoError(t, p.Logout(ctx, s.Token))
	assert.Equal(t, StatusAbsent, p.Resolve(ctx, s.Token).Status)
	assert.Equal(t, StatusPresent, p.Resolve(ctx, s2.Token).Status, "other sessions stay open")

	events := rec.all()
	require.Len(t, events, 3)
	assert.Equal(t, StatusPresent, events[0].Identity.Status)
	assert.Equal(t, StatusPresent, events[1].Identity.Status)
	assert.Equal(t, StatusAbsent, events[2].Identity.Status)
	assert.Equal(t, s.Identity.SessionID, events[2].SessionID)
}

func TestProvider_SignupRejections(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()
	_, err := p.Signup(ctx, "taken@example.com", "secret1")
	require.NoError(t, err)

	cases := map[string][2]string{
		"malformed email": {"not-an-email", "secret1"},
		"weak password":   {"new@example.com", "123"},
		"already taken":   {"taken@example.com", "secret1"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := p.Signup(ctx, c[0], c[1])
			assert.Nil(t, s)
			assert.ErrorIs(t, err, apperr.ErrAuth)
		})
	}
}

func TestProvider_WrongPasswordLeavesIdentityAbsent(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	ctx := context.Background()
	_, err := p.Signup(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	rec := &recorder{}
	p.Subscribe(rec.record)

	s, err := p.Login(ctx, "ada@example.com", "wrong horse")
	assert.Nil(t, s)
	assert.ErrorIs(t, err, apperr.ErrAuth)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.Login(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Empty(t, rec.all(), "failed logins publish nothing")
}

type brokenRevocations struct{}

func (brokenRevocations) Revoke(context.Context, string, time.Time) error { return errors.New("down") }
func (brokenRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

func TestProvider_ResolveStates(t *testing.T) {
	ctx := context.Background()

	t.Run("absent without token", func(t *testing.T) {
		p, _ := newTestProvider(t, nil)
		assert.Equal(t, StatusAbsent, p.Resolve(ctx, "").Status)
		assert.Equal(t, StatusAbsent, p.Resolve(ctx, "garbage").Status)
	})

	t.Run("unknown when revocation store is down", func(t *testing.T) {
		p, users := newTestProvider(t, brokenRevocations{})
		user := &model.User{Email: "ada@example.com", PasswordHash: "x"}
		require.NoError(t, users.Create(ctx, user))
		token, _, err := p.tokens.Issue(user)
		require.NoError(t, err)

		assert.Equal(t, StatusUnknown, p.Resolve(ctx, token).Status)
		assert.ErrorIs(t, p.Logout(ctx, token), apperr.ErrWrite)
	})

	t.Run("absent when token expired", func(t *testing.T) {
		p, users := newTestProvider(t, nil)
		user := &model.User{Email: "ada@example.com", PasswordHash: "x"}
		require.NoError(t, users.Create(ctx, user))
		p.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := p.tokens.Issue(user)
		require.NoError(t, err)

		assert.Equal(t, StatusAbsent, p.Resolve(ctx, token).Status)
	})

	t.Run("absent when signed with another secret", func(t *testing.T) {
		p, users := newTestProvider(t, nil)
		user := &model.User{Email: "ada@example.com", PasswordHash: "x"}
		require.NoError(t, users.Create(ctx, user))
		token, _, err := NewTokenIssuer([]byte("other"), time.Hour).Issue(user)
		require.NoError(t, err)

		assert.Equal(t, StatusAbsent, p.Resolve(ctx, token).Status)
	})
}

func TestProvider_Unsubscribe(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	rec := &recorder{}
	cancel := p.Subscribe(rec.record)
	cancel()

	_, err := p.Signup(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Empty(t, rec.all())
}
