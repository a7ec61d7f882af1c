package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"focusflow/internal/apperr"
	"focusflow/internal/model"
	"focusflow/internal/repository"
)

// ErrInvalidCredentials is deliberately vague so it does not reveal which part was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore is the subset of the user repository the provider needs.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Options configures a Provider.
type Options struct {
	Secret      []byte
	TTL         time.Duration
	Revocations RevocationStore
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type credentials struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=6,max=72"`
}

// Provider authenticates users and notifies subscribers of identity changes.
type Provider struct {
	users    UserStore
	tokens   *TokenIssuer
	revoked  RevocationStore
	validate *validator.Validate
	cost     int
	log      *logrus.Entry

	mu     sync.RWMutex
	subs   map[uint64]func(Event)
	nextID uint64
}

func NewProvider(users UserStore, opts Options, log *logrus.Entry) *Provider {
	if opts.Revocations == nil {
		opts.Revocations = NewMemoryRevocations()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Provider{
		users:    users,
		tokens:   NewTokenIssuer(opts.Secret, opts.TTL),
		revoked:  opts.Revocations,
		validate: validator.New(),
		cost:     opts.BcryptCost,
		log:      log,
		subs:     make(map[uint64]func(Event)),
	}
}

// Signup registers a new account and opens a session for it.
func (p *Provider) Signup(ctx context.Context, email, password string) (*Session, error) {
	creds := credentials{Email: strings.TrimSpace(email), Password: password}
	if err := p.validate.Struct(creds); err != nil {
		return nil, apperr.Auth("signup", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, apperr.Auth("signup", err)
	}

	user := &model.User{Email: creds.Email, PasswordHash: string(hash)}
	if err := p.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperr.Auth("signup", err)
		}
		return nil, apperr.Write("signup", err)
	}

	p.log.WithField("user_id", user.ID).Info("user signed up")
	return p.open(user)
}

// Login opens a session for an existing account.
func (p *Provider) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Auth("login", ErrInvalidCredentials)
	}

	user, err := p.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Auth("login", ErrInvalidCredentials)
	case err != nil:
		return nil, apperr.Query("login", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		p.log.WithField("user_id", user.ID).Info("login rejected")
		return nil, apperr.Auth("login", ErrInvalidCredentials)
	}

	p.log.WithField("user_id", user.ID).Info("user logged in")
	return p.open(user)
}

// Logout revokes the session behind token. Unknown or invalid tokens are ignored.
func (p *Provider) Logout(ctx context.Context, token string) error {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := p.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperr.Write("logout", err)
	}

	p.log.WithFields(logrus.Fields{"user_id": claims.UserID, "session_id": claims.ID}).Info("user logged out")
	p.publish(Event{SessionID: claims.ID, Identity: Absent()})
	return nil
}

// Resolve maps a token to an identity. Infrastructure failures yield
// Unknown rather than Absent so callers don't log the user out on a blip.
func (p *Provider) Resolve(ctx context.Context, token string) Identity {
	if token == "" {
		return Absent()
	}
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return Absent()
	}

	revoked, err := p.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		p.log.WithError(err).WithField("session_id", claims.ID).Warn("revocation check failed")
		return Unknown()
	}
	if revoked {
		return Absent()
	}

	user, err := p.users.FindByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return Absent()
	case err != nil:
		p.log.WithError(err).WithField("user_id", claims.UserID).Warn("user lookup failed")
		return Unknown()
	}
	return Identity{Status: StatusPresent, User: user, SessionID: claims.ID}
}

// Subscribe registers fn for identity changes and returns a function that removes it.
// fn is called synchronously from the goroutine that caused the change.
func (p *Provider) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Provider) open(user *model.User) (*Session, error) {
	token, claims, err := p.tokens.Issue(user)
	if err != nil {
		return nil, apperr.Auth("issue session", err)
	}
	id := Identity{Status: StatusPresent, User: user, SessionID: claims.ID}
	p.publish(Event{SessionID: claims.ID, Identity: id})
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, Identity: id}, nil
}

func (p *Provider) publish(ev Event) {
	p.mu.RLock()
	subs := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
