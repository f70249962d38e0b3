package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/internal/models"
	"github.com/steemit/chirp/pkg/logging"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an email that already exists
	ErrEmailTaken = errors.New("email already registered")
)

// Auth manages accounts and login sessions
type Auth struct {
	users    *db.UserRepository
	sessions *db.SessionRepository
	ttl      time.Duration
	cost     int
	logger   *zap.Logger
}

// NewAuth creates an auth service whose sessions are valid for ttl
func NewAuth(repo *db.Repository, ttl time.Duration) *Auth {
	return &Auth{
		users:    db.NewUserRepository(repo),
		sessions: db.NewSessionRepository(repo),
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		logger:   logging.WithComponent("auth"),
	}
}

// Register creates an account
func (a *Auth) Register(ctx context.Context, name, email, password, image string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, fmt.Errorf("invalid email: %w", err)
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	existing, err := a.users.GetByEmail(ctx, addr.Address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		Name:         name,
		Email:        addr.Address,
		Image:        image,
		PasswordHash: string(hash),
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	a.logger.Info("User registered", zap.String("user", user.ID))
	return user, nil
}

// Login verifies the credentials and opens a session
func (a *Auth) Login(ctx context.Context, email, password string) (*models.Session, error) {
	user, err := a.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := a.sessions.Create(ctx, user.ID, a.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.User = user
	return session, nil
}

// Resolve returns the user of a valid session token, or nil
func (a *Auth) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	session, err := a.sessions.GetValid(ctx, token)
	if err != nil || session == nil {
		return nil, err
	}
	return session.User, nil
}

// Logout ends a session
func (a *Auth) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return a.sessions.Delete(ctx, token)
}

// PurgeExpired removes expired sessions
func (a *Auth) PurgeExpired(ctx context.Context) (int64, error) {
	return a.sessions.PurgeExpired(ctx)
}
