package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/config"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDisabled           = errors.New("authentication is not configured")
)

// LockedOutError is returned while an identifier is locked out after too many failures.
type LockedOutError struct {
	RetryAfter time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("too many login attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

// User is the authenticated principal.
type User struct {
	Username string `json:"username"`
}

// Token is an issued bearer token.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// Service checks the admin credentials and issues session-backed JWTs.
type Service struct {
	log          *logger.Logger
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	sessions     SessionStore
	limiter      *LoginLimiter
}

// NewService builds the auth service. A plain AUTH_PASSWORD is hashed once here.
// With an incomplete configuration every login fails with ErrDisabled.
func NewService(log *logger.Logger, cfg config.AuthConfig, sessions SessionStore) (*Service, error) {
	svc := &Service{
		log:      log.With("service", "Auth"),
		username: cfg.Username,
		secret:   []byte(cfg.JWTSecret),
		ttl:      cfg.TokenTTL,
		sessions: sessions,
		limiter:  NewLoginLimiter(cfg.MaxAttempts, cfg.LockoutDuration),
	}
	if svc.ttl <= 0 {
		svc.ttl = 24 * time.Hour
	}

	switch {
	case cfg.PasswordHash != "":
		svc.passwordHash = []byte(cfg.PasswordHash)
	case cfg.Password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		svc.passwordHash = hash
	}

	if !svc.Enabled() {
		svc.log.Warn("authentication disabled: admin credentials or JWT secret missing")
	}
	return svc, nil
}

// Enabled reports whether logins can succeed.
func (s *Service) Enabled() bool {
	return s.username != "" && len(s.passwordHash) > 0 && len(s.secret) > 0 && s.sessions != nil
}

// Login verifies the credentials and issues a token. Failed attempts are
// counted per account; clientKey is only logged.
func (s *Service) Login(ctx context.Context, username, password, clientKey string) (*Token, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	username = strings.TrimSpace(username)
	key := strings.ToLower(username)
	if locked, retry := s.limiter.Locked(key); locked {
		s.log.Warn("login locked out", "username", username, "client", clientKey)
		return nil, &LockedOutError{RetryAfter: retry}
	}

	// bcrypt runs for unknown usernames too so timing does not reveal the account.
	passwordOK := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	if username != s.username || !passwordOK {
		s.limiter.Fail(key)
		s.log.Info("login failed", "username", username, "client", clientKey)
		return nil, ErrInvalidCredentials
	}
	s.limiter.Reset(key)

	session, err := s.sessions.Create(ctx, username, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        session.ID,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.log.Info("login succeeded", "username", username, "session_id", session.ID)
	return &Token{Token: signed, ExpiresAt: session.ExpiresAt, User: User{Username: username}}, nil
}

// Authenticate validates a bearer token and its backing session.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, string, error) {
	if !s.Enabled() {
		return nil, "", ErrDisabled
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, "", ErrUnauthorized
	}

	session, err := s.sessions.Get(ctx, claims.ID)
	if err != nil || session.Username != claims.Subject {
		return nil, "", ErrUnauthorized
	}
	return &User{Username: session.Username}, session.ID, nil
}

// Logout revokes the session behind token.
func (s *Service) Logout(ctx context.Context, token string) error {
	_, sessionID, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
