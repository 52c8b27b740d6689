package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/taskgate/pkg/email"
	"github.com/dmitrymomot/taskgate/pkg/jwt"
	"github.com/dmitrymomot/taskgate/pkg/logger"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// SessionClaims is the payload of bearer tokens issued on sign-in.
type SessionClaims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
}

// verifyClaims is the payload of email verification tokens.
type verifyClaims struct {
	jwt.StandardClaims
	Email string `json:"email"`
}

// Service provides password-based authentication with email verification.
// It is the application's identity provider: it owns the account records and
// is the only component that issues bearer credentials.
type Service struct {
	storage   Storage
	tokens    *jwt.Service
	mailer    email.EmailSender
	log       *slog.Logger
	verifyURL string

	bcryptCost int
	sessionTTL time.Duration
	verifyTTL  time.Duration
	minPassLen int
	maxPassLen int
}

// Option configures the auth service during construction.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithBcryptCost sets the bcrypt cost for password hashing.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithSessionTTL sets the lifetime of issued bearer tokens.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// WithVerifyTTL sets the lifetime of email verification tokens.
func WithVerifyTTL(ttl time.Duration) Option {
	return func(s *Service) { s.verifyTTL = ttl }
}

// NewService creates the auth service. verifyURL is the page the verification
// link lands on; the signed token is appended as a query parameter.
func NewService(storage Storage, tokens *jwt.Service, mailer email.EmailSender, verifyURL string, opts ...Option) *Service {
	if storage == nil {
		panic("auth: Storage is required")
	}
	if tokens == nil {
		panic("auth: token service is required")
	}
	if mailer == nil {
		panic("auth: email sender is required")
	}

	s := &Service{
		storage:    storage,
		tokens:     tokens,
		mailer:     mailer,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		verifyURL:  verifyURL,
		bcryptCost: bcrypt.DefaultCost,
		sessionTTL: 24 * time.Hour,
		verifyTTL:  48 * time.Hour,
		minPassLen: 8,
		maxPassLen: 128,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new unverified account and sends the verification email.
// A failed email send does not fail registration: the user can request a
// resend, and losing the account row over a mail outage helps nobody.
func (s *Service) Register(ctx context.Context, emailAddr, password string) (*User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if !emailRegex.MatchString(emailAddr) {
		return nil, ErrInvalidEmail
	}
	if len(password) < s.minPassLen || len(password) > s.maxPassLen {
		return nil, ErrWeakPassword
	}

	if _, err := s.storage.GetUserByEmail(ctx, emailAddr); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:        uuid.New(),
		Email:     emailAddr,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.storage.StorePasswordHash(ctx, user.ID, hash); err != nil {
		// Remove the half-created account so the email stays claimable.
		if deleteErr := s.storage.DeleteUser(ctx, user.ID); deleteErr != nil {
			s.log.Error("failed to clean up user after password save failure",
				logger.UserID(user.ID.String()),
				logger.Error(deleteErr),
				logger.Component("auth"),
			)
		}
		return nil, fmt.Errorf("failed to save password: %w", err)
	}

	if err := s.sendVerificationEmail(ctx, user); err != nil {
		s.log.Error("failed to send verification email",
			logger.UserID(user.ID.String()),
			logger.Error(err),
			logger.Component("auth"),
		)
	}

	return user, nil
}

// Authenticate verifies the credentials and issues a bearer token.
// Any failure collapses to ErrInvalidCredentials to prevent user enumeration.
func (s *Service) Authenticate(ctx context.Context, emailAddr, password string) (*User, string, error) {
	emailAddr = normalizeEmail(emailAddr)

	user, err := s.storage.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	hash, err := s.storage.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueSessionToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session token: %w", err)
	}

	return user, token, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
// Verifying an already-verified account is a no-op, not an error, so stale
// links in a user's inbox stay harmless.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*User, error) {
	var claims verifyClaims
	if err := s.tokens.Parse(token, &claims); err != nil {
		return nil, ErrTokenInvalid
	}
	if claims.Issuer != SubjectEmailVerify {
		return nil, ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	// Token was minted for a different address; the user changed email since.
	if user.Email != claims.Email {
		return nil, ErrTokenInvalid
	}

	if user.IsVerified() {
		return user, nil
	}

	now := time.Now().UTC()
	if err := s.storage.MarkEmailVerified(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to mark email verified: %w", err)
	}
	user.VerifiedAt = &now

	return user, nil
}

// ResendVerification re-sends the verification email. Unknown addresses and
// already-verified accounts report success: the operation is idempotent from
// the caller's perspective and leaks no account existence information.
func (s *Service) ResendVerification(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)

	user, err := s.storage.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if user.IsVerified() {
		return nil
	}

	return s.sendVerificationEmail(ctx, user)
}

// User returns the account projection for the given identifier.
func (s *Service) User(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.storage.GetUserByID(ctx, id)
}

func (s *Service) issueSessionToken(user *User) (string, error) {
	now := time.Now().UTC()
	return s.tokens.Generate(SessionClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   user.ID.String(),
			Issuer:    SubjectSession,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.sessionTTL).Unix(),
		},
		Email: user.Email,
	})
}

func (s *Service) sendVerificationEmail(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	token, err := s.tokens.Generate(verifyClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   user.ID.String(),
			Issuer:    SubjectEmailVerify,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.verifyTTL).Unix(),
		},
		Email: user.Email,
	})
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	link := s.verifyURL + "?token=" + token
	return s.mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:  user.Email,
		Subject: "Confirm your email address",
		BodyHTML: fmt.Sprintf(
			`<p>Welcome! Please confirm your email address by following this link:</p><p><a href="%s">Confirm email</a></p>`,
			link,
		),
		Tag: "email-verification",
	})
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
