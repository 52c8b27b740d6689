package client

import (
	"context"
	"sync"
)

// AuthState holds the client's identity session: the account projection, the
// bearer token, and a loading flag. It is the single source of identity for
// every screen; consumers observe changes through OnChange listeners instead
// of reaching for ambient globals.
//
// Every operation swallows provider errors into a stored human-readable
// message rather than propagating them: a failed sign-in is a notification,
// never a crash.
type AuthState struct {
	api API

	mu        sync.Mutex
	account   *Account
	token     string
	loading   bool
	lastError string
	listeners []func(*Account)
	closed    bool
}

// NewAuthState creates the identity state holder.
func NewAuthState(api API) *AuthState {
	return &AuthState{api: api}
}

// Init hydrates the holder from a persisted session token, if any. Called
// once at startup before the first guard evaluation.
func (s *AuthState) Init(ctx context.Context, token string) {
	if token == "" {
		return
	}

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	account, err := s.api.Me(ctx, token)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.account = nil
		s.token = ""
		s.lastError = humanMessage(err)
		s.mu.Unlock()
		s.notify(nil)
		return
	}
	s.account = account
	s.token = token
	s.mu.Unlock()
	s.notify(account)
}

// Close tears the holder down. Listeners registered via OnChange stop
// firing; the holder itself becomes inert.
func (s *AuthState) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = nil
}

// OnChange registers a listener invoked on every account transition with the
// new account projection (nil on sign-out).
func (s *AuthState) OnChange(fn func(*Account)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.listeners = append(s.listeners, fn)
}

// SignIn authenticates and adopts the resulting session. Reports success;
// on failure the account stays unset and the error message is retained.
func (s *AuthState) SignIn(ctx context.Context, email, password string) bool {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	session, err := s.api.SignIn(ctx, email, password)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastError = humanMessage(err)
		s.mu.Unlock()
		return false
	}
	s.account = &session.Account
	s.token = session.Token
	s.lastError = ""
	s.mu.Unlock()

	s.notify(&session.Account)
	return true
}

// SignUp requests account creation. A successful sign-up does not establish
// a session: the account is unusable until the email is verified.
func (s *AuthState) SignUp(ctx context.Context, email, password string) bool {
	_, err := s.api.SignUp(ctx, email, password)
	if err != nil {
		s.mu.Lock()
		s.lastError = humanMessage(err)
		s.mu.Unlock()
		return false
	}
	return true
}

// SignOut drops the session and resets the account projection. Purely
// local: bearer tokens are stateless, forgetting one invalidates it for
// this client.
func (s *AuthState) SignOut() {
	s.mu.Lock()
	s.account = nil
	s.token = ""
	s.lastError = ""
	s.mu.Unlock()

	s.notify(nil)
}

// ResendVerificationEmail re-triggers the verification flow. Idempotent from
// the caller's perspective.
func (s *AuthState) ResendVerificationEmail(ctx context.Context, email string) bool {
	if err := s.api.ResendVerification(ctx, email); err != nil {
		s.mu.Lock()
		s.lastError = humanMessage(err)
		s.mu.Unlock()
		return false
	}
	return true
}

// IsEmailVerified reports whether the held account is verified. False, never
// an error, when no account is held.
func (s *AuthState) IsEmailVerified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account != nil && s.account.Verified
}

// Account returns the current account projection, nil when signed out.
func (s *AuthState) Account() *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return nil
	}
	account := *s.account
	return &account
}

// Token returns the current bearer token, empty when signed out.
func (s *AuthState) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Loading reports whether an identity operation is in flight.
func (s *AuthState) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the most recent human-readable failure message.
func (s *AuthState) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *AuthState) notify(account *Account) {
	s.mu.Lock()
	listeners := make([]func(*Account), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(account)
	}
}

func humanMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
