package client

import (
	"context"
	"errors"
	"sync"
)

// SubscriptionState holds the client's cached belief about billing status:
// subscribed, tier, and renewal timestamp, plus a loading flag. It tracks
// the identity holder: an account appearing triggers a status check, an
// account disappearing resets everything synchronously with no network call.
type SubscriptionState struct {
	api  API
	auth *AuthState

	mu         sync.Mutex
	subscribed bool
	tier       string
	renewal    *SubscriptionInfo
	loading    bool
	lastError  string
	needsAuth  bool
}

// NewSubscriptionState creates the billing state holder and subscribes it to
// the identity holder's transitions.
func NewSubscriptionState(api API, auth *AuthState) *SubscriptionState {
	s := &SubscriptionState{api: api, auth: auth}
	auth.OnChange(func(account *Account) {
		if account == nil {
			s.reset()
			return
		}
		s.CheckSubscription(context.Background())
	})
	return s
}

// CheckSubscription refreshes billing status from the server. Idempotent and
// read-only; safe to call at any time. An invalid credential is remembered
// distinctly so the UI can prompt for re-authentication instead of showing a
// generic failure.
func (s *SubscriptionState) CheckSubscription(ctx context.Context) {
	token := s.auth.Token()
	if token == "" {
		s.reset()
		return
	}

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	info, err := s.api.SubscriptionStatus(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.needsAuth = true
			s.lastError = "session expired, please sign in again"
		} else {
			s.lastError = "subscription status check failed"
		}
		return
	}

	s.subscribed = info.Active
	s.tier = info.Tier
	s.renewal = info
	s.needsAuth = false
	s.lastError = ""
}

// CreateCheckoutSession requests a hosted checkout URL. The returned URL is
// a one-way hop: the caller navigates the whole browser tab there and the
// application resumes only via the fixed success or cancel pages. Returns ""
// on failure or when unauthenticated.
func (s *SubscriptionState) CreateCheckoutSession(ctx context.Context) string {
	token := s.auth.Token()
	if token == "" {
		return ""
	}

	url, err := s.api.CheckoutURL(ctx, token)
	if err != nil {
		s.storeError(err)
		return ""
	}
	return url
}

// CreateCustomerPortalSession requests a hosted billing portal URL,
// symmetric to checkout.
func (s *SubscriptionState) CreateCustomerPortalSession(ctx context.Context) string {
	token := s.auth.Token()
	if token == "" {
		return ""
	}

	url, err := s.api.PortalURL(ctx, token)
	if err != nil {
		s.storeError(err)
		return ""
	}
	return url
}

// Subscribed reports the cached billing verdict.
func (s *SubscriptionState) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

// Tier returns the cached tier, empty when unknown.
func (s *SubscriptionState) Tier() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

// Info returns the full cached status, nil when never fetched.
func (s *SubscriptionState) Info() *SubscriptionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renewal
}

// Loading reports whether a status check is in flight.
func (s *SubscriptionState) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// NeedsReauth reports whether the last status check failed on credentials.
func (s *SubscriptionState) NeedsReauth() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsAuth
}

// LastError returns the most recent human-readable failure message.
func (s *SubscriptionState) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *SubscriptionState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = false
	s.tier = ""
	s.renewal = nil
	s.loading = false
	s.needsAuth = false
	s.lastError = ""
}

func (s *SubscriptionState) storeError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = humanMessage(err)
}
