package client_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskgate/client"
)

// expected mirrors the guard precedence independently of the production
// switch so the property check over the full boolean cube does not just
// compare an implementation against itself.
func expected(in client.GuardInput) client.Decision {
	if in.AuthLoading || in.SubscriptionLoading {
		return client.ShowLoading
	}
	if !in.Authenticated {
		return client.RedirectLogin
	}
	if !in.EmailVerified {
		return client.RedirectVerify
	}
	if !in.Subscribed {
		return client.RedirectPricing
	}
	return client.RenderContent
}

func TestDecideFullBooleanCube(t *testing.T) {
	t.Parallel()

	bools := []bool{false, true}
	for _, authLoading := range bools {
		for _, subLoading := range bools {
			for _, authenticated := range bools {
				for _, verified := range bools {
					for _, subscribed := range bools {
						in := client.GuardInput{
							AuthLoading:         authLoading,
							SubscriptionLoading: subLoading,
							Authenticated:       authenticated,
							EmailVerified:       verified,
							Subscribed:          subscribed,
						}
						name := fmt.Sprintf("al=%t sl=%t auth=%t ver=%t sub=%t",
							authLoading, subLoading, authenticated, verified, subscribed)
						assert.Equal(t, expected(in), client.Decide(in), name)
					}
				}
			}
		}
	}
}

func TestDecidePrecedence(t *testing.T) {
	t.Parallel()

	t.Run("loading beats every redirect", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, client.ShowLoading, client.Decide(client.GuardInput{
			AuthLoading: true, Authenticated: false,
		}))
		assert.Equal(t, client.ShowLoading, client.Decide(client.GuardInput{
			SubscriptionLoading: true, Authenticated: true, EmailVerified: true, Subscribed: true,
		}))
	})

	t.Run("identity precedes verification", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, client.RedirectLogin, client.Decide(client.GuardInput{
			Authenticated: false, EmailVerified: false,
		}))
	})

	t.Run("verification precedes billing", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, client.RedirectVerify, client.Decide(client.GuardInput{
			Authenticated: true, EmailVerified: false, Subscribed: false,
		}))
	})

	t.Run("fully qualified renders content", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, client.RenderContent, client.Decide(client.GuardInput{
			Authenticated: true, EmailVerified: true, Subscribed: true,
		}))
	})
}

func TestGuardReadsHolders(t *testing.T) {
	t.Parallel()

	t.Run("signed out redirects to login", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{}
		auth := client.NewAuthState(api)
		sub := client.NewSubscriptionState(api, auth)

		assert.Equal(t, client.RedirectLogin, client.Guard(auth, sub))
	})

	t.Run("unverified account redirects to verify", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{
			session: &client.Session{
				Token:   "token-1",
				Account: client.Account{ID: "u1", Email: "user@example.com"},
			},
			status: &client.SubscriptionInfo{Active: false, Tier: "basic"},
		}
		auth := client.NewAuthState(api)
		sub := client.NewSubscriptionState(api, auth)
		require.True(t, auth.SignIn(context.Background(), "user@example.com", "pass"))

		assert.Equal(t, client.RedirectVerify, client.Guard(auth, sub))
	})

	t.Run("verified without an active subscription redirects to pricing", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{
			session: premiumSession(),
			status:  &client.SubscriptionInfo{Active: false, Tier: "basic"},
		}
		auth := client.NewAuthState(api)
		sub := client.NewSubscriptionState(api, auth)
		require.True(t, auth.SignIn(context.Background(), "user@example.com", "pass"))

		assert.Equal(t, client.RedirectPricing, client.Guard(auth, sub))
	})

	t.Run("verified subscriber gets the content", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{
			session: premiumSession(),
			status:  &client.SubscriptionInfo{Active: true, Tier: "premium"},
		}
		auth := client.NewAuthState(api)
		sub := client.NewSubscriptionState(api, auth)
		require.True(t, auth.SignIn(context.Background(), "user@example.com", "pass"))

		assert.Equal(t, client.RenderContent, client.Guard(auth, sub))
	})
}
