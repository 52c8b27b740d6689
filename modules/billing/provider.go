package billing

import (
	"context"
	"time"
)

// Provider defines the payment provider integration surface. The abstraction
// keeps vendor specifics (customer IDs, event names, signature schemes) out
// of the service: implementations use the official provider SDK and normalize
// everything at this boundary.
type Provider interface {
	// FindCustomerByEmail returns the provider customer ID for an email
	// address, or ErrCustomerNotFound. Used before CreateCustomer so repeat
	// checkout attempts never create duplicate customers.
	FindCustomerByEmail(ctx context.Context, email string) (string, error)

	// CreateCustomer creates a customer record at the provider, tagged with
	// the application user ID so webhooks can be mapped back.
	CreateCustomer(ctx context.Context, email, userID string) (string, error)

	// CreateCheckoutSession creates a hosted checkout page and returns its URL.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)

	// CreatePortalSession returns a pre-authenticated customer portal URL
	// where the customer can update payment methods or cancel.
	CreatePortalSession(ctx context.Context, customerID string, subscriptionIDs []string) (string, error)

	// ListSubscriptions returns the customer's subscriptions as the provider
	// currently sees them. This is the live source of truth the status
	// endpoint consults.
	ListSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error)

	// ParseWebhook verifies the event signature and normalizes the payload.
	// Signature verification happens before any parsing: nothing from an
	// unverified payload may reach business logic. Returns ErrInvalidSignature
	// on verification failure.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutParams contains data needed to create a hosted checkout session.
type CheckoutParams struct {
	PriceID    string
	CustomerID string
	Email      string
	SuccessURL string
	CancelURL  string
}

// ProviderSubscription is a normalized view of one provider-side subscription.
type ProviderSubscription struct {
	ID        string
	Status    Status
	PriceID   string
	PeriodEnd *time.Time
	CreatedAt time.Time
}

// EventType is the normalized billing event type. Each provider maps its own
// event names onto these.
type EventType string

const (
	EventSubscriptionCreated  EventType = "subscription_created"
	EventSubscriptionUpdated  EventType = "subscription_updated"
	EventSubscriptionCanceled EventType = "subscription_canceled"
	EventCustomerDeleted      EventType = "customer_deleted"
	EventIgnored              EventType = "ignored"
)

// WebhookEvent is a verified, normalized provider event.
type WebhookEvent struct {
	ID             string         // Provider event ID, used for replay detection
	Type           EventType      // Normalized event type
	ProviderEvent  string         // Original provider event name
	SubscriptionID string         // Provider subscription ID
	CustomerID     string         // Provider customer ID
	Status         Status         // Normalized subscription status
	PriceID        string         // Price the customer subscribed to
	PeriodEnd      *time.Time     // Current period end, nil when absent
	OccurredAt     time.Time      // Provider-side event timestamp
	Raw            map[string]any // Full event data for logging and forensics
}
