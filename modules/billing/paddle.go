package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider on top of the official Paddle SDK.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle-backed billing provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
	}, nil
}

// FindCustomerByEmail searches Paddle for a customer with the given email.
func (p *PaddleProvider) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	res, err := p.client.CustomersClient.ListCustomers(ctx, &paddle.ListCustomersRequest{
		Email: []string{email},
	})
	if err != nil {
		return "", fmt.Errorf("failed to list paddle customers: %w", err)
	}

	var customerID string
	err = res.Iter(ctx, func(c *paddle.Customer) (bool, error) {
		customerID = c.ID
		return false, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to iterate paddle customers: %w", err)
	}
	if customerID == "" {
		return "", ErrCustomerNotFound
	}
	return customerID, nil
}

// CreateCustomer creates a Paddle customer tagged with the application user ID.
func (p *PaddleProvider) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	customer, err := p.client.CustomersClient.CreateCustomer(ctx, &paddle.CreateCustomerRequest{
		Email: email,
		CustomData: paddle.CustomData{
			"user_id": userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create paddle customer: %w", err)
	}
	return customer.ID, nil
}

// CreateCheckoutSession creates a Paddle transaction carrying a hosted
// checkout URL.
func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	if params.PriceID == "" {
		return "", errors.New("price ID is required")
	}
	if params.CustomerID == "" {
		return "", errors.New("customer ID is required")
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  params.PriceID,
		Quantity: 1,
	})

	req := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomerID: paddle.PtrTo(params.CustomerID),
	}
	if params.SuccessURL != "" {
		req.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(params.SuccessURL),
		}
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create paddle transaction: %w", err)
	}

	if transaction.Checkout == nil || transaction.Checkout.URL == nil || *transaction.Checkout.URL == "" {
		return "", ErrNoCheckoutURL
	}
	return *transaction.Checkout.URL, nil
}

// CreatePortalSession returns a pre-authenticated Paddle customer portal URL.
func (p *PaddleProvider) CreatePortalSession(ctx context.Context, customerID string, subscriptionIDs []string) (string, error) {
	if customerID == "" {
		return "", errors.New("customer ID is required")
	}

	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID:      customerID,
		SubscriptionIDs: subscriptionIDs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create paddle portal session: %w", err)
	}

	if session.URLs.General.Overview == "" {
		return "", ErrNoPortalURL
	}
	return session.URLs.General.Overview, nil
}

// ListSubscriptions returns the customer's subscriptions as Paddle sees them.
func (p *PaddleProvider) ListSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error) {
	res, err := p.client.SubscriptionsClient.ListSubscriptions(ctx, &paddle.ListSubscriptionsRequest{
		CustomerID: []string{customerID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list paddle subscriptions: %w", err)
	}

	var subs []ProviderSubscription
	err = res.Iter(ctx, func(s *paddle.Subscription) (bool, error) {
		sub := ProviderSubscription{
			ID:        s.ID,
			Status:    mapPaddleStatus(string(s.Status)),
			CreatedAt: parsePaddleTime(s.CreatedAt),
		}
		if len(s.Items) > 0 {
			sub.PriceID = s.Items[0].Price.ID
		}
		if s.CurrentBillingPeriod != nil {
			if end := parsePaddleTime(s.CurrentBillingPeriod.EndsAt); !end.IsZero() {
				sub.PeriodEnd = &end
			}
		}
		subs = append(subs, sub)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate paddle subscriptions: %w", err)
	}
	return subs, nil
}

// ParseWebhook verifies the Paddle-Signature header and normalizes the event.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	// The SDK verifier consumes an http.Request; reconstruct one around the
	// raw payload so signature checking stays inside the SDK.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	return normalizePaddleEvent(payload)
}

// normalizePaddleEvent parses a verified Paddle payload into the normalized
// event shape. Callers must verify the signature first.
func normalizePaddleEvent(payload []byte) (*WebhookEvent, error) {
	var raw struct {
		EventID    string         `json:"event_id"`
		EventType  string         `json:"event_type"`
		OccurredAt string         `json:"occurred_at"`
		Data       map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if raw.EventID == "" || raw.EventType == "" {
		return nil, ErrInvalidPayload
	}

	event := &WebhookEvent{
		ID:            raw.EventID,
		Type:          mapPaddleEventType(raw.EventType),
		ProviderEvent: raw.EventType,
		OccurredAt:    parsePaddleTime(raw.OccurredAt),
		Raw:           raw.Data,
	}

	switch {
	case strings.HasPrefix(raw.EventType, "subscription."):
		if id, ok := raw.Data["id"].(string); ok {
			event.SubscriptionID = id
		}
		if customerID, ok := raw.Data["customer_id"].(string); ok {
			event.CustomerID = customerID
		}
		if status, ok := raw.Data["status"].(string); ok {
			event.Status = mapPaddleStatus(status)
		}
		if items, ok := raw.Data["items"].([]any); ok && len(items) > 0 {
			if item, ok := items[0].(map[string]any); ok {
				if price, ok := item["price"].(map[string]any); ok {
					if priceID, ok := price["id"].(string); ok {
						event.PriceID = priceID
					}
				}
			}
		}
		event.PeriodEnd = periodEnd(raw.Data, "current_billing_period")

	case strings.HasPrefix(raw.EventType, "transaction."):
		// Transactions carry the subscription linkage in a flatter shape:
		// subscription_id at the top level and price_id directly on items.
		if subID, ok := raw.Data["subscription_id"].(string); ok {
			event.SubscriptionID = subID
		}
		if customerID, ok := raw.Data["customer_id"].(string); ok {
			event.CustomerID = customerID
		}
		// A completed payment means the subscription is paid up regardless
		// of the transaction's own status field.
		event.Status = StatusActive
		if items, ok := raw.Data["items"].([]any); ok && len(items) > 0 {
			if item, ok := items[0].(map[string]any); ok {
				if priceID, ok := item["price_id"].(string); ok {
					event.PriceID = priceID
				}
			}
		}
		event.PeriodEnd = periodEnd(raw.Data, "billing_period")

	case raw.EventType == "customer.deleted":
		if id, ok := raw.Data["id"].(string); ok {
			event.CustomerID = id
		}
	}

	return event, nil
}

func periodEnd(data map[string]any, key string) *time.Time {
	period, ok := data[key].(map[string]any)
	if !ok {
		return nil
	}
	endsAt, ok := period["ends_at"].(string)
	if !ok {
		return nil
	}
	end := parsePaddleTime(endsAt)
	if end.IsZero() {
		return nil
	}
	return &end
}

func mapPaddleEventType(paddleEvent string) EventType {
	switch paddleEvent {
	case "subscription.created", "subscription.activated":
		return EventSubscriptionCreated
	case "subscription.updated", "subscription.resumed", "subscription.past_due", "subscription.paused", "subscription.trialing":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionCanceled
	case "transaction.completed", "transaction.payment_succeeded":
		return EventSubscriptionUpdated
	case "customer.deleted":
		return EventCustomerDeleted
	default:
		return EventIgnored
	}
}

func mapPaddleStatus(paddleStatus string) Status {
	switch strings.ToLower(paddleStatus) {
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due":
		return StatusPastDue
	case "canceled", "cancelled":
		return StatusCanceled
	case "paused":
		return StatusPaused
	case "expired":
		return StatusExpired
	default:
		return Status(paddleStatus)
	}
}

func parsePaddleTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
