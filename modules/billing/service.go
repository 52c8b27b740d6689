package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskgate/pkg/logger"
)

// AccountDirectory resolves verified account identity. The billing service
// never trusts client-supplied identifiers: the user ID comes from the bearer
// token and the email comes from the identity records behind it.
type AccountDirectory interface {
	Email(ctx context.Context, userID uuid.UUID) (string, error)
}

// URLs are the fixed redirect targets for provider-hosted pages. All of them
// derive from the single application base URL at composition time.
type URLs struct {
	Success string // landing page after a completed checkout
	Cancel  string // landing page after an abandoned checkout
	Pricing string // pricing page, also the portal fallback for non-customers
}

// Service implements the billing operations: checkout and portal session
// creation, status reads, and webhook reconciliation. It is the sole writer
// of the subscription status rows.
type Service struct {
	provider  Provider
	customers CustomerStore
	subs      SubscriptionStore
	events    EventStore
	cache     StatusCache
	catalog   *Catalog
	accounts  AccountDirectory
	urls      URLs
	log       *slog.Logger
}

// ServiceOption configures the billing service during construction.
type ServiceOption func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithStatusCache enables caching of status lookups.
func WithStatusCache(cache StatusCache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// NewService creates the billing service.
func NewService(
	provider Provider,
	customers CustomerStore,
	subs SubscriptionStore,
	events EventStore,
	catalog *Catalog,
	accounts AccountDirectory,
	urls URLs,
	opts ...ServiceOption,
) *Service {
	if provider == nil {
		panic("billing: Provider is required")
	}
	if customers == nil || subs == nil || events == nil {
		panic("billing: stores are required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	if accounts == nil {
		panic("billing: account directory is required")
	}

	s := &Service{
		provider:  provider,
		customers: customers,
		subs:      subs,
		events:    events,
		cache:     NoopStatusCache{},
		catalog:   catalog,
		accounts:  accounts,
		urls:      urls,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckoutURL creates a hosted checkout session for the user and returns its
// URL. The billing customer is created lazily: search by email first so
// repeat checkout attempts never produce duplicate provider customers.
func (s *Service) CheckoutURL(ctx context.Context, userID uuid.UUID) (string, error) {
	email, err := s.accounts.Email(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve account email: %w", err)
	}

	customer, err := s.ensureCustomer(ctx, userID, email)
	if err != nil {
		return "", err
	}

	plan := s.catalog.CheckoutPlan()
	url, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		PriceID:    plan.PriceID,
		CustomerID: customer.CustomerID,
		Email:      email,
		SuccessURL: s.urls.Success,
		CancelURL:  s.urls.Cancel,
	})
	if err != nil {
		return "", errors.Join(ErrProviderError, err)
	}
	return url, nil
}

// PortalURL returns a pre-authenticated customer portal URL. A user with no
// billing relationship has nothing to manage; they are sent to the pricing
// page instead of surfacing a provider error.
func (s *Service) PortalURL(ctx context.Context, userID uuid.UUID) (string, error) {
	customer, err := s.customers.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return s.urls.Pricing, nil
		}
		return "", fmt.Errorf("failed to look up billing customer: %w", err)
	}

	var subIDs []string
	if sub, err := s.subs.Get(ctx, userID); err == nil && sub.SubscriptionID != "" {
		subIDs = append(subIDs, sub.SubscriptionID)
	}

	url, err := s.provider.CreatePortalSession(ctx, customer.CustomerID, subIDs)
	if err != nil {
		return "", errors.Join(ErrProviderError, err)
	}
	return url, nil
}

// Status reports the user's subscription status. No billing relationship is
// a normal state, reported as inactive basic, never as an error. When a
// mapping exists, the provider is consulted live and the most recently
// created active or trialing subscription wins.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (StatusInfo, error) {
	if cached, err := s.cache.Get(ctx, userID); err == nil && cached != nil {
		return *cached, nil
	}

	customer, err := s.customers.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return FreeStatus(), nil
		}
		return StatusInfo{}, fmt.Errorf("failed to look up billing customer: %w", err)
	}

	subs, err := s.provider.ListSubscriptions(ctx, customer.CustomerID)
	if err != nil {
		return StatusInfo{}, errors.Join(ErrProviderError, err)
	}

	var current *ProviderSubscription
	for i := range subs {
		if !subs[i].Status.Subscribed() {
			continue
		}
		if current == nil || subs[i].CreatedAt.After(current.CreatedAt) {
			current = &subs[i]
		}
	}

	info := FreeStatus()
	if current != nil {
		info = StatusInfo{
			Active:    true,
			Tier:      s.catalog.TierFor(current.PriceID),
			PeriodEnd: current.PeriodEnd,
		}
	}

	if err := s.cache.Set(ctx, userID, info); err != nil {
		s.log.Warn("failed to cache subscription status",
			logger.UserID(userID.String()),
			logger.Error(err),
			logger.Component("billing"),
		)
	}
	return info, nil
}

// HandleWebhook verifies, deduplicates, and applies one provider event.
// Signature verification happens before anything else, replayed event IDs
// are acknowledged without reprocessing, and unknown event types are
// acknowledged without action. An event referencing a customer this system
// has no mapping for is a data consistency bug and propagates as an error.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}

	seen, err := s.events.Seen(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to check webhook event: %w", err)
	}
	if seen {
		s.log.Info("discarding replayed webhook event",
			logger.EventID(event.ID),
			slog.String("event_type", event.ProviderEvent),
			logger.Component("billing"),
		)
		return nil
	}

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		err = s.applySubscriptionChange(ctx, event)
	case EventSubscriptionCanceled:
		err = s.applyCancellation(ctx, event)
	case EventCustomerDeleted:
		err = s.applyCustomerDeletion(ctx, event)
	default:
		s.log.Info("ignoring unhandled webhook event",
			logger.EventID(event.ID),
			slog.String("event_type", event.ProviderEvent),
			logger.Component("billing"),
		)
		err = nil
	}
	if err != nil {
		// Leave the event ID unclaimed: the provider's redelivery is the
		// recovery path, and dispatch is idempotent if this run half-applied.
		return err
	}

	if _, err := s.events.MarkProcessed(ctx, event.ID); err != nil {
		// Effects are applied; a redelivery would just repeat idempotent
		// upserts, so this failure is not worth a 500 to the provider.
		s.log.Warn("failed to record processed webhook event",
			logger.EventID(event.ID),
			logger.Error(err),
			logger.Component("billing"),
		)
	}
	return nil
}

func (s *Service) applySubscriptionChange(ctx context.Context, event *WebhookEvent) error {
	customer, err := s.resolveCustomer(ctx, event)
	if err != nil {
		return err
	}

	// Absent period end is missing business context, not a broken event.
	// Acknowledge and wait for the provider's complete follow-up.
	if event.PeriodEnd == nil {
		s.log.Info("skipping subscription event without period end",
			logger.EventID(event.ID),
			logger.CustomerID(event.CustomerID),
			logger.Component("billing"),
		)
		return nil
	}

	sub := &Subscription{
		UserID:         customer.UserID,
		SubscriptionID: event.SubscriptionID,
		Status:         event.Status,
		PriceID:        event.PriceID,
		Tier:           s.catalog.TierFor(event.PriceID),
		PeriodEnd:      event.PeriodEnd,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	s.invalidateCache(ctx, customer.UserID)
	return nil
}

func (s *Service) applyCancellation(ctx context.Context, event *WebhookEvent) error {
	customer, err := s.resolveCustomer(ctx, event)
	if err != nil {
		return err
	}

	sub := &Subscription{
		UserID:         customer.UserID,
		SubscriptionID: event.SubscriptionID,
		Status:         StatusCanceled,
		PriceID:        event.PriceID,
		Tier:           s.catalog.TierFor(event.PriceID),
		PeriodEnd:      event.PeriodEnd,
		UpdatedAt:      time.Now().UTC(),
	}
	if existing, err := s.subs.Get(ctx, customer.UserID); err == nil {
		if sub.SubscriptionID == "" {
			sub.SubscriptionID = existing.SubscriptionID
		}
		if sub.PriceID == "" {
			sub.PriceID = existing.PriceID
			sub.Tier = existing.Tier
		}
		if sub.PeriodEnd == nil {
			sub.PeriodEnd = existing.PeriodEnd
		}
	}

	if err := s.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	s.invalidateCache(ctx, customer.UserID)
	return nil
}

// applyCustomerDeletion marks the subscription canceled before removing the
// mapping. The order is observable: a concurrent status read must never see
// a missing mapping as "never subscribed" while the cancellation is pending.
func (s *Service) applyCustomerDeletion(ctx context.Context, event *WebhookEvent) error {
	customer, err := s.resolveCustomer(ctx, event)
	if err != nil {
		return err
	}

	sub := &Subscription{
		UserID:    customer.UserID,
		Status:    StatusCanceled,
		UpdatedAt: time.Now().UTC(),
	}
	if existing, err := s.subs.Get(ctx, customer.UserID); err == nil {
		sub.SubscriptionID = existing.SubscriptionID
		sub.PriceID = existing.PriceID
		sub.Tier = existing.Tier
		sub.PeriodEnd = existing.PeriodEnd
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	if err := s.customers.Delete(ctx, customer.UserID); err != nil && !errors.Is(err, ErrCustomerNotFound) {
		return fmt.Errorf("failed to delete customer mapping: %w", err)
	}

	s.invalidateCache(ctx, customer.UserID)
	return nil
}

func (s *Service) resolveCustomer(ctx context.Context, event *WebhookEvent) (*Customer, error) {
	if event.CustomerID == "" {
		return nil, fmt.Errorf("%w: event %s has no customer id", ErrInvalidPayload, event.ID)
	}
	customer, err := s.customers.GetByCustomerID(ctx, event.CustomerID)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return nil, fmt.Errorf("%w: %s (event %s)", ErrUnknownCustomer, event.CustomerID, event.ID)
		}
		return nil, fmt.Errorf("failed to resolve billing customer: %w", err)
	}
	return customer, nil
}

func (s *Service) ensureCustomer(ctx context.Context, userID uuid.UUID, email string) (*Customer, error) {
	customer, err := s.customers.Get(ctx, userID)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, fmt.Errorf("failed to look up billing customer: %w", err)
	}

	customerID, err := s.provider.FindCustomerByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrCustomerNotFound) {
			return nil, errors.Join(ErrProviderError, err)
		}
		customerID, err = s.provider.CreateCustomer(ctx, email, userID.String())
		if err != nil {
			return nil, errors.Join(ErrProviderError, err)
		}
	}

	customer = &Customer{
		UserID:     userID,
		CustomerID: customerID,
		Email:      email,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.customers.Save(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to save billing customer: %w", err)
	}
	return customer, nil
}

func (s *Service) invalidateCache(ctx context.Context, userID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("failed to invalidate status cache",
			logger.UserID(userID.String()),
			logger.Error(err),
			logger.Component("billing"),
		)
	}
}
