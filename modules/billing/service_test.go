package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskgate/modules/billing"
)

// fakeProvider is an in-memory Provider with recorded calls. Webhook
// "signatures" are checked against a fixed secret so signature rejection
// paths stay testable without real crypto.
type fakeProvider struct {
	mu               sync.Mutex
	customersByEmail map[string]string
	created          int
	subscriptions    map[string][]billing.ProviderSubscription
	checkoutURL      string
	portalURL        string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customersByEmail: make(map[string]string),
		subscriptions:    make(map[string][]billing.ProviderSubscription),
		checkoutURL:      "https://pay.example.com/checkout/txn_1",
		portalURL:        "https://pay.example.com/portal/pcs_1",
	}
}

const fakeSignature = "valid-signature"

func (p *fakeProvider) FindCustomerByEmail(_ context.Context, email string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.customersByEmail[email]; ok {
		return id, nil
	}
	return "", billing.ErrCustomerNotFound
}

func (p *fakeProvider) CreateCustomer(_ context.Context, email, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	id := "ctm_" + email
	p.customersByEmail[email] = id
	return id, nil
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, _ billing.CheckoutParams) (string, error) {
	return p.checkoutURL, nil
}

func (p *fakeProvider) CreatePortalSession(_ context.Context, _ string, _ []string) (string, error) {
	return p.portalURL, nil
}

func (p *fakeProvider) ListSubscriptions(_ context.Context, customerID string) ([]billing.ProviderSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscriptions[customerID], nil
}

func (p *fakeProvider) ParseWebhook(_ context.Context, payload []byte, signature string) (*billing.WebhookEvent, error) {
	if signature != fakeSignature {
		return nil, billing.ErrInvalidSignature
	}
	var event billing.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, billing.ErrInvalidPayload
	}
	return &event, nil
}

type fakeAccounts struct {
	emails map[uuid.UUID]string
}

func (a *fakeAccounts) Email(_ context.Context, userID uuid.UUID) (string, error) {
	email, ok := a.emails[userID]
	if !ok {
		return "", billing.ErrCustomerNotFound
	}
	return email, nil
}

type fixture struct {
	svc      *billing.Service
	provider *fakeProvider
	store    *billing.MemoryStore
	userID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog, err := billing.NewCatalog([]billing.Plan{
		{Name: "Premium Monthly", Tier: billing.TierPremium, PriceID: "pri_premium_monthly", Interval: "monthly", Default: true},
		{Name: "Premium Annual", Tier: billing.TierPremium, PriceID: "pri_premium_annual", Interval: "annual"},
	})
	require.NoError(t, err)

	userID := uuid.New()
	provider := newFakeProvider()
	store := billing.NewMemoryStore()
	accounts := &fakeAccounts{emails: map[uuid.UUID]string{userID: "payer@example.com"}}

	svc := billing.NewService(provider, store, store.Subscriptions(), store, catalog, accounts, billing.URLs{
		Success: "https://app.example.com/success",
		Cancel:  "https://app.example.com/cancel",
		Pricing: "https://app.example.com/pricing",
	})

	return &fixture{svc: svc, provider: provider, store: store, userID: userID}
}

func (f *fixture) saveCustomer(t *testing.T, customerID string) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), &billing.Customer{
		UserID:     f.userID,
		CustomerID: customerID,
		Email:      "payer@example.com",
		CreatedAt:  time.Now().UTC(),
	}))
}

// flakySubscriptions fails the first N Upsert calls and then delegates.
type flakySubscriptions struct {
	billing.SubscriptionStore
	failures int
}

func (s *flakySubscriptions) Upsert(ctx context.Context, sub *billing.Subscription) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("subscription store unavailable")
	}
	return s.SubscriptionStore.Upsert(ctx, sub)
}

func webhookPayload(t *testing.T, event billing.WebhookEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func TestServiceStatus(t *testing.T) {
	t.Parallel()

	t.Run("no billing relationship yields inactive basic", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		info, err := f.svc.Status(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusInfo{Active: false, Tier: billing.TierBasic}, info)
	})

	t.Run("active subscription yields premium with period end", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")
		end := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
		f.provider.subscriptions["ctm_1"] = []billing.ProviderSubscription{
			{ID: "sub_1", Status: billing.StatusActive, PriceID: "pri_premium_monthly", PeriodEnd: &end, CreatedAt: time.Now()},
		}

		info, err := f.svc.Status(context.Background(), f.userID)
		require.NoError(t, err)
		assert.True(t, info.Active)
		assert.Equal(t, billing.TierPremium, info.Tier)
		require.NotNil(t, info.PeriodEnd)
		assert.True(t, info.PeriodEnd.Equal(end))
	})

	t.Run("canceled subscription yields inactive basic", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")
		f.provider.subscriptions["ctm_1"] = []billing.ProviderSubscription{
			{ID: "sub_1", Status: billing.StatusCanceled, PriceID: "pri_premium_monthly", CreatedAt: time.Now()},
		}

		info, err := f.svc.Status(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusInfo{Active: false, Tier: billing.TierBasic}, info)
	})

	t.Run("most recently created qualifying subscription wins", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")
		older := time.Now().Add(-48 * time.Hour)
		newer := time.Now().Add(-1 * time.Hour)
		endOld := time.Now().Add(24 * time.Hour).UTC()
		endNew := time.Now().Add(720 * time.Hour).UTC()
		f.provider.subscriptions["ctm_1"] = []billing.ProviderSubscription{
			{ID: "sub_old", Status: billing.StatusActive, PriceID: "pri_premium_monthly", PeriodEnd: &endOld, CreatedAt: older},
			{ID: "sub_new", Status: billing.StatusTrialing, PriceID: "pri_premium_annual", PeriodEnd: &endNew, CreatedAt: newer},
		}

		info, err := f.svc.Status(context.Background(), f.userID)
		require.NoError(t, err)
		require.NotNil(t, info.PeriodEnd)
		assert.True(t, info.PeriodEnd.Equal(endNew))
	})
}

func TestServiceCheckoutURL(t *testing.T) {
	t.Parallel()

	t.Run("creates provider customer lazily", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		url, err := f.svc.CheckoutURL(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, f.provider.checkoutURL, url)
		assert.Equal(t, 1, f.provider.created)

		customer, err := f.store.Get(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, "ctm_payer@example.com", customer.CustomerID)
	})

	t.Run("repeat checkout never duplicates the customer", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.svc.CheckoutURL(context.Background(), f.userID)
		require.NoError(t, err)
		_, err = f.svc.CheckoutURL(context.Background(), f.userID)
		require.NoError(t, err)

		assert.Equal(t, 1, f.provider.created)
	})

	t.Run("reuses provider customer found by email", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.provider.customersByEmail["payer@example.com"] = "ctm_existing"

		_, err := f.svc.CheckoutURL(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Zero(t, f.provider.created)

		customer, err := f.store.Get(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, "ctm_existing", customer.CustomerID)
	})
}

func TestServicePortalURL(t *testing.T) {
	t.Parallel()

	t.Run("returns portal URL for existing customer", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")

		url, err := f.svc.PortalURL(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, f.provider.portalURL, url)
	})

	t.Run("falls back to pricing page without a mapping", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		url, err := f.svc.PortalURL(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, "https://app.example.com/pricing", url)
	})
}

func TestServiceHandleWebhook(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid signature before touching state", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")
		end := time.Now().Add(24 * time.Hour).UTC()
		payload := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventSubscriptionUpdated,
			SubscriptionID: "sub_1", CustomerID: "ctm_1",
			Status: billing.StatusActive, PriceID: "pri_premium_monthly", PeriodEnd: &end,
		})

		err := f.svc.HandleWebhook(context.Background(), payload, "forged")
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)

		_, err = f.store.GetSubscription(context.Background(), f.userID)
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})

	t.Run("applies subscription update for known customer", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")
		end := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
		payload := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventSubscriptionUpdated,
			SubscriptionID: "sub_1", CustomerID: "ctm_1",
			Status: billing.StatusActive, PriceID: "pri_premium_monthly", PeriodEnd: &end,
		})

		require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, fakeSignature))

		sub, err := f.store.GetSubscription(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, sub.Status)
		assert.Equal(t, "sub_1", sub.SubscriptionID)
		assert.Equal(t, billing.TierPremium, sub.Tier)
		require.NotNil(t, sub.PeriodEnd)
		assert.True(t, sub.PeriodEnd.Equal(end))
	})

	t.Run("unknown customer mapping is an error", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		end := time.Now().Add(24 * time.Hour).UTC()
		payload := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventSubscriptionUpdated,
			SubscriptionID: "sub_1", CustomerID: "ctm_ghost",
			Status: billing.StatusActive, PriceID: "pri_premium_monthly", PeriodEnd: &end,
		})

		err := f.svc.HandleWebhook(context.Background(), payload, fakeSignature)
		assert.ErrorIs(t, err, billing.ErrUnknownCustomer)
	})

	t.Run("missing customer id is a payload error", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		payload := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventSubscriptionUpdated,
			SubscriptionID: "sub_1", Status: billing.StatusActive,
		})

		err := f.svc.HandleWebhook(context.Background(), payload, fakeSignature)
		assert.ErrorIs(t, err, billing.ErrInvalidPayload)
	})

	t.Run("missing period end is acknowledged without a write", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")
		payload := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventSubscriptionUpdated,
			SubscriptionID: "sub_1", CustomerID: "ctm_1",
			Status: billing.StatusActive, PriceID: "pri_premium_monthly",
		})

		require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, fakeSignature))

		_, err := f.store.GetSubscription(context.Background(), f.userID)
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})

	t.Run("failed delivery is not poisoned for redelivery", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")

		flaky := &flakySubscriptions{SubscriptionStore: f.store.Subscriptions(), failures: 1}
		catalog, err := billing.NewCatalog([]billing.Plan{
			{Name: "Premium Monthly", Tier: billing.TierPremium, PriceID: "pri_premium_monthly", Default: true},
		})
		require.NoError(t, err)
		svc := billing.NewService(f.provider, f.store, flaky, f.store, catalog,
			&fakeAccounts{emails: map[uuid.UUID]string{f.userID: "payer@example.com"}},
			billing.URLs{Pricing: "https://app.example.com/pricing"})

		end := time.Now().Add(24 * time.Hour).UTC()
		payload := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventSubscriptionUpdated,
			SubscriptionID: "sub_1", CustomerID: "ctm_1",
			Status: billing.StatusActive, PriceID: "pri_premium_monthly", PeriodEnd: &end,
		})

		// First delivery fails on the store; the provider sees a 500.
		require.Error(t, svc.HandleWebhook(context.Background(), payload, fakeSignature))

		// The provider redelivers the identical event; it must be applied,
		// not discarded as a replay.
		require.NoError(t, svc.HandleWebhook(context.Background(), payload, fakeSignature))

		sub, err := f.store.GetSubscription(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, sub.Status)
	})

	t.Run("replayed event id is discarded", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")
		end := time.Now().Add(24 * time.Hour).UTC()
		active := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventSubscriptionUpdated,
			SubscriptionID: "sub_1", CustomerID: "ctm_1",
			Status: billing.StatusActive, PriceID: "pri_premium_monthly", PeriodEnd: &end,
		})
		require.NoError(t, f.svc.HandleWebhook(context.Background(), active, fakeSignature))

		// Same event id again, now claiming past_due. The replay must not win.
		replay := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventSubscriptionUpdated,
			SubscriptionID: "sub_1", CustomerID: "ctm_1",
			Status: billing.StatusPastDue, PriceID: "pri_premium_monthly", PeriodEnd: &end,
		})
		require.NoError(t, f.svc.HandleWebhook(context.Background(), replay, fakeSignature))

		sub, err := f.store.GetSubscription(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, sub.Status)
	})

	t.Run("cancellation keeps existing subscription details", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")
		end := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
		create := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventSubscriptionCreated,
			SubscriptionID: "sub_1", CustomerID: "ctm_1",
			Status: billing.StatusActive, PriceID: "pri_premium_monthly", PeriodEnd: &end,
		})
		require.NoError(t, f.svc.HandleWebhook(context.Background(), create, fakeSignature))

		cancel := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_2", Type: billing.EventSubscriptionCanceled,
			SubscriptionID: "sub_1", CustomerID: "ctm_1",
		})
		require.NoError(t, f.svc.HandleWebhook(context.Background(), cancel, fakeSignature))

		sub, err := f.store.GetSubscription(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, sub.Status)
		assert.Equal(t, "pri_premium_monthly", sub.PriceID)
	})

	t.Run("customer deletion cancels then removes the mapping", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.saveCustomer(t, "ctm_1")
		end := time.Now().Add(24 * time.Hour).UTC()
		create := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventSubscriptionCreated,
			SubscriptionID: "sub_1", CustomerID: "ctm_1",
			Status: billing.StatusActive, PriceID: "pri_premium_monthly", PeriodEnd: &end,
		})
		require.NoError(t, f.svc.HandleWebhook(context.Background(), create, fakeSignature))

		deleted := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_2", Type: billing.EventCustomerDeleted, CustomerID: "ctm_1",
		})
		require.NoError(t, f.svc.HandleWebhook(context.Background(), deleted, fakeSignature))

		sub, err := f.store.GetSubscription(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, sub.Status)

		_, err = f.store.Get(context.Background(), f.userID)
		assert.ErrorIs(t, err, billing.ErrCustomerNotFound)
	})

	t.Run("unhandled event types are acknowledged without action", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		payload := webhookPayload(t, billing.WebhookEvent{
			ID: "evt_1", Type: billing.EventIgnored, ProviderEvent: "address.updated",
		})
		require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, fakeSignature))
	})
}
