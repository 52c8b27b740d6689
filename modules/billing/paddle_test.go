package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePaddleEvent(t *testing.T) {
	t.Parallel()

	t.Run("subscription updated", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{
			"event_id": "evt_sub_1",
			"event_type": "subscription.updated",
			"occurred_at": "2026-03-01T12:00:00Z",
			"data": {
				"id": "sub_1",
				"customer_id": "ctm_1",
				"status": "past_due",
				"items": [{"price": {"id": "pri_premium_monthly"}}],
				"current_billing_period": {"ends_at": "2026-04-01T12:00:00Z"}
			}
		}`)

		event, err := normalizePaddleEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, "evt_sub_1", event.ID)
		assert.Equal(t, EventSubscriptionUpdated, event.Type)
		assert.Equal(t, "subscription.updated", event.ProviderEvent)
		assert.Equal(t, "sub_1", event.SubscriptionID)
		assert.Equal(t, "ctm_1", event.CustomerID)
		assert.Equal(t, StatusPastDue, event.Status)
		assert.Equal(t, "pri_premium_monthly", event.PriceID)
		require.NotNil(t, event.PeriodEnd)
		assert.Equal(t, time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC), *event.PeriodEnd)
	})

	t.Run("transaction completed marks the subscription paid", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{
			"event_id": "evt_txn_1",
			"event_type": "transaction.completed",
			"occurred_at": "2026-03-01T12:00:00Z",
			"data": {
				"id": "txn_1",
				"subscription_id": "sub_1",
				"customer_id": "ctm_1",
				"status": "completed",
				"items": [{"price_id": "pri_premium_monthly", "quantity": 1}],
				"billing_period": {"starts_at": "2026-03-01T12:00:00Z", "ends_at": "2026-04-01T12:00:00Z"}
			}
		}`)

		event, err := normalizePaddleEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, EventSubscriptionUpdated, event.Type)
		assert.Equal(t, "sub_1", event.SubscriptionID)
		assert.Equal(t, "ctm_1", event.CustomerID)
		assert.Equal(t, StatusActive, event.Status)
		assert.Equal(t, "pri_premium_monthly", event.PriceID)
		require.NotNil(t, event.PeriodEnd)
		assert.Equal(t, time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC), *event.PeriodEnd)
	})

	t.Run("transaction without billing period has no period end", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{
			"event_id": "evt_txn_2",
			"event_type": "transaction.payment_succeeded",
			"data": {
				"subscription_id": "sub_1",
				"customer_id": "ctm_1",
				"items": [{"price_id": "pri_premium_monthly"}]
			}
		}`)

		event, err := normalizePaddleEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, EventSubscriptionUpdated, event.Type)
		assert.Nil(t, event.PeriodEnd)
	})

	t.Run("customer deleted", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{
			"event_id": "evt_del_1",
			"event_type": "customer.deleted",
			"data": {"id": "ctm_1"}
		}`)

		event, err := normalizePaddleEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, EventCustomerDeleted, event.Type)
		assert.Equal(t, "ctm_1", event.CustomerID)
	})

	t.Run("unhandled event type is flagged ignored", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{
			"event_id": "evt_adj_1",
			"event_type": "adjustment.created",
			"data": {"id": "adj_1"}
		}`)

		event, err := normalizePaddleEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, EventIgnored, event.Type)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		_, err := normalizePaddleEvent([]byte(`{not json`))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("missing event id", func(t *testing.T) {
		t.Parallel()

		_, err := normalizePaddleEvent([]byte(`{"event_type": "subscription.updated", "data": {}}`))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestMapPaddleEventType(t *testing.T) {
	t.Parallel()

	cases := map[string]EventType{
		"subscription.created":          EventSubscriptionCreated,
		"subscription.activated":        EventSubscriptionCreated,
		"subscription.updated":          EventSubscriptionUpdated,
		"subscription.resumed":          EventSubscriptionUpdated,
		"subscription.past_due":         EventSubscriptionUpdated,
		"subscription.paused":           EventSubscriptionUpdated,
		"subscription.trialing":         EventSubscriptionUpdated,
		"subscription.canceled":         EventSubscriptionCanceled,
		"transaction.completed":         EventSubscriptionUpdated,
		"transaction.payment_succeeded": EventSubscriptionUpdated,
		"customer.deleted":              EventCustomerDeleted,
		"subscription.imported":         EventIgnored,
		"address.created":               EventIgnored,
	}
	for paddleEvent, want := range cases {
		assert.Equal(t, want, mapPaddleEventType(paddleEvent), paddleEvent)
	}
}
