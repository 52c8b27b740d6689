package billing

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a subscription as reported by the
// billing provider.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusPaused   Status = "paused"
	StatusExpired  Status = "expired"
)

// Subscribed reports whether the status grants access to paid features.
// Only active and trialing subscriptions count; past_due keeps the record
// but drops access until the provider reports recovery.
func (s Status) Subscribed() bool {
	return s == StatusActive || s == StatusTrialing
}

// Tier is the access level a subscription grants.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// StatusInfo is the subscription view served to clients. A user with no
// billing relationship gets {Active: false, Tier: basic}, never an error.
type StatusInfo struct {
	Active    bool       `json:"active"`
	Tier      Tier       `json:"tier"`
	PeriodEnd *time.Time `json:"end,omitempty"`
}

// FreeStatus is what every account has before (and after) paying.
func FreeStatus() StatusInfo {
	return StatusInfo{Active: false, Tier: TierBasic}
}

// Customer maps an application user to the billing provider's customer
// record. One row per user, created lazily on first checkout.
type Customer struct {
	UserID     uuid.UUID
	CustomerID string
	Email      string
	CreatedAt  time.Time
}

// Subscription is the persisted ground-truth status row, one per user,
// overwritten last-write-wins by the webhook handler.
type Subscription struct {
	UserID         uuid.UUID
	SubscriptionID string
	Status         Status
	PriceID        string
	Tier           Tier
	PeriodEnd      *time.Time
	UpdatedAt      time.Time
}
