package billing

import (
	"context"

	"github.com/google/uuid"
)

// CustomerStore persists the user to billing-customer mapping.
// Lookups that miss return ErrCustomerNotFound.
type CustomerStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*Customer, error)
	GetByCustomerID(ctx context.Context, customerID string) (*Customer, error)
	Save(ctx context.Context, customer *Customer) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// SubscriptionStore persists the ground-truth subscription row, one per
// user. Upsert is last-write-wins on the user ID.
type SubscriptionStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
}

// EventStore records processed webhook event IDs for replay detection.
// An event is marked only after its effects are applied, so a delivery that
// fails mid-processing leaves the ID unclaimed and the provider's redelivery
// can run the event again.
type EventStore interface {
	// Seen reports whether the event ID was already processed.
	Seen(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed records the event ID and reports whether it was seen
	// before. A true return means a concurrent delivery won the race; the
	// caller's work is already idempotent, so both outcomes are success.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}
