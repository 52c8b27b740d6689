package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/taskgate/pkg/pg"
)

// PGCustomerStore persists billing customer mappings in PostgreSQL.
type PGCustomerStore struct {
	pool *pgxpool.Pool
}

// NewPGCustomerStore creates a PostgreSQL-backed CustomerStore.
func NewPGCustomerStore(pool *pgxpool.Pool) *PGCustomerStore {
	return &PGCustomerStore{pool: pool}
}

func (s *PGCustomerStore) Get(ctx context.Context, userID uuid.UUID) (*Customer, error) {
	return s.scan(ctx,
		`SELECT user_id, customer_id, email, created_at FROM customers WHERE user_id = $1`, userID)
}

func (s *PGCustomerStore) GetByCustomerID(ctx context.Context, customerID string) (*Customer, error) {
	return s.scan(ctx,
		`SELECT user_id, customer_id, email, created_at FROM customers WHERE customer_id = $1`, customerID)
}

func (s *PGCustomerStore) scan(ctx context.Context, query string, arg any) (*Customer, error) {
	var customer Customer
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&customer.UserID, &customer.CustomerID, &customer.Email, &customer.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to query billing customer: %w", err)
	}
	return &customer, nil
}

func (s *PGCustomerStore) Save(ctx context.Context, customer *Customer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO customers (user_id, customer_id, email, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET customer_id = EXCLUDED.customer_id, email = EXCLUDED.email`,
		customer.UserID, customer.CustomerID, customer.Email, customer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save billing customer: %w", err)
	}
	return nil
}

func (s *PGCustomerStore) Delete(ctx context.Context, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete billing customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// PGSubscriptionStore persists subscription status rows in PostgreSQL.
type PGSubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewPGSubscriptionStore creates a PostgreSQL-backed SubscriptionStore.
func NewPGSubscriptionStore(pool *pgxpool.Pool) *PGSubscriptionStore {
	return &PGSubscriptionStore{pool: pool}
}

func (s *PGSubscriptionStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	var sub Subscription
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, subscription_id, status, price_id, tier, current_period_end, updated_at
		 FROM subscriptions WHERE user_id = $1`, userID).
		Scan(&sub.UserID, &sub.SubscriptionID, &sub.Status, &sub.PriceID, &sub.Tier, &sub.PeriodEnd, &sub.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	return &sub, nil
}

func (s *PGSubscriptionStore) Upsert(ctx context.Context, sub *Subscription) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions (user_id, subscription_id, status, price_id, tier, current_period_end, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
			subscription_id = EXCLUDED.subscription_id,
			status = EXCLUDED.status,
			price_id = EXCLUDED.price_id,
			tier = EXCLUDED.tier,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = EXCLUDED.updated_at`,
		sub.UserID, sub.SubscriptionID, sub.Status, sub.PriceID, sub.Tier, sub.PeriodEnd, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// PGEventStore records processed webhook event IDs in PostgreSQL. The
// primary key on the event ID makes replay detection a single insert.
type PGEventStore struct {
	pool *pgxpool.Pool
}

// NewPGEventStore creates a PostgreSQL-backed EventStore.
func NewPGEventStore(pool *pgxpool.Pool) *PGEventStore {
	return &PGEventStore{pool: pool}
}

func (s *PGEventStore) Seen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM billing_events WHERE event_id = $1)`, eventID).
		Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("failed to check billing event: %w", err)
	}
	return seen, nil
}

func (s *PGEventStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO billing_events (event_id, processed_at) VALUES ($1, now())`, eventID)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to record billing event: %w", err)
	}
	return false, nil
}
