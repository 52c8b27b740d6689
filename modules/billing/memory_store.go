package billing

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of all three billing stores,
// used in tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	customers     map[uuid.UUID]Customer
	byCustomerID  map[string]uuid.UUID
	subscriptions map[uuid.UUID]Subscription
	events        map[string]struct{}
}

// NewMemoryStore creates an empty in-memory billing store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:     make(map[uuid.UUID]Customer),
		byCustomerID:  make(map[string]uuid.UUID),
		subscriptions: make(map[uuid.UUID]Subscription),
		events:        make(map[string]struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[userID]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return &customer, nil
}

func (s *MemoryStore) GetByCustomerID(_ context.Context, customerID string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byCustomerID[customerID]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	customer := s.customers[userID]
	return &customer, nil
}

func (s *MemoryStore) Save(_ context.Context, customer *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.customers[customer.UserID]; ok {
		delete(s.byCustomerID, old.CustomerID)
	}
	s.customers[customer.UserID] = *customer
	s.byCustomerID[customer.CustomerID] = customer.UserID
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[userID]
	if !ok {
		return ErrCustomerNotFound
	}
	delete(s.byCustomerID, customer.CustomerID)
	delete(s.customers, userID)
	return nil
}

func (s *MemoryStore) GetSubscription(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) UpsertSubscription(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptions[sub.UserID] = *sub
	return nil
}

func (s *MemoryStore) Seen(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, seen := s.events[eventID]
	return seen, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.events[eventID]; seen {
		return true, nil
	}
	s.events[eventID] = struct{}{}
	return false, nil
}

// Subscriptions adapts the store to the SubscriptionStore interface, which
// uses shorter method names than the combined in-memory type can carry.
func (s *MemoryStore) Subscriptions() SubscriptionStore {
	return memorySubscriptions{s}
}

type memorySubscriptions struct{ store *MemoryStore }

func (m memorySubscriptions) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return m.store.GetSubscription(ctx, userID)
}

func (m memorySubscriptions) Upsert(ctx context.Context, sub *Subscription) error {
	return m.store.UpsertSubscription(ctx, sub)
}
