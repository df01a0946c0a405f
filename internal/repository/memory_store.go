package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/state"
)

// MemoryStore is a process-local record store with the same semantics as SQLStore.
// It backs tests and single-process development runs.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	orders map[int64]domain.Order
	states map[int64]state.UserState
	now    func() time.Time
}

var _ state.Storage = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[int64]domain.Order),
		states: make(map[int64]state.UserState),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the store's time source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) CreateOrder(_ context.Context, order domain.NewOrder) (int64, error) {
	source := order.Source
	if source == "" {
		source = domain.SourceTelegram
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.orders[m.nextID] = domain.Order{
		ID:           m.nextID,
		UserID:       order.UserID,
		Name:         order.Name,
		Phone:        order.Phone,
		BusinessType: order.BusinessType,
		Task:         order.Task,
		Status:       domain.OrderStatusNew,
		Source:       source,
		CreatedAt:    m.now(),
	}
	return m.nextID, nil
}

func (m *MemoryStore) GetOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[orderID]
	if !ok || order.Status == domain.OrderStatusDeleted {
		return nil, domain.ErrOrderNotFound
	}
	return &order, nil
}

func (m *MemoryStore) GetUserOrders(ctx context.Context, userID int64, limit int) ([]domain.Order, error) {
	return m.ListUserOrders(ctx, userID, domain.OrderFilter{Limit: limit})
}

func (m *MemoryStore) ListUserOrders(_ context.Context, userID int64, filter domain.OrderFilter) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Order
	for _, order := range m.orders {
		if order.UserID == userID && filter.Matches(order) {
			out = append(out, order)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateOrder(_ context.Context, orderID int64, task string) (*domain.Order, error) {
	_, after, err := m.mutate(orderID, func(o *domain.Order) {
		o.Task = task
		o.Status = domain.OrderStatusUpdated
	})
	return after, err
}

func (m *MemoryStore) CancelOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	_, after, err := m.mutate(orderID, func(o *domain.Order) {
		o.Status = domain.OrderStatusCancelled
	})
	return after, err
}

func (m *MemoryStore) DeleteOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	before, _, err := m.mutate(orderID, func(o *domain.Order) {
		o.Status = domain.OrderStatusDeleted
	})
	return before, err
}

func (m *MemoryStore) RateOrder(_ context.Context, orderID int64, rating int) (*domain.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating %d out of range 1-5", rating)
	}

	_, after, err := m.mutate(orderID, func(o *domain.Order) {
		o.Rating = rating
	})
	return after, err
}

func (m *MemoryStore) mutate(orderID int64, fn func(*domain.Order)) (*domain.Order, *domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before, ok := m.orders[orderID]
	if !ok || before.Status == domain.OrderStatusDeleted {
		return nil, nil, domain.ErrOrderNotFound
	}

	after := before
	fn(&after)
	now := m.now()
	after.UpdatedAt = &now
	m.orders[orderID] = after

	return &before, &after, nil
}

func (m *MemoryStore) GetState(_ context.Context, userID int64) (*state.UserState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	us, ok := m.states[userID]
	if !ok {
		return nil, state.ErrStateNotFound
	}
	return &us, nil
}

func (m *MemoryStore) SetState(_ context.Context, userID int64, us *state.UserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *us
	stored.UserID = userID
	stored.UpdatedAt = m.now()
	m.states[userID] = stored
	return nil
}

func (m *MemoryStore) ClearState(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, userID)
	return nil
}

func (m *MemoryStore) CleanupOldStates(_ context.Context, maxAge time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	var removed int64
	for id, us := range m.states {
		if us.UpdatedAt.Before(cutoff) {
			delete(m.states, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) CountStates(_ context.Context) (map[state.State]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[state.State]int)
	for _, us := range m.states {
		counts[us.CurrentState]++
	}
	return counts, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
