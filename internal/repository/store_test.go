package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/itpomosh-bot/internal/database"
	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/state"
	"github.com/Proton-105/itpomosh-bot/pkg/config"
)

type recordStore interface {
	state.Storage
	CreateOrder(ctx context.Context, order domain.NewOrder) (int64, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	GetUserOrders(ctx context.Context, userID int64, limit int) ([]domain.Order, error)
	ListUserOrders(ctx context.Context, userID int64, filter domain.OrderFilter) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, orderID int64, task string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	RateOrder(ctx context.Context, orderID int64, rating int) (*domain.Order, error)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSQLiteStore(t *testing.T, clock *testClock) *SQLStore {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, nil).Up(ctx)
	require.NoError(t, err)

	store := NewSQLStore(db, nil)
	store.now = clock.Now
	return store
}

func newMemoryStore(_ *testing.T, clock *testClock) *MemoryStore {
	store := NewMemoryStore()
	store.SetClock(clock.Now)
	return store
}

func forEachStore(t *testing.T, fn func(t *testing.T, store recordStore, clock *testClock)) {
	t.Run("sqlite", func(t *testing.T) {
		clock := newTestClock()
		fn(t, newSQLiteStore(t, clock), clock)
	})
	t.Run("memory", func(t *testing.T) {
		clock := newTestClock()
		fn(t, newMemoryStore(t, clock), clock)
	})
}

func sampleOrder(userID int64, task string) domain.NewOrder {
	return domain.NewOrder{
		UserID: userID,
		Name:   "Иван",
		Phone:  "+7 (999) 123-45-67",
		Task:   task,
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, store recordStore, _ *testClock) {
		ctx := context.Background()

		id, err := store.CreateOrder(ctx, domain.NewOrder{
			UserID:       42,
			Name:         "Иван",
			Phone:        "+7 (999) 123-45-67",
			Task:         "сломан принтер",
			BusinessType: "кафе",
		})
		require.NoError(t, err)
		require.Positive(t, id)

		got, err := store.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, int64(42), got.UserID)
		assert.Equal(t, "Иван", got.Name)
		assert.Equal(t, "+7 (999) 123-45-67", got.Phone)
		assert.Equal(t, "сломан принтер", got.Task)
		assert.Equal(t, "кафе", got.BusinessType)
		assert.Equal(t, domain.OrderStatusNew, got.Status)
		assert.Equal(t, domain.SourceTelegram, got.Source)
		assert.False(t, got.CreatedAt.IsZero())
		assert.Nil(t, got.UpdatedAt)

		personal, err := store.CreateOrder(ctx, sampleOrder(42, "настроить роутер"))
		require.NoError(t, err)
		assert.Greater(t, personal, id)

		got, err = store.GetOrder(ctx, personal)
		require.NoError(t, err)
		assert.Empty(t, got.BusinessType)
		assert.False(t, got.IsBusiness())

		_, err = store.GetOrder(ctx, 9999)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestGetUserOrdersNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, store recordStore, _ *testClock) {
		ctx := context.Background()

		var ids []int64
		for _, task := range []string{"первая заявка", "вторая заявка", "третья заявка"} {
			id, err := store.CreateOrder(ctx, sampleOrder(1, task))
			require.NoError(t, err)
			ids = append(ids, id)
		}
		_, err := store.CreateOrder(ctx, sampleOrder(2, "чужая заявка"))
		require.NoError(t, err)

		_, err = store.DeleteOrder(ctx, ids[1])
		require.NoError(t, err)

		orders, err := store.GetUserOrders(ctx, 1, 5)
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, ids[2], orders[0].ID)
		assert.Equal(t, ids[0], orders[1].ID)

		limited, err := store.GetUserOrders(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, ids[2], limited[0].ID)
	})
}

func TestListUserOrdersFilters(t *testing.T) {
	forEachStore(t, func(t *testing.T, store recordStore, _ *testClock) {
		ctx := context.Background()

		newID, _ := store.CreateOrder(ctx, sampleOrder(7, "новая заявка"))
		cancelledID, _ := store.CreateOrder(ctx, sampleOrder(7, "отменённая заявка"))
		deletedID, _ := store.CreateOrder(ctx, sampleOrder(7, "удалённая заявка"))

		_, err := store.CancelOrder(ctx, cancelledID)
		require.NoError(t, err)
		_, err = store.DeleteOrder(ctx, deletedID)
		require.NoError(t, err)

		tests := []struct {
			name   string
			filter domain.OrderFilter
			want   []int64
		}{
			{name: "all visible", filter: domain.OrderFilter{}, want: []int64{cancelledID, newID}},
			{name: "active", filter: domain.OrderFilter{Statuses: domain.ActiveStatuses}, want: []int64{newID}},
			{name: "cancelled", filter: domain.OrderFilter{Statuses: []domain.OrderStatus{domain.OrderStatusCancelled}}, want: []int64{cancelledID}},
			{name: "completed", filter: domain.OrderFilter{Statuses: []domain.OrderStatus{domain.OrderStatusCompleted}}, want: nil},
			{name: "history", filter: domain.OrderFilter{IncludeDeleted: true}, want: []int64{deletedID, cancelledID, newID}},
			{name: "history limited", filter: domain.OrderFilter{IncludeDeleted: true, Limit: 2}, want: []int64{deletedID, cancelledID}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				orders, err := store.ListUserOrders(ctx, 7, tt.filter)
				require.NoError(t, err)

				var got []int64
				for _, o := range orders {
					got = append(got, o.ID)
				}
				assert.Equal(t, tt.want, got)
			})
		}
	})
}

func TestOrderMutations(t *testing.T) {
	forEachStore(t, func(t *testing.T, store recordStore, _ *testClock) {
		ctx := context.Background()

		id, err := store.CreateOrder(ctx, sampleOrder(3, "сломан принтер"))
		require.NoError(t, err)

		updated, err := store.UpdateOrder(ctx, id, "сломан принтер и сканер")
		require.NoError(t, err)
		assert.Equal(t, "сломан принтер и сканер", updated.Task)
		assert.Equal(t, domain.OrderStatusUpdated, updated.Status)
		require.NotNil(t, updated.UpdatedAt)

		rated, err := store.RateOrder(ctx, id, 5)
		require.NoError(t, err)
		assert.Equal(t, 5, rated.Rating)

		_, err = store.RateOrder(ctx, id, 6)
		assert.Error(t, err)

		before, err := store.DeleteOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusUpdated, before.Status)
		assert.Equal(t, "сломан принтер и сканер", before.Task)

		_, err = store.GetOrder(ctx, id)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)

		_, err = store.UpdateOrder(ctx, id, "ещё одна правка")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		_, err = store.DeleteOrder(ctx, id)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		_, err = store.CancelOrder(ctx, 404)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestCancelOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, store recordStore, _ *testClock) {
		ctx := context.Background()

		id, err := store.CreateOrder(ctx, sampleOrder(3, "сломан принтер"))
		require.NoError(t, err)

		cancelled, err := store.CancelOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

		got, err := store.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	})
}

func TestConcurrentCreatesYieldDistinctIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, store recordStore, _ *testClock) {
		ctx := context.Background()
		const n = 40

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = make(map[int64]struct{}, n)
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, err := store.CreateOrder(ctx, sampleOrder(int64(i%3), "параллельная заявка"))
				assert.NoError(t, err)

				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		assert.Len(t, ids, n)
	})
}

func TestUserStateRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store recordStore, _ *testClock) {
		ctx := context.Background()

		_, err := store.GetState(ctx, 5)
		assert.ErrorIs(t, err, state.ErrStateNotFound)

		us := state.NewUserState(5, "Мария")
		us.CurrentState = state.StateOrderConfirmation
		us.Context.Locale = "en"
		us.Flow = state.Flow{
			Kind:         state.ServiceBusiness,
			BusinessType: "салон",
			Task:         "настроить кассу",
			Phone:        "+7 (999) 123-45-67",
		}
		require.NoError(t, store.SetState(ctx, 5, us))

		got, err := store.GetState(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.UserID)
		assert.Equal(t, state.StateOrderConfirmation, got.CurrentState)
		assert.Equal(t, us.Context, got.Context)
		assert.Equal(t, us.Flow, got.Flow)
		assert.False(t, got.UpdatedAt.IsZero())

		us.CurrentState = state.StateFinished
		us.Flow = state.Flow{}
		require.NoError(t, store.SetState(ctx, 5, us))

		got, err = store.GetState(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, state.StateFinished, got.CurrentState)
		assert.True(t, got.Flow.IsZero())
		assert.Equal(t, "Мария", got.Context.Name)

		require.NoError(t, store.ClearState(ctx, 5))
		_, err = store.GetState(ctx, 5)
		assert.ErrorIs(t, err, state.ErrStateNotFound)
	})
}

func TestCleanupAndCountStates(t *testing.T) {
	forEachStore(t, func(t *testing.T, store recordStore, clock *testClock) {
		ctx := context.Background()

		stale := state.NewUserState(1, "old")
		stale.CurrentState = state.StateContactInput
		require.NoError(t, store.SetState(ctx, 1, stale))

		clock.Advance(48 * time.Hour)

		for _, id := range []int64{2, 3} {
			fresh := state.NewUserState(id, "new")
			fresh.CurrentState = state.StateMainMenu
			require.NoError(t, store.SetState(ctx, id, fresh))
		}

		orderID, err := store.CreateOrder(ctx, sampleOrder(1, "заявка старого пользователя"))
		require.NoError(t, err)

		counts, err := store.CountStates(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[state.State]int{state.StateContactInput: 1, state.StateMainMenu: 2}, counts)

		removed, err := store.CleanupOldStates(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		_, err = store.GetState(ctx, 1)
		assert.ErrorIs(t, err, state.ErrStateNotFound)
		_, err = store.GetOrder(ctx, orderID)
		assert.NoError(t, err)

		counts, err = store.CountStates(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[state.State]int{state.StateMainMenu: 2}, counts)
	})
}
