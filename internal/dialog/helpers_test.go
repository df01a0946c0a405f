package dialog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/i18n"
	"github.com/Proton-105/itpomosh-bot/internal/repository"
	"github.com/Proton-105/itpomosh-bot/internal/state"
)

const testUserID int64 = 100

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, orders OrderStore) *Engine {
	t.Helper()

	if orders == nil {
		orders = repository.NewMemoryStore()
	}

	return NewEngine(orders, i18n.MustDefault(), Config{
		MaxPhoneAttempts: 3,
		Now:              func() time.Time { return testNow },
	}, testLogger())
}

func userIn(s state.State) state.UserState {
	us := state.NewUserState(testUserID, "Иван")
	us.CurrentState = s
	us.Context.Greeted = true
	return *us
}

func advance(t *testing.T, e *Engine, us state.UserState, text string) Result {
	t.Helper()

	res, err := e.Advance(context.Background(), us, text)
	require.NoError(t, err)
	return res
}

func seedOrder(t *testing.T, store *repository.MemoryStore, userID int64, task string) int64 {
	t.Helper()

	id, err := store.CreateOrder(context.Background(), domain.NewOrder{
		UserID: userID,
		Name:   "Иван",
		Phone:  "+7 (999) 123-45-67",
		Task:   task,
	})
	require.NoError(t, err)
	return id
}

func ru() i18n.Translator {
	return i18n.MustDefault().Translator("ru")
}
