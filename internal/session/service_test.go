package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/itpomosh-bot/internal/dialog"
	"github.com/Proton-105/itpomosh-bot/internal/domain"
	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/internal/i18n"
	"github.com/Proton-105/itpomosh-bot/internal/repository"
	"github.com/Proton-105/itpomosh-bot/internal/state"
)

type recordingNotifier struct {
	mu       sync.Mutex
	events   []domain.OrderEvent
	failures []string
}

func (n *recordingNotifier) OrderEvent(_ context.Context, event domain.OrderEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Failure(_ context.Context, errType string, _ map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, errType)
}

type failingStates struct {
	*repository.MemoryStore
	setErr error
}

func (f *failingStates) SetState(ctx context.Context, userID int64, us *state.UserState) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryStore.SetState(ctx, userID, us)
}

type fixture struct {
	store    *repository.MemoryStore
	states   *failingStates
	locker   *state.KeyedMutex
	notifier *recordingNotifier
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	catalog := i18n.MustDefault()

	f := &fixture{
		store:    store,
		states:   &failingStates{MemoryStore: store},
		locker:   state.NewKeyedMutex(),
		notifier: &recordingNotifier{},
	}
	engine := dialog.NewEngine(store, catalog, dialog.Config{}, log)
	f.svc = NewService(engine, f.states, f.locker, f.notifier, errors.NewHandler(log, false), catalog,
		Options{LockTimeout: 50 * time.Millisecond, DefaultLocale: "ru"}, log)
	return f
}

func (f *fixture) send(t *testing.T, text string) Outbound {
	t.Helper()

	out, err := f.svc.Handle(context.Background(), Inbound{UserID: 1, Name: "Иван", Text: text})
	require.NoError(t, err)
	return out
}

func TestHandleCreatesStateForNewUser(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, "/start")
	assert.Equal(t, state.StateMainMenu, out.State)
	assert.Contains(t, out.Text, "Здравствуйте, Иван!")
	assert.True(t, out.Hints.Has(dialog.HintMainMenu))

	us, err := f.store.GetState(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, state.StateMainMenu, us.CurrentState)
	assert.Equal(t, "Иван", us.Context.Name)
	assert.Equal(t, "ru", us.Context.Locale)
}

func TestHandleRefreshesDisplayName(t *testing.T) {
	f := newFixture(t)
	f.send(t, "/start")

	_, err := f.svc.Handle(context.Background(), Inbound{UserID: 1, Name: "Иван Петров", Text: "Помощь"})
	require.NoError(t, err)

	us, err := f.store.GetState(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Иван Петров", us.Context.Name)
	assert.Equal(t, state.StateHelp, us.CurrentState)
}

func TestHandleFullOrderFlow(t *testing.T) {
	f := newFixture(t)

	steps := []struct {
		text string
		want state.State
	}{
		{text: "/start", want: state.StateMainMenu},
		{text: "Создать заявку", want: state.StateChoosingServiceType},
		{text: "Услуги Населению", want: state.StatePersonalTaskInput},
		{text: "сломан принтер", want: state.StateContactInput},
		{text: "89991234567", want: state.StateOrderConfirmation},
		{text: "Подтвердить", want: state.StateFinished},
	}
	for _, step := range steps {
		out := f.send(t, step.text)
		require.Equal(t, step.want, out.State, step.text)
	}

	require.Len(t, f.notifier.events, 1)
	event := f.notifier.events[0]
	assert.Equal(t, domain.OrderCreated, event.Kind)
	assert.Equal(t, "+7 (999) 123-45-67", event.Order.Phone)

	orders, err := f.store.GetUserOrders(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "сломан принтер", orders[0].Task)

	us, err := f.store.GetState(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, us.Flow.IsZero())
}

func TestHandleWhileLocked(t *testing.T) {
	f := newFixture(t)
	f.send(t, "/start")

	unlock, err := f.locker.Lock(context.Background(), 1)
	require.NoError(t, err)

	out, err := f.svc.Handle(context.Background(), Inbound{UserID: 1, Text: "Создать заявку"})
	unlock()

	require.ErrorIs(t, err, state.ErrStateLocked)
	assert.Contains(t, out.Text, "Подождите")
	assert.Empty(t, f.notifier.failures)

	us, err := f.store.GetState(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, state.StateMainMenu, us.CurrentState)
}

func TestHandleSaveFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.send(t, "/start")

	f.states.setErr = fmt.Errorf("disk full")
	out, err := f.svc.Handle(context.Background(), Inbound{UserID: 1, Text: "Создать заявку"})

	require.Error(t, err)
	assert.Contains(t, out.Text, "Произошла ошибка")
	assert.Equal(t, []string{"E200"}, f.notifier.failures)

	us, getErr := f.store.GetState(context.Background(), 1)
	require.NoError(t, getErr)
	assert.Equal(t, state.StateMainMenu, us.CurrentState)
}

func TestHandleSerializesTurnsPerUser(t *testing.T) {
	f := newFixture(t)
	f.svc.opts.LockTimeout = 5 * time.Second
	f.send(t, "/start")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Handle(context.Background(), Inbound{UserID: 1, Text: "Помощь"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Zero(t, f.locker.Len())
	us, err := f.store.GetState(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, state.StateHelp, us.CurrentState)
}

func TestReplyUsesUserLocale(t *testing.T) {
	f := newFixture(t)
	f.send(t, "/start")
	f.send(t, "Сменить язык")
	f.send(t, "English")

	out := f.svc.Reply(context.Background(), 1, errors.ReplyRateLimited)
	assert.Equal(t, "Too many messages. Please wait a little.", out.Text)

	out = f.svc.Reply(context.Background(), 2, errors.ReplyRateLimited)
	assert.Contains(t, out.Text, "Слишком много сообщений")
}
