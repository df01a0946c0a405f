package dialog

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/repository"
	"github.com/Proton-105/itpomosh-bot/internal/state"
)

func orderLabel(id int64) string {
	return "Заявка №" + strconv.FormatInt(id, 10)
}

func TestParseOrderRef(t *testing.T) {
	tests := []struct {
		text string
		want int64
		ok   bool
	}{
		{text: "Заявка №12", want: 12, ok: true},
		{text: "🆕 Заявка №7", want: 7, ok: true},
		{text: "заявки 3", want: 3, ok: true},
		{text: "Request №44", want: 44, ok: true},
		{text: "order #5", want: 5, ok: true},
		{text: "Заявка №0"},
		{text: "Заявка №abc"},
		{text: "12"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := parseOrderRef(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRating(t *testing.T) {
	for text, want := range map[string]int{"1": 1, "5": 5, "⭐⭐⭐ 3": 3, " 4 ": 4} {
		got, ok := parseRating(text)
		assert.True(t, ok, text)
		assert.Equal(t, want, got, text)
	}

	for _, text := range []string{"0", "6", "-1", "пять", ""} {
		_, ok := parseRating(text)
		assert.False(t, ok, text)
	}
}

func TestViewingOrdersShowsNewestFirst(t *testing.T) {
	store := repository.NewMemoryStore()
	e := newTestEngine(t, store)

	first := seedOrder(t, store, testUserID, "настроить принтер")
	second := seedOrder(t, store, testUserID, "починить ноутбук")
	seedOrder(t, store, 999, "чужая заявка")

	res := advance(t, e, userIn(state.StateMainMenu), "Мои заявки")
	require.Equal(t, state.StateViewingOrders, res.Reply.State)
	require.Len(t, res.Reply.Hints.Orders, 2)
	assert.Equal(t, second, res.Reply.Hints.Orders[0].ID)
	assert.Equal(t, first, res.Reply.Hints.Orders[1].ID)
	assert.Equal(t, orderLabel(second), res.Reply.Hints.Orders[0].Label)
	assert.NotContains(t, res.Reply.Text, "чужая заявка")
}

func TestViewingOrdersWithoutOrders(t *testing.T) {
	e := newTestEngine(t, nil)

	res := advance(t, e, userIn(state.StateMainMenu), "Мои заявки")
	assert.Equal(t, state.StateMainMenu, res.Reply.State)
	assert.Contains(t, res.Reply.Text, "У вас пока нет активных заявок.")
}

func TestOpenOrderChecksOwnership(t *testing.T) {
	store := repository.NewMemoryStore()
	e := newTestEngine(t, store)

	own := seedOrder(t, store, testUserID, "настроить принтер")
	foreign := seedOrder(t, store, 999, "чужая заявка")

	res := advance(t, e, userIn(state.StateViewingOrders), orderLabel(foreign))
	assert.Equal(t, state.StateViewingOrders, res.Reply.State)
	assert.Zero(t, res.User.Flow.OrderID)
	assert.NotContains(t, res.Reply.Text, "чужая заявка")

	res = advance(t, e, userIn(state.StateViewingOrders), orderLabel(404))
	assert.Equal(t, state.StateViewingOrders, res.Reply.State)

	res = advance(t, e, userIn(state.StateViewingOrders), orderLabel(own))
	require.Equal(t, state.StateOrderManagement, res.Reply.State)
	assert.Equal(t, own, res.User.Flow.OrderID)
	assert.Contains(t, res.Reply.Text, "Описание: настроить принтер")
	assert.Contains(t, res.Reply.Text, "Статус: 🆕 Новая")
	assert.True(t, res.Reply.Hints.Has(HintOrderActions))
}

func managing(id int64) state.UserState {
	us := userIn(state.StateOrderManagement)
	us.Flow.OrderID = id
	return us
}

func TestEditOrder(t *testing.T) {
	store := repository.NewMemoryStore()
	e := newTestEngine(t, store)
	id := seedOrder(t, store, testUserID, "настроить принтер")

	res := advance(t, e, managing(id), "Изменить описание")
	require.Equal(t, state.StateOrderEditing, res.Reply.State)
	assert.Contains(t, res.Reply.Text, "№"+strconv.FormatInt(id, 10))

	short := advance(t, e, res.User, "коротко")
	assert.Equal(t, state.StateOrderEditing, short.Reply.State)
	assert.Empty(t, short.Events)

	done := advance(t, e, res.User, "настроить принтер и сканер")
	require.Equal(t, state.StateOrderManagement, done.Reply.State)
	require.Len(t, done.Events, 1)
	assert.Equal(t, domain.OrderUpdated, done.Events[0].Kind)
	assert.Equal(t, "настроить принтер", done.Events[0].PreviousTask)
	assert.Equal(t, "настроить принтер и сканер", done.Events[0].Order.Task)
	assert.Contains(t, done.Reply.Text, "успешно обновлена")

	stored, err := store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusUpdated, stored.Status)

	back := advance(t, e, res.User, "Назад")
	assert.Equal(t, state.StateOrderManagement, back.Reply.State)
}

func TestCancelOrder(t *testing.T) {
	store := repository.NewMemoryStore()
	e := newTestEngine(t, store)
	id := seedOrder(t, store, testUserID, "настроить принтер")
	other := seedOrder(t, store, testUserID, "починить ноутбук")

	res := advance(t, e, managing(id), "Отменить заявку")
	require.Equal(t, state.StateViewingOrders, res.Reply.State)
	require.Len(t, res.Events, 1)
	assert.Equal(t, domain.OrderCancelled, res.Events[0].Kind)
	assert.Equal(t, domain.OrderStatusCancelled, res.Events[0].Order.Status)
	assert.Zero(t, res.User.Flow.OrderID)
	assert.Contains(t, res.Reply.Text, "отменена")

	require.Len(t, res.Reply.Hints.Orders, 2)
	assert.Equal(t, other, res.Reply.Hints.Orders[0].ID)

	edit := advance(t, e, managing(id), "Изменить описание")
	assert.Equal(t, state.StateOrderManagement, edit.Reply.State)
	assert.Contains(t, edit.Reply.Text, "уже нельзя изменить")
}

func TestDeleteOrder(t *testing.T) {
	store := repository.NewMemoryStore()
	e := newTestEngine(t, store)
	id := seedOrder(t, store, testUserID, "настроить принтер")

	res := advance(t, e, managing(id), "Удалить заявку")
	require.Len(t, res.Events, 1)
	assert.Equal(t, domain.OrderDeleted, res.Events[0].Kind)
	assert.Equal(t, id, res.Events[0].Order.ID)
	assert.Equal(t, state.StateMainMenu, res.Reply.State)
	assert.Contains(t, res.Reply.Text, "успешно удалена")

	_, err := store.GetOrder(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	again := advance(t, e, managing(id), "Удалить заявку")
	assert.Empty(t, again.Events)
	assert.Contains(t, again.Reply.Text, "Заявка не найдена.")

	history := advance(t, e, userIn(state.StateViewingOrders), "История заявок")
	require.Equal(t, state.StateOrderHistory, history.Reply.State)
	assert.Contains(t, history.Reply.Text, "Удалена")
	assert.Empty(t, history.Reply.Hints.Orders)
}

func TestOrderFeedback(t *testing.T) {
	store := repository.NewMemoryStore()
	e := newTestEngine(t, store)
	id := seedOrder(t, store, testUserID, "настроить принтер")

	res := advance(t, e, managing(id), "Оставить отзыв")
	require.Equal(t, state.StateOrderFeedback, res.Reply.State)

	invalid := advance(t, e, res.User, "10")
	assert.Equal(t, state.StateOrderFeedback, invalid.Reply.State)
	assert.Empty(t, invalid.Events)

	skipped := advance(t, e, res.User, "Пропустить")
	assert.Equal(t, state.StateOrderManagement, skipped.Reply.State)

	rated := advance(t, e, res.User, "⭐⭐⭐⭐ 4")
	require.Len(t, rated.Events, 1)
	assert.Equal(t, domain.OrderRated, rated.Events[0].Kind)
	assert.Equal(t, 4, rated.Events[0].Order.Rating)
	assert.Contains(t, rated.Reply.Text, "Спасибо за оценку!")
}

func TestOrdersFilter(t *testing.T) {
	store := repository.NewMemoryStore()
	e := newTestEngine(t, store)
	active := seedOrder(t, store, testUserID, "настроить принтер")
	cancelled := seedOrder(t, store, testUserID, "починить ноутбук")
	_, err := store.CancelOrder(context.Background(), cancelled)
	require.NoError(t, err)

	res := advance(t, e, userIn(state.StateViewingOrders), "Фильтр заявок")
	require.Equal(t, state.StateOrdersFilter, res.Reply.State)

	tests := []struct {
		button string
		want   []int64
	}{
		{button: "Все заявки", want: []int64{cancelled, active}},
		{button: "Активные", want: []int64{active}},
		{button: "Отмененные", want: []int64{cancelled}},
	}

	for _, tt := range tests {
		t.Run(tt.button, func(t *testing.T) {
			got := advance(t, e, res.User, tt.button)
			require.Equal(t, state.StateViewingOrders, got.Reply.State)
			assert.Contains(t, got.Reply.Text, tt.button+":")

			ids := make([]int64, 0, len(got.Reply.Hints.Orders))
			for _, o := range got.Reply.Hints.Orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	empty := advance(t, e, res.User, "Завершенные")
	assert.Equal(t, state.StateOrdersFilter, empty.Reply.State)
	assert.Contains(t, empty.Reply.Text, "Заявок с таким статусом нет.")
}

func TestCurrentOrderVanished(t *testing.T) {
	store := repository.NewMemoryStore()
	e := newTestEngine(t, store)
	id := seedOrder(t, store, testUserID, "настроить принтер")
	_, err := store.DeleteOrder(context.Background(), id)
	require.NoError(t, err)

	for _, s := range []state.State{state.StateOrderManagement, state.StateOrderEditing} {
		us := userIn(s)
		us.Flow.OrderID = id

		res := advance(t, e, us, "настроить принтер и сканер")
		assert.Equal(t, state.StateMainMenu, res.Reply.State, s)
		assert.Empty(t, res.Events, s)
		assert.Zero(t, res.User.Flow.OrderID, s)
	}
}
