package dialog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/format"
	"github.com/Proton-105/itpomosh-bot/internal/i18n"
	"github.com/Proton-105/itpomosh-bot/internal/state"
	"github.com/Proton-105/itpomosh-bot/internal/validation"
)

var orderRefPattern = regexp.MustCompile(`(?i)(?:заявк[аи]|request|order)\s*(?:№|#|no\.?)?\s*(\d+)`)

// parseOrderRef extracts N from button labels like "Заявка №N".
func parseOrderRef(text string) (int64, bool) {
	match := orderRefPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}

	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseRating(text string) (int, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, "⭐", ""))
	rating, err := strconv.Atoi(cleaned)
	if err != nil || rating < 1 || rating > 5 {
		return 0, false
	}
	return rating, true
}

var orderFilters = []struct {
	button   string
	statuses []domain.OrderStatus
}{
	{button: "filter_all"},
	{button: "filter_active", statuses: domain.ActiveStatuses},
	{button: "filter_completed", statuses: []domain.OrderStatus{domain.OrderStatusCompleted}},
	{button: "filter_cancelled", statuses: []domain.OrderStatus{domain.OrderStatusCancelled}},
}

func (e *Engine) handleViewingOrders(t *turn) (Reply, error) {
	switch {
	case t.pressed("filter"):
		return e.enter(t, state.StateOrdersFilter)
	case t.pressed("history"):
		return e.enter(t, state.StateOrderHistory)
	case t.pressed("new_order"):
		return e.startForm(t)
	case t.pressed("back"):
		return e.enter(t, state.StateMainMenu)
	}
	return e.openOrder(t)
}

func (e *Engine) handleOrdersFilter(t *turn) (Reply, error) {
	if t.pressed("back") || t.pressed("back_to_orders") {
		return e.enter(t, state.StateViewingOrders)
	}

	for _, f := range orderFilters {
		if t.pressed(f.button) {
			return e.listFiltered(t, f.button, f.statuses)
		}
	}

	return e.stay(t, "reply.choose_action", nil), nil
}

func (e *Engine) handleOrderHistory(t *turn) (Reply, error) {
	if t.pressed("back") || t.pressed("back_to_orders") {
		return e.enter(t, state.StateViewingOrders)
	}
	return e.openOrder(t)
}

func (e *Engine) handleOrderManagement(t *turn) (Reply, error) {
	if _, ok := parseOrderRef(t.text); ok {
		return e.openOrder(t)
	}
	if t.pressed("back") || t.pressed("back_to_orders") {
		return e.enter(t, state.StateViewingOrders)
	}

	order, err := e.currentOrder(t)
	if err != nil || order == nil {
		return e.orderMissing(t, err)
	}

	switch {
	case t.pressed("order_edit"):
		if !order.Status.Editable() {
			return e.renderOrder(t, order, t.tr.Tf("reply.order_not_editable", orderVars(order.ID))), nil
		}
		return e.enter(t, state.StateOrderEditing)

	case t.pressed("order_feedback"):
		return e.enter(t, state.StateOrderFeedback)

	case t.pressed("order_cancel"):
		if !order.Status.Editable() {
			return e.renderOrder(t, order, t.tr.Tf("reply.order_not_editable", orderVars(order.ID))), nil
		}
		cancelled, err := e.orders.CancelOrder(t.ctx, order.ID)
		if err != nil {
			return e.orderMissing(t, storeErr("cancel order", err))
		}
		t.events = append(t.events, domain.OrderEvent{Kind: domain.OrderCancelled, Order: *cancelled})
		t.user.Flow.OrderID = 0
		return e.listActive(t, t.tr.Tf("reply.order_cancelled", orderVars(order.ID)))

	case t.pressed("order_delete"):
		deleted, err := e.orders.DeleteOrder(t.ctx, order.ID)
		if err != nil {
			return e.orderMissing(t, storeErr("delete order", err))
		}
		t.events = append(t.events, domain.OrderEvent{Kind: domain.OrderDeleted, Order: *deleted})
		t.user.Flow.OrderID = 0
		return e.listActive(t, t.tr.Tf("reply.order_deleted", orderVars(order.ID)))
	}

	return e.renderOrder(t, order, t.tr.T("reply.choose_action")), nil
}

func (e *Engine) handleOrderEditing(t *turn) (Reply, error) {
	if t.pressed("back") {
		return e.enter(t, state.StateOrderManagement)
	}

	order, err := e.currentOrder(t)
	if err != nil || order == nil {
		return e.orderMissing(t, err)
	}
	if !order.Status.Editable() {
		return e.renderOrder(t, order, t.tr.Tf("reply.order_not_editable", orderVars(order.ID))), nil
	}

	if validation.Length(t.text) < e.cfg.MinTaskLength {
		return e.stay(t, "reply.task_too_short", i18n.Vars{"min": strconv.Itoa(e.cfg.MinTaskLength)}), nil
	}

	updated, err := e.orders.UpdateOrder(t.ctx, order.ID, t.text)
	if err != nil {
		return e.orderMissing(t, storeErr("update order", err))
	}

	t.events = append(t.events, domain.OrderEvent{Kind: domain.OrderUpdated, Order: *updated, PreviousTask: order.Task})
	return e.renderOrder(t, updated, t.tr.Tf("reply.order_updated", orderVars(order.ID))), nil
}

func (e *Engine) handleOrderFeedback(t *turn) (Reply, error) {
	if t.pressed("skip") || t.pressed("back") {
		return e.enter(t, state.StateOrderManagement)
	}

	rating, ok := parseRating(t.text)
	if !ok {
		return e.stay(t, "reply.feedback_invalid", nil), nil
	}

	order, err := e.currentOrder(t)
	if err != nil || order == nil {
		return e.orderMissing(t, err)
	}

	rated, err := e.orders.RateOrder(t.ctx, order.ID, rating)
	if err != nil {
		return e.orderMissing(t, storeErr("rate order", err))
	}

	t.events = append(t.events, domain.OrderEvent{Kind: domain.OrderRated, Order: *rated})
	return e.listActive(t, t.tr.T("reply.feedback_thanks"))
}

// openOrder shows the order referenced by the message, or re-lists orders
// when the reference is malformed, unknown or belongs to someone else.
func (e *Engine) openOrder(t *turn) (Reply, error) {
	id, ok := parseOrderRef(t.text)
	if !ok {
		return e.listActive(t, "")
	}

	order, err := e.ownedOrder(t, id)
	if err != nil {
		return Reply{}, err
	}
	if order == nil {
		return e.listActive(t, "")
	}

	t.user.Flow.OrderID = order.ID
	return e.renderOrder(t, order, ""), nil
}

func (e *Engine) showCurrentOrder(t *turn, note string) (Reply, error) {
	order, err := e.currentOrder(t)
	if err != nil || order == nil {
		return e.orderMissing(t, err)
	}
	return e.renderOrder(t, order, note), nil
}

func (e *Engine) currentOrder(t *turn) (*domain.Order, error) {
	return e.ownedOrder(t, t.user.Flow.OrderID)
}

// ownedOrder returns nil without error when the order is absent, deleted or foreign.
func (e *Engine) ownedOrder(t *turn, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, nil
	}

	order, err := e.orders.GetOrder(t.ctx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	if order.UserID != t.user.UserID {
		return nil, nil
	}
	return order, nil
}

// orderMissing re-lists orders after the current one disappeared.
// A non-nil err other than ErrOrderNotFound is a store failure and is returned.
func (e *Engine) orderMissing(t *turn, err error) (Reply, error) {
	if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
		return Reply{}, err
	}
	t.user.Flow.OrderID = 0
	return e.listActive(t, t.tr.T("reply.order_missing"))
}

func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrOrderNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (e *Engine) listActive(t *turn, note string) (Reply, error) {
	orders, err := e.orders.GetUserOrders(t.ctx, t.user.UserID, e.cfg.MaxActiveOrders)
	if err != nil {
		return Reply{}, fmt.Errorf("list user orders: %w", err)
	}

	if len(orders) == 0 {
		return Reply{
			State: state.StateMainMenu,
			Text:  paragraphs(note, t.tr.T("reply.no_orders"), t.tr.T(state.MessageKey(state.StateMainMenu))),
			Hints: hintsFor(state.StateMainMenu),
		}, nil
	}

	return e.orderList(t, state.StateViewingOrders, paragraphs(note, t.tr.T(state.MessageKey(state.StateViewingOrders))), orders), nil
}

func (e *Engine) listFiltered(t *turn, button string, statuses []domain.OrderStatus) (Reply, error) {
	orders, err := e.orders.ListUserOrders(t.ctx, t.user.UserID, domain.OrderFilter{
		Statuses: statuses,
		Limit:    e.cfg.HistoryLimit,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("list filtered orders: %w", err)
	}

	if len(orders) == 0 {
		return Reply{
			State: state.StateOrdersFilter,
			Text:  t.tr.T("reply.no_orders_filtered"),
			Hints: hintsFor(state.StateOrdersFilter),
		}, nil
	}

	return e.orderList(t, state.StateViewingOrders, t.tr.T("buttons."+button)+":", orders), nil
}

func (e *Engine) listHistory(t *turn) (Reply, error) {
	orders, err := e.orders.ListUserOrders(t.ctx, t.user.UserID, domain.OrderFilter{
		IncludeDeleted: true,
		Limit:          e.cfg.HistoryLimit,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("list order history: %w", err)
	}

	if len(orders) == 0 {
		return Reply{
			State: state.StateOrderHistory,
			Text:  t.tr.T("reply.no_history"),
			Hints: hintsFor(state.StateOrderHistory),
		}, nil
	}

	return e.orderList(t, state.StateOrderHistory, t.tr.T(state.MessageKey(state.StateOrderHistory)), orders), nil
}

func (e *Engine) orderList(t *turn, s state.State, title string, orders []domain.Order) Reply {
	hints := hintsFor(s)
	blocks := make([]string, 0, len(orders)+1)
	blocks = append(blocks, title)

	for _, o := range orders {
		blocks = append(blocks, e.summary(t, o))
		if o.Status != domain.OrderStatusDeleted {
			hints.Orders = append(hints.Orders, OrderSummary{
				ID:     o.ID,
				Label:  t.tr.Tf("buttons.order", orderVars(o.ID)),
				Status: o.Status,
			})
		}
	}

	return Reply{State: s, Text: paragraphs(blocks...), Hints: hints}
}

func (e *Engine) renderOrder(t *turn, order *domain.Order, note string) Reply {
	s := state.StateOrderManagement
	return Reply{
		State: s,
		Text:  paragraphs(note, t.tr.Tf(state.MessageKey(s), i18n.Vars{"details": e.orderDetails(t, *order)})),
		Hints: hintsFor(s),
	}
}

func (e *Engine) summary(t *turn, o domain.Order) string {
	lines := []string{
		fmt.Sprintf("%s %s (%s)", format.StatusEmoji(o.Status), t.tr.Tf("labels.order", orderVars(o.ID)), e.statusLabel(t, o.Status)),
		t.tr.Tf("labels.created_ago", i18n.Vars{"created": format.Since(e.cfg.Now(), o.CreatedAt, t.tr.Lang(), e.cfg.Location)}),
		t.tr.Tf("labels.task_short", i18n.Vars{"task": validation.Truncate(o.Task, e.cfg.SummaryLength)}),
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) orderDetails(t *turn, o domain.Order) string {
	lines := []string{
		t.tr.Tf("labels.order", orderVars(o.ID)),
		t.tr.Tf("labels.status", i18n.Vars{"status": format.StatusEmoji(o.Status) + " " + e.statusLabel(t, o.Status)}),
		t.tr.Tf("labels.created", i18n.Vars{"created_at": format.DateTime(o.CreatedAt, e.cfg.Location)}),
		t.tr.Tf("labels.name", i18n.Vars{"name": o.Name}),
		t.tr.Tf("labels.phone", i18n.Vars{"phone": o.Phone}),
		t.tr.Tf("labels.task", i18n.Vars{"task": o.Task}),
	}
	if o.BusinessType != "" {
		lines = append(lines, t.tr.Tf("labels.business_type", i18n.Vars{"business_type": o.BusinessType}))
	}
	if o.Rating > 0 {
		lines = append(lines, t.tr.Tf("labels.rating", i18n.Vars{"rating": strconv.Itoa(o.Rating)}))
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) flowDetails(t *turn) string {
	flow := t.user.Flow
	lines := []string{
		t.tr.Tf("labels.name", i18n.Vars{"name": e.displayName(t)}),
		t.tr.Tf("labels.phone", i18n.Vars{"phone": flow.Phone}),
		t.tr.Tf("labels.task", i18n.Vars{"task": flow.Task}),
	}
	if flow.Kind == state.ServiceBusiness && flow.BusinessType != "" {
		lines = append(lines, t.tr.Tf("labels.business_type", i18n.Vars{"business_type": flow.BusinessType}))
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) statusLabel(t *turn, status domain.OrderStatus) string {
	return t.tr.T("status." + string(status))
}

func orderVars(id int64) i18n.Vars {
	return i18n.Vars{"order_id": strconv.FormatInt(id, 10)}
}
