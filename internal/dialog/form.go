package dialog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/i18n"
	"github.com/Proton-105/itpomosh-bot/internal/state"
	"github.com/Proton-105/itpomosh-bot/internal/validation"
)

// affirmatives confirm an order; matched case-insensitively against the whole message.
var affirmatives = map[string]struct{}{
	"подтвердить":      {},
	"отправить заявку": {},
	"confirm":          {},
	"submit":           {},
}

var (
	personalKeywords = []string{"населен", "частн", "personal", "individual"}
	businessKeywords = []string{"бизнес", "business"}
)

func (e *Engine) handleServiceType(t *turn) (Reply, error) {
	lower := strings.ToLower(t.text)

	switch {
	case t.pressed("back"):
		return e.enter(t, state.StateMainMenu)
	case t.pressed("business") || containsAny(lower, businessKeywords):
		t.user.Flow = state.Flow{Kind: state.ServiceBusiness}
		return e.enter(t, state.StateBusinessTypeInput)
	case t.pressed("personal") || containsAny(lower, personalKeywords):
		t.user.Flow = state.Flow{Kind: state.ServicePersonal}
		return e.enter(t, state.StatePersonalTaskInput)
	}

	return e.stay(t, "reply.choose_service", nil), nil
}

func (e *Engine) handleBusinessType(t *turn) (Reply, error) {
	if t.pressed("back") {
		return e.enter(t, state.StateChoosingServiceType)
	}
	if t.text == "" {
		return e.stay(t, "reply.business_type_empty", nil), nil
	}

	t.user.Flow.Kind = state.ServiceBusiness
	t.user.Flow.BusinessType = t.text
	return e.enter(t, state.StateBusinessTaskInput)
}

func (e *Engine) handleTask(t *turn, kind state.ServiceKind) (Reply, error) {
	if t.pressed("back") {
		if kind == state.ServiceBusiness {
			return e.enter(t, state.StateBusinessTypeInput)
		}
		return e.enter(t, state.StateChoosingServiceType)
	}

	if validation.Length(t.text) < e.cfg.MinTaskLength {
		return e.stay(t, "reply.task_too_short", i18n.Vars{"min": strconv.Itoa(e.cfg.MinTaskLength)}), nil
	}

	t.user.Flow.Kind = kind
	t.user.Flow.Task = t.text
	return e.enter(t, state.StateContactInput)
}

func (e *Engine) handleContact(t *turn, retry bool) (Reply, error) {
	switch {
	case !retry && t.pressed("back"):
		return e.enter(t, t.user.Flow.TaskState())
	case retry && t.pressed("retry_contact"):
		t.user.Flow.PhoneAttempts = 0
		return e.enter(t, state.StateContactInput)
	}

	phone, ok := validation.NormalizePhone(t.text)
	if !ok {
		t.user.Flow.PhoneAttempts++
		if !retry && e.cfg.MaxPhoneAttempts > 0 && t.user.Flow.PhoneAttempts >= e.cfg.MaxPhoneAttempts {
			return e.enter(t, state.StateContactInputRetry)
		}
		return e.stay(t, "reply.phone_invalid", nil), nil
	}

	t.user.Flow.Phone = phone
	t.user.Flow.PhoneAttempts = 0
	return e.enter(t, state.StateOrderConfirmation)
}

func (e *Engine) handleConfirmation(t *turn) (Reply, error) {
	if t.pressed("back") {
		return e.enter(t, t.user.Flow.TaskState())
	}

	if !e.isAffirmative(t) {
		t.user.Flow = state.Flow{}
		reply := e.plain(t, state.StateChoosingServiceType)
		reply.Text = t.tr.T("reply.confirm_restart")
		return reply, nil
	}

	flow := t.user.Flow
	if flow.Task == "" || flow.Phone == "" {
		return e.fail(t, "confirmation without task or phone"), nil
	}

	order := domain.NewOrder{
		UserID: t.user.UserID,
		Name:   e.displayName(t),
		Phone:  flow.Phone,
		Task:   flow.Task,
		Source: e.cfg.Source,
	}
	if flow.Kind == state.ServiceBusiness {
		order.BusinessType = flow.BusinessType
	}

	id, err := e.orders.CreateOrder(t.ctx, order)
	if err != nil {
		return Reply{}, fmt.Errorf("create order: %w", err)
	}

	t.events = append(t.events, domain.OrderEvent{
		Kind: domain.OrderCreated,
		Order: domain.Order{
			ID:           id,
			UserID:       order.UserID,
			Name:         order.Name,
			Phone:        order.Phone,
			BusinessType: order.BusinessType,
			Task:         order.Task,
			Status:       domain.OrderStatusNew,
			Source:       order.Source,
			CreatedAt:    e.cfg.Now().UTC(),
		},
	})

	t.user.Flow = state.Flow{}

	return Reply{
		State: state.StateFinished,
		Text:  t.tr.Tf(state.MessageKey(state.StateFinished), orderVars(id)),
		Hints: hintsFor(state.StateFinished),
	}, nil
}

func (e *Engine) isAffirmative(t *turn) bool {
	if t.pressed("confirm") {
		return true
	}
	_, ok := affirmatives[strings.ToLower(t.text)]
	return ok
}

func (e *Engine) displayName(t *turn) string {
	if t.user.Context.Name != "" {
		return t.user.Context.Name
	}
	return t.tr.T("labels.default_name")
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
