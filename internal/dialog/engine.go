// Package dialog turns a user's message into the next dialog state and reply.
package dialog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/i18n"
	"github.com/Proton-105/itpomosh-bot/internal/state"
	"github.com/Proton-105/itpomosh-bot/internal/validation"
)

// ErrUnknownState is logged when a persisted state is outside the defined set.
var ErrUnknownState = errors.New("unknown dialog state")

// OrderStore is the part of the record store the engine reads and writes.
// Absent or deleted orders are reported as domain.ErrOrderNotFound.
type OrderStore interface {
	CreateOrder(ctx context.Context, order domain.NewOrder) (int64, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	GetUserOrders(ctx context.Context, userID int64, limit int) ([]domain.Order, error)
	ListUserOrders(ctx context.Context, userID int64, filter domain.OrderFilter) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, orderID int64, task string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	RateOrder(ctx context.Context, orderID int64, rating int) (*domain.Order, error)
}

// Config tunes validation limits and listings.
type Config struct {
	MinTaskLength    int
	MaxActiveOrders  int
	HistoryLimit     int
	MaxPhoneAttempts int
	SummaryLength    int
	Source           domain.OrderSource
	Location         *time.Location
	Now              func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MinTaskLength <= 0 {
		c.MinTaskLength = 10
	}
	if c.MaxActiveOrders <= 0 {
		c.MaxActiveOrders = 5
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 20
	}
	if c.MaxPhoneAttempts < 0 {
		c.MaxPhoneAttempts = 0
	}
	if c.SummaryLength <= 0 {
		c.SummaryLength = 100
	}
	if c.Source == "" {
		c.Source = domain.SourceTelegram
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Reply is what the user gets back for one message.
type Reply struct {
	State state.State
	Text  string
	Hints Hints
}

// Result is the outcome of one dialog turn. User is the state to persist.
type Result struct {
	User   state.UserState
	Reply  Reply
	Events []domain.OrderEvent
}

// Engine advances dialogs. It holds no per-user data and is safe for concurrent use.
type Engine struct {
	orders  OrderStore
	catalog *i18n.Manager
	cfg     Config
	log     *slog.Logger
}

// NewEngine wires an engine to its order store and message catalog.
func NewEngine(orders OrderStore, catalog *i18n.Manager, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		orders:  orders,
		catalog: catalog,
		cfg:     cfg.withDefaults(),
		log:     log,
	}
}

type turn struct {
	ctx     context.Context
	user    state.UserState
	text    string
	tr      i18n.Translator
	catalog *i18n.Manager
	events  []domain.OrderEvent
}

// pressed reports whether the message is the label of the named button.
func (t *turn) pressed(button string) bool {
	return t.catalog.Matches(t.text, "buttons."+button)
}

// Advance computes the next state and reply for text sent by the user in current.
// Only order store failures are returned as errors; current is never modified.
func (e *Engine) Advance(ctx context.Context, current state.UserState, text string) (Result, error) {
	t := &turn{
		ctx:     ctx,
		user:    current,
		text:    validation.CleanText(text),
		catalog: e.catalog,
	}
	t.tr = e.catalog.Translator(t.user.Context.Locale)
	from := current.CurrentState

	var (
		reply Reply
		err   error
	)

	cmd, isCommand := state.MatchCommand(text)
	if isCommand {
		reply, err = e.command(t, cmd)
	} else {
		reply, err = e.dispatch(t)
	}
	if err != nil {
		return Result{}, err
	}

	if !isCommand && state.IsKnown(from) && !state.IsTransitionAllowed(from, reply.State) {
		e.log.Error("dialog handler left the transition table",
			slog.Int64("user_id", t.user.UserID),
			slog.String("from", string(from)),
			slog.String("to", string(reply.State)),
		)
		t.user.Flow = state.Flow{}
		reply = e.plain(t, state.StateMainMenu)
	}

	t.user.CurrentState = reply.State
	state.RecordTransition(from, reply.State)

	return Result{User: t.user, Reply: reply, Events: t.events}, nil
}

func (e *Engine) command(t *turn, cmd state.Command) (Reply, error) {
	switch cmd {
	case state.CommandRestart:
		return e.greet(t), nil
	case state.CommandCancel:
		if t.user.CurrentState != state.StateCancelConfirmation {
			t.user.Flow.ResumeState = t.user.CurrentState
		}
		return e.plain(t, state.StateCancelConfirmation), nil
	default:
		return e.enter(t, cmd.Target())
	}
}

func (e *Engine) dispatch(t *turn) (Reply, error) {
	switch t.user.CurrentState {
	case state.StateStart:
		return e.greet(t), nil
	case state.StateMainMenu, state.StateHelp:
		return e.handleMenu(t)
	case state.StateLanguageSelection:
		return e.handleLanguage(t)
	case state.StateChoosingServiceType:
		return e.handleServiceType(t)
	case state.StateBusinessTypeInput:
		return e.handleBusinessType(t)
	case state.StateBusinessTaskInput:
		return e.handleTask(t, state.ServiceBusiness)
	case state.StatePersonalTaskInput:
		return e.handleTask(t, state.ServicePersonal)
	case state.StateContactInput:
		return e.handleContact(t, false)
	case state.StateContactInputRetry:
		return e.handleContact(t, true)
	case state.StateOrderConfirmation:
		return e.handleConfirmation(t)
	case state.StateViewingOrders:
		return e.handleViewingOrders(t)
	case state.StateOrdersFilter:
		return e.handleOrdersFilter(t)
	case state.StateOrderHistory:
		return e.handleOrderHistory(t)
	case state.StateOrderManagement:
		return e.handleOrderManagement(t)
	case state.StateOrderEditing:
		return e.handleOrderEditing(t)
	case state.StateOrderFeedback:
		return e.handleOrderFeedback(t)
	case state.StateErrorHandling:
		return e.handleErrorRecovery(t)
	case state.StateCancelConfirmation:
		return e.handleCancelConfirmation(t)
	case state.StateFinished:
		return e.handleFinished(t)
	default:
		e.log.Error("resetting user to main menu",
			slog.Int64("user_id", t.user.UserID),
			slog.String("state", string(t.user.CurrentState)),
			slog.Any("error", ErrUnknownState),
		)
		t.user.Flow = state.Flow{}
		return e.plain(t, state.StateMainMenu), nil
	}
}

func (e *Engine) greet(t *turn) Reply {
	t.user.Context.Greeted = true

	name := t.user.Context.Name
	if name == "" {
		name = t.tr.T("labels.default_name")
	}

	return Reply{
		State: state.StateMainMenu,
		Text:  t.tr.Tf(state.MessageKey(state.StateStart), i18n.Vars{"name": name}),
		Hints: hintsFor(state.StateMainMenu),
	}
}

// plain enters s with its canned message and no store access.
func (e *Engine) plain(t *turn, s state.State) Reply {
	return Reply{State: s, Text: t.tr.T(state.MessageKey(s)), Hints: hintsFor(s)}
}

// stay keeps the user in the current state with a corrective message.
func (e *Engine) stay(t *turn, key string, vars i18n.Vars) Reply {
	s := t.user.CurrentState
	return Reply{State: s, Text: t.tr.Tf(key, vars), Hints: hintsFor(s)}
}

// fail abandons the current flow after it lost data it depends on.
func (e *Engine) fail(t *turn, reason string) Reply {
	e.log.Warn("dialog flow is missing required data",
		slog.Int64("user_id", t.user.UserID),
		slog.String("state", string(t.user.CurrentState)),
		slog.String("reason", reason),
	)
	t.user.Flow = state.Flow{}
	return e.plain(t, state.StateErrorHandling)
}

// enter moves the user to s, rendering any data the state shows.
func (e *Engine) enter(t *turn, s state.State) (Reply, error) {
	switch s {
	case state.StateStart:
		return e.greet(t), nil
	case state.StateOrderConfirmation:
		return Reply{
			State: s,
			Text:  t.tr.Tf(state.MessageKey(s), i18n.Vars{"details": e.flowDetails(t)}),
			Hints: hintsFor(s),
		}, nil
	case state.StateViewingOrders:
		return e.listActive(t, "")
	case state.StateOrderHistory:
		return e.listHistory(t)
	case state.StateOrderManagement:
		return e.showCurrentOrder(t, "")
	case state.StateOrderEditing, state.StateOrderFeedback:
		return Reply{
			State: s,
			Text:  t.tr.Tf(state.MessageKey(s), orderVars(t.user.Flow.OrderID)),
			Hints: hintsFor(s),
		}, nil
	default:
		return e.plain(t, s), nil
	}
}

func (e *Engine) startForm(t *turn) (Reply, error) {
	t.user.Flow = state.Flow{}
	return e.enter(t, state.StateChoosingServiceType)
}

func (e *Engine) handleMenu(t *turn) (Reply, error) {
	switch {
	case t.pressed("new_order"):
		return e.startForm(t)
	case t.pressed("my_orders"):
		return e.enter(t, state.StateViewingOrders)
	case t.pressed("language"):
		return e.enter(t, state.StateLanguageSelection)
	case t.pressed("back"):
		return e.enter(t, state.StateMainMenu)
	}
	return e.stay(t, "reply.choose_action", nil), nil
}

func (e *Engine) handleLanguage(t *turn) (Reply, error) {
	var lang string
	switch {
	case t.pressed("lang_ru"):
		lang = "ru"
	case t.pressed("lang_en"):
		lang = "en"
	case t.pressed("back"):
		return e.enter(t, state.StateMainMenu)
	}

	if lang == "" || !e.catalog.Has(lang) {
		return e.stay(t, "reply.choose_language", nil), nil
	}

	t.user.Context.Locale = lang
	t.tr = e.catalog.Translator(lang)

	reply := e.plain(t, state.StateMainMenu)
	reply.Text = paragraphs(t.tr.T("reply.language_set"), reply.Text)
	return reply, nil
}

func (e *Engine) handleErrorRecovery(t *turn) (Reply, error) {
	if t.pressed("retry") {
		return e.startForm(t)
	}
	return e.enter(t, state.StateMainMenu)
}

func (e *Engine) handleCancelConfirmation(t *turn) (Reply, error) {
	switch {
	case t.pressed("cancel_yes"):
		t.user.Flow = state.Flow{}
		reply := e.plain(t, state.StateMainMenu)
		reply.Text = t.tr.T("reply.cancelled")
		return reply, nil
	case t.pressed("cancel_no"):
		resume := t.user.Flow.ResumeState
		t.user.Flow.ResumeState = ""
		if resume == "" || !state.IsTransitionAllowed(state.StateCancelConfirmation, resume) {
			resume = state.StateMainMenu
		}
		return e.enter(t, resume)
	}
	return e.stay(t, "reply.cancel_choose", nil), nil
}

func (e *Engine) handleFinished(t *turn) (Reply, error) {
	if t.pressed("new_order") {
		return e.startForm(t)
	}
	return e.enter(t, state.StateMainMenu)
}

func paragraphs(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
