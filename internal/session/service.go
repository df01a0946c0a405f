// Package session runs one dialog turn end to end: it serializes the user,
// loads and persists their state around the engine and notifies operators.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Proton-105/itpomosh-bot/internal/dialog"
	"github.com/Proton-105/itpomosh-bot/internal/domain"
	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/internal/i18n"
	"github.com/Proton-105/itpomosh-bot/internal/state"
	"github.com/Proton-105/itpomosh-bot/pkg/metrics"
)

// Inbound is a text message from a user. Name is the sender's display name
// when the transport knows it.
type Inbound struct {
	UserID int64
	Name   string
	Text   string
}

// Outbound is the reply to send back. Zero Hints keep the keyboard the user already has.
type Outbound struct {
	State  state.State
	Text   string
	Hints  dialog.Hints
	Locale string
}

// Notifier hands operator notifications off without blocking.
type Notifier interface {
	OrderEvent(ctx context.Context, event domain.OrderEvent)
	Failure(ctx context.Context, errType string, details map[string]string)
}

// Options tune a Service.
type Options struct {
	// LockTimeout bounds how long a message waits for the previous one of the same user.
	LockTimeout time.Duration
	// DefaultLocale is given to users seen for the first time.
	DefaultLocale string
}

// Service is safe for concurrent use; turns of one user never overlap.
type Service struct {
	engine   *dialog.Engine
	states   state.Storage
	locker   state.Locker
	notifier Notifier
	errors   *errors.Handler
	catalog  *i18n.Manager
	opts     Options
	log      *slog.Logger
}

func NewService(
	engine *dialog.Engine,
	states state.Storage,
	locker state.Locker,
	notifier Notifier,
	handler *errors.Handler,
	catalog *i18n.Manager,
	opts Options,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if locker == nil {
		locker = state.NewKeyedMutex()
	}
	if handler == nil {
		handler = errors.NewHandler(log, false)
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}

	return &Service{
		engine:   engine,
		states:   states,
		locker:   locker,
		notifier: notifier,
		errors:   handler,
		catalog:  catalog,
		opts:     opts,
		log:      log,
	}
}

// Handle processes one message. On failure the returned Outbound still holds
// the reply for the user and the error has already been logged and reported.
func (s *Service) Handle(ctx context.Context, in Inbound) (Outbound, error) {
	start := time.Now()

	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	unlock, err := s.locker.Lock(lockCtx, in.UserID)
	cancel()
	if err != nil {
		if stderrors.Is(err, state.ErrStateLocked) {
			err = errors.NewStateError("previous message still in progress", err)
		} else {
			err = errors.NewStorageError("lock user", err)
		}
		return s.fail(ctx, in, s.opts.DefaultLocale, start, err)
	}
	defer unlock()

	current, err := s.states.GetState(ctx, in.UserID)
	switch {
	case stderrors.Is(err, state.ErrStateNotFound):
		current = state.NewUserState(in.UserID, in.Name)
		current.Context.Locale = s.opts.DefaultLocale
	case err != nil:
		return s.fail(ctx, in, s.opts.DefaultLocale, start, errors.NewStorageError("get state", err))
	}

	if in.Name != "" {
		current.Context.Name = in.Name
	}
	locale := current.Context.Locale

	res, err := s.engine.Advance(ctx, *current, in.Text)
	if err != nil {
		return s.fail(ctx, in, locale, start, errors.NewStorageError("advance dialog", err))
	}

	saveErr := s.states.SetState(ctx, in.UserID, &res.User)

	// Orders already changed in the store, so operators hear about them even
	// if the dialog position could not be saved.
	for _, event := range res.Events {
		metrics.RecordOrderEvent(string(event.Kind), string(event.Order.Source))
		if s.notifier != nil {
			s.notifier.OrderEvent(ctx, event)
		}
	}

	if saveErr != nil {
		return s.fail(ctx, in, locale, start, errors.NewStorageError("save state", saveErr))
	}

	s.log.DebugContext(ctx, "dialog turn",
		slog.Int64("user_id", in.UserID),
		slog.String("from", string(current.CurrentState)),
		slog.String("to", string(res.Reply.State)),
		slog.Int("events", len(res.Events)),
	)
	metrics.RecordTurn("ok", time.Since(start))

	return Outbound{
		State:  res.Reply.State,
		Text:   res.Reply.Text,
		Hints:  res.Reply.Hints,
		Locale: res.User.Context.Locale,
	}, nil
}

// Reply renders a catalog message for a user outside a dialog turn,
// e.g. when the transport throttles them.
func (s *Service) Reply(ctx context.Context, userID int64, key string) Outbound {
	locale := s.opts.DefaultLocale
	if us, err := s.states.GetState(ctx, userID); err == nil && us.Context.Locale != "" {
		locale = us.Context.Locale
	}
	return Outbound{Text: s.catalog.Translator(locale).T(key), Locale: locale}
}

func (s *Service) fail(ctx context.Context, in Inbound, locale string, start time.Time, err error) (Outbound, error) {
	key, _ := s.errors.Handle(ctx, err)
	metrics.RecordTurn("error", time.Since(start))

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.ReplyKey == errors.ReplyGenericError && s.notifier != nil {
		s.notifier.Failure(ctx, appErr.Code, map[string]string{
			"user_id": strconv.FormatInt(in.UserID, 10),
			"error":   appErr.Message,
		})
	}

	return Outbound{Text: s.catalog.Translator(locale).T(key), Locale: locale}, fmt.Errorf("user %d: %w", in.UserID, err)
}
