package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/itpomosh-bot/internal/bot/handlers"
	"github.com/Proton-105/itpomosh-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/internal/i18n"
	"github.com/Proton-105/itpomosh-bot/internal/idempotency"
	"github.com/Proton-105/itpomosh-bot/internal/middleware"
	"github.com/Proton-105/itpomosh-bot/internal/ratelimit"
	"github.com/Proton-105/itpomosh-bot/internal/session"
	"github.com/Proton-105/itpomosh-bot/pkg/config"
)

// Deps are the services the Telegram transport drives.
type Deps struct {
	Sessions *session.Service
	Catalog  *i18n.Manager
	Guard    idempotency.Guard
	Limiter  ratelimit.Limiter
	Rules    *ratelimit.Rules
	Errors   *errors.Handler
	Log      *slog.Logger
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot       *telebot.Bot
	log           *slog.Logger
	cfg           config.Config
	catalog       *i18n.Manager
	router        *Router
	defaultLocale string
}

// New builds a telegram bot instance configured according to the application settings.
func New(cfg config.Config, deps Deps) (*Bot, error) {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		OnError: func(err error, c telebot.Context) {
			log.Error("telegram update failed", slog.Any("error", err))
		},
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.Bot.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.Bot.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	b := &Bot{
		telebot:       tb,
		log:           log,
		cfg:           cfg,
		catalog:       deps.Catalog,
		router:        newRouter(deps, log),
		defaultLocale: cfg.Dialog.DefaultLocale,
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnContact, b.router.Route)

	return b, nil
}

// newRouter assembles the update pipeline. Correlation runs first so every
// later log line carries the id; deduplication runs before rate limiting so
// redelivered updates do not count against the user.
func newRouter(deps Deps, log *slog.Logger) *Router {
	kb := keyboard.NewBuilder(deps.Catalog)
	router := NewRouter(handlers.NewMessageHandler(deps.Sessions, kb, log), log)

	router.Use(CorrelationMiddleware())
	router.Use(RecoveryMiddleware(log, deps.Errors, deps.Sessions))
	router.Use(LoggingMiddleware(log))
	router.Use(ErrorHandlingMiddleware(deps.Errors))
	router.Use(middleware.Idempotency(deps.Guard, log))
	router.Use(middleware.NewRateLimitMiddleware(deps.Limiter, deps.Rules, deps.Sessions, log).Handle)

	return router
}

// Start publishes the command menu and runs the telegram bot event loop. It blocks until Stop.
func (b *Bot) Start() {
	if b.telebot == nil {
		return
	}

	if b.catalog != nil {
		if err := registerCommands(b.telebot, b.catalog, b.defaultLocale); err != nil {
			b.log.Warn("failed to register bot commands", slog.Any("error", err))
		}
	}

	b.log.Info("telegram bot started", slog.String("mode", b.cfg.Bot.Mode))
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}
