package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/itpomosh-bot/internal/bot"
	"github.com/Proton-105/itpomosh-bot/internal/database"
	"github.com/Proton-105/itpomosh-bot/internal/dialog"
	"github.com/Proton-105/itpomosh-bot/internal/domain"
	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/internal/health"
	"github.com/Proton-105/itpomosh-bot/internal/httpapi"
	"github.com/Proton-105/itpomosh-bot/internal/i18n"
	"github.com/Proton-105/itpomosh-bot/internal/idempotency"
	"github.com/Proton-105/itpomosh-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/itpomosh-bot/internal/jobs/handlers"
	"github.com/Proton-105/itpomosh-bot/internal/lifecycle"
	"github.com/Proton-105/itpomosh-bot/internal/notify"
	"github.com/Proton-105/itpomosh-bot/internal/ratelimit"
	"github.com/Proton-105/itpomosh-bot/internal/repository"
	"github.com/Proton-105/itpomosh-bot/internal/session"
	"github.com/Proton-105/itpomosh-bot/internal/state"
	"github.com/Proton-105/itpomosh-bot/pkg/config"
	"github.com/Proton-105/itpomosh-bot/pkg/graceful"
	"github.com/Proton-105/itpomosh-bot/pkg/logger"
	"github.com/Proton-105/itpomosh-bot/pkg/metrics"
	"github.com/Proton-105/itpomosh-bot/pkg/redis"
)

const (
	stateMetricsInterval = 30 * time.Second
	sentryFlushTimeout   = 2 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("bot exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)
	config.Watch(v, log, func(updated *config.Config) {
		logger.SetLevel(updated.Logger.Level)
	})

	log.Info("starting IT-Помощь bot",
		slog.String("env", cfg.AppEnv),
		slog.String("mode", cfg.Bot.Mode),
		slog.String("database", cfg.Database.Driver),
		slog.Bool("redis", cfg.Redis.Enabled),
	)

	shutdown := lifecycle.NewShutdown(log)
	errHandler := errors.NewHandler(log, cfg.Sentry.Enabled)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	applied, err := database.NewMigrator(db, log).Up(ctx)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("database ready", slog.Int("migrations_applied", applied))

	store := repository.NewSQLStore(db, log)

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			_ = db.Close()
			return err
		}
	}

	var states state.Storage = store
	locker := state.Locker(state.NewKeyedMutex())
	if rdb != nil {
		locker = state.ChainLocker{locker, state.NewRedisLocker(rdb.Client, log)}
		if cfg.Storage.StateBackend == "redis" {
			states = state.NewRedisStorage(rdb.Client, log, cfg.Storage.StateTTL)
		}
	}

	catalog, err := i18n.Default()
	if err != nil {
		return fmt.Errorf("load message catalog: %w", err)
	}

	location := time.UTC
	if cfg.Dialog.Timezone != "" {
		if location, err = time.LoadLocation(cfg.Dialog.Timezone); err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.Dialog.Timezone, err)
		}
	}

	sender, err := newSender(cfg, log)
	if err != nil {
		return err
	}
	reliable := notify.NewReliable(sender, errors.NewCircuitBreaker(), cfg.Notify.MaxAttempts)
	formatter := notify.Formatter{Tag: cfg.Notify.Source, Location: location}

	jobsEnabled := cfg.Jobs.Enabled && rdb != nil
	if cfg.Jobs.Enabled && rdb == nil {
		log.Warn("jobs require redis; delivering notifications in-process")
	}

	dispatcherOpts := []notify.DispatcherOption{notify.WithTimeout(cfg.Notify.Timeout)}
	var (
		queue     jobs.Manager
		worker    jobs.Worker
		scheduler jobs.Scheduler
	)
	if jobsEnabled {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}

		queue = jobs.NewManager(redisOpt, log)
		dispatcherOpts = append(dispatcherOpts, notify.WithQueue(queue, cfg.Jobs.MaxRetry))

		worker = jobs.NewWorker(redisOpt, jobs.Queues, cfg.Jobs.Concurrency, log)
		worker.RegisterHandler(jobs.TaskTypeNotify, jobhandlers.NewNotifyHandler(reliable, log))
		worker.RegisterHandler(jobs.TaskTypeStateCleanup, jobhandlers.NewStateCleanupHandler(states, log))

		scheduler = jobs.NewScheduler(redisOpt, log)
		if err := scheduler.RegisterStateCleanup(cfg.Cleanup.Interval, cfg.Cleanup.MaxAge); err != nil {
			return err
		}
	}
	dispatcher := notify.NewDispatcher(reliable, formatter, log, dispatcherOpts...)

	engine := dialog.NewEngine(store, catalog, dialog.Config{
		MinTaskLength:    cfg.Dialog.MinTaskLength,
		MaxActiveOrders:  cfg.Dialog.MaxActiveOrders,
		HistoryLimit:     cfg.Dialog.HistoryLimit,
		MaxPhoneAttempts: cfg.Dialog.MaxPhoneAttempts,
		SummaryLength:    cfg.Dialog.SummaryLength,
		Source:           domain.SourceTelegram,
		Location:         location,
	}, log)

	sessions := session.NewService(engine, states, locker, dispatcher, errHandler, catalog, session.Options{
		LockTimeout:   cfg.Dialog.LockTimeout,
		DefaultLocale: cfg.Dialog.DefaultLocale,
	}, log)

	memLimiter := ratelimit.NewMemoryLimiter()
	var (
		limiter ratelimit.Limiter = memLimiter
		guard   idempotency.Guard = idempotency.NewMemoryGuard(idempotency.DefaultTTL)
	)
	if rdb != nil {
		limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), memLimiter, log)
		guard = idempotency.NewRedisGuard(rdb.Client, idempotency.DefaultTTL, log)
	}

	tgBot, err := bot.New(*cfg, bot.Deps{
		Sessions: sessions,
		Catalog:  catalog,
		Guard:    guard,
		Limiter:  limiter,
		Rules:    ratelimit.NewRules(cfg.RateLimit),
		Errors:   errHandler,
		Log:      log,
	})
	if err != nil {
		return err
	}

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("telegram", health.NewTelegramChecker(tgBot.Telebot()))
	if rdb != nil {
		checker.AddCheck("redis", health.NewRedisChecker(rdb))
	}
	probes := lifecycle.NewProbes(checker, log)

	api := httpapi.NewServer(store, dispatcher, probes, errHandler, httpapi.Options{
		MinTaskLength: cfg.Dialog.MinTaskLength,
	}, log)
	httpServer := graceful.NewServer(log, &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	if worker != nil {
		if err := worker.Start(); err != nil {
			return fmt.Errorf("start jobs worker: %w", err)
		}
		if err := scheduler.Start(); err != nil {
			worker.Shutdown()
			return err
		}
	}

	// background loops stop when bgCtx is cancelled by the shutdown hooks
	bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()
	var background sync.WaitGroup
	goRun := func(fn func(context.Context)) {
		background.Add(1)
		go func() {
			defer background.Done()
			fn(bgCtx)
		}()
	}

	goRun(metrics.NewStateCollector(states, stateMetricsInterval, log).Run)
	goRun(ratelimit.NewCleaner(memLimiter, log, cfg.RateLimit.Window, cfg.RateLimit.Window).Run)
	if scheduler == nil {
		goRun(state.NewCleaner(states, log, cfg.Cleanup.MaxAge, cfg.Cleanup.Interval).Run)
	}

	httpCtx, stopHTTP := context.WithCancel(context.WithoutCancel(ctx))
	defer stopHTTP()
	httpDone := make(chan struct{})
	go func() {
		defer close(httpDone)
		if err := httpServer.ListenAndServe(httpCtx); err != nil {
			log.Error("http server stopped", slog.Any("error", err))
			stop()
		}
	}()

	go tgBot.Start()

	shutdown.Register("bot", func(context.Context) error {
		probes.MarkDraining()
		tgBot.Stop()
		return nil
	})
	shutdown.Register("http", func(ctx context.Context) error {
		stopHTTP()
		select {
		case <-httpDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.Register("background", func(context.Context) error {
		stopBackground()
		background.Wait()
		dispatcher.Wait()
		return nil
	})
	if worker != nil {
		shutdown.Register("worker", func(context.Context) error {
			scheduler.Shutdown()
			worker.Shutdown()
			return nil
		})
	}
	if queue != nil {
		shutdown.Register("queue", func(context.Context) error {
			return queue.Close()
		})
	}
	if rdb != nil {
		shutdown.Register("redis", func(context.Context) error {
			return rdb.Close()
		})
	}
	shutdown.Register("database", func(context.Context) error {
		return db.Close()
	})
	if cfg.Sentry.Enabled {
		shutdown.Register("sentry", func(context.Context) error {
			sentry.Flush(sentryFlushTimeout)
			return nil
		})
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()

	return shutdown.Execute(shutdownCtx)
}

// newSender picks the operator channel. The telegram channel uses its own
// client without a poller so updates are only consumed by the dialog bot.
func newSender(cfg *config.Config, log *slog.Logger) (notify.Sender, error) {
	switch cfg.Notify.Channel {
	case notify.ChannelWebhook:
		return notify.NewWebhookSender(cfg.Notify.WebhookURL, cfg.Notify.Source, cfg.Notify.Timeout), nil
	case notify.ChannelTelegram:
		client, err := telebot.NewBot(telebot.Settings{Token: cfg.Bot.Token, Offline: true})
		if err != nil {
			return nil, fmt.Errorf("init operator chat client: %w", err)
		}
		return notify.NewTelegramSender(client, cfg.Notify.AdminChatID), nil
	default:
		return notify.NewLogSender(log), nil
	}
}
