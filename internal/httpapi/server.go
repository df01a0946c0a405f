// Package httpapi serves the website order form, probes and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/internal/lifecycle"
	"github.com/Proton-105/itpomosh-bot/internal/middleware"
	"github.com/Proton-105/itpomosh-bot/internal/validation"
	"github.com/Proton-105/itpomosh-bot/pkg/logger"
)

// OrderStore is the part of the record store the form needs.
type OrderStore interface {
	CreateOrder(ctx context.Context, order domain.NewOrder) (int64, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
}

// OrderNotifier tells operators about new orders.
type OrderNotifier interface {
	OrderEvent(ctx context.Context, event domain.OrderEvent)
}

// Options tune the HTTP surface.
type Options struct {
	MinTaskLength int
}

// Server holds the HTTP handlers.
type Server struct {
	orders   OrderStore
	notifier OrderNotifier
	probes   lifecycle.HealthChecker
	errors   *errors.Handler
	validate *validator.Validate
	opts     Options
	log      *slog.Logger
}

func NewServer(
	orders OrderStore,
	notifier OrderNotifier,
	probes lifecycle.HealthChecker,
	handler *errors.Handler,
	opts Options,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	if handler == nil {
		handler = errors.NewHandler(log, false)
	}
	if probes == nil {
		probes = lifecycle.NewProbes(nil, log)
	}
	if opts.MinTaskLength <= 0 {
		opts.MinTaskLength = 10
	}

	return &Server{
		orders:   orders,
		notifier: notifier,
		probes:   probes,
		errors:   handler,
		validate: newValidator(),
		opts:     opts,
		log:      log,
	}
}

// Handler returns the routed handler with correlation ids, access logs and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, http.MethodPost, "/api/orders", http.HandlerFunc(s.createOrder))
	s.route(mux, http.MethodGet, "/healthz", http.HandlerFunc(s.liveness))
	s.route(mux, http.MethodGet, "/readyz", http.HandlerFunc(s.readiness))
	s.route(mux, http.MethodGet, "/metrics", promhttp.Handler())

	return logger.Middleware(middleware.New(s.log)(mux))
}

func (s *Server) route(mux *http.ServeMux, method, path string, h http.Handler) {
	mux.Handle(method+" "+path, middleware.Metrics(path, h))
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return validation.IsValidPhone(fl.Field().String())
	})
	return v
}
