// Package repository implements the record store for orders and dialog states.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/state"
)

const orderColumns = `id, user_id, name, phone, business_type, task, status, source, rating, created_at, updated_at`

type orderRow struct {
	ID           int64          `db:"id"`
	UserID       int64          `db:"user_id"`
	Name         string         `db:"name"`
	Phone        string         `db:"phone"`
	BusinessType sql.NullString `db:"business_type"`
	Task         string         `db:"task"`
	Status       string         `db:"status"`
	Source       string         `db:"source"`
	Rating       int            `db:"rating"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    sql.NullTime   `db:"updated_at"`
}

func (r orderRow) toDomain() domain.Order {
	o := domain.Order{
		ID:           r.ID,
		UserID:       r.UserID,
		Name:         r.Name,
		Phone:        r.Phone,
		BusinessType: r.BusinessType.String,
		Task:         r.Task,
		Status:       domain.OrderStatus(r.Status),
		Source:       domain.OrderSource(r.Source),
		Rating:       r.Rating,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.UpdatedAt.Valid {
		updated := r.UpdatedAt.Time.UTC()
		o.UpdatedAt = &updated
	}
	return o
}

type stateRow struct {
	UserID    int64     `db:"user_id"`
	State     string    `db:"state"`
	Context   string    `db:"context"`
	TempData  string    `db:"temp_data"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SQLStore keeps orders and user states in postgres or sqlite.
// Queries are written with ? placeholders and rebound for the driver.
type SQLStore struct {
	db  *sqlx.DB
	log *slog.Logger
	now func() time.Time
}

var _ state.Storage = (*SQLStore)(nil)

// NewSQLStore creates a SQL-backed record store.
func NewSQLStore(db *sqlx.DB, log *slog.Logger) *SQLStore {
	if log == nil {
		log = slog.Default()
	}

	return &SQLStore{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder inserts a new order with status new and returns its identifier.
func (s *SQLStore) CreateOrder(ctx context.Context, order domain.NewOrder) (int64, error) {
	source := order.Source
	if source == "" {
		source = domain.SourceTelegram
	}

	query := s.db.Rebind(`
		INSERT INTO orders (user_id, name, phone, business_type, task, status, source, rating, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		RETURNING id
	`)

	var id int64
	if err := s.db.QueryRowxContext(ctx, query,
		order.UserID,
		order.Name,
		order.Phone,
		nullString(order.BusinessType),
		order.Task,
		string(domain.OrderStatusNew),
		string(source),
		s.now(),
	).Scan(&id); err != nil {
		s.log.Error("failed to create order", slog.Int64("user_id", order.UserID), slog.Any("error", err))
		return 0, fmt.Errorf("insert order: %w", err)
	}

	return id, nil
}

// GetOrder returns a non-deleted order or domain.ErrOrderNotFound.
func (s *SQLStore) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return getOrder(ctx, s.db, orderID)
}

// GetUserOrders returns up to limit non-deleted orders of a user, newest first.
func (s *SQLStore) GetUserOrders(ctx context.Context, userID int64, limit int) ([]domain.Order, error) {
	return s.ListUserOrders(ctx, userID, domain.OrderFilter{Limit: limit})
}

// ListUserOrders returns the user's orders matching filter, newest first.
func (s *SQLStore) ListUserOrders(ctx context.Context, userID int64, filter domain.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ?`
	args := []any{userID}

	if !filter.IncludeDeleted {
		query += ` AND status <> ?`
		args = append(args, string(domain.OrderStatusDeleted))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		query += ` AND status IN (?)`
		args = append(args, statuses)
	}

	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build order list query: %w", err)
	}

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(expanded), expandedArgs...); err != nil {
		s.log.Error("failed to list user orders", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("select user orders: %w", err)
	}

	orders := make([]domain.Order, len(rows))
	for i, row := range rows {
		orders[i] = row.toDomain()
	}
	return orders, nil
}

// UpdateOrder replaces the task text and marks the order updated.
func (s *SQLStore) UpdateOrder(ctx context.Context, orderID int64, task string) (*domain.Order, error) {
	_, after, err := s.mutateOrder(ctx, orderID, `task = ?, status = ?, updated_at = ?`,
		task, string(domain.OrderStatusUpdated), s.now())
	return after, err
}

// CancelOrder marks the order cancelled.
func (s *SQLStore) CancelOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	_, after, err := s.mutateOrder(ctx, orderID, `status = ?, updated_at = ?`,
		string(domain.OrderStatusCancelled), s.now())
	return after, err
}

// DeleteOrder soft-deletes the order and returns its snapshot from before the deletion.
func (s *SQLStore) DeleteOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	before, _, err := s.mutateOrder(ctx, orderID, `status = ?, updated_at = ?`,
		string(domain.OrderStatusDeleted), s.now())
	return before, err
}

// RateOrder stores a 1-5 feedback rating.
func (s *SQLStore) RateOrder(ctx context.Context, orderID int64, rating int) (*domain.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating %d out of range 1-5", rating)
	}

	_, after, err := s.mutateOrder(ctx, orderID, `rating = ?, updated_at = ?`, rating, s.now())
	return after, err
}

// mutateOrder applies set to a non-deleted order inside one transaction and
// returns the order before and after the change.
func (s *SQLStore) mutateOrder(ctx context.Context, orderID int64, set string, args ...any) (*domain.Order, *domain.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin order update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	before, err := getOrder(ctx, tx, orderID)
	if err != nil {
		return nil, nil, err
	}

	query := tx.Rebind(`UPDATE orders SET ` + set + ` WHERE id = ? AND status <> ?`)
	args = append(args, orderID, string(domain.OrderStatusDeleted))

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		s.log.Error("failed to update order", slog.Int64("order_id", orderID), slog.Any("error", err))
		return nil, nil, fmt.Errorf("update order %d: %w", orderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil, domain.ErrOrderNotFound
	}

	var row orderRow
	if err := tx.GetContext(ctx, &row, tx.Rebind(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), orderID); err != nil {
		return nil, nil, fmt.Errorf("reload order %d: %w", orderID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit order update: %w", err)
	}

	after := row.toDomain()
	return before, &after, nil
}

// GetState returns the stored user state or state.ErrStateNotFound.
func (s *SQLStore) GetState(ctx context.Context, userID int64) (*state.UserState, error) {
	var row stateRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT user_id, state, context, temp_data, updated_at
		FROM user_states
		WHERE user_id = ?
	`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, state.ErrStateNotFound
	}
	if err != nil {
		s.log.Error("failed to fetch user state", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("select user state: %w", err)
	}

	us := &state.UserState{
		UserID:       row.UserID,
		CurrentState: state.State(row.State),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Context), &us.Context); err != nil {
		return nil, fmt.Errorf("decode user context: %w", err)
	}
	if err := json.Unmarshal([]byte(row.TempData), &us.Flow); err != nil {
		return nil, fmt.Errorf("decode user temp data: %w", err)
	}

	return us, nil
}

// SetState overwrites the whole state of a user in a single statement.
func (s *SQLStore) SetState(ctx context.Context, userID int64, us *state.UserState) error {
	contextJSON, err := json.Marshal(us.Context)
	if err != nil {
		return fmt.Errorf("encode user context: %w", err)
	}
	flowJSON, err := json.Marshal(us.Flow)
	if err != nil {
		return fmt.Errorf("encode user temp data: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO user_states (user_id, state, context, temp_data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			state = excluded.state,
			context = excluded.context,
			temp_data = excluded.temp_data,
			updated_at = excluded.updated_at
	`)

	if _, err := s.db.ExecContext(ctx, query, userID, string(us.CurrentState), string(contextJSON), string(flowJSON), s.now()); err != nil {
		s.log.Error("failed to save user state", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("upsert user state: %w", err)
	}

	return nil
}

// ClearState removes the user's state.
func (s *SQLStore) ClearState(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM user_states WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("delete user state: %w", err)
	}
	return nil
}

// CleanupOldStates deletes states not updated within maxAge. Orders are untouched.
func (s *SQLStore) CleanupOldStates(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge)

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM user_states WHERE updated_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale user states: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted user states: %w", err)
	}
	return n, nil
}

// CountStates returns the number of users per dialog state.
func (s *SQLStore) CountStates(ctx context.Context) (map[state.State]int, error) {
	var rows []struct {
		State string `db:"state"`
		Count int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT state, COUNT(*) AS n FROM user_states GROUP BY state`); err != nil {
		return nil, fmt.Errorf("count user states: %w", err)
	}

	counts := make(map[state.State]int, len(rows))
	for _, row := range rows {
		counts[state.State(row.State)] = row.Count
	}
	return counts, nil
}

// Ping verifies the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	Rebind(query string) string
}

func getOrder(ctx context.Context, q queryer, orderID int64) (*domain.Order, error) {
	var row orderRow
	err := q.GetContext(ctx, &row, q.Rebind(`SELECT `+orderColumns+` FROM orders WHERE id = ? AND status <> ?`),
		orderID, string(domain.OrderStatusDeleted))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select order %d: %w", orderID, err)
	}

	order := row.toDomain()
	return &order, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
