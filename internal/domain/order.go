package domain

import (
	"errors"
	"time"
)

// ErrOrderNotFound is returned when an order does not exist or was deleted.
var ErrOrderNotFound = errors.New("order not found")

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusUpdated    OrderStatus = "updated"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusDeleted    OrderStatus = "deleted"
)

// ActiveStatuses lists statuses of orders that still need work.
var ActiveStatuses = []OrderStatus{OrderStatusNew, OrderStatusInProgress, OrderStatusUpdated}

// Editable reports whether an order in this status may still be changed by its owner.
func (s OrderStatus) Editable() bool {
	switch s {
	case OrderStatusNew, OrderStatusInProgress, OrderStatusUpdated:
		return true
	default:
		return false
	}
}

// OrderSource tells where an order was submitted from.
type OrderSource string

const (
	SourceTelegram OrderSource = "telegram"
	SourceWebsite  OrderSource = "website"
)

// Order is a submitted help request.
type Order struct {
	ID           int64
	UserID       int64
	Name         string
	Phone        string
	BusinessType string
	Task         string
	Status       OrderStatus
	Source       OrderSource
	Rating       int
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// IsBusiness reports whether the order was filed for a business.
func (o Order) IsBusiness() bool {
	return o.BusinessType != ""
}

// NewOrder holds the fields required to create an order.
type NewOrder struct {
	UserID       int64
	Name         string
	Phone        string
	Task         string
	BusinessType string
	Source       OrderSource
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Statuses       []OrderStatus
	IncludeDeleted bool
	Limit          int
}

// Matches reports whether the order passes the filter, ignoring Limit.
func (f OrderFilter) Matches(o Order) bool {
	if o.Status == OrderStatusDeleted && !f.IncludeDeleted {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == o.Status {
			return true
		}
	}
	return false
}

// OrderEventKind enumerates order changes operators are told about.
type OrderEventKind string

const (
	OrderCreated   OrderEventKind = "created"
	OrderUpdated   OrderEventKind = "updated"
	OrderCancelled OrderEventKind = "cancelled"
	OrderDeleted   OrderEventKind = "deleted"
	OrderRated     OrderEventKind = "rated"
)

// OrderEvent describes a change made to an order during a dialog turn.
type OrderEvent struct {
	Kind         OrderEventKind
	Order        Order
	PreviousTask string
}
