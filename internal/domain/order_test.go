package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderFilter_Matches(t *testing.T) {
	testCases := []struct {
		name     string
		filter   OrderFilter
		status   OrderStatus
		expected bool
	}{
		{name: "empty filter hides deleted", filter: OrderFilter{}, status: OrderStatusDeleted, expected: false},
		{name: "empty filter shows new", filter: OrderFilter{}, status: OrderStatusNew, expected: true},
		{name: "history shows deleted", filter: OrderFilter{IncludeDeleted: true}, status: OrderStatusDeleted, expected: true},
		{name: "active excludes completed", filter: OrderFilter{Statuses: ActiveStatuses}, status: OrderStatusCompleted, expected: false},
		{name: "active includes updated", filter: OrderFilter{Statuses: ActiveStatuses}, status: OrderStatusUpdated, expected: true},
		{
			name:     "status list without deleted flag",
			filter:   OrderFilter{Statuses: []OrderStatus{OrderStatusDeleted}},
			status:   OrderStatusDeleted,
			expected: false,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.filter.Matches(Order{Status: tc.status}))
		})
	}
}

func TestOrderStatus_Editable(t *testing.T) {
	assert.True(t, OrderStatusNew.Editable())
	assert.True(t, OrderStatusUpdated.Editable())
	assert.False(t, OrderStatusCancelled.Editable())
	assert.False(t, OrderStatusCompleted.Editable())
	assert.False(t, OrderStatusDeleted.Editable())
}
