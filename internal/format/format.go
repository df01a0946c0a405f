// Package format renders order data for people: numbers, dates and relative times.
package format

import (
	"fmt"
	"time"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
)

// DateTimeLayout is the day-first layout used in every user-facing date.
const DateTimeLayout = "02.01.2006 15:04"

var statusEmoji = map[domain.OrderStatus]string{
	domain.OrderStatusNew:        "🆕",
	domain.OrderStatusInProgress: "⚡",
	domain.OrderStatusCompleted:  "✅",
	domain.OrderStatusDeleted:    "❌",
	domain.OrderStatusUpdated:    "📝",
	domain.OrderStatusCancelled:  "🚫",
}

// StatusEmoji returns the marker shown next to an order status.
func StatusEmoji(status domain.OrderStatus) string {
	if emoji, ok := statusEmoji[status]; ok {
		return emoji
	}
	return "📋"
}

// DateTime formats t in loc using DateTimeLayout. A nil loc keeps t's location.
func DateTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateTimeLayout)
}

// OrderNumber returns the operator-facing number, e.g. "TG-2025-0042".
func OrderNumber(prefix string, order domain.Order) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, order.CreatedAt.Year(), order.ID)
}

const maxRelativeDays = 30

// Since describes how long ago t was relative to now in lang ("ru" or "en").
// Anything older than a month is printed as a date.
func Since(now, t time.Time, lang string, loc *time.Location) string {
	delta := now.Sub(t)
	if delta < 0 {
		delta = 0
	}

	minutes := int(delta / time.Minute)
	hours := int(delta / time.Hour)
	days := int(delta / (24 * time.Hour))

	if lang == "en" {
		switch {
		case delta < time.Minute:
			return "just now"
		case delta < time.Hour:
			return fmt.Sprintf("%d %s ago", minutes, enPlural(minutes, "minute", "minutes"))
		case delta < 24*time.Hour:
			return fmt.Sprintf("%d %s ago", hours, enPlural(hours, "hour", "hours"))
		case days == 1:
			return "yesterday"
		case days <= maxRelativeDays:
			return fmt.Sprintf("%d days ago", days)
		default:
			return DateTime(t, loc)
		}
	}

	switch {
	case delta < time.Minute:
		return "только что"
	case delta < time.Hour:
		return fmt.Sprintf("%d %s назад", minutes, RuPlural(minutes, "минуту", "минуты", "минут"))
	case delta < 24*time.Hour:
		return fmt.Sprintf("%d %s назад", hours, RuPlural(hours, "час", "часа", "часов"))
	case days == 1:
		return "вчера"
	case days <= maxRelativeDays:
		return fmt.Sprintf("%d %s назад", days, RuPlural(days, "день", "дня", "дней"))
	default:
		return DateTime(t, loc)
	}
}

// RuPlural picks the Russian plural form for n: one (1, 21), few (2-4, 22-24) or many.
func RuPlural(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	mod10, mod100 := n%10, n%100

	switch {
	case mod10 == 1 && mod100 != 11:
		return one
	case mod10 >= 2 && mod10 <= 4 && (mod100 < 12 || mod100 > 14):
		return few
	default:
		return many
	}
}

func enPlural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
