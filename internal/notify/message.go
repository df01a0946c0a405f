// Package notify delivers operator notifications about orders and failures.
package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/format"
	"github.com/Proton-105/itpomosh-bot/internal/validation"
)

// Kind identifies what a notification is about.
type Kind string

const (
	KindNewOrder       Kind = "new_order"
	KindOrderUpdated   Kind = "order_updated"
	KindOrderCancelled Kind = "order_cancelled"
	KindOrderDeleted   Kind = "order_deleted"
	KindFeedback       Kind = "feedback"
	KindError          Kind = "error"
)

// Message is a rendered notification.
type Message struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

const previewLength = 100

// Formatter renders order events and failures into operator messages.
type Formatter struct {
	// Tag marks every message, e.g. "TG" renders as "[TG]".
	Tag      string
	Location *time.Location
	Now      func() time.Time
}

func (f Formatter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f Formatter) prefix(order domain.Order) string {
	if order.Source == domain.SourceWebsite {
		return "WEB"
	}
	return "TG"
}

func (f Formatter) header(emoji, title string, order domain.Order) string {
	tag := ""
	if f.Tag != "" {
		tag = "[" + f.Tag + "] "
	}
	return fmt.Sprintf("%s %s%s %s", emoji, tag, title, format.OrderNumber(f.prefix(order), order))
}

// FromEvent renders an order event.
func (f Formatter) FromEvent(event domain.OrderEvent) Message {
	o := event.Order
	var lines []string

	switch event.Kind {
	case domain.OrderCreated:
		lines = append(lines,
			f.header(format.StatusEmoji(domain.OrderStatusNew), "Новая заявка", o),
			"От: "+o.Name,
			"Телефон: "+validation.FormatPhone(o.Phone),
		)
		if o.BusinessType != "" {
			lines = append(lines, "Тип бизнеса: "+o.BusinessType)
		}
		lines = append(lines,
			"Задача: "+validation.CleanText(o.Task),
			"Дата: "+format.DateTime(o.CreatedAt, f.Location),
		)
		return Message{Kind: KindNewOrder, Text: strings.Join(lines, "\n")}

	case domain.OrderUpdated:
		lines = append(lines,
			f.header(format.StatusEmoji(domain.OrderStatusUpdated), "Изменение заявки", o),
			"От: "+o.Name,
			"Старый текст: "+validation.Truncate(event.PreviousTask, previewLength),
			"Новый текст: "+validation.Truncate(o.Task, previewLength),
			"Дата изменения: "+format.DateTime(f.now(), f.Location),
		)
		return Message{Kind: KindOrderUpdated, Text: strings.Join(lines, "\n")}

	case domain.OrderCancelled:
		lines = append(lines,
			f.header(format.StatusEmoji(domain.OrderStatusCancelled), "Отмена заявки", o),
			"От: "+o.Name,
			"Телефон: "+validation.FormatPhone(o.Phone),
			"Описание: "+validation.Truncate(o.Task, previewLength),
			"Дата отмены: "+format.DateTime(f.now(), f.Location),
		)
		return Message{Kind: KindOrderCancelled, Text: strings.Join(lines, "\n")}

	case domain.OrderDeleted:
		lines = append(lines,
			f.header(format.StatusEmoji(domain.OrderStatusDeleted), "Удаление заявки", o),
			"От: "+o.Name,
			"Описание: "+validation.Truncate(o.Task, previewLength),
			"Дата удаления: "+format.DateTime(f.now(), f.Location),
		)
		return Message{Kind: KindOrderDeleted, Text: strings.Join(lines, "\n")}

	default:
		lines = append(lines,
			f.header("⭐", "Отзыв по заявке", o),
			"От: "+o.Name,
			fmt.Sprintf("Оценка: %d/5", o.Rating),
			"Описание: "+validation.Truncate(o.Task, previewLength),
		)
		return Message{Kind: KindFeedback, Text: strings.Join(lines, "\n")}
	}
}

// Error renders an internal failure report. Details are printed sorted by key.
func (f Formatter) Error(errType string, details map[string]string) Message {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+details[k])
	}

	tag := ""
	if f.Tag != "" {
		tag = "[" + f.Tag + "] "
	}

	lines := []string{
		"⚠️ " + tag + "Ошибка в работе бота",
		"Тип: " + errType,
		"Детали: " + strings.Join(pairs, ", "),
		"Время: " + format.DateTime(f.now(), f.Location),
	}
	return Message{Kind: KindError, Text: strings.Join(lines, "\n")}
}
