package keyboard

import (
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/itpomosh-bot/internal/dialog"
	"github.com/Proton-105/itpomosh-bot/internal/i18n"
)

const (
	ordersPerRow = 2
	maxRating    = 5
)

// Builder turns dialog hints into reply keyboards.
type Builder struct {
	catalog *i18n.Manager
}

// NewBuilder returns a Builder that labels buttons from catalog.
func NewBuilder(catalog *i18n.Manager) *Builder {
	return &Builder{catalog: catalog}
}

// Markup builds the keyboard for hints in the given locale. It returns nil
// for empty hints so the keyboard the user already has stays in place.
func (b *Builder) Markup(locale string, hints dialog.Hints) *telebot.ReplyMarkup {
	if hints.Flags == 0 {
		return nil
	}

	tr := b.catalog.Translator(locale)
	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	btn := func(key string) telebot.Btn {
		return markup.Text(tr.T("buttons." + key))
	}

	var rows []telebot.Row

	if hints.Has(dialog.HintMainMenu) {
		rows = append(rows,
			markup.Row(btn("new_order"), btn("my_orders")),
			markup.Row(btn("help"), btn("language")),
		)
	}
	if hints.Has(dialog.HintServiceTypes) {
		rows = append(rows, markup.Row(btn("personal")), markup.Row(btn("business")))
	}
	if hints.Has(dialog.HintLanguages) {
		rows = append(rows, markup.Row(btn("lang_ru"), btn("lang_en")))
	}
	if hints.Has(dialog.HintShareContact) {
		rows = append(rows, markup.Row(markup.Contact(tr.T("buttons.share_contact"))))
	}
	if hints.Has(dialog.HintRetryContact) {
		rows = append(rows, markup.Row(btn("retry_contact")))
	}
	if hints.Has(dialog.HintConfirmation) {
		rows = append(rows, markup.Row(btn("confirm"), btn("change_order")))
	}
	if hints.Has(dialog.HintOrders) {
		rows = append(rows, orderRows(markup, hints.Orders)...)
	}
	if hints.Has(dialog.HintOrderNavigation) {
		rows = append(rows, markup.Row(btn("filter"), btn("history")))
	}
	if hints.Has(dialog.HintNewOrder) {
		rows = append(rows, markup.Row(btn("new_order")))
	}
	if hints.Has(dialog.HintFilters) {
		rows = append(rows,
			markup.Row(btn("filter_all"), btn("filter_active")),
			markup.Row(btn("filter_completed"), btn("filter_cancelled")),
		)
	}
	if hints.Has(dialog.HintOrderActions) {
		rows = append(rows,
			markup.Row(btn("order_edit"), btn("order_feedback")),
			markup.Row(btn("order_cancel"), btn("order_delete")),
		)
	}
	if hints.Has(dialog.HintFeedback) {
		rows = append(rows, ratingRow(markup), markup.Row(btn("skip")))
	}
	if hints.Has(dialog.HintErrorRecovery) {
		rows = append(rows, markup.Row(btn("retry")))
	}
	if hints.Has(dialog.HintCancelConfirm) {
		rows = append(rows, markup.Row(btn("cancel_yes"), btn("cancel_no")))
	}

	var nav []telebot.Btn
	if hints.Has(dialog.HintBack) {
		nav = append(nav, btn("back"))
	}
	if hints.Has(dialog.HintBackToOrders) {
		nav = append(nav, btn("back_to_orders"))
	}
	if hints.Has(dialog.HintCancel) {
		nav = append(nav, btn("cancel"))
	}
	if len(nav) > 0 {
		rows = append(rows, markup.Row(nav...))
	}
	if hints.Has(dialog.HintToMenu) {
		rows = append(rows, markup.Row(btn("main_menu")))
	}

	markup.Reply(rows...)
	return markup
}

func orderRows(markup *telebot.ReplyMarkup, orders []dialog.OrderSummary) []telebot.Row {
	btns := make([]telebot.Btn, 0, len(orders))
	for _, o := range orders {
		btns = append(btns, markup.Text(o.Label))
	}
	return markup.Split(ordersPerRow, btns)
}

func ratingRow(markup *telebot.ReplyMarkup) telebot.Row {
	btns := make([]telebot.Btn, 0, maxRating)
	for i := 1; i <= maxRating; i++ {
		btns = append(btns, markup.Text(strconv.Itoa(i)+" ⭐"))
	}
	return markup.Row(btns...)
}
