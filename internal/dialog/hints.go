package dialog

import (
	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/state"
)

// Hint is a set of button groups the transport should offer with a reply.
type Hint uint32

const (
	HintMainMenu Hint = 1 << iota
	HintServiceTypes
	HintConfirmation
	HintShareContact
	HintRetryContact
	HintOrders
	HintOrderNavigation
	HintNewOrder
	HintFilters
	HintOrderActions
	HintFeedback
	HintLanguages
	HintErrorRecovery
	HintCancelConfirm
	HintBack
	HintBackToOrders
	HintCancel
	HintToMenu
)

// OrderSummary is an order offered as a button.
type OrderSummary struct {
	ID     int64
	Label  string
	Status domain.OrderStatus
}

// Hints describe how a reply should be presented.
type Hints struct {
	Flags  Hint
	Orders []OrderSummary
}

// Has reports whether every flag in h is set.
func (h Hints) Has(flag Hint) bool {
	return h.Flags&flag == flag
}

var stateHints = map[state.State]Hint{
	state.StateStart:               HintMainMenu,
	state.StateMainMenu:            HintMainMenu,
	state.StateHelp:                HintMainMenu,
	state.StateLanguageSelection:   HintLanguages | HintToMenu,
	state.StateChoosingServiceType: HintServiceTypes | HintBack,
	state.StateBusinessTypeInput:   HintBack | HintCancel,
	state.StateBusinessTaskInput:   HintBack | HintCancel,
	state.StatePersonalTaskInput:   HintBack | HintCancel,
	state.StateContactInput:        HintShareContact | HintBack | HintCancel,
	state.StateContactInputRetry:   HintRetryContact | HintShareContact | HintCancel | HintToMenu,
	state.StateOrderConfirmation:   HintConfirmation | HintBack | HintCancel,
	state.StateViewingOrders:       HintOrders | HintOrderNavigation | HintNewOrder | HintToMenu,
	state.StateOrdersFilter:        HintFilters | HintBackToOrders | HintToMenu,
	state.StateOrderHistory:        HintOrders | HintBackToOrders | HintToMenu,
	state.StateOrderManagement:     HintOrderActions | HintBackToOrders | HintToMenu,
	state.StateOrderEditing:        HintBack | HintCancel,
	state.StateOrderFeedback:       HintFeedback | HintBack,
	state.StateErrorHandling:       HintErrorRecovery | HintToMenu,
	state.StateCancelConfirmation:  HintCancelConfirm,
	state.StateFinished:            HintNewOrder | HintToMenu,
}

func hintsFor(s state.State) Hints {
	flags, ok := stateHints[s]
	if !ok {
		flags = HintMainMenu
	}
	return Hints{Flags: flags}
}
