package state

// validTransitions lists the successors each handler may move a user to.
// Global commands bypass this table.
var validTransitions = map[State][]State{
	StateStart:    {StateMainMenu},
	StateMainMenu: {StateChoosingServiceType, StateViewingOrders, StateHelp, StateLanguageSelection},
	StateHelp:     {StateMainMenu, StateChoosingServiceType, StateViewingOrders, StateLanguageSelection},

	StateLanguageSelection:   {StateMainMenu},
	StateChoosingServiceType: {StateBusinessTypeInput, StatePersonalTaskInput, StateMainMenu},

	StateBusinessTypeInput:  {StateBusinessTaskInput, StateChoosingServiceType},
	StateBusinessTaskInput:  {StateContactInput, StateBusinessTypeInput},
	StatePersonalTaskInput:  {StateContactInput, StateChoosingServiceType},
	StateContactInput:       {StateOrderConfirmation, StateContactInputRetry, StatePersonalTaskInput, StateBusinessTaskInput},
	StateContactInputRetry:  {StateContactInput, StateOrderConfirmation, StateMainMenu},
	StateOrderConfirmation:  {StateFinished, StateChoosingServiceType, StatePersonalTaskInput, StateBusinessTaskInput},
	StateViewingOrders:      {StateOrderManagement, StateOrdersFilter, StateOrderHistory, StateChoosingServiceType, StateMainMenu},
	StateOrdersFilter:       {StateViewingOrders, StateMainMenu},
	StateOrderHistory:       {StateOrderManagement, StateViewingOrders, StateMainMenu},
	StateOrderManagement:    {StateOrderEditing, StateOrderFeedback, StateViewingOrders, StateMainMenu},
	StateOrderEditing:       {StateOrderManagement, StateViewingOrders, StateMainMenu},
	StateOrderFeedback:      {StateOrderManagement, StateViewingOrders, StateMainMenu},
	StateErrorHandling:      {StateChoosingServiceType, StateHelp, StateMainMenu},
	StateCancelConfirmation: {StateMainMenu},
	StateFinished:           {StateMainMenu, StateChoosingServiceType},
}

// inputStates collect free-form user input and can always fail or be cancelled.
var inputStates = []State{
	StateBusinessTypeInput,
	StateBusinessTaskInput,
	StatePersonalTaskInput,
	StateContactInput,
	StateContactInputRetry,
	StateOrderConfirmation,
	StateOrderEditing,
	StateOrderFeedback,
}

// allStates is the closed state set in declaration order.
var allStates = []State{
	StateStart,
	StateMainMenu,
	StateHelp,
	StateLanguageSelection,
	StateChoosingServiceType,
	StateBusinessTypeInput,
	StateBusinessTaskInput,
	StatePersonalTaskInput,
	StateContactInput,
	StateContactInputRetry,
	StateOrderConfirmation,
	StateViewingOrders,
	StateOrdersFilter,
	StateOrderHistory,
	StateOrderManagement,
	StateOrderEditing,
	StateOrderFeedback,
	StateErrorHandling,
	StateCancelConfirmation,
	StateFinished,
}

func init() {
	for _, s := range inputStates {
		validTransitions[s] = append(validTransitions[s], StateErrorHandling, StateCancelConfirmation)
	}

	// A cancelled flow can be resumed into any state a user may be interrupted in.
	for _, s := range allStates {
		switch s {
		case StateStart, StateMainMenu, StateFinished, StateCancelConfirmation, StateErrorHandling:
			continue
		}
		validTransitions[StateCancelConfirmation] = append(validTransitions[StateCancelConfirmation], s)
	}
}

// All returns every defined state.
func All() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// IsKnown reports whether s belongs to the defined state set.
func IsKnown(s State) bool {
	_, ok := validTransitions[s]
	return ok
}

// IsInputState reports whether s collects free-form input.
func IsInputState(s State) bool {
	for _, candidate := range inputStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// Transitions returns the successors of s. Unknown states have none.
func Transitions(s State) []State {
	next := validTransitions[s]
	out := make([]State, len(next))
	copy(out, next)
	return out
}

// IsTransitionAllowed reports whether moving from -> to is legal.
// Staying in the same known state is always allowed.
func IsTransitionAllowed(from, to State) bool {
	if !IsKnown(from) || !IsKnown(to) {
		return false
	}
	if from == to {
		return true
	}

	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}

	return false
}

var messageKeys = map[State]string{
	StateStart:               "state.start",
	StateMainMenu:            "state.main_menu",
	StateHelp:                "state.help",
	StateLanguageSelection:   "state.language_selection",
	StateChoosingServiceType: "state.choosing_service_type",
	StateBusinessTypeInput:   "state.business_type_input",
	StateBusinessTaskInput:   "state.business_task_input",
	StatePersonalTaskInput:   "state.personal_task_input",
	StateContactInput:        "state.contact_input",
	StateContactInputRetry:   "state.contact_input_retry",
	StateOrderConfirmation:   "state.order_confirmation",
	StateViewingOrders:       "state.viewing_orders",
	StateOrdersFilter:        "state.orders_filter",
	StateOrderHistory:        "state.order_history",
	StateOrderManagement:     "state.order_management",
	StateOrderEditing:        "state.order_editing",
	StateOrderFeedback:       "state.order_feedback",
	StateErrorHandling:       "state.error_handling",
	StateCancelConfirmation:  "state.cancel_confirmation",
	StateFinished:            "state.finished",
}

// MessageKey returns the catalog key of the canned message for s.
// Unknown states map to the main menu message.
func MessageKey(s State) string {
	if key, ok := messageKeys[s]; ok {
		return key
	}
	return messageKeys[StateMainMenu]
}
