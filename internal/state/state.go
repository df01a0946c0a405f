package state

import "time"

// State is a named point in the order dialog.
type State string

const (
	// StateStart is the initial state of a new user; it always resolves to the main menu.
	StateStart State = "start"
	// StateMainMenu is the hub every flow returns to.
	StateMainMenu State = "main_menu"
	StateHelp     State = "help"
	// StateLanguageSelection lets the user switch the interface language.
	StateLanguageSelection State = "language_selection"
	// StateChoosingServiceType asks whether the order is personal or for a business.
	StateChoosingServiceType State = "choosing_service_type"
	StateBusinessTypeInput   State = "business_type_input"
	StateBusinessTaskInput   State = "business_task_input"
	StatePersonalTaskInput   State = "personal_task_input"
	// StateContactInput collects the phone number.
	StateContactInput State = "contact_input"
	// StateContactInputRetry is entered after repeated invalid phone numbers.
	StateContactInputRetry State = "contact_input_retry"
	StateOrderConfirmation State = "order_confirmation"
	// StateViewingOrders lists the user's active orders.
	StateViewingOrders   State = "viewing_orders"
	StateOrdersFilter    State = "orders_filter"
	StateOrderHistory    State = "order_history"
	StateOrderManagement State = "order_management"
	StateOrderEditing    State = "order_editing"
	StateOrderFeedback   State = "order_feedback"
	// StateErrorHandling is entered when a flow lost data it requires.
	StateErrorHandling State = "error_handling"
	// StateCancelConfirmation asks the user to confirm abandoning the current flow.
	StateCancelConfirmation State = "cancel_confirmation"
	// StateFinished is the terminal state after an order was submitted.
	StateFinished State = "finished"
)

// ServiceKind tells which branch of the order form the user is filling.
type ServiceKind string

const (
	ServicePersonal ServiceKind = "personal"
	ServiceBusiness ServiceKind = "business"
)

// Profile is long-lived per-user context that survives finished flows.
type Profile struct {
	Name    string `json:"name,omitempty"`
	Locale  string `json:"locale,omitempty"`
	Greeted bool   `json:"greeted,omitempty"`
}

// Flow holds the fields collected while a flow is in progress.
// It is reset when the flow finishes, is cancelled or fails.
type Flow struct {
	Kind          ServiceKind `json:"service_kind,omitempty"`
	BusinessType  string      `json:"business_type,omitempty"`
	Task          string      `json:"task,omitempty"`
	Phone         string      `json:"phone,omitempty"`
	OrderID       int64       `json:"current_order_id,omitempty"`
	PhoneAttempts int         `json:"phone_attempts,omitempty"`
	ResumeState   State       `json:"resume_state,omitempty"`
}

// IsZero reports whether no flow data is held.
func (f Flow) IsZero() bool {
	return f == Flow{}
}

// TaskState returns the task input state of the flow's service kind.
func (f Flow) TaskState() State {
	if f.Kind == ServiceBusiness {
		return StateBusinessTaskInput
	}
	return StatePersonalTaskInput
}

// UserState is the durable dialog cursor for one user.
type UserState struct {
	UserID       int64     `json:"user_id"`
	CurrentState State     `json:"current_state"`
	Context      Profile   `json:"context"`
	Flow         Flow      `json:"temp_data"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUserState returns the state of a user who has not talked to the bot yet.
func NewUserState(userID int64, name string) *UserState {
	return &UserState{
		UserID:       userID,
		CurrentState: StateStart,
		Context:      Profile{Name: name},
	}
}
