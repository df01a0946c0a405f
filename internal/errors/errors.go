// Package errors classifies failures and turns them into log records,
// Sentry events and one of the fixed user-facing replies.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Catalog keys of the replies a user may see for a failure.
const (
	ReplyGenericError = "reply.generic_error"
	ReplyBusy         = "reply.busy"
	ReplyRateLimited  = "reply.rate_limited"
)

type AppError struct {
	Code      string
	Message   string
	ReplyKey  string
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:      "E100",
		Message:   msg,
		ReplyKey:  ReplyGenericError,
		Severity:  SeverityLow,
		Retryable: false,
	}
}

// NewStorageError wraps a record store failure.
func NewStorageError(op string, cause error) *AppError {
	return &AppError{
		Code:      "E200",
		Message:   fmt.Sprintf("storage error: %s: %v", op, cause),
		ReplyKey:  ReplyGenericError,
		Severity:  SeverityHigh,
		Retryable: true,
		cause:     cause,
	}
}

// NewNotificationError wraps a failed delivery to the operator channel.
func NewNotificationError(channel string, cause error) *AppError {
	return &AppError{
		Code:      "E300",
		Message:   fmt.Sprintf("notification error: %s: %v", channel, cause),
		ReplyKey:  ReplyGenericError,
		Severity:  SeverityMedium,
		Retryable: true,
		cause:     cause,
	}
}

func NewStateError(msg string, cause error) *AppError {
	return &AppError{
		Code:      "E400",
		Message:   msg,
		ReplyKey:  ReplyBusy,
		Severity:  SeverityMedium,
		Retryable: true,
		cause:     cause,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:      "E500",
		Message:   fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		ReplyKey:  ReplyRateLimited,
		Severity:  SeverityLow,
		Retryable: false,
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:     "E300",
		Message:  err.Error(),
		ReplyKey: ReplyGenericError,
		Severity: SeverityMedium,
		cause:    err,
	}
}
