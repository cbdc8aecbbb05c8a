package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations
var (
	// Authentication
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("action forbidden")

	// Lookups
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrTimeEntryNotFound = errors.New("time entry not found")
	ErrContractNotFound  = errors.New("contract not found")

	// Ticket validation
	ErrTitleRequired           = errors.New("title is required")
	ErrTitleTooLong            = errors.New("title exceeds maximum length of 255 characters")
	ErrInvalidPriority         = errors.New("invalid ticket priority")
	ErrInvalidStatus           = errors.New("invalid ticket status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrCustomerRequired        = errors.New("customer ID is required")
	ErrCannotAssignTerminal    = errors.New("cannot assign a closed or cancelled ticket")

	// SLA
	ErrInvalidSLAParameters = errors.New("SLA hours must be greater than zero")

	// Billing
	ErrNoCostRateConfigured = errors.New("no cost rate configured for user")
	ErrNoRateConfigured     = errors.New("no billing rate configured")
	ErrInvalidHours         = errors.New("hours must be between 0.25 and 24")
	ErrRateImmutable        = errors.New("billing and cost rates cannot be changed after creation")

	ErrRateLimited = errors.New("rate limit exceeded")
)

// TransitionError names both sides of a rejected status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStatusTransition
}

// NoRateError reports that the rate hierarchy was exhausted for a user and customer.
type NoRateError struct {
	UserID     string
	CustomerID string
}

func (e *NoRateError) Error() string {
	return fmt.Sprintf("no billing rate configured for user %s and customer %s", e.UserID, e.CustomerID)
}

func (e *NoRateError) Unwrap() error {
	return ErrNoRateConfigured
}

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
