// Package errors provides application error types with classification
// and HTTP status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents an application error code.
type Code string

const (
	// CodeValidation covers bad input such as an unknown automation mode.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeNotFound indicates a missing lead or vehicle.
	CodeNotFound Code = "NOT_FOUND"
	// CodeStore indicates a persistent-store access failure.
	CodeStore Code = "STORE_ERROR"
	// CodeGateway indicates a messaging gateway failure.
	CodeGateway Code = "GATEWAY_ERROR"
	// CodeWebhookInvalid indicates a webhook that failed verification.
	CodeWebhookInvalid Code = "WEBHOOK_INVALID"
	// CodeInternal is the catch-all for unexpected failures.
	CodeInternal Code = "INTERNAL_ERROR"
)

// Kind classifies an error for handling decisions.
type Kind int

const (
	// KindUnknown is an unclassified error.
	KindUnknown Kind = iota
	// KindUser indicates a caller-caused error (bad input, bad mode).
	KindUser
	// KindSystem indicates an infrastructure failure (store, gateway).
	KindSystem
)

// Error is the base application error type.
type Error struct {
	// Code is the machine-readable error code.
	Code Code `json:"code"`
	// Message is the human-readable error message.
	Message string `json:"message"`
	// Kind classifies the error for handling decisions.
	Kind Kind `json:"-"`
	// Op is the operation being performed (e.g. "automation.ProcessInboundMessage").
	Op string `json:"-"`
	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeWebhookInvalid:
		return http.StatusUnauthorized
	case CodeStore, CodeGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsUserError reports whether the error was caused by caller input.
func (e *Error) IsUserError() bool {
	return e.Kind == KindUser
}

// NewValidation creates a user-input validation error.
func NewValidation(op, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Kind: KindUser, Op: op}
}

// NewNotFound creates a not-found error.
func NewNotFound(op, message string) *Error {
	return &Error{Code: CodeNotFound, Message: message, Kind: KindUser, Op: op}
}

// NewStore wraps a persistent-store failure.
func NewStore(op string, err error) *Error {
	return &Error{Code: CodeStore, Message: "store access failed", Kind: KindSystem, Op: op, Err: err}
}

// NewGateway wraps a messaging gateway failure.
func NewGateway(op string, err error) *Error {
	return &Error{Code: CodeGateway, Message: "message send failed", Kind: KindSystem, Op: op, Err: err}
}

// NewInternal wraps an unexpected failure.
func NewInternal(op string, err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", Kind: KindSystem, Op: op, Err: err}
}

// IsNotFound reports whether err carries the not-found code.
func IsNotFound(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsUserError reports whether err was caused by caller input.
func IsUserError(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.IsUserError()
	}
	return false
}
