// Package errors defines the sentinel errors shared across the cart engine
// and how each maps onto an HTTP response.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for request-level failures.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// Cart engine anomaly classes. None of them escapes the engine boundary: a
// validation failure drops the offending persisted record, a capacity failure
// is clamped, and a storage failure is logged while memory stays authoritative.
var (
	ErrValidation = errors.New("validation failed")
	ErrCapacity   = errors.New("quantity out of bounds")
	ErrStorage    = errors.New("storage failure")
)

// Error codes written to the response envelope.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeConflict           = "CONFLICT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeCapacity           = "CAPACITY_EXCEEDED"
	CodeStorage            = "STORAGE_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

const internalMessage = "an internal error occurred"

// class describes how a sentinel surfaces to clients. An empty message
// passes the error text through, for errors that only echo caller input.
type class struct {
	sentinel error
	code     string
	status   int
	message  string
}

var classes = []class{
	{ErrNotFound, CodeNotFound, http.StatusNotFound, "resource not found"},
	{ErrConflict, CodeConflict, http.StatusConflict, ""},
	{ErrInvalidInput, CodeInvalidInput, http.StatusBadRequest, ""},
	{ErrValidation, CodeValidation, http.StatusUnprocessableEntity, ""},
	{ErrCapacity, CodeCapacity, http.StatusUnprocessableEntity, ""},
	{ErrStorage, CodeStorage, http.StatusServiceUnavailable, "cart storage is unavailable"},
	{ErrServiceUnavail, CodeServiceUnavailable, http.StatusServiceUnavailable, "service unavailable"},
}

// AppError is an error with a client-facing code and message.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing resource, e.g. NotFound("product", "42").
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput reports a malformed request.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Storage wraps a failure of the durability layer. op names what was being
// attempted and is the only part shown to clients.
func Storage(op string, err error) *AppError {
	return &AppError{
		Code:    CodeStorage,
		Message: op,
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(ErrStorage, err),
	}
}

// Wrap prefixes err with message, keeping it matchable with errors.Is.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Describe returns the status, code and client-safe message for err. An
// AppError anywhere in the chain wins; then the first matching sentinel;
// anything else is an opaque 500.
func Describe(err error) (status int, code, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Code, appErr.Message
	}
	for _, c := range classes {
		if !errors.Is(err, c.sentinel) {
			continue
		}
		if c.message == "" {
			return c.status, c.code, err.Error()
		}
		return c.status, c.code, c.message
	}
	return http.StatusInternalServerError, CodeInternal, internalMessage
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	status, _, _ := Describe(err)
	return status
}
