package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeBadRequest   = "BAD_REQUEST"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInvalidState = "INVALID_STATE"
	CodeInternal     = "INTERNAL_ERROR"
	CodeTooMany      = "TOO_MANY_REQUESTS"
	CodePayment      = "PAYMENT_REQUIRED"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
	Details interface{}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches client-facing data, such as a payment redirect URL.
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Validation reports malformed input that passed binding but breaks a domain rule.
func Validation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
		Err:     nil,
	}
}

// InvalidState reports an operation that is not allowed in the aggregate's current status.
func InvalidState(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidState,
		Message: message,
		Status:  http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// PaymentRequired reports a charge the payer still has to complete.
func PaymentRequired(message string) *AppError {
	return &AppError{
		Code:    CodePayment,
		Message: message,
		Status:  http.StatusPaymentRequired,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:    CodeTooMany,
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// As exposes errors.As so callers importing this package under the name
// "errors" keep access to the standard helper.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
