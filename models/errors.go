package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so callers can branch without reading messages.
type ErrorKind string

const (
	KindValidation           ErrorKind = "validation_error"
	KindNotFound             ErrorKind = "not_found"
	KindNoOutstandingOrders  ErrorKind = "no_outstanding_orders"
	KindInvalidConfiguration ErrorKind = "invalid_configuration"
	KindStoreUnavailable     ErrorKind = "store_unavailable"
	KindUnauthorized         ErrorKind = "unauthorized"
	KindForbidden            ErrorKind = "forbidden"
	KindInternal             ErrorKind = "internal_error"
)

// AppError is the error type returned by the service layer.
type AppError struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps an error kind onto the status code used in the response envelope.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindNoOutstandingOrders:
		return http.StatusConflict
	case KindInvalidConfiguration:
		return http.StatusUnprocessableEntity
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ValidationError(field, message string) *AppError {
	return &AppError{Kind: KindValidation, Field: field, Message: message}
}

func MissingField(field string) *AppError {
	return ValidationError(field, "missing required field: "+field)
}

func NotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func NoOutstandingOrders(affiliateID string) *AppError {
	return &AppError{Kind: KindNoOutstandingOrders, Message: "no pending orders found for affiliate " + affiliateID}
}

func InvalidConfiguration(message string) *AppError {
	return &AppError{Kind: KindInvalidConfiguration, Field: "commission_type", Message: message}
}

func StoreUnavailable(op string, err error) *AppError {
	return &AppError{Kind: KindStoreUnavailable, Message: op + " failed", Err: err}
}

func Unauthorized(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

// KindOf returns the kind of err, or KindInternal for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
