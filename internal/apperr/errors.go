// Package apperr defines the error taxonomy shared by the checkout services
// and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common failure scenarios.
var (
	ErrNotFound          = errors.New("checkout: not found")
	ErrAlreadyExists     = errors.New("checkout: already exists")
	ErrUnauthorized      = errors.New("checkout: unauthorized")
	ErrInvalidTransition = errors.New("checkout: invalid status transition")

	ErrCouponNotFound   = fmt.Errorf("%w: coupon", ErrNotFound)
	ErrLeadNotFound     = fmt.Errorf("%w: payment reference", ErrNotFound)
	ErrSaleNotFound     = fmt.Errorf("%w: referral sale", ErrNotFound)
	ErrWaitlistConflict = fmt.Errorf("%w: email already registered in waitlist", ErrAlreadyExists)
)

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "checkout: validation failed: " + e.Message
	}
	return fmt.Sprintf("checkout: validation failed for %s: %s", e.Field, e.Message)
}

// Invalid is shorthand for a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ExternalServiceError wraps a failed call to the payment gateway or the mail API.
// StatusCode is the upstream HTTP status, zero when the call never got a response.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("checkout: %s returned %d: %s", e.Service, e.StatusCode, msg)
	}
	return fmt.Sprintf("checkout: %s call failed: %s", e.Service, msg)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ConfigurationError reports a required secret or setting that is not configured.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("checkout: missing configuration %s", e.Key)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsExternal returns true if the error came from an external service.
func IsExternal(err error) bool {
	var e *ExternalServiceError
	return errors.As(err, &e)
}

// IsConfiguration returns true if the error is a ConfigurationError.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

// HTTPStatus maps an error onto the status code surfaced to API callers.
// Gateway errors keep the upstream status when it is a client or server error.
func HTTPStatus(err error) int {
	var ext *ExternalServiceError
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case IsConfiguration(err):
		return http.StatusInternalServerError
	case errors.As(err, &ext):
		if ext.StatusCode >= 400 && ext.StatusCode <= 599 {
			return ext.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the human-readable part of err suitable for API responses.
func Message(err error) string {
	var (
		v   *ValidationError
		ext *ExternalServiceError
	)
	switch {
	case errors.As(err, &v):
		return v.Message
	case errors.As(err, &ext):
		if ext.Message != "" {
			return ext.Message
		}
		return "Failed to reach " + ext.Service
	case IsConfiguration(err):
		return "Payment configuration error"
	case IsNotFound(err):
		return "Not found"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	default:
		return "Internal server error"
	}
}
