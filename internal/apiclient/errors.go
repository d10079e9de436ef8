package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated means no access token was stored when an authenticated call was made.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoRefreshToken   = errors.New("no refresh token stored")
)

// AuthRefreshFailedError is returned when a 401 could not be recovered by refreshing.
// The user has to log in again.
type AuthRefreshFailedError struct {
	Cause error
}

func (e *AuthRefreshFailedError) Error() string {
	return fmt.Sprintf("authentication refresh failed: %v", e.Cause)
}

func (e *AuthRefreshFailedError) Unwrap() error { return e.Cause }

// PaymentAmbiguousAuthError is returned instead of AuthRefreshFailedError when the
// failed request was a payment submission. The backend may have executed the payment
// before rejecting the token, so the caller must check the transaction history
// before submitting again.
type PaymentAmbiguousAuthError struct {
	Cause error
}

func (e *PaymentAmbiguousAuthError) Error() string {
	return "session expired while submitting a payment; the payment may have completed, check the transaction history before retrying"
}

func (e *PaymentAmbiguousAuthError) Unwrap() error { return e.Cause }

// HTTPError carries a non-2xx backend response.
type HTTPError struct {
	Status  int
	Body    string
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

func newHTTPError(status int, body []byte) *HTTPError {
	e := &HTTPError{Status: status, Body: string(body)}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Message
		if e.Message == "" {
			e.Message = payload.Error
		}
	}
	return e
}

// MalformedResponseError means a 2xx response whose body could not be decoded.
type MalformedResponseError struct {
	Reason string
	Cause  error
}

func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Cause)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Cause }

// ValidationError rejects a request before it is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsAuthError reports whether err requires the user to log in again.
func IsAuthError(err error) bool {
	var refresh *AuthRefreshFailedError
	return errors.Is(err, ErrNotAuthenticated) || errors.As(err, &refresh)
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}
