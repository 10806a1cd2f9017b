package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v81"

	"github.com/investplan/payments-backend/ledger"
)

// StripeError represents a Stripe-specific error
type StripeError struct {
	Code    string
	Message string
	Type    string
	Err     error
}

func (e *StripeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stripe error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("stripe error [%s]: %s", e.Code, e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by code so wrapped instances still compare equal.
func (e *StripeError) Is(target error) bool {
	t, ok := target.(*StripeError)
	return ok && t.Code == e.Code
}

// Common Stripe errors
var (
	ErrInvalidConfiguration = &StripeError{Code: "invalid_configuration", Message: "invalid stripe configuration"}
	ErrWebhookValidation    = &StripeError{Code: "webhook_validation", Message: "webhook signature validation failed"}
	ErrInvalidEvent         = &StripeError{Code: "invalid_event", Message: "invalid webhook event"}
)

// Error codes assigned to vendor failures.
const (
	codeRateLimit     = "rate_limit_error"
	codeTemporary     = "temporary_error"
	codeAPIConnection = "api_connection_error"
	codeNotFound      = "resource_missing"
)

// NewStripeError creates a new StripeError with the given code, message, and underlying error
func NewStripeError(code, message string, err error) *StripeError {
	return &StripeError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// wrapAPIError turns an error returned by stripe-go into a StripeError, or
// into a ledger.NotFoundError when the requested object does not exist.
func wrapAPIError(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *stripeapi.Error
	if !errors.As(err, &apiErr) {
		return NewStripeError(codeAPIConnection, "cannot reach stripe", err)
	}
	if apiErr.Code == stripeapi.ErrorCodeResourceMissing || apiErr.HTTPStatusCode == http.StatusNotFound {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	se := &StripeError{
		Code:    string(apiErr.Code),
		Message: apiErr.Msg,
		Type:    string(apiErr.Type),
		Err:     err,
	}
	switch {
	case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
		se.Code = codeRateLimit
	case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
		se.Code = codeTemporary
	case se.Code == "":
		se.Code = se.Type
	}
	return se
}

// IsTemporaryError determines if an error is temporary
func IsTemporaryError(err error) bool {
	var stripeErr *StripeError
	if errors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case codeRateLimit, codeTemporary, codeAPIConnection:
			return true
		default:
			return false
		}
	}
	return false
}

func isNotFound(err error) bool {
	var nf *ledger.NotFoundError
	return errors.As(err, &nf)
}
