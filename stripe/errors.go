package stripe

import (
	"errors"
	"fmt"
)

// ProviderError represents a payment provider specific error
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("provider error [%s]: %s", e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Common provider errors
var (
	ErrInvalidEvent          = &ProviderError{Code: "invalid_event", Message: "invalid webhook event"}
	ErrEventNotFound         = &ProviderError{Code: "event_not_found", Message: "webhook event not found upstream"}
	ErrCustomerNotFound      = &ProviderError{Code: "customer_not_found", Message: "provider customer not found"}
	ErrSubscriptionNotFound  = &ProviderError{Code: "subscription_not_found", Message: "provider subscription not found"}
	ErrPlanNotFound          = &ProviderError{Code: "plan_not_found", Message: "subscription plan not configured"}
	ErrInvalidConfiguration  = &ProviderError{Code: "invalid_config", Message: "invalid billing configuration"}
	ErrProviderUnavailable   = &ProviderError{Code: "provider_unavailable", Message: "payment provider unreachable"}
	ErrProviderRejected      = &ProviderError{Code: "provider_rejected", Message: "payment provider rejected the request"}
	ErrNoPaymentDetails      = &ProviderError{Code: "no_payment_details", Message: "account has no payment details"}
	ErrEventAlreadyProcessed = &ProviderError{Code: "event_already_processed", Message: "webhook event already processed"}
)

// NewProviderError creates a new ProviderError with the given code, message,
// and underlying error
func NewProviderError(code, message string, err error) *ProviderError {
	return &ProviderError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsRetryable determines if the caller may retry the operation that produced
// the error. Only transport level failures are retryable, rejections are not.
func IsRetryable(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		switch providerErr.Code {
		case "provider_unavailable", "rate_limit_error":
			return true
		default:
			return false
		}
	}
	return false
}

// HasCode reports whether the error is a ProviderError with the given code.
func HasCode(err error, code string) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Code == code
	}
	return false
}
