// Package errors provides the typed errors returned by the HTTP API.
//
//nolint:lll
package errors

import (
	"fmt"
	"net/http"
)

// Error codes in the 40001-49999 range are the client's fault and return an
// HTTP Status of 400, 401, 404 or 409, whatever is most appropriate. Error
// codes 50001-59999 are the server's (or the payment provider's) fault and
// return HTTP Status 500 or 503.
//
// NEVER change any of the current error codes, only append new errors after
// the current last 4XXX or 5XXX.
var (
	// Authentication errors (401)
	ErrUnauthorized = Error{Code: 40001, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("authentication required"), LogLevel: "info"}

	// Validation errors (400)
	ErrEmailMalformed    = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid email format")}
	ErrPasswordTooShort  = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("password must be at least 8 characters")}
	ErrMalformedBody     = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON request body")}
	ErrMalformedURLParam = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid URL parameter")}
	ErrMissingToken      = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("payment token is required")}

	// Not found errors (404)
	ErrAccountNotFound      = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("account not found")}
	ErrSubscriptionNotFound = Error{Code: 40008, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("subscription not found")}
	ErrPlanNotFound         = Error{Code: 40009, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("subscription plan not found")}
	ErrUnknownSubscriber    = Error{Code: 40010, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("event does not match a known subscriber"), LogLevel: "info"}
	ErrNoPaymentDetails     = Error{Code: 40011, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("no payment details on file")}

	// Conflict errors (409)
	ErrDuplicateAccount      = Error{Code: 40012, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("account already registered")}
	ErrDuplicateCustomerLink = Error{Code: 40013, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("account is already linked to a customer")}

	// Server errors (5XX)
	ErrGenericInternalServerError = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrPaymentProvider            = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("payment provider request failed")}
	ErrMissingConfiguration       = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("service is not configured")}
)
