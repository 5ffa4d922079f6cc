package api

import (
	"encoding/json"
	"net/http"

	"github.com/hatchpay/billing-backend/db"
	"github.com/hatchpay/billing-backend/errors"
	"github.com/hatchpay/billing-backend/log"
)

// accountFromRequest returns the authenticated account of the request. The
// authenticator middleware stores the account email in the X-Account-Id
// header after validating the JWT.
func (a *API) accountFromRequest(r *http.Request) (*db.Account, error) {
	email := r.Header.Get("X-Account-Id")
	if email == "" {
		return nil, errors.ErrUnauthorized
	}
	account, err := a.db.AccountByEmail(email)
	if err != nil {
		if err == db.ErrNotFound {
			return nil, errors.ErrUnauthorized
		}
		return nil, errors.ErrGenericInternalServerError.WithErr(err)
	}
	return account, nil
}

// writeAPIError writes the error to the response if it is one of ours,
// otherwise it logs the detail and answers with the generic internal error.
// Handlers never leak raw provider or storage errors to the client.
func writeAPIError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(errors.Error); ok {
		apiErr.Write(w)
		return
	}
	errors.ErrGenericInternalServerError.WithErr(err).Write(w)
}

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}
