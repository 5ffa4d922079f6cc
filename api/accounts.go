package api

import (
	"encoding/json"
	"net/http"

	"github.com/hatchpay/billing-backend/db"
	"github.com/hatchpay/billing-backend/errors"
	"github.com/hatchpay/billing-backend/internal"
	"github.com/hatchpay/billing-backend/log"
	"github.com/hatchpay/billing-backend/notifications/mailtemplates"
)

// registerHandler creates a new account. The password is never stored in
// plain text, only its salted hash. A welcome email is sent best effort.
func (a *API) registerHandler(w http.ResponseWriter, r *http.Request) {
	accountInfo := &AccountInfo{}
	if err := json.NewDecoder(r.Body).Decode(accountInfo); err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}
	if !internal.ValidEmail(accountInfo.Email) {
		errors.ErrEmailMalformed.Write(w)
		return
	}
	if len(accountInfo.Password) < 8 {
		errors.ErrPasswordTooShort.Write(w)
		return
	}
	if accountInfo.FirstName == "" || accountInfo.LastName == "" {
		errors.ErrMalformedBody.Withf("first name and last name are required").Write(w)
		return
	}
	account := &db.Account{
		Email:     accountInfo.Email,
		Password:  internal.HexHashPassword(passwordSalt, accountInfo.Password),
		FirstName: accountInfo.FirstName,
		LastName:  accountInfo.LastName,
		Phone:     accountInfo.Phone,
	}
	if _, err := a.db.SetAccount(account); err != nil {
		if err == db.ErrConflict {
			errors.ErrDuplicateAccount.Write(w)
			return
		}
		errors.ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	a.sendWelcomeEmail(r, account)
	httpWriteOK(w)
}

// sendWelcomeEmail renders and sends the welcome notification. Failures are
// logged but do not affect the registration result.
func (a *API) sendWelcomeEmail(r *http.Request, account *db.Account) {
	if a.mail == nil {
		return
	}
	notification, err := mailtemplates.WelcomeNotification.ExecTemplate(struct {
		Name string
	}{account.FirstName})
	if err != nil {
		log.Warnw("could not render welcome email", "error", err)
		return
	}
	notification.ToAddress = account.Email
	notification.ToName = account.DisplayName()
	if err := a.mail.SendNotification(r.Context(), notification); err != nil {
		log.Warnw("could not send welcome email", "error", err, "email", account.Email)
	}
}

// accountInfoHandler returns the profile of the authenticated account.
func (a *API) accountInfoHandler(w http.ResponseWriter, r *http.Request) {
	account, err := a.accountFromRequest(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	httpWriteJSON(w, &AccountInfo{
		ID:        account.ID,
		Email:     account.Email,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Phone:     account.Phone,
	})
}
