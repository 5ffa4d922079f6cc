package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/hatchpay/billing-backend/db"
	"github.com/hatchpay/billing-backend/errors"
	"github.com/hatchpay/billing-backend/internal"
)

// authenticator is a middleware that validates the JWT of the request. On
// success the account identifier is added to the HTTP header as
// `X-Account-Id`, so that it can be used by the next handlers.
func (a *API) authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			errors.ErrUnauthorized.Write(w)
			return
		}
		if token == nil || jwt.Validate(token, jwt.WithRequiredClaim("accountId")) != nil {
			errors.ErrUnauthorized.Withf("accountId claim not found in JWT token").Write(w)
			return
		}
		accountID, ok := claims["accountId"].(string)
		if !ok {
			errors.ErrUnauthorized.Write(w)
			return
		}
		r.Header.Set("X-Account-Id", accountID)
		next.ServeHTTP(w, r)
	})
}

// buildLoginResponse creates a JWT token for the given account identifier.
// The token is signed with the API secret, following the JWT specification.
// The token is valid for the period specified on jwtExpiration constant.
func (a *API) buildLoginResponse(id string) (*LoginResponse, error) {
	j := jwt.New()
	if err := j.Set("accountId", id); err != nil {
		return nil, err
	}
	if err := j.Set(jwt.ExpirationKey, time.Now().Add(jwtExpiration).UnixNano()); err != nil {
		return nil, err
	}
	lr := LoginResponse{}
	lr.Expirity = time.Now().Add(jwtExpiration)
	jmap, err := j.AsMap(context.Background())
	if err != nil {
		return nil, err
	}
	_, lr.Token, _ = a.auth.Encode(jmap)
	return &lr, nil
}

// authLoginHandler authenticates an account by email and password and
// returns a JWT token.
func (a *API) authLoginHandler(w http.ResponseWriter, r *http.Request) {
	loginInfo := &AccountInfo{}
	if err := json.NewDecoder(r.Body).Decode(loginInfo); err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}
	account, err := a.db.AccountByEmail(loginInfo.Email)
	if err != nil {
		if err == db.ErrNotFound {
			errors.ErrUnauthorized.Write(w)
			return
		}
		errors.ErrGenericInternalServerError.Write(w)
		return
	}
	if pass := internal.HexHashPassword(passwordSalt, loginInfo.Password); pass != account.Password {
		errors.ErrUnauthorized.Write(w)
		return
	}
	res, err := a.buildLoginResponse(account.Email)
	if err != nil {
		errors.ErrGenericInternalServerError.Write(w)
		return
	}
	httpWriteJSON(w, res)
}

// refreshTokenHandler issues a fresh JWT token for the authenticated account.
func (a *API) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	account, err := a.accountFromRequest(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	res, err := a.buildLoginResponse(account.Email)
	if err != nil {
		errors.ErrGenericInternalServerError.Write(w)
		return
	}
	httpWriteJSON(w, res)
}
