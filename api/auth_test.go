package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/hatchpay/billing-backend/internal"
)

func testEmail() string {
	return fmt.Sprintf("user-%s@test.com", internal.RandomHex(4))
}

func TestRegisterHandler(t *testing.T) {
	c := qt.New(t)

	// invalid body
	resp, code := testRequest(t, http.MethodPost, "", "invalid body", accountsEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(string(resp), qt.Contains, "40004") // ErrMalformedBody

	// malformed email
	info := &AccountInfo{
		Email:     "not-an-email",
		Password:  testPass,
		FirstName: testFirstName,
		LastName:  testLastName,
	}
	resp, code = testRequest(t, http.MethodPost, "", info, accountsEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(string(resp), qt.Contains, "40002") // ErrEmailMalformed

	// short password
	info.Email = testEmail()
	info.Password = "short"
	resp, code = testRequest(t, http.MethodPost, "", info, accountsEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(string(resp), qt.Contains, "40003") // ErrPasswordTooShort

	// missing names
	info.Password = testPass
	info.FirstName = ""
	_, code = testRequest(t, http.MethodPost, "", info, accountsEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)

	// valid registration
	info.FirstName = testFirstName
	_, code = testRequest(t, http.MethodPost, "", info, accountsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)

	// the password is stored hashed, never in plain text
	stored, err := testDB.AccountByEmail(info.Email)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Password, qt.Equals, internal.HexHashPassword(passwordSalt, testPass))

	// duplicate email
	resp, code = testRequest(t, http.MethodPost, "", info, accountsEndpoint)
	c.Assert(code, qt.Equals, http.StatusConflict)
	c.Assert(string(resp), qt.Contains, "40012") // ErrDuplicateAccount
}

func TestLoginHandler(t *testing.T) {
	c := qt.New(t)

	email := testEmail()
	info := &AccountInfo{
		Email:     email,
		Password:  testPass,
		FirstName: testFirstName,
		LastName:  testLastName,
	}
	_, code := testRequest(t, http.MethodPost, "", info, accountsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)

	// invalid body
	_, code = testRequest(t, http.MethodPost, "", "invalid body", authLoginEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)

	// unknown account
	_, code = testRequest(t, http.MethodPost, "",
		&AccountInfo{Email: "nobody@test.com", Password: testPass}, authLoginEndpoint)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)

	// wrong password
	_, code = testRequest(t, http.MethodPost, "",
		&AccountInfo{Email: email, Password: "wrong-password"}, authLoginEndpoint)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)

	// valid login returns a usable token
	resp, code := testRequest(t, http.MethodPost, "",
		&AccountInfo{Email: email, Password: testPass}, authLoginEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	var login LoginResponse
	c.Assert(json.Unmarshal(resp, &login), qt.IsNil)
	c.Assert(login.Token, qt.Not(qt.Equals), "")

	// the token authenticates the account info endpoint
	resp, code = testRequest(t, http.MethodGet, login.Token, nil, accountsMeEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	var me AccountInfo
	c.Assert(json.Unmarshal(resp, &me), qt.IsNil)
	c.Assert(me.Email, qt.Equals, email)
	c.Assert(me.FirstName, qt.Equals, testFirstName)
	c.Assert(me.Password, qt.Equals, "")

	// no token, garbage token
	_, code = testRequest(t, http.MethodGet, "", nil, accountsMeEndpoint)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)
	_, code = testRequest(t, http.MethodGet, "garbage", nil, accountsMeEndpoint)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)
}

func TestRefreshTokenHandler(t *testing.T) {
	c := qt.New(t)

	token := registerAndLogin(t, testEmail())

	// refresh requires a valid token
	_, code := testRequest(t, http.MethodPost, "", nil, authRefreshTokenEndpoint)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)

	resp, code := testRequest(t, http.MethodPost, token, nil, authRefreshTokenEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	var refreshed LoginResponse
	c.Assert(json.Unmarshal(resp, &refreshed), qt.IsNil)
	c.Assert(refreshed.Token, qt.Not(qt.Equals), "")

	// the fresh token works too
	_, code = testRequest(t, http.MethodGet, refreshed.Token, nil, accountsMeEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
}
