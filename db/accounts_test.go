package db

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestSetAccount(t *testing.T) {
	defer func() {
		if err := testDB.Reset(); err != nil {
			t.Error(err)
		}
	}()
	c := qt.New(t)

	account := testAccount()
	id, err := testDB.SetAccount(account)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint64(1))

	// duplicate email is rejected
	_, err = testDB.SetAccount(testAccount())
	c.Assert(err, qt.Equals, ErrConflict)

	// update an existing account
	account.FirstName = "Updated"
	_, err = testDB.SetAccount(account)
	c.Assert(err, qt.IsNil)
	stored, err := testDB.Account(id)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.FirstName, qt.Equals, "Updated")

	// setting an ID that was never assigned is invalid
	_, err = testDB.SetAccount(&Account{ID: 100, Email: "other@example.com"})
	c.Assert(err, qt.Equals, ErrInvalidData)
}

func TestAccountByEmail(t *testing.T) {
	defer func() {
		if err := testDB.Reset(); err != nil {
			t.Error(err)
		}
	}()
	c := qt.New(t)

	_, err := testDB.AccountByEmail(testAccountEmail)
	c.Assert(err, qt.Equals, ErrNotFound)

	id, err := testDB.SetAccount(testAccount())
	c.Assert(err, qt.IsNil)
	account, err := testDB.AccountByEmail(testAccountEmail)
	c.Assert(err, qt.IsNil)
	c.Assert(account.ID, qt.Equals, id)
	c.Assert(account.DisplayName(), qt.Equals, testFirstName+" "+testLastName)
}

func TestSetAccountCustomerID(t *testing.T) {
	defer func() {
		if err := testDB.Reset(); err != nil {
			t.Error(err)
		}
	}()
	c := qt.New(t)

	id, err := testDB.SetAccount(testAccount())
	c.Assert(err, qt.IsNil)

	// no link yet, lookup by customer fails
	_, err = testDB.AccountByCustomerID(testCustomerID)
	c.Assert(err, qt.Equals, ErrNotFound)
	// the empty customer ID never resolves, even though unlinked accounts
	// store an empty string
	_, err = testDB.AccountByCustomerID("")
	c.Assert(err, qt.Equals, ErrNotFound)

	c.Assert(testDB.SetAccountCustomerID(id, testCustomerID, false), qt.IsNil)
	account, err := testDB.AccountByCustomerID(testCustomerID)
	c.Assert(err, qt.IsNil)
	c.Assert(account.ID, qt.Equals, id)

	// re-linking the same customer is a no-op, a different one conflicts
	c.Assert(testDB.SetAccountCustomerID(id, testCustomerID, false), qt.IsNil)
	c.Assert(testDB.SetAccountCustomerID(id, "cus_other", false), qt.Equals, ErrConflict)
	// unless the caller found the upstream customer deleted
	c.Assert(testDB.SetAccountCustomerID(id, "cus_other", true), qt.IsNil)

	c.Assert(testDB.SetAccountCustomerID(999, testCustomerID, false), qt.Equals, ErrNotFound)
}

func TestResetAccountPaymentAttempts(t *testing.T) {
	defer func() {
		if err := testDB.Reset(); err != nil {
			t.Error(err)
		}
	}()
	c := qt.New(t)

	account := testAccount()
	account.PaymentAttempts = 2
	id, err := testDB.SetAccount(account)
	c.Assert(err, qt.IsNil)

	c.Assert(testDB.ResetAccountPaymentAttempts(id), qt.IsNil)
	stored, err := testDB.Account(id)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.PaymentAttempts, qt.Equals, 0)

	c.Assert(testDB.ResetAccountPaymentAttempts(999), qt.Equals, ErrNotFound)
}
