package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// nextAccountID returns the next available account ID. This method must be
// called with the keysLock held.
func (ms *MongoStorage) nextAccountID(ctx context.Context) (uint64, error) {
	var account Account
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	if err := ms.accounts.FindOne(ctx, bson.M{}, opts).Decode(&account); err != nil {
		if err == mongo.ErrNoDocuments {
			return 1, nil
		}
		return 0, err
	}
	return account.ID + 1, nil
}

// SetAccount creates or updates the account in the database. On creation it
// assigns the next ID and returns it. A duplicate email yields ErrConflict.
func (ms *MongoStorage) SetAccount(account *Account) (uint64, error) {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	nextID, err := ms.nextAccountID(ctx)
	if err != nil {
		return 0, err
	}
	if account.ID > 0 {
		if account.ID >= nextID {
			return 0, ErrInvalidData
		}
		updateDoc, err := dynamicUpdateDocument(account, nil)
		if err != nil {
			return 0, err
		}
		if _, err := ms.accounts.UpdateOne(ctx, bson.M{"_id": account.ID}, updateDoc); err != nil {
			return 0, err
		}
	} else {
		account.ID = nextID
		account.CreatedAt = time.Now()
		if _, err := ms.accounts.InsertOne(ctx, account); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return 0, ErrConflict
			}
			return 0, err
		}
	}
	return account.ID, nil
}

// Account returns the account with the given ID, or ErrNotFound.
func (ms *MongoStorage) Account(accountID uint64) (*Account, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	return ms.fetchAccount(ctx, bson.M{"_id": accountID})
}

// AccountByEmail returns the account with the given email, or ErrNotFound.
func (ms *MongoStorage) AccountByEmail(email string) (*Account, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	return ms.fetchAccount(ctx, bson.M{"email": email})
}

// AccountByCustomerID returns the account linked to the given provider
// customer ID, or ErrNotFound. Webhook events are resolved through this
// lookup.
func (ms *MongoStorage) AccountByCustomerID(customerID string) (*Account, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	return ms.fetchAccount(ctx, bson.M{"customerID": customerID})
}

func (ms *MongoStorage) fetchAccount(ctx context.Context, filter bson.M) (*Account, error) {
	account := &Account{}
	if err := ms.accounts.FindOne(ctx, filter).Decode(account); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, errors.New("failed to get account")
	}
	return account, nil
}

// SetAccountCustomerID stores the provider customer link for the account.
// Linking an account that already has a different customer attached yields
// ErrConflict, unless overwrite is set (used when the upstream customer was
// deleted and a replacement has been created).
func (ms *MongoStorage) SetAccountCustomerID(accountID uint64, customerID string, overwrite bool) error {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	account := &Account{}
	if err := ms.accounts.FindOne(ctx, bson.M{"_id": accountID}).Decode(account); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}
	if account.CustomerID != "" && account.CustomerID != customerID && !overwrite {
		return ErrConflict
	}
	_, err := ms.accounts.UpdateOne(ctx, bson.M{"_id": accountID},
		bson.M{"$set": bson.M{"customerID": customerID}})
	return err
}

// IncrementAccountPaymentAttempts adds one to the account level failed
// payment counter and returns the updated value. The increment is a single
// atomic operation.
func (ms *MongoStorage) IncrementAccountPaymentAttempts(accountID uint64) (int, error) {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	account := &Account{}
	err := ms.accounts.FindOneAndUpdate(ctx, bson.M{"_id": accountID},
		bson.M{"$inc": bson.M{"paymentAttempts": 1}}, opts).Decode(account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return account.PaymentAttempts, nil
}

// ResetAccountPaymentAttempts sets the account level failed payment counter
// back to zero.
func (ms *MongoStorage) ResetAccountPaymentAttempts(accountID uint64) error {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	res, err := ms.accounts.UpdateOne(ctx, bson.M{"_id": accountID},
		bson.M{"$set": bson.M{"paymentAttempts": 0}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DelAccount deletes the account with the given ID.
func (ms *MongoStorage) DelAccount(account *Account) error {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	_, err := ms.accounts.DeleteOne(ctx, bson.M{"_id": account.ID})
	return err
}
