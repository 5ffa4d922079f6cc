package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hatchpay/billing-backend/log"
)

// nextSubscriptionID returns the next available subscription ID. This method
// must be called with the keysLock held.
func (ms *MongoStorage) nextSubscriptionID(ctx context.Context) (uint64, error) {
	var subscription Subscription
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	if err := ms.subscriptions.FindOne(ctx, bson.M{}, opts).Decode(&subscription); err != nil {
		if err == mongo.ErrNoDocuments {
			return 1, nil
		}
		return 0, err
	}
	return subscription.ID + 1, nil
}

// SetSubscription creates or updates the subscription record. If the record
// already exists, it updates the fields that have changed.
func (ms *MongoStorage) SetSubscription(subscription *Subscription) (uint64, error) {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	nextID, err := ms.nextSubscriptionID(ctx)
	if err != nil {
		return 0, err
	}
	subscription.UpdatedAt = time.Now()
	if subscription.ID > 0 {
		if subscription.ID >= nextID {
			return 0, ErrInvalidData
		}
		updateDoc, err := dynamicUpdateDocument(subscription, []string{"status", "updatedAt"})
		if err != nil {
			return 0, err
		}
		if _, err := ms.subscriptions.UpdateOne(ctx, bson.M{"_id": subscription.ID}, updateDoc); err != nil {
			return 0, err
		}
	} else {
		subscription.ID = nextID
		subscription.CreatedAt = subscription.UpdatedAt
		if _, err := ms.subscriptions.InsertOne(ctx, subscription); err != nil {
			return 0, err
		}
	}
	return subscription.ID, nil
}

// Subscription returns the subscription record with the given ID, or
// ErrNotFound.
func (ms *MongoStorage) Subscription(subscriptionID uint64) (*Subscription, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	return ms.fetchSubscription(ctx, bson.M{"_id": subscriptionID})
}

// SubscriptionByStripeID returns the record for the given provider
// subscription ID scoped to the owning account. Scoping by account prevents
// an event for one customer from mutating another customer's record.
func (ms *MongoStorage) SubscriptionByStripeID(accountID uint64, stripeID string) (*Subscription, error) {
	if stripeID == "" {
		return nil, ErrNotFound
	}
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	return ms.fetchSubscription(ctx, bson.M{"accountID": accountID, "stripeID": stripeID})
}

func (ms *MongoStorage) fetchSubscription(ctx context.Context, filter bson.M) (*Subscription, error) {
	subscription := &Subscription{}
	if err := ms.subscriptions.FindOne(ctx, filter).Decode(subscription); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, errors.New("failed to get subscription")
	}
	return subscription, nil
}

// ActiveSubscriptionByPlan returns the newest non-cancelled record for the
// given account and plan, or ErrNotFound.
func (ms *MongoStorage) ActiveSubscriptionByPlan(accountID uint64, planID string) (*Subscription, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	subscription := &Subscription{}
	err := ms.subscriptions.FindOne(ctx, bson.M{
		"accountID": accountID,
		"planID":    planID,
		"status":    bson.M{"$ne": StatusCancelled},
	}, opts).Decode(subscription)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, errors.New("failed to get subscription")
	}
	return subscription, nil
}

// AccountSubscriptions returns every subscription record owned by the
// account, newest first.
func (ms *MongoStorage) AccountSubscriptions(accountID uint64) ([]*Subscription, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cursor, err := ms.subscriptions.Find(ctx, bson.M{"accountID": accountID}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("failed to close subscriptions cursor", "error", err)
		}
	}()
	var subscriptions []*Subscription
	for cursor.Next(ctx) {
		subscription := &Subscription{}
		if err := cursor.Decode(subscription); err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// IncrementPaymentAttempts atomically increments the failed payment counter
// of the record and returns the updated document. The single
// read-modify-write keeps concurrent failure deliveries from losing updates
// or double-counting against the cancellation threshold.
func (ms *MongoStorage) IncrementPaymentAttempts(subscriptionID uint64) (*Subscription, error) {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	subscription := &Subscription{}
	err := ms.subscriptions.FindOneAndUpdate(ctx,
		bson.M{"_id": subscriptionID},
		bson.M{
			"$inc": bson.M{"paymentAttempts": 1},
			"$set": bson.M{"updatedAt": time.Now()},
		}, opts).Decode(subscription)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return subscription, nil
}

// ResetPaymentAttempts sets the failed payment counter of the record back to
// zero.
func (ms *MongoStorage) ResetPaymentAttempts(subscriptionID uint64) error {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	res, err := ms.subscriptions.UpdateOne(ctx, bson.M{"_id": subscriptionID},
		bson.M{"$set": bson.M{"paymentAttempts": 0, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSubscriptionStatus updates the status of the record.
func (ms *MongoStorage) SetSubscriptionStatus(subscriptionID uint64, status string) error {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	res, err := ms.subscriptions.UpdateOne(ctx, bson.M{"_id": subscriptionID},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DelSubscription deletes the subscription record with the given ID. The
// provider-side cancellation side effect is handled by the billing service
// before calling this method.
func (ms *MongoStorage) DelSubscription(subscription *Subscription) error {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	_, err := ms.subscriptions.DeleteOne(ctx, bson.M{"_id": subscription.ID})
	return err
}

// DelAccountSubscriptions deletes every subscription record owned by the
// account. Used by the clear-on-setup policy after provider-side
// cancellation has been dealt with.
func (ms *MongoStorage) DelAccountSubscriptions(accountID uint64) error {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	_, err := ms.subscriptions.DeleteMany(ctx, bson.M{"accountID": accountID})
	return err
}
