// Package db provides the MongoDB persistence layer for accounts and
// subscription records.
package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hatchpay/billing-backend/log"
)

const dbTimeout = 10 * time.Second

// MongoStorage uses an external MongoDB service for storing accounts and
// their subscription records.
type MongoStorage struct {
	client   *mongo.Client
	database string
	keysLock sync.RWMutex

	accounts      *mongo.Collection
	subscriptions *mongo.Collection
}

// New connects to the MongoDB server and initializes the collections and
// indexes. It does not reset any data.
func New(url, database string) (*MongoStorage, error) {
	if url == "" {
		return nil, fmt.Errorf("mongo URL is not defined")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database is not defined")
	}
	log.Infow("connecting to mongodb", "url", url, "database", database)
	opts := options.Client()
	opts.ApplyURI(url)
	timeout := dbTimeout
	opts.ConnectTimeout = &timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	ms := &MongoStorage{
		client:        client,
		database:      database,
		accounts:      client.Database(database).Collection("accounts"),
		subscriptions: client.Database(database).Collection("subscriptions"),
	}
	if err := ms.createIndexes(); err != nil {
		return nil, err
	}
	return ms, nil
}

// Close disconnects from the MongoDB server.
func (ms *MongoStorage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if err := ms.client.Disconnect(ctx); err != nil {
		log.Warn(err)
	}
}

// Reset drops the collections and recreates the indexes. Used by tests.
func (ms *MongoStorage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if err := ms.accounts.Drop(ctx); err != nil {
		return err
	}
	if err := ms.subscriptions.Drop(ctx); err != nil {
		return err
	}
	return ms.createIndexes()
}

func (ms *MongoStorage) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	// accounts are looked up by email (login) and by provider customer ID
	// (webhook resolution)
	if _, err := ms.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "customerID", Value: 1}},
		},
	}); err != nil {
		return fmt.Errorf("failed to create accounts indexes: %w", err)
	}
	// subscription records are resolved by provider subscription ID scoped
	// to the owning account, and by plan for the idempotent subscribe check
	if _, err := ms.subscriptions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "accountID", Value: 1}, {Key: "stripeID", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "accountID", Value: 1}, {Key: "planID", Value: 1}},
		},
	}); err != nil {
		return fmt.Errorf("failed to create subscriptions indexes: %w", err)
	}
	return nil
}
