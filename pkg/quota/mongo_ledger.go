package quota

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const creditsCollection = "credits"

// MongoLedger implements Ledger on a MongoDB collection with one
// document per user. All mutations are single-document conditional
// updates, which MongoDB applies atomically, so concurrent consumers
// serialize without an explicit transaction.
type MongoLedger struct {
	coll *mongo.Collection
	plan Plan
}

// NewMongoLedger creates a ledger backed by the "credits" collection of
// the given database.
func NewMongoLedger(db *mongo.Database, plan Plan) *MongoLedger {
	return &MongoLedger{
		coll: db.Collection(creditsCollection),
		plan: plan,
	}
}

func (m *MongoLedger) EnsureInitialized(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	_, err := m.coll.InsertOne(ctx, Record{
		UserID:    userID,
		Credits:   m.plan.InitialCredits,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		// The _id unique index makes this a create-fail-if-exists:
		// exactly one concurrent first access wins, the rest land here.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return errors.Join(ErrLedgerUnavailable, err)
	}
	return nil
}

func (m *MongoLedger) Consume(ctx context.Context, userID int64) error {
	err := m.decrement(ctx, userID)
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}

	// No match means either the record is absent or the balance is
	// zero. Initialize lazily and retry once to tell the two apart.
	if err := m.EnsureInitialized(ctx, userID); err != nil {
		return err
	}

	if err := m.decrement(ctx, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrInsufficientCredits
		}
		return err
	}
	return nil
}

// decrement performs the conditional spend. mongo.ErrNoDocuments means
// the filter matched nothing.
func (m *MongoLedger) decrement(ctx context.Context, userID int64) error {
	err := m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": userID, "credits": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"credits": -1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	).Err()
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Join(ErrLedgerUnavailable, err)
	}
	return err
}

func (m *MongoLedger) Grant(ctx context.Context, userID int64, amount int64) error {
	if err := m.EnsureInitialized(ctx, userID); err != nil {
		return err
	}

	filter := bson.M{"_id": userID}
	if amount < 0 {
		// Corrective grants may not take the balance below zero.
		filter["credits"] = bson.M{"$gte": -amount}
	}

	err := m.coll.FindOneAndUpdate(ctx,
		filter,
		bson.M{
			"$inc": bson.M{"credits": amount},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNegativeBalance
		}
		return errors.Join(ErrLedgerUnavailable, err)
	}
	return nil
}

func (m *MongoLedger) Status(ctx context.Context, userID int64) (Status, error) {
	var rec Record
	err := m.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&rec)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return Status{}, errors.Join(ErrLedgerUnavailable, err)
		}

		if err := m.EnsureInitialized(ctx, userID); err != nil {
			return Status{}, err
		}

		// Re-read rather than assume the initial grant: a concurrent
		// first access may have won the insert and already spent.
		if err := m.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&rec); err != nil {
			return Status{}, errors.Join(ErrLedgerUnavailable, err)
		}
	}

	return Status{Credits: rec.Credits, CanUse: rec.Credits > 0}, nil
}

func (m *MongoLedger) Erase(ctx context.Context, userID int64) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return errors.Join(ErrLedgerUnavailable, err)
	}
	return nil
}
