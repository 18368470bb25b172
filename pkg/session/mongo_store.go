package session

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const sessionsCollection = "sessions"

// MongoStore implements Store over a MongoDB collection, one document
// per session keyed by the session id.
type MongoStore struct {
	coll *mongo.Collection
	ttl  time.Duration
}

// NewMongoStore creates a session store backed by the "sessions"
// collection of the given database.
func NewMongoStore(db *mongo.Database, ttl time.Duration) *MongoStore {
	return &MongoStore{
		coll: db.Collection(sessionsCollection),
		ttl:  ttl,
	}
}

func (m *MongoStore) Create(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidSession
	}

	if _, err := m.coll.InsertOne(ctx, s); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (m *MongoStore) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	if s.IsExpired(m.ttl) {
		// Lazy expiry: the read observed a dead record, remove it.
		_ = m.Delete(ctx, id)
		return nil, ErrSessionExpired
	}

	return &s, nil
}

func (m *MongoStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_accessed_at": at.UTC()}},
	)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (m *MongoStore) DeleteByUserID(ctx context.Context, userID int64) error {
	if _, err := m.coll.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
