package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	userIndexPrefix  = "user_sessions:"
	userIndexSlack   = time.Hour // index may outlive its members slightly
)

// RedisStore implements Store on Redis. Each session is a JSON value
// with a native key TTL; a per-user set indexes session ids so
// DeleteByUserID does not scan the keyspace. Key expiry approximates
// the sliding TTL and the record timestamps remain authoritative, so
// Get still applies the lazy expiry check.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a session store on the given Redis client.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func userIndexKey(userID int64) string {
	return userIndexPrefix + strconv.FormatInt(userID, 10)
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidSession
	}

	data, err := json.Marshal(s)
	if err != nil {
		return errors.Join(ErrInvalidSession, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(s.ID), data, r.ttl)
	pipe.SAdd(ctx, userIndexKey(s.UserID), s.ID)
	pipe.Expire(ctx, userIndexKey(s.UserID), r.ttl+userIndexSlack)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Join(ErrInvalidSession, err)
	}

	if s.IsExpired(r.ttl) {
		_ = r.Delete(ctx, id)
		return nil, ErrSessionExpired
	}

	return &s, nil
}

func (r *RedisStore) Touch(ctx context.Context, id string, at time.Time) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	s.Touch(at)
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Join(ErrInvalidSession, err)
	}

	if err := r.client.Set(ctx, sessionKey(id), data, r.ttl).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	// Fetch first so the user index entry can be removed alongside.
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errors.Join(ErrStoreUnavailable, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	if err == nil {
		var s Session
		if jsonErr := json.Unmarshal(data, &s); jsonErr == nil {
			pipe.SRem(ctx, userIndexKey(s.UserID), id)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) DeleteByUserID(ctx context.Context, userID int64) error {
	ids, err := r.client.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userIndexKey(userID))

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
