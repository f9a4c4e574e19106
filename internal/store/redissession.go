package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
)

// RedisSessionStore is an optional pending-session backend selected via
// config.SessionStore.Backend == "redis". It stores each session as a
// string key with Redis's own TTL enforcing expiry, and implements
// SweepExpired as a no-op since Redis expires keys itself; it is retained
// so operators can still invoke the management sweep endpoint uniformly.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore dials a Redis instance at url (e.g. redis://host:6379/0).
func NewRedisSessionStore(url string) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apierror.Config(err, "invalid session-store redis-url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, apierror.Storage(err, "failed to connect to session-store redis")
	}
	return &RedisSessionStore{client: client, prefix: "cliproxy:session:"}, nil
}

func (r *RedisSessionStore) key(state string) string { return r.prefix + state }

// Save stores the session with a TTL matching its remaining lifetime.
func (r *RedisSessionStore) Save(sess *PendingSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return apierror.Storage(err, "failed to marshal session %s", sess.State)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.client.Set(context.Background(), r.key(sess.State), data, ttl).Err(); err != nil {
		return apierror.Storage(err, "failed to store session %s in redis", sess.State)
	}
	return nil
}

// Get retrieves a session, returning (nil, nil) when absent.
func (r *RedisSessionStore) Get(state string) (*PendingSession, error) {
	data, err := r.client.Get(context.Background(), r.key(state)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, apierror.Storage(err, "failed to load session %s from redis", state)
	}
	var sess PendingSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, apierror.Storage(err, "corrupt session payload %s", state)
	}
	return &sess, nil
}

// Delete removes a session immediately.
func (r *RedisSessionStore) Delete(state string) error {
	if err := r.client.Del(context.Background(), r.key(state)).Err(); err != nil {
		return apierror.Storage(err, "failed to delete session %s from redis", state)
	}
	return nil
}

// SweepExpired is a no-op: Redis enforces TTL expiry natively.
func (r *RedisSessionStore) SweepExpired() (int, error) { return 0, nil }
