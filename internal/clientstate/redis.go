package clientstate

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaspardpetit/stompsock/core/logx"
)

// DefaultKeySuffix is appended to the configured prefix to name the state key.
const DefaultKeySuffix = "state"

const redisTimeout = 2 * time.Second

// redisStore implements Store as JSON under a single Redis key.
type redisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore returns a Store persisting to key. The key is initialized to
// a default state if it does not exist.
func NewRedisStore(ctx context.Context, client redis.UniversalClient, key string) (*redisStore, error) {
	rs := &redisStore{client: client, key: key}
	b, _ := json.Marshal(State{Status: "idle"})
	if err := client.SetNX(ctx, key, b, 0).Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (r *redisStore) Load() State {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	b, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{Status: "idle"}
		}
		logx.Log.Warn().Err(err).Str("key", r.key).Msg("state load failed")
		return State{Status: "unknown"}
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{Status: "unknown"}
	}
	return st
}

func (r *redisStore) Store(s State) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key, b, 0).Err(); err != nil {
		logx.Log.Warn().Err(err).Str("key", r.key).Msg("state store failed")
	}
}
