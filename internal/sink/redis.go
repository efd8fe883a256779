package sink

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Redis appends each body to the list <prefix><destination> and publishes
// it on the channel of the same name.
type Redis struct {
	client redis.UniversalClient
	prefix string
	maxLen int64
}

// NewRedis returns a Redis sink. A positive maxLen trims each list to its
// newest maxLen entries.
func NewRedis(client redis.UniversalClient, prefix string, maxLen int64) *Redis {
	return &Redis{client: client, prefix: prefix, maxLen: maxLen}
}

func (*Redis) Name() string { return "redis" }

// Key returns the list and channel name for destination.
func (s *Redis) Key(destination string) string { return s.prefix + destination }

func (s *Redis) Deliver(ctx context.Context, destination string, body []byte) error {
	key := s.Key(destination)
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, body)
		if s.maxLen > 0 {
			p.LTrim(ctx, key, -s.maxLen, -1)
		}
		p.Publish(ctx, key, body)
		return nil
	})
	return err
}
