package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	scanBatch           = 200
	invalidationChannel = "cache-invalidations"
)

// RedisMirror shares cache entries between instances through Redis and
// broadcasts invalidations over a pub/sub channel. Keys and the channel are
// namespaced so several deployments can share one Redis.
type RedisMirror struct {
	rdb       redis.UniversalClient
	namespace string
}

// NewRedisMirror connects and pings. Callers treat an error as "run without a
// mirror" rather than as fatal.
func NewRedisMirror(ctx context.Context, redisURL, namespace string) (*RedisMirror, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is empty")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisMirrorFromClient(rdb, namespace), nil
}

func NewRedisMirrorFromClient(rdb redis.UniversalClient, namespace string) *RedisMirror {
	return &RedisMirror{rdb: rdb, namespace: namespace}
}

func (m *RedisMirror) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := m.rdb.Get(ctx, m.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMirrorMiss
	}
	return data, err
}

func (m *RedisMirror) Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return m.rdb.Set(ctx, m.key(key), payload, ttl).Err()
}

func (m *RedisMirror) Delete(ctx context.Context, key string) error {
	return m.rdb.Del(ctx, m.key(key)).Err()
}

func (m *RedisMirror) DeletePrefix(ctx context.Context, prefix string) error {
	iter := m.rdb.Scan(ctx, 0, m.key(prefix)+"*", scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := m.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return m.rdb.Del(ctx, batch...).Err()
	}
	return nil
}

func (m *RedisMirror) PublishInvalidation(ctx context.Context, payload []byte) error {
	return m.rdb.Publish(ctx, m.key(invalidationChannel), payload).Err()
}

// SubscribeInvalidations holds one Redis subscription open until ctx is done.
// Messages published while the connection is down are lost; entries fall
// back to their TTL in that case.
func (m *RedisMirror) SubscribeInvalidations(ctx context.Context, handle func(payload []byte)) error {
	sub := m.rdb.Subscribe(ctx, m.key(invalidationChannel))
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", invalidationChannel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis invalidation subscription closed")
			}
			handle([]byte(msg.Payload))
		}
	}
}

func (m *RedisMirror) Close() error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}

func (m *RedisMirror) key(key string) string {
	if m.namespace == "" {
		return key
	}
	return m.namespace + ":" + key
}
