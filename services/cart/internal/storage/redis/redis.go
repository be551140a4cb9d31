// Package redis stores cart payloads in Redis and announces every write on a
// pub/sub channel, so engine instances in other processes can follow along.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/EcommerceGo/services/cart/internal/storage"
)

const (
	keyPrefix     = "cart:"
	channelPrefix = "cart:changes:"
)

// notification is published alongside every write.
type notification struct {
	Origin string `json:"origin"`
	Value  []byte `json:"value"`
}

// Store implements storage.Backend on a Redis client.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	origin string
	logger *slog.Logger
}

var _ storage.Backend = (*Store)(nil)

// New creates a Redis-backed store. A zero ttl keeps keys forever.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		origin: uuid.NewString(),
		logger: logger,
	}
}

// Origin returns the instance's origin id.
func (s *Store) Origin() string {
	return s.origin
}

// Get retrieves the payload stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set writes value and publishes it, tagged with this instance's origin, in
// one MULTI/EXEC.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	msg, err := json.Marshal(notification{Origin: s.origin, Value: value})
	if err != nil {
		return fmt.Errorf("marshal change notification: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+key, value, s.ttl)
		pipe.Publish(ctx, channelPrefix+key, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Watch subscribes to key's change channel and calls fn for every write
// published by another instance, until ctx is done.
func (s *Store) Watch(ctx context.Context, key string, fn func(storage.Change)) error {
	sub := s.client.Subscribe(ctx, channelPrefix+key)
	defer sub.Close() //nolint:errcheck

	// Wait for the subscription to be confirmed before reporting changes.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe %s: %w", key, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				s.logger.WarnContext(ctx, "dropping malformed change notification",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			if n.Origin == s.origin {
				continue
			}
			fn(storage.Change{Key: key, Value: n.Value, Origin: n.Origin})
		}
	}
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close leaves the client open; it is shared and closed by its owner.
func (s *Store) Close() error {
	return nil
}
