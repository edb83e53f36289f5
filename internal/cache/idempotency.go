// Package cache holds the Redis-backed fast path of webhook idempotency.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "inbox:msg"

// IdempotencyStore remembers the external ids of processed messages. It only short-circuits
// redeliveries; the unique index on messages remains the authoritative guard.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func key(companyID uuid.UUID, externalID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, companyID, externalID)
}

// Seen reports whether externalID was marked for the company.
func (s *IdempotencyStore) Seen(ctx context.Context, companyID uuid.UUID, externalID string) (bool, error) {
	err := s.client.Get(ctx, key(companyID, externalID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	return true, nil
}

// Mark records externalID as processed for the store's TTL.
func (s *IdempotencyStore) Mark(ctx context.Context, companyID uuid.UUID, externalID string) error {
	if err := s.client.Set(ctx, key(companyID, externalID), time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write idempotency key: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
