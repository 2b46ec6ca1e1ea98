package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "idempotency:"

// IdempotencyRecord is what a creation token resolves to. TicketID stays empty
// while the first request is still in flight.
type IdempotencyRecord struct {
	Fingerprint string `json:"fingerprint"`
	TicketID    string `json:"ticket_id,omitempty"`
}

// Pending reports whether the original request has not finished yet.
func (r IdempotencyRecord) Pending() bool {
	return r.TicketID == ""
}

// IdempotencyRepository deduplicates ticket creation by client token.
type IdempotencyRepository interface {
	// Reserve claims key for fingerprint. When the key already exists the stored
	// record is returned and reserved is false.
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (record *IdempotencyRecord, reserved bool, err error)
	Complete(ctx context.Context, key, fingerprint, ticketID string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type idempotencyRepository struct {
	client *redis.Client
}

// NewIdempotencyRepository builds a Redis-backed store.
func NewIdempotencyRepository(client *redis.Client) IdempotencyRepository {
	return &idempotencyRepository{client: client}
}

func buildIdempotencyKey(key string) string {
	return idempotencyKeyPrefix + key
}

func (r *idempotencyRepository) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (*IdempotencyRecord, bool, error) {
	payload, err := json.Marshal(IdempotencyRecord{Fingerprint: fingerprint})
	if err != nil {
		return nil, false, err
	}

	acquired, err := r.client.SetNX(ctx, buildIdempotencyKey(key), payload, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if acquired {
		return &IdempotencyRecord{Fingerprint: fingerprint}, true, nil
	}

	raw, err := r.client.Get(ctx, buildIdempotencyKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		return r.Reserve(ctx, key, fingerprint, ttl)
	}
	if err != nil {
		return nil, false, fmt.Errorf("read idempotency key: %w", err)
	}

	var record IdempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &record, false, nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, key, fingerprint, ticketID string, ttl time.Duration) error {
	payload, err := json.Marshal(IdempotencyRecord{Fingerprint: fingerprint, TicketID: ticketID})
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, buildIdempotencyKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, buildIdempotencyKey(key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
