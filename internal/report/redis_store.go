package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const recentKey = "csp:reports:recent"

// RedisStore keeps the newest reports in a capped list and uses SETNX keys
// with a TTL for deduplication.
type RedisStore struct {
	client *redis.Client
	size   int64
	window time.Duration
}

func NewRedisStore(client *redis.Client, size int, dedupWindow time.Duration) *RedisStore {
	return &RedisStore{client: client, size: int64(size), window: dedupWindow}
}

func getSeenKey(fingerprint string) string {
	return fmt.Sprintf("csp:reports:seen:%s", fingerprint)
}

func (s *RedisStore) Save(ctx context.Context, v *Violation) error {
	seenKey := getSeenKey(v.Fingerprint)
	fresh, err := s.client.SetNX(ctx, seenKey, v.ID.String(), s.window).Result()
	if err != nil {
		return fmt.Errorf("failed to check duplicate report: %w", err)
	}
	if !fresh {
		return ErrDuplicate
	}

	if err := s.push(ctx, v); err != nil {
		// Release the dedup key so the browser's retry is not dropped as a duplicate.
		if delErr := s.client.Del(context.WithoutCancel(ctx), seenKey).Err(); delErr != nil {
			return fmt.Errorf("%w (release dedup key: %w)", err, delErr)
		}
		return err
	}

	return nil
}

func (s *RedisStore) push(ctx context.Context, v *Violation) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, recentKey, payload)
	pipe.LTrim(ctx, recentKey, 0, s.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	return nil
}

// Recent returns up to limit reports, newest first.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]Violation, error) {
	stop := int64(limit) - 1
	if limit <= 0 || int64(limit) > s.size {
		stop = s.size - 1
	}

	raw, err := s.client.LRange(ctx, recentKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	out := make([]Violation, 0, len(raw))
	for _, item := range raw {
		var v Violation
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			return nil, fmt.Errorf("failed to decode stored report: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
