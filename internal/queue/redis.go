package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultDedupWindow mirrors the five-minute content deduplication window
// the reconciliation pipeline is tuned for: long enough to suppress the
// once-per-second no-op ticks, short enough not to starve a retry whose
// heartbeat produced a fresh message body.
const DefaultDedupWindow = 5 * time.Minute

// RedisQueue is a FIFO list with content-based deduplication. The dedup key
// is a hash of the message body held for the trailing window, the same
// contract as an SQS FIFO queue with content-based deduplication enabled.
type RedisQueue struct {
	client *redis.Client
	name   string
	window time.Duration
	log    *log.Logger
}

func NewRedisQueue(client *redis.Client, name string, window time.Duration, logger *log.Logger) *RedisQueue {
	if window <= 0 {
		window = DefaultDedupWindow
	}

	return &RedisQueue{
		client: client,
		name:   name,
		window: window,
		log:    logger,
	}
}

func (q *RedisQueue) pendingKey() string {
	return q.name + ":pending"
}

func (q *RedisQueue) dedupKey(body []byte) string {
	sum := sha256.Sum256(body)
	return q.name + ":dedup:" + hex.EncodeToString(sum[:])
}

func (q *RedisQueue) Enqueue(ctx context.Context, entries []Entry) error {
	for _, entry := range entries {
		ok, err := q.client.SetNX(ctx, q.dedupKey(entry.Body), 1, q.window).Result()
		if err != nil {
			return fmt.Errorf("set dedup key: %w", err)
		}
		if !ok {
			// identical body already sent within the window
			continue
		}

		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}

		if err := q.client.RPush(ctx, q.pendingKey(), payload).Err(); err != nil {
			return fmt.Errorf("push entry: %w", err)
		}
	}

	return nil
}

func (q *RedisQueue) Receive(ctx context.Context, max int) ([]Entry, error) {
	payloads, err := q.client.LPopCount(ctx, q.pendingKey(), max).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("pop entries: %w", err)
	}

	entries := make([]Entry, 0, len(payloads))
	for _, payload := range payloads {
		var entry Entry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			// a bad payload is dropped rather than wedging the queue
			q.log.Printf("drop malformed queue entry: %v", err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
