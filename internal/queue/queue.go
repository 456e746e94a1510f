package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultKey is the Redis list kiosks and scanners push check-ins onto.
const DefaultKey = "attendance:checkins"

// Checkin is one automatic presence signal from a scanner or kiosk.
type Checkin struct {
	AdmissionNo string    `json:"admission_no"`
	Session     string    `json:"session,omitempty"`
	Device      string    `json:"device"`
	At          time.Time `json:"at"`
}

func (c Checkin) validate() error {
	if strings.TrimSpace(c.AdmissionNo) == "" {
		return errors.New("checkin: admission_no is required")
	}
	if strings.TrimSpace(c.Device) == "" {
		return errors.New("checkin: device is required")
	}
	return nil
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, c Checkin) error
	Consume(ctx context.Context) (<-chan Checkin, error)
}

// InMemory is a channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Checkin
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Checkin, size)}
}

// Publish enqueues a check-in.
func (q *InMemory) Publish(ctx context.Context, c Checkin) error {
	if err := c.validate(); err != nil {
		return err
	}
	select {
	case q.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel that closes when ctx is done.
func (q *InMemory) Consume(ctx context.Context) (<-chan Checkin, error) {
	out := make(chan Checkin)
	go func() {
		defer close(out)
		for {
			select {
			case c := <-q.ch:
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue is a Redis list-backed queue with LPUSH/BRPOP semantics.
type RedisQueue struct {
	client  redis.UniversalClient
	key     string
	log     zerolog.Logger
	timeout time.Duration
}

// NewRedisQueue builds a queue on key, or DefaultKey when key is empty.
func NewRedisQueue(client redis.UniversalClient, key string, logger zerolog.Logger) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key, log: logger, timeout: 5 * time.Second}
}

// Publish enqueues a check-in.
func (q *RedisQueue) Publish(ctx context.Context, c Checkin) error {
	if err := c.validate(); err != nil {
		return err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, b).Err()
}

// Consume streams check-ins using BRPOP. Undecodable payloads are logged and dropped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Checkin, error) {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("queue %s: %w", q.key, err)
	}
	out := make(chan Checkin)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, q.timeout, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					q.log.Warn().Err(err).Str("key", q.key).Msg("brpop failed")
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var c Checkin
			if err := json.Unmarshal([]byte(res[1]), &c); err != nil {
				q.log.Warn().Err(err).Str("payload", res[1]).Msg("dropping malformed checkin")
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
