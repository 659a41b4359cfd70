package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

const DefaultRedisKey = "telemetry:records"

// RedisQueue keeps the record FIFO in a Redis list so that several edge
// processes can share one backlog. Records are stored as JSON; RPUSH appends
// and LPOP removes from the head.
//
// The RecordQueue port has no error returns, so Redis failures are logged
// through obs and reported as a failed enqueue or an empty dequeue.
type RedisQueue struct {
	client  redis.UniversalClient
	key     string
	cap     int
	timeout time.Duration
	obs     ports.Observability
}

type RedisQueueConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	Capacity int           `yaml:"capacity"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DialRedisQueue connects to Redis and verifies the connection with PING.
func DialRedisQueue(cfg RedisQueueConfig, obs ports.Observability) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis queue: connect %s: %w", cfg.Addr, err)
	}
	return NewRedisQueue(client, cfg, obs), nil
}

func NewRedisQueue(client redis.UniversalClient, cfg RedisQueueConfig, obs ports.Observability) *RedisQueue {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &RedisQueue{
		client:  client,
		key:     cfg.Key,
		cap:     max(cfg.Capacity, 0),
		timeout: cfg.Timeout,
		obs:     obs,
	}
}

func (q *RedisQueue) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), q.timeout)
}

func (q *RedisQueue) Enqueue(r *domain.Record) bool {
	if r == nil {
		return false
	}
	data, err := json.Marshal(r)
	if err != nil {
		q.logError("redis_queue_encode_failed", err)
		return false
	}

	ctx, cancel := q.ctx()
	defer cancel()

	if q.cap > 0 {
		n, err := q.client.LLen(ctx, q.key).Result()
		if err != nil {
			q.logError("redis_queue_len_failed", err)
			return false
		}
		if n >= int64(q.cap) {
			return false
		}
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		q.logError("redis_queue_push_failed", err)
		return false
	}
	return true
}

func (q *RedisQueue) Dequeue() (*domain.Record, bool) {
	ctx, cancel := q.ctx()
	defer cancel()

	data, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		q.logError("redis_queue_pop_failed", err)
		return nil, false
	}
	r, err := decodeRecord(data)
	if err != nil {
		q.logError("redis_queue_decode_failed", err)
		return nil, false
	}
	return r, true
}

func (q *RedisQueue) DequeueBatch(max int) []*domain.Record {
	ctx, cancel := q.ctx()
	defer cancel()

	if max <= 0 {
		n, err := q.client.LLen(ctx, q.key).Result()
		if err != nil {
			q.logError("redis_queue_len_failed", err)
			return nil
		}
		if n == 0 {
			return nil
		}
		max = int(n)
	}

	items, err := q.client.LPopCount(ctx, q.key, max).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		q.logError("redis_queue_pop_failed", err)
		return nil
	}

	out := make([]*domain.Record, 0, len(items))
	for _, item := range items {
		r, err := decodeRecord([]byte(item))
		if err != nil {
			q.logError("redis_queue_decode_failed", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (q *RedisQueue) Len() int {
	ctx, cancel := q.ctx()
	defer cancel()

	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		q.logError("redis_queue_len_failed", err)
		return 0
	}
	return int(n)
}

func (q *RedisQueue) Clear() {
	ctx, cancel := q.ctx()
	defer cancel()

	if err := q.client.Del(ctx, q.key).Err(); err != nil {
		q.logError("redis_queue_clear_failed", err)
	}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) logError(msg string, err error) {
	if q.obs != nil {
		q.obs.LogError(msg, err, ports.Field{Key: "key", Value: q.key})
	}
}

func decodeRecord(data []byte) (*domain.Record, error) {
	var r domain.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

var _ ports.RecordQueue = (*RedisQueue)(nil)
