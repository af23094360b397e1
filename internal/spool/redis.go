package spool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds configuration for the Redis spool.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisSpool keeps entries in Redis: a sorted set orders ids by creation
// time and two hashes hold payloads and encodings.
type RedisSpool struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
	logger    *slog.Logger
}

// NewRedisSpool connects to Redis and verifies the connection.
func NewRedisSpool(cfg RedisConfig, logger *slog.Logger) (*RedisSpool, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     4,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return newRedisSpool(client, cfg.KeyPrefix, logger), nil
}

func newRedisSpool(client *redis.Client, keyPrefix string, logger *slog.Logger) *RedisSpool {
	if keyPrefix == "" {
		keyPrefix = "lattice:spool"
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &RedisSpool{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
		logger:    logger.With("component", "RedisSpool"),
	}
	s.logger.Info("spool ready", "prefix", keyPrefix)
	return s
}

func (s *RedisSpool) indexKey() string    { return s.keyPrefix + ":index" }
func (s *RedisSpool) dataKey() string     { return s.keyPrefix + ":data" }
func (s *RedisSpool) encodingKey() string { return s.keyPrefix + ":encoding" }

// Put stores data atomically across the index and payload hashes.
func (s *RedisSpool) Put(ctx context.Context, encoding string, data []byte) (string, error) {
	now := s.now()
	id, err := newID(now)
	if err != nil {
		return "", err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.dataKey(), id, data)
		pipe.HSet(ctx, s.encodingKey(), id, encoding)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: id})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to spool to redis: %w", err)
	}
	return id, nil
}

// Oldest returns up to n entries by ascending creation time.
func (s *RedisSpool) Oldest(ctx context.Context, n int) ([]Entry, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read spool index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	dataCmd := pipe.HMGet(ctx, s.dataKey(), ids...)
	encCmd := pipe.HMGet(ctx, s.encodingKey(), ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read spool entries: %w", err)
	}

	payloads := dataCmd.Val()
	encodings := encCmd.Val()
	entries := make([]Entry, 0, len(ids))
	for i, id := range ids {
		data, ok := payloads[i].(string)
		if !ok {
			// index without payload: drop the dangling id
			s.logger.Warn("dropping dangling spool id", "id", id)
			s.client.ZRem(ctx, s.indexKey(), id)
			continue
		}
		enc, _ := encodings[i].(string)
		entries = append(entries, Entry{
			ID:        id,
			Encoding:  enc,
			Data:      []byte(data),
			CreatedAt: createdAt(id),
		})
	}
	return entries, nil
}

// Delete removes an entry from the index and both hashes.
func (s *RedisSpool) Delete(ctx context.Context, id string) error {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.indexKey(), id)
		pipe.HDel(ctx, s.dataKey(), id)
		pipe.HDel(ctx, s.encodingKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete spool entry %s: %w", id, err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of indexed entries.
func (s *RedisSpool) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	return int(n), err
}

// Close closes the Redis client.
func (s *RedisSpool) Close() error {
	return s.client.Close()
}

var (
	_ Spool = (*RedisSpool)(nil)
	_ Spool = (*DirSpool)(nil)
)
