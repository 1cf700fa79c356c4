package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KarpovAlexandrGo/tasks-api/internal/entity"
	"github.com/KarpovAlexandrGo/tasks-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

const (
	tasksKey      = "tasks:all"
	generationKey = "tasks:gen"
)

type CacheRepository struct {
	client *redis.Client
	key    string
	genKey string
}

func NewCacheRepository(addr, password string, db int) *CacheRepository {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &CacheRepository{client: client, key: tasksKey, genKey: generationKey}
}

var _ usecase.CacheRepository = (*CacheRepository)(nil)

// Generation returns the current write generation; a missing key is 0.
func (c *CacheRepository) Generation(ctx context.Context) (int64, error) {
	return readGeneration(ctx, c.client, c.genKey)
}

// SetTasks stores the list only while the generation still equals gen.
// The check and the write run in one WATCH/MULTI transaction.
func (c *CacheRepository) SetTasks(ctx context.Context, gen int64, tasks []entity.Task, ttl time.Duration) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, c.genKey)
		if err != nil {
			return err
		}
		if current != gen {
			return usecase.ErrStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, data, ttl)
			return nil
		})
		return err
	}

	err = c.client.Watch(ctx, txf, c.genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return usecase.ErrStaleGeneration
	}
	return err
}

// GetTasks reports found=false on a cache miss.
func (c *CacheRepository) GetTasks(ctx context.Context) ([]entity.Task, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var tasks []entity.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return tasks, true, nil
}

// Invalidate advances the generation and drops the cached list atomically.
func (c *CacheRepository) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	return err
}

// Ping checks the Redis connection.
func (c *CacheRepository) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *CacheRepository) Close() error {
	return c.client.Close()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, cmd getter, key string) (int64, error) {
	gen, err := cmd.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("cache generation error: %w", err)
	}
	return gen, nil
}
