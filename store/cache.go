package store

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

type backend interface {
	List(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, in domain.TaskInput) (domain.Task, error)
	Patch(ctx context.Context, id int64, p domain.Patch) (domain.Task, error)
	Delete(ctx context.Context, id int64) error
}

// Cache keeps a Redis copy of the last task list the store returned. The
// store stays the source of truth: the copy is only served while the store
// is unreachable or failing. Every write evicts it.
type Cache struct {
	base   backend
	redis  *redis.Client
	key    string
	ttl    time.Duration
	logger *log.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheLogger sets the logger that reports served fallback copies.
func WithCacheLogger(l *log.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

// NewCache creates a caching wrapper. namespace separates lists of
// different stores sharing one Redis.
func NewCache(base backend, client *redis.Client, namespace string, ttl time.Duration, opts ...CacheOption) *Cache {
	if base == nil {
		panic("store.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	c := &Cache{
		base:   base,
		redis:  client,
		key:    tasksCacheKey(namespace),
		ttl:    ttl,
		logger: log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List always asks the store and refreshes the Redis copy on success. The
// copy is returned only when the store fails with a transport error or a
// 5xx status; any other failure is returned as is.
func (c *Cache) List(ctx context.Context) ([]domain.Task, error) {
	tasks, err := c.base.List(ctx)
	if err == nil {
		c.storeTasks(ctx, tasks)
		return tasks, nil
	}
	if !fallbackAllowed(err) {
		return nil, err
	}
	cached, ok := c.loadTasks(ctx)
	if !ok {
		return nil, err
	}
	c.logger.WithError(err).WithField("tasks", len(cached)).Warn("tasks.cache.fallback")
	return cached, nil
}

// fallbackAllowed reports whether err means the store could not answer.
func fallbackAllowed(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}

func (c *Cache) Create(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	task, err := c.base.Create(ctx, in)
	c.evict(ctx)
	return task, err
}

func (c *Cache) Patch(ctx context.Context, id int64, p domain.Patch) (domain.Task, error) {
	task, err := c.base.Patch(ctx, id, p)
	c.evict(ctx)
	return task, err
}

func (c *Cache) Delete(ctx context.Context, id int64) error {
	err := c.base.Delete(ctx, id)
	c.evict(ctx)
	return err
}

func (c *Cache) loadTasks(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the store without failing.
			_ = c.redis.Del(ctx, c.key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.ConfigStd.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, c.key).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.ConfigStd.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, c.key, data, c.ttl).Err()
}

// evict runs even when the write failed: the store may have applied it.
func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, c.key).Err()
}

func tasksCacheKey(namespace string) string {
	return "taskflow:tasks:" + namespace
}
