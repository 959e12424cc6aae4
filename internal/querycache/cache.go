// Package querycache caches read results under typed keys. Concurrent reads of
// one key share a single fetch, reads are retried a bounded number of times,
// and mutations invalidate keys explicitly so the next read refetches.
package querycache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Key identifies a cached query.
type Key string

// KeyProducts caches the product collection.
const KeyProducts Key = "products"

// Config controls fetch retries.
type Config struct {
	// Retries is the number of extra attempts after a failed fetch.
	Retries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// NoRetry reports errors that must not be retried. Context errors are
	// never retried.
	NoRetry func(error) bool
}

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache holds the last fetched value per key. The zero value is not usable;
// call New.
type Cache struct {
	cfg Config
	lg  *zap.Logger

	mu      sync.Mutex
	entries map[Key]entry
	gens    map[Key]uint64
	group   singleflight.Group

	hits   metric.Int64Counter
	misses metric.Int64Counter
	errs   metric.Int64Counter
}

// New creates a Cache. A nil MeterProvider disables metrics.
func New(cfg Config, mp metric.MeterProvider, lg *zap.Logger) (*Cache, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	meter := mp.Meter("github.com/xenking/productos/internal/querycache")
	c := &Cache{
		cfg:     cfg,
		lg:      lg,
		entries: make(map[Key]entry),
		gens:    make(map[Key]uint64),
	}

	var err error
	if c.hits, err = meter.Int64Counter("querycache.hits",
		metric.WithDescription("Reads served from the cache")); err != nil {
		return nil, errors.Wrap(err, "create hits counter")
	}
	if c.misses, err = meter.Int64Counter("querycache.misses",
		metric.WithDescription("Reads that required a fetch")); err != nil {
		return nil, errors.Wrap(err, "create misses counter")
	}
	if c.errs, err = meter.Int64Counter("querycache.fetch_errors",
		metric.WithDescription("Fetches that failed after all retries")); err != nil {
		return nil, errors.Wrap(err, "create errors counter")
	}
	return c, nil
}

// Get returns the cached value for key or fetches it. Concurrent callers for
// the same key and generation share one fetch. The fetch itself is detached
// from the caller's cancellation; a cancelled caller just stops waiting and
// the result is still stored for the next reader.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	attrs := metric.WithAttributes(attribute.String("key", string(key)))

	gen, cached, ok := c.lookup(key)
	if ok {
		if v, ok := cached.(T); ok {
			c.hits.Add(ctx, 1, attrs)
			return v, nil
		}
	}
	c.misses.Add(ctx, 1, attrs)

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(key)+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		v, err := c.fetchWithRetry(fetchCtx, key, func(ctx context.Context) (any, error) {
			return fetch(ctx)
		})
		if err != nil {
			c.errs.Add(fetchCtx, 1, attrs)
			return nil, err
		}
		c.store(key, gen, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, errors.Errorf("querycache: key %q holds %T", key, res.Val)
		}
		return v, nil
	}
}

// Invalidate marks key as stale. The next Get refetches, and fetches that
// started before the invalidation do not repopulate the entry.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.gens[key]++
	c.lg.Debug("Cache invalidated", zap.String("key", string(key)), zap.Uint64("generation", c.gens[key]))
}

// FetchedAt returns when the cached value for key was stored.
func (c *Cache) FetchedAt(key Key) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return e.fetchedAt, ok
}

func (c *Cache) lookup(key Key) (gen uint64, value any, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return c.gens[key], e.value, ok
}

// store saves v unless key was invalidated after the fetch started. Among
// fetches of the same generation the last one to complete wins.
func (c *Cache) store(key Key, gen uint64, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[key] != gen {
		c.lg.Debug("Discarding stale fetch", zap.String("key", string(key)))
		return
	}
	c.entries[key] = entry{value: v, fetchedAt: time.Now()}
}

func (c *Cache) fetchWithRetry(ctx context.Context, key Key, fetch func(context.Context) (any, error)) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			c.lg.Debug("Retrying fetch",
				zap.String("key", string(key)),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
			if c.cfg.RetryDelay > 0 {
				time.Sleep(c.cfg.RetryDelay)
			}
		}

		v, err := fetch(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !c.retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Cache) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if c.cfg.NoRetry != nil && c.cfg.NoRetry(err) {
		return false
	}
	return true
}
