// Package worker provides the process-wide cache of expensive agent workers.
//
// A worker (a provisioned remote agent, a model client bound to instructions,
// a pipeline) is costly to create. Cache builds one per Identity on first use
// and hands the same Handle to every later caller.
package worker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/metrics"
)

// Factory creates the worker for one identity.
type Factory func(ctx context.Context, identity core.Identity) (core.Handle, error)

// Options configures a Cache.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Cache lazily creates and memoizes one Handle per identity.
//
// Guarantees:
//   - For an identity the factory runs at most once per successful creation:
//     concurrent first callers share a single in-flight call and all observe
//     the same Handle.
//   - A failed creation is returned to every caller waiting on it and is not
//     memoized, so a later call retries.
//   - Creation runs detached from the first caller's cancellation. A caller
//     whose ctx ends stops waiting with ctx.Err() while the creation goes on
//     for the others.
//   - Entries are never evicted.
type Cache struct {
	mu      sync.RWMutex
	workers map[string]core.Handle
	group   singleflight.Group
	logger  logging.Logger
	metrics *metrics.Metrics
}

// NewCache creates an empty cache.
func NewCache(optFns ...func(o *Options)) *Cache {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Cache{
		workers: make(map[string]core.Handle),
		logger:  logging.OrNoOp(opts.Logger),
		metrics: opts.Metrics,
	}
}

// GetOrCreate returns the cached worker for identity, invoking factory when
// none exists yet. Factory errors are wrapped in *core.CacheCreationError.
func (c *Cache) GetOrCreate(ctx context.Context, identity core.Identity, factory Factory) (core.Handle, error) {
	key := identity.Key()
	if h, ok := c.Lookup(key); ok {
		return h, nil
	}

	// The flight outlives any single caller: it runs detached from ctx's
	// cancellation and each caller stops waiting when its own ctx ends.
	flight := c.group.DoChan(key, func() (any, error) {
		// A previous flight may have stored the worker between our lookup and
		// joining the group.
		if h, ok := c.Lookup(key); ok {
			return h, nil
		}

		h, err := create(context.WithoutCancel(ctx), identity, factory)
		c.metrics.IncWorkerCreation(key, err)
		if err != nil {
			c.logger.Warn("worker creation failed", "identity", key, "error", err)
			return nil, &core.CacheCreationError{Identity: key, Err: err}
		}
		if h == nil {
			return nil, &core.CacheCreationError{Identity: key, Err: errNilHandle}
		}

		c.mu.Lock()
		c.workers[key] = h
		c.mu.Unlock()

		c.logger.Debug("worker created", "identity", key)
		return h, nil
	})

	select {
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("worker creation shared", "identity", key)
		}
		return res.Val.(core.Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// create runs factory and reports a panic as an error.
func create(ctx context.Context, identity core.Identity, factory Factory) (h core.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory panic: %v", r)
		}
	}()
	return factory(ctx, identity)
}

// Lookup returns the worker cached under key without creating one.
func (c *Cache) Lookup(key string) (core.Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.workers[key]
	return h, ok
}

// Len returns the number of cached workers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.workers)
}
