package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Lookaside pairs a Cache with a TTL and miss collapsing. The zero TTL
// stores entries without expiry.
//
// Every invalidation bumps an epoch. A load that started under an older
// epoch returns its value but does not store it, and callers arriving after
// an invalidation never join a load started before it.
type Lookaside struct {
	name    string
	backend Cache
	ttl     time.Duration
	group   singleflight.Group
	metrics *Metrics
	logger  *zap.Logger

	// mu orders stores against invalidations: stores hold the read lock,
	// bumping the epoch takes the write lock.
	mu    sync.RWMutex
	epoch uint64
}

// Option configures a Lookaside.
type Option func(*Lookaside)

// WithMetrics records hit/miss/error counters under the lookaside name.
func WithMetrics(m *Metrics) Option {
	return func(l *Lookaside) { l.metrics = m }
}

// WithLogger reports backend failures.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Lookaside) { l.logger = logger }
}

// NewLookaside builds a named lookaside over backend.
func NewLookaside(name string, backend Cache, ttl time.Duration, opts ...Option) *Lookaside {
	l := &Lookaside{name: name, backend: backend, ttl: ttl, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the lookaside name used in metrics.
func (l *Lookaside) Name() string { return l.name }

// Backend returns the underlying cache.
func (l *Lookaside) Backend() Cache { return l.backend }

// Invalidate removes keys from the backend.
func (l *Lookaside) Invalidate(ctx context.Context, keys ...string) error {
	l.bump()
	return l.backend.Delete(ctx, keys...)
}

// InvalidatePrefix removes every key under prefix.
func (l *Lookaside) InvalidatePrefix(ctx context.Context, prefix string) error {
	l.bump()
	return l.backend.DeletePrefix(ctx, prefix)
}

// bump waits for in-progress stores and starts a new epoch. The backend
// delete runs after it, so a store that won the race is deleted and one
// that lost it is skipped.
func (l *Lookaside) bump() {
	l.mu.Lock()
	l.epoch++
	l.mu.Unlock()
}

func (l *Lookaside) currentEpoch() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.epoch
}

// store writes encoded under key unless an invalidation happened since epoch.
func (l *Lookaside) store(ctx context.Context, key string, encoded []byte, epoch uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.epoch != epoch {
		l.logger.Debug("cache invalidated during load, not storing",
			zap.String("cache", l.name), zap.String("key", key))
		return
	}
	if err := l.backend.Set(ctx, key, encoded, l.ttl); err != nil {
		l.metrics.fail(l.name)
		l.logger.Warn("cache set failed",
			zap.String("cache", l.name), zap.String("key", key), zap.Error(err))
	}
}

// Take returns the cached value for key, or calls load, stores its JSON
// encoding and returns it. A backend failure is logged and the read falls
// through to load, so a broken cache degrades to direct reads. Loader errors
// are never cached.
//
// The shared load runs detached from the caller's cancellation; each caller
// stops waiting when its own ctx is done.
func Take[T any](ctx context.Context, l *Lookaside, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	raw, ok, err := l.backend.Get(ctx, key)
	switch {
	case err != nil:
		l.metrics.fail(l.name)
		l.logger.Warn("cache get failed, loading directly",
			zap.String("cache", l.name), zap.String("key", key), zap.Error(err))
	case ok:
		var out T
		if decodeErr := json.Unmarshal(raw, &out); decodeErr == nil {
			l.metrics.hit(l.name)
			return out, nil
		}
		l.logger.Warn("cache entry undecodable, reloading",
			zap.String("cache", l.name), zap.String("key", key))
	}

	l.metrics.miss(l.name)
	epoch := l.currentEpoch()
	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key+"#"+strconv.FormatUint(epoch, 10), func() (any, error) {
		v, loadErr := load(loadCtx)
		if loadErr != nil {
			return nil, loadErr
		}
		encoded, encErr := json.Marshal(v)
		if encErr != nil {
			return nil, fmt.Errorf("cache: encode %s: %w", key, encErr)
		}
		l.store(loadCtx, key, encoded, epoch)
		return encoded, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}

	// Each caller decodes its own copy; singleflight hands every waiter the same bytes.
	var out T
	if err := json.Unmarshal(res.Val.([]byte), &out); err != nil {
		return zero, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return out, nil
}
