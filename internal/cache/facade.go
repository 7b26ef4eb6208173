package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/metrics"
	"github.com/rs/zerolog"
)

// Facade is a cache-aside wrapper with JSON values. The cache is advisory:
// read and write failures never fail the computation.
type Facade struct {
	store  Store
	logger zerolog.Logger
}

// NewFacade creates a facade over store. A nil store disables caching.
func NewFacade(store Store, logger zerolog.Logger) *Facade {
	if store == nil {
		store = NoopStore{}
	}
	return &Facade{
		store:  store,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// GetOrCompute decodes the cached value of key into out. On a miss, compute
// fills out and the result is stored with ttl. hit reports whether out came
// from the cache. Only compute errors are returned.
func (f *Facade) GetOrCompute(ctx context.Context, key string, ttl time.Duration, out any, compute func(ctx context.Context) error) (hit bool, err error) {
	m := metrics.Get()

	data, ok, err := f.store.Get(ctx, key)
	if err != nil {
		f.logger.Warn().Err(err).Str("cache_key", key).Msg("cache read failed, computing")
	}
	if ok {
		if err := json.Unmarshal(data, out); err == nil {
			m.RecordCacheHit()
			return true, nil
		}
		m.RecordCacheDecodeError()
		f.logger.Warn().Str("cache_key", key).Msg("cached value undecodable, computing")
	}

	m.RecordCacheMiss()
	if err := compute(ctx); err != nil {
		return false, err
	}

	// best-effort, the error is already logged and counted
	_ = f.Put(ctx, key, out, ttl)
	return false, nil
}

// Put serializes value and stores it. Failures are logged, counted and returned.
func (f *Facade) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err == nil {
		err = f.store.Put(ctx, key, data, ttl)
	}
	if err != nil {
		metrics.Get().RecordCacheWriteError()
		f.logger.Warn().Err(err).Str("cache_key", key).Msg("cache write failed")
		return fmt.Errorf("cache write %s: %w", key, err)
	}
	return nil
}

// Remove deletes key
func (f *Facade) Remove(ctx context.Context, key string) error {
	return f.store.Remove(ctx, key)
}

// RemovePrefix purges every key starting with prefix when the store supports it
func (f *Facade) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	remover, ok := f.store.(PrefixRemover)
	if !ok {
		return 0, ErrPrefixUnsupported
	}
	return remover.RemovePrefix(ctx, prefix)
}
