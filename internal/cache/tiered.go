package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Tiered consults its stores in order, typically the cache then the durable
// property store. Writes go to every tier.
type Tiered struct {
	tiers       []Store
	backfillTTL time.Duration
	logger      zerolog.Logger
}

// NewTiered creates a tiered store. A hit in a lower tier is copied into the
// tiers above it with backfillTTL.
func NewTiered(backfillTTL time.Duration, logger zerolog.Logger, tiers ...Store) *Tiered {
	return &Tiered{
		tiers:       tiers,
		backfillTTL: backfillTTL,
		logger:      logger.With().Str("component", "tiered_cache").Logger(),
	}
}

// Get returns the first hit. A failing tier is logged and skipped; the error
// is returned only when no tier answered.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var errs []error
	for i, tier := range t.tiers {
		value, ok, err := tier.Get(ctx, key)
		if err != nil {
			t.logger.Warn().Err(err).Int("tier", i).Str("cache_key", key).Msg("cache tier read failed")
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}

		for j := 0; j < i; j++ {
			if err := t.tiers[j].Put(ctx, key, value, t.backfillTTL); err != nil {
				t.logger.Warn().Err(err).Int("tier", j).Str("cache_key", key).Msg("cache backfill failed")
			}
		}
		return value, true, nil
	}

	if len(errs) == len(t.tiers) && len(errs) > 0 {
		return nil, false, errors.Join(errs...)
	}
	return nil, false, nil
}

// Put writes to every tier
func (t *Tiered) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, tier := range t.tiers {
		if err := tier.Put(ctx, key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Remove deletes key from every tier
func (t *Tiered) Remove(ctx context.Context, key string) error {
	var errs []error
	for _, tier := range t.tiers {
		if err := tier.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemovePrefix purges prefix from every tier that supports it and reports
// the largest count removed by a single tier
func (t *Tiered) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	var errs []error
	removed := 0
	for _, tier := range t.tiers {
		remover, ok := tier.(PrefixRemover)
		if !ok {
			errs = append(errs, ErrPrefixUnsupported)
			continue
		}
		n, err := remover.RemovePrefix(ctx, prefix)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if n > removed {
			removed = n
		}
	}
	return removed, errors.Join(errs...)
}
