package repository

import (
	"context"
	"sync/atomic"
	"time"

	"slotify/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverDedupStore prefers the primary (Redis) store and falls back
// to memory when it errors, probing the primary again after a minute.
// A dedup miss is safe either way: the database ledger remains the
// durable authority.
type FailoverDedupStore struct {
	primary   domain.DedupStore
	fallback  domain.DedupStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed probe
}

func NewFailoverDedupStore(primary, fallback domain.DedupStore, logger *zerolog.Logger) *FailoverDedupStore {
	return &FailoverDedupStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverDedupStore) primaryUsable() bool {
	if !r.isDown.Load() {
		return true
	}
	// Try to recover after 1 minute.
	return time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverDedupStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary dedup store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverDedupStore) MarkProcessed(ctx context.Context, gateway, eventID string, ttl time.Duration) (bool, error) {
	if r.primaryUsable() {
		first, err := r.primary.MarkProcessed(ctx, gateway, eventID, ttl)
		if err == nil {
			r.isDown.Store(false)
			return first, nil
		}
		r.markDown(err)
	}
	return r.fallback.MarkProcessed(ctx, gateway, eventID, ttl)
}

func (r *FailoverDedupStore) Seen(ctx context.Context, gateway, eventID string) (bool, error) {
	if r.primaryUsable() {
		seen, err := r.primary.Seen(ctx, gateway, eventID)
		if err == nil {
			r.isDown.Store(false)
			return seen, nil
		}
		r.markDown(err)
	}
	return r.fallback.Seen(ctx, gateway, eventID)
}
