package repository

import (
	"context"
	"sync/atomic"
	"time"

	"campusbook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverLinkGuard serves rate decisions from redis and degrades to the
// in-memory guard when redis is unreachable, probing for recovery once a
// minute.
type FailoverLinkGuard struct {
	primary   domain.LinkGuard
	fallback  domain.LinkGuard
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed probe
}

func NewFailoverLinkGuard(primary, fallback domain.LinkGuard, logger *zerolog.Logger) *FailoverLinkGuard {
	return &FailoverLinkGuard{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverLinkGuard) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("Primary link guard failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	// пробуем вернуться на redis раз в минуту
	if r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Allow(ctx, key, limit, window)
}
