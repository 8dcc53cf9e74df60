package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mesafast/mesafast-backend/pkg/logger"
)

const defaultPendingTTL = 45 * time.Minute

type staleOrderExpirer interface {
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

// StaleOrderJobParams configure the pending order expiry job.
type StaleOrderJobParams struct {
	Logger     *logger.Logger
	Orders     staleOrderExpirer
	PendingTTL time.Duration
}

// NewStaleOrderJob builds the cron job that cancels pending orders the
// merchant never confirmed.
func NewStaleOrderJob(params StaleOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &staleOrderJob{
		logg: params.Logger,
		svc:  params.Orders,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

type staleOrderJob struct {
	logg *logger.Logger
	svc  staleOrderExpirer
	ttl  time.Duration
	now  func() time.Time
}

func (j *staleOrderJob) Name() string { return "stale-order-expiry" }

func (j *staleOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.svc.ExpireStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire stale pending orders: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"pending_ttl":    j.ttl.String(),
		"orders_expired": expired,
	})
	j.logg.Info(logCtx, "stale order sweep complete")
	return nil
}
