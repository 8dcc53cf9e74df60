package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mesafast/mesafast-backend/pkg/logger"
)

type fakeOrderExpirer struct {
	lastCutoff time.Time
	called     int
	expired    int
	err        error
}

func (f *fakeOrderExpirer) ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.expired, nil
}

func newStaleOrderJob(t *testing.T, svc *fakeOrderExpirer, ttl time.Duration) *staleOrderJob {
	t.Helper()
	jobIface, err := NewStaleOrderJob(StaleOrderJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Orders:     svc,
		PendingTTL: ttl,
	})
	if err != nil {
		t.Fatalf("NewStaleOrderJob: %v", err)
	}
	job, ok := jobIface.(*staleOrderJob)
	if !ok {
		t.Fatalf("expected staleOrderJob, got %T", jobIface)
	}
	return job
}

func TestStaleOrderJobUsesConfiguredTTL(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	svc := &fakeOrderExpirer{expired: 3}
	job := newStaleOrderJob(t, svc, 30*time.Minute)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-30 * time.Minute)
	if !svc.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, svc.lastCutoff)
	}
	if svc.called != 1 {
		t.Fatalf("expected one sweep, got %d", svc.called)
	}
}

func TestStaleOrderJobDefaultsTTL(t *testing.T) {
	job := newStaleOrderJob(t, &fakeOrderExpirer{}, 0)
	if job.ttl != defaultPendingTTL {
		t.Fatalf("expected default ttl %s, got %s", defaultPendingTTL, job.ttl)
	}
}

func TestStaleOrderJobPropagatesError(t *testing.T) {
	svc := &fakeOrderExpirer{err: errors.New("boom")}
	job := newStaleOrderJob(t, svc, time.Hour)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
