package worker

import (
	"context"
	"fmt"
	"time"

	"asset-service/internal/service"
	"asset-service/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs one reconcile pass under the cluster lock
type Sweeper interface {
	SweepExclusive(ctx context.Context) ([]service.Finding, bool, error)
}

// ReconcileScheduler sweeps suspect invoices on a cron schedule
type ReconcileScheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	logger  *zap.Logger
}

// NewReconcileScheduler registers the sweep under schedule, e.g. "@every 15m".
// Each run is bounded by timeout.
func NewReconcileScheduler(sweeper Sweeper, schedule string, timeout time.Duration) (*ReconcileScheduler, error) {
	s := &ReconcileScheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		timeout: timeout,
		logger:  util.GetLogger(),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running sweeps in the background
func (s *ReconcileScheduler) Start() {
	s.logger.Info("Starting reconcile scheduler")
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep
func (s *ReconcileScheduler) Stop() {
	s.logger.Info("Stopping reconcile scheduler")
	<-s.cron.Stop().Done()
}

func (s *ReconcileScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs one scheduled sweep and reports how many findings it had.
// It returns -1 when the sweep was skipped or failed.
func (s *ReconcileScheduler) RunOnce(ctx context.Context) int {
	findings, ran, err := s.sweeper.SweepExclusive(ctx)
	if err != nil {
		s.logger.Error("Scheduled reconcile failed", zap.Error(err))
		return -1
	}
	if !ran {
		return -1
	}
	if len(findings) > 0 {
		s.logger.Warn("Scheduled reconcile found inconsistencies", zap.Int("findings", len(findings)))
	}
	return len(findings)
}
