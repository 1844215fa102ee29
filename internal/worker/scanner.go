package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"install-pulse-service/internal/service"
	"install-pulse-service/internal/timeline"
)

// Scanner periodically sweeps active executions and enqueues the stalled
// ones for the alert workers. Executions that already have an open alert
// are not enqueued again; alerts whose execution recovered are cleared.
type Scanner struct {
	repo           ExecutionSource
	alerts         AlertStore
	queue          service.StallQueue
	logger         *zap.Logger
	thresholdHours float64
	interval       time.Duration
	now            func() time.Time
}

func NewScanner(repo ExecutionSource, alerts AlertStore, queue service.StallQueue, logger *zap.Logger, thresholdHours float64, interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scanner{
		repo:           repo,
		alerts:         alerts,
		queue:          queue,
		logger:         logger,
		thresholdHours: thresholdHours,
		interval:       interval,
		now:            time.Now,
	}
}

// WithClock replaces the time source. Tests inject a fixed clock here.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("stall scanner started",
		zap.Float64("threshold_hours", s.thresholdHours),
		zap.Duration("interval", s.interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stall scanner stopped")
			return
		case <-ticker.C:
			enqueued, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error("stall sweep", zap.Error(err))
				continue
			}
			if enqueued > 0 {
				s.logger.Info("stall sweep enqueued alerts", zap.Int("count", enqueued))
			}
		}
	}
}

// Sweep runs one pass and returns how many executions were enqueued.
func (s *Scanner) Sweep(ctx context.Context) (int, error) {
	execs, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	ids := make([]uuid.UUID, 0, len(execs))
	for i := range execs {
		ids = append(ids, execs[i].ID)
	}
	pausesByExec, err := s.repo.ListPausesByExecution(ctx, ids)
	if err != nil {
		return 0, err
	}
	alerted, err := s.alerts.AlertedIDs(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	stalledNow := make(map[uuid.UUID]struct{}, len(execs))
	enqueued := 0

	for i := range execs {
		exec := &execs[i]
		pauses := pausesByExec[exec.ID]
		if !timeline.IsStalled(exec, pauses, now, s.thresholdHours) {
			continue
		}
		stalledNow[exec.ID] = struct{}{}

		if _, ok := alerted[exec.ID]; ok {
			continue
		}

		severity := Severity(timeline.StalledFor(exec, pauses, now), s.thresholdHours)
		if err := s.queue.Enqueue(ctx, exec.ID.String(), severity); err != nil {
			return enqueued, err
		}
		enqueued++
	}

	// alerts whose execution recovered or completed are resolved
	for id := range alerted {
		if _, still := stalledNow[id]; still {
			continue
		}
		if err := s.alerts.Clear(ctx, id); err != nil {
			return enqueued, err
		}
	}

	return enqueued, nil
}
