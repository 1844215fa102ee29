package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"install-pulse-service/internal/entity"
	"install-pulse-service/internal/repository/postgresql"
	"install-pulse-service/internal/service"
	"install-pulse-service/internal/timeline"
)

// ExecutionSource is what the stall pipeline reads
// (implementation: postgresql.ExecutionRepository).
type ExecutionSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ItemExecution, error)
	ListActive(ctx context.Context) ([]entity.ItemExecution, error)
	ListPauses(ctx context.Context, executionID uuid.UUID) ([]entity.PauseInterval, error)
	ListPausesByExecution(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]entity.PauseInterval, error)
}

// AlertStore records stall alerts (implementation: postgresql.AlertRepository).
type AlertStore interface {
	Upsert(ctx context.Context, a entity.StallAlert) error
	Clear(ctx context.Context, executionID uuid.UUID) error
	AlertedIDs(ctx context.Context) (map[uuid.UUID]struct{}, error)
}

// Processor handles one claimed queue entry: it re-reads the execution and
// only records the alert if the stall is still real. An execution that
// transitioned between scan and claim is skipped, so a stale queue entry
// never produces a false alert.
type Processor struct {
	repo           ExecutionSource
	alerts         AlertStore
	logger         *zap.Logger
	thresholdHours float64
	now            func() time.Time
}

func NewProcessor(repo ExecutionSource, alerts AlertStore, logger *zap.Logger, thresholdHours float64) *Processor {
	return &Processor{
		repo:           repo,
		alerts:         alerts,
		logger:         logger,
		thresholdHours: thresholdHours,
		now:            time.Now,
	}
}

// WithClock replaces the time source. Tests inject a fixed clock here.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

func (p *Processor) Process(ctx context.Context, executionID string) error {
	id, err := uuid.Parse(executionID)
	if err != nil {
		p.logger.Warn("stall alert: bad execution id", zap.String("execution_id", executionID))
		return err
	}

	exec, err := p.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			// execution deleted administratively; nothing to alert on
			p.logger.Info("stall alert: execution gone", zap.String("execution_id", executionID))
			return nil
		}
		return err
	}

	pauses, err := p.repo.ListPauses(ctx, id)
	if err != nil {
		return err
	}

	now := p.now().UTC()
	if !timeline.IsStalled(exec, pauses, now, p.thresholdHours) {
		// moved on since the scan; drop any recorded alert
		if err := p.alerts.Clear(ctx, id); err != nil {
			return err
		}
		p.logger.Info("stall alert: no longer stalled",
			zap.String("execution_id", executionID),
			zap.String("status", string(exec.Status)),
		)
		return nil
	}

	stalledFor := timeline.StalledFor(exec, pauses, now)
	alert := entity.StallAlert{
		ExecutionID:       exec.ID,
		JobID:             exec.JobID,
		ItemIndex:         exec.ItemIndex,
		InstallerID:       exec.InstallerID,
		Severity:          Severity(stalledFor, p.thresholdHours),
		StalledForMinutes: int(stalledFor.Minutes()),
		DetectedAt:        now,
	}
	if err := p.alerts.Upsert(ctx, alert); err != nil {
		return err
	}

	p.logger.Info("stall alert recorded",
		zap.String("execution_id", executionID),
		zap.String("job_id", exec.JobID.String()),
		zap.Int("item_index", exec.ItemIndex),
		zap.Int("severity", alert.Severity),
		zap.Int("stalled_for_minutes", alert.StalledForMinutes),
	)
	return nil
}

// Severity grades a stall: twice the threshold or worse goes to the high
// lane so the worst cases drain first.
func Severity(stalledFor time.Duration, thresholdHours float64) int {
	if thresholdHours <= 0 {
		return service.SeverityNormal
	}
	if stalledFor >= time.Duration(2*thresholdHours*float64(time.Hour)) {
		return service.SeverityHigh
	}
	return service.SeverityNormal
}
