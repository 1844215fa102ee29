package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"install-pulse-service/internal/entity"
	"install-pulse-service/internal/repository/postgresql"
	"install-pulse-service/internal/timeline"
)

// Repository port (implementation: postgresql.ExecutionRepository).
// Every Save* call is a versioned write: the repository rejects it with
// ErrVersionConflict when the row moved since the read.
type ExecutionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ItemExecution, error)
	GetOpenByItem(ctx context.Context, jobID uuid.UUID, itemIndex int) (*entity.ItemExecution, error)
	CreateCheckin(ctx context.Context, exec *entity.ItemExecution) error
	SavePause(ctx context.Context, exec *entity.ItemExecution, interval *entity.PauseInterval) error
	SaveResume(ctx context.Context, exec *entity.ItemExecution, endedAt time.Time) error
	SaveCheckout(ctx context.Context, exec *entity.ItemExecution, closePauseAt *time.Time) error
	List(ctx context.Context, jobID, installerID *uuid.UUID, status *entity.ExecutionStatus) ([]entity.ItemExecution, error)
	ListActive(ctx context.Context) ([]entity.ItemExecution, error)
	ListPauses(ctx context.Context, executionID uuid.UUID) ([]entity.PauseInterval, error)
	ListPausesByExecution(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]entity.PauseInterval, error)
}

// Small read-only port over jobs; check-in validates the item exists.
type JobReader interface {
	GetItem(ctx context.Context, jobID uuid.UUID, itemIndex int) (*entity.JobItem, error)
}

type ExecutionFilter struct {
	JobID       *uuid.UUID
	InstallerID *uuid.UUID
	Status      *entity.ExecutionStatus
}

// ExecutionService owns the per-item execution state machine:
// Pending -> InProgress -> {Paused <-> InProgress} -> Completed.
// It holds no locks and performs no I/O of its own; evidence arrives fully
// captured, and state is only advanced after the repository confirms the
// durable write.
type ExecutionService struct {
	repo   ExecutionRepository
	jobs   JobReader
	logger *zap.Logger
	now    func() time.Time
}

func NewExecutionService(repo ExecutionRepository, jobs JobReader, logger *zap.Logger) *ExecutionService {
	return &ExecutionService{
		repo:   repo,
		jobs:   jobs,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Tests inject a fixed clock here.
func (s *ExecutionService) WithClock(now func() time.Time) *ExecutionService {
	s.now = now
	return s
}

type CheckInRequest struct {
	JobID       uuid.UUID
	ItemIndex   int
	InstallerID uuid.UUID
	Evidence    *entity.Evidence
}

// CheckIn opens an execution for a job item. Only one execution per
// (job, item) may be open at a time; a repeat while one is in progress or
// paused is rejected, not silently absorbed.
func (s *ExecutionService) CheckIn(ctx context.Context, req CheckInRequest) (*entity.ItemExecution, error) {
	if !req.Evidence.Complete() {
		return nil, fmt.Errorf("%w: check-in requires a photo and a GPS fix", ErrEvidenceMissing)
	}

	if _, err := s.jobs.GetItem(ctx, req.JobID, req.ItemIndex); err != nil {
		return nil, fmt.Errorf("job item: %w", err)
	}

	_, err := s.repo.GetOpenByItem(ctx, req.JobID, req.ItemIndex)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: item already has an open check-in", ErrInvalidTransition)
	case errors.Is(err, postgresql.ErrNotFound):
		// no open execution, proceed
	default:
		return nil, err
	}

	now := s.now().UTC()
	exec := &entity.ItemExecution{
		ID:              uuid.New(),
		JobID:           req.JobID,
		ItemIndex:       req.ItemIndex,
		InstallerID:     req.InstallerID,
		Status:          entity.StatusInProgress,
		CheckinAt:       &now,
		CheckinEvidence: req.Evidence,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateCheckin(ctx, exec); err != nil {
		return nil, err
	}

	s.logger.Info("item checked in",
		zap.String("execution_id", exec.ID.String()),
		zap.String("job_id", req.JobID.String()),
		zap.Int("item_index", req.ItemIndex),
		zap.String("installer_id", req.InstallerID.String()),
	)
	return exec, nil
}

// Pause opens a new pause interval. Allowed only from InProgress.
func (s *ExecutionService) Pause(ctx context.Context, id uuid.UUID, reason entity.PauseReason) (*entity.ItemExecution, error) {
	if !entity.ValidPauseReason(reason) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPauseReason, reason)
	}

	exec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exec.Status != entity.StatusInProgress {
		return nil, fmt.Errorf("%w: cannot pause from %s", ErrInvalidTransition, exec.Status)
	}

	now := s.now().UTC()
	updated := *exec
	updated.Status = entity.StatusPaused
	updated.UpdatedAt = now

	interval := &entity.PauseInterval{
		ID:          uuid.New(),
		ExecutionID: exec.ID,
		Reason:      reason,
		StartedAt:   now,
	}

	if err := s.savePause(ctx, &updated, interval); err != nil {
		return nil, err
	}

	s.logger.Info("item paused",
		zap.String("execution_id", exec.ID.String()),
		zap.String("reason", string(reason)),
	)
	return &updated, nil
}

// Resume closes the active pause interval. Allowed only from Paused.
func (s *ExecutionService) Resume(ctx context.Context, id uuid.UUID) (*entity.ItemExecution, error) {
	exec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exec.Status != entity.StatusPaused {
		return nil, fmt.Errorf("%w: cannot resume from %s", ErrInvalidTransition, exec.Status)
	}

	now := s.now().UTC()
	updated := *exec
	updated.Status = entity.StatusInProgress
	updated.UpdatedAt = now

	if err := s.saveResume(ctx, &updated, now); err != nil {
		return nil, err
	}

	s.logger.Info("item resumed", zap.String("execution_id", exec.ID.String()))
	return &updated, nil
}

type CheckOutRequest struct {
	Evidence    *entity.Evidence
	InstalledM2 float64
	Notes       string
}

// CheckOut completes an execution. Allowed from InProgress or Paused; when
// paused, the open interval is force-closed at the checkout timestamp, so the
// ledger of a completed execution never carries an open pause.
func (s *ExecutionService) CheckOut(ctx context.Context, id uuid.UUID, req CheckOutRequest) (*entity.ItemExecution, error) {
	if !req.Evidence.Complete() {
		return nil, fmt.Errorf("%w: check-out requires a photo and a GPS fix", ErrEvidenceMissing)
	}
	if req.InstalledM2 < 0 || math.IsNaN(req.InstalledM2) || math.IsInf(req.InstalledM2, 0) {
		return nil, fmt.Errorf("%w: installed area must be a non-negative number", ErrInvalidArea)
	}

	exec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exec.Active() {
		return nil, fmt.Errorf("%w: cannot check out from %s", ErrInvalidTransition, exec.Status)
	}

	now := s.now().UTC()
	area := timeline.Round2(req.InstalledM2)
	updated := *exec
	updated.Status = entity.StatusCompleted
	updated.CheckoutAt = &now
	updated.CheckoutEvidence = req.Evidence
	updated.InstalledM2 = &area
	if req.Notes != "" {
		updated.Notes = req.Notes
	}
	updated.UpdatedAt = now

	var closePauseAt *time.Time
	if exec.Status == entity.StatusPaused {
		closePauseAt = &now
	}

	if err := s.saveCheckout(ctx, &updated, closePauseAt); err != nil {
		return nil, err
	}

	s.logger.Info("item checked out",
		zap.String("execution_id", exec.ID.String()),
		zap.Float64("installed_m2", area),
	)
	return &updated, nil
}

// ExecutionView pairs an execution with its ledger and the durations
// computed as of the query time.
type ExecutionView struct {
	Execution *entity.ItemExecution     `json:"execution"`
	Pauses    []entity.PauseInterval    `json:"pauses"`
	Durations timeline.Durations        `json:"durations"`
}

// Get loads one execution with its pause ledger and live durations.
func (s *ExecutionService) Get(ctx context.Context, id uuid.UUID) (*ExecutionView, error) {
	exec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pauses, err := s.repo.ListPauses(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ExecutionView{
		Execution: exec,
		Pauses:    pauses,
		Durations: timeline.Compute(exec, pauses, s.now().UTC()),
	}, nil
}

// List returns executions matching the filter, each with live durations.
func (s *ExecutionService) List(ctx context.Context, f ExecutionFilter) ([]ExecutionView, error) {
	execs, err := s.repo.List(ctx, f.JobID, f.InstallerID, f.Status)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, execs)
}

// StalledExecution is an active execution past the inactivity threshold.
type StalledExecution struct {
	ExecutionView
	StalledForMinutes int `json:"stalled_for_minutes"`
}

// Stalled lists active executions with no transition for thresholdHours.
func (s *ExecutionService) Stalled(ctx context.Context, thresholdHours float64) ([]StalledExecution, error) {
	execs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, execs)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stalled := make([]StalledExecution, 0)
	for _, v := range views {
		if !timeline.IsStalled(v.Execution, v.Pauses, now, thresholdHours) {
			continue
		}
		stalled = append(stalled, StalledExecution{
			ExecutionView:     v,
			StalledForMinutes: int(timeline.StalledFor(v.Execution, v.Pauses, now).Minutes()),
		})
	}
	return stalled, nil
}

func (s *ExecutionService) views(ctx context.Context, execs []entity.ItemExecution) ([]ExecutionView, error) {
	ids := make([]uuid.UUID, 0, len(execs))
	for i := range execs {
		ids = append(ids, execs[i].ID)
	}
	pausesByExec, err := s.repo.ListPausesByExecution(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	views := make([]ExecutionView, 0, len(execs))
	for i := range execs {
		exec := &execs[i]
		pauses := pausesByExec[exec.ID]
		views = append(views, ExecutionView{
			Execution: exec,
			Pauses:    pauses,
			Durations: timeline.Compute(exec, pauses, now),
		})
	}
	return views, nil
}

func (s *ExecutionService) savePause(ctx context.Context, exec *entity.ItemExecution, interval *entity.PauseInterval) error {
	return mapVersionConflict(s.repo.SavePause(ctx, exec, interval))
}

func (s *ExecutionService) saveResume(ctx context.Context, exec *entity.ItemExecution, endedAt time.Time) error {
	return mapVersionConflict(s.repo.SaveResume(ctx, exec, endedAt))
}

func (s *ExecutionService) saveCheckout(ctx context.Context, exec *entity.ItemExecution, closePauseAt *time.Time) error {
	return mapVersionConflict(s.repo.SaveCheckout(ctx, exec, closePauseAt))
}

func mapVersionConflict(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, postgresql.ErrVersionConflict) {
		return fmt.Errorf("%w: execution changed since it was read", ErrConcurrentModification)
	}
	return err
}
