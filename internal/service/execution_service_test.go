package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"install-pulse-service/internal/entity"
	"install-pulse-service/internal/repository/postgresql"
	"install-pulse-service/internal/service"
)

var fixedNow = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }

func goodEvidence() *entity.Evidence {
	lat, long := -30.03, -51.23
	return &entity.Evidence{PhotoBase64: "Zm90bw==", GPSLat: &lat, GPSLong: &long}
}

type fakeRepo struct {
	byID   map[uuid.UUID]*entity.ItemExecution
	open   *entity.ItemExecution
	pauses map[uuid.UUID][]entity.PauseInterval

	created *entity.ItemExecution

	savedPause    *entity.ItemExecution
	savedInterval *entity.PauseInterval
	savedResume   *entity.ItemExecution
	resumeEndedAt time.Time
	savedCheckout *entity.ItemExecution
	closePauseAt  *time.Time

	saveErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byID:   map[uuid.UUID]*entity.ItemExecution{},
		pauses: map[uuid.UUID][]entity.PauseInterval{},
	}
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ItemExecution, error) {
	exec, ok := r.byID[id]
	if !ok {
		return nil, postgresql.ErrNotFound
	}
	cp := *exec
	return &cp, nil
}

func (r *fakeRepo) GetOpenByItem(ctx context.Context, jobID uuid.UUID, itemIndex int) (*entity.ItemExecution, error) {
	if r.open == nil {
		return nil, postgresql.ErrNotFound
	}
	return r.open, nil
}

func (r *fakeRepo) CreateCheckin(ctx context.Context, exec *entity.ItemExecution) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.created = exec
	r.byID[exec.ID] = exec
	return nil
}

func (r *fakeRepo) SavePause(ctx context.Context, exec *entity.ItemExecution, interval *entity.PauseInterval) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.savedPause = exec
	r.savedInterval = interval
	r.byID[exec.ID] = exec
	return nil
}

func (r *fakeRepo) SaveResume(ctx context.Context, exec *entity.ItemExecution, endedAt time.Time) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.savedResume = exec
	r.resumeEndedAt = endedAt
	r.byID[exec.ID] = exec
	return nil
}

func (r *fakeRepo) SaveCheckout(ctx context.Context, exec *entity.ItemExecution, closePauseAt *time.Time) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.savedCheckout = exec
	r.closePauseAt = closePauseAt
	r.byID[exec.ID] = exec
	return nil
}

func (r *fakeRepo) List(ctx context.Context, jobID, installerID *uuid.UUID, status *entity.ExecutionStatus) ([]entity.ItemExecution, error) {
	out := make([]entity.ItemExecution, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, *e)
	}
	return out, nil
}

func (r *fakeRepo) ListActive(ctx context.Context) ([]entity.ItemExecution, error) {
	out := make([]entity.ItemExecution, 0)
	for _, e := range r.byID {
		if e.Active() {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListPauses(ctx context.Context, executionID uuid.UUID) ([]entity.PauseInterval, error) {
	return r.pauses[executionID], nil
}

func (r *fakeRepo) ListPausesByExecution(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]entity.PauseInterval, error) {
	out := map[uuid.UUID][]entity.PauseInterval{}
	for _, id := range ids {
		if ps, ok := r.pauses[id]; ok {
			out[id] = ps
		}
	}
	return out, nil
}

type fakeJobs struct {
	item *entity.JobItem
	err  error
}

func (j *fakeJobs) GetItem(ctx context.Context, jobID uuid.UUID, itemIndex int) (*entity.JobItem, error) {
	if j.err != nil {
		return nil, j.err
	}
	return j.item, nil
}

func newService(repo *fakeRepo, jobs *fakeJobs) *service.ExecutionService {
	return service.NewExecutionService(repo, jobs, zap.NewNop()).WithClock(clock(fixedNow))
}

func seedExecution(repo *fakeRepo, status entity.ExecutionStatus) *entity.ItemExecution {
	checkin := fixedNow.Add(-2 * time.Hour)
	exec := &entity.ItemExecution{
		ID:          uuid.New(),
		JobID:       uuid.New(),
		ItemIndex:   0,
		InstallerID: uuid.New(),
		Status:      status,
		CheckinAt:   &checkin,
		Version:     3,
	}
	repo.byID[exec.ID] = exec
	return exec
}

func TestCheckIn_CreatesInProgressExecution(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	jobs := &fakeJobs{item: &entity.JobItem{ItemIndex: 0, TotalAreaM2: 12}}
	svc := newService(repo, jobs)

	exec, err := svc.CheckIn(ctx, service.CheckInRequest{
		JobID:       uuid.New(),
		ItemIndex:   0,
		InstallerID: uuid.New(),
		Evidence:    goodEvidence(),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if exec.Status != entity.StatusInProgress {
		t.Fatalf("expected in_progress, got %s", exec.Status)
	}
	if exec.CheckinAt == nil || !exec.CheckinAt.Equal(fixedNow) {
		t.Fatalf("expected checkin at %v, got %v", fixedNow, exec.CheckinAt)
	}
	if exec.Version != 1 {
		t.Fatalf("expected version 1, got %d", exec.Version)
	}
	if repo.created == nil {
		t.Fatalf("expected repository create call")
	}
}

func TestCheckIn_RejectsIncompleteEvidence(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newService(repo, &fakeJobs{item: &entity.JobItem{}})

	cases := map[string]*entity.Evidence{
		"nil evidence": nil,
		"no photo":     {GPSLat: goodEvidence().GPSLat, GPSLong: goodEvidence().GPSLong},
		"no gps":       {PhotoBase64: "Zm90bw=="},
	}
	for name, ev := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CheckIn(ctx, service.CheckInRequest{
				JobID: uuid.New(), InstallerID: uuid.New(), Evidence: ev,
			})
			if !errors.Is(err, service.ErrEvidenceMissing) {
				t.Fatalf("expected ErrEvidenceMissing, got %v", err)
			}
			if repo.created != nil {
				t.Fatalf("no execution must be created on rejected evidence")
			}
		})
	}
}

func TestCheckIn_RejectsSecondOpenExecution(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.open = &entity.ItemExecution{Status: entity.StatusInProgress}
	svc := newService(repo, &fakeJobs{item: &entity.JobItem{}})

	_, err := svc.CheckIn(ctx, service.CheckInRequest{
		JobID: uuid.New(), InstallerID: uuid.New(), Evidence: goodEvidence(),
	})
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCheckIn_UnknownItem(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newService(repo, &fakeJobs{err: postgresql.ErrNotFound})

	_, err := svc.CheckIn(ctx, service.CheckInRequest{
		JobID: uuid.New(), InstallerID: uuid.New(), Evidence: goodEvidence(),
	})
	if !errors.Is(err, postgresql.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPause_OnlyFromInProgress(t *testing.T) {
	ctx := context.Background()

	for _, status := range []entity.ExecutionStatus{entity.StatusPaused, entity.StatusCompleted, entity.StatusPending} {
		repo := newFakeRepo()
		exec := seedExecution(repo, status)
		svc := newService(repo, &fakeJobs{})

		_, err := svc.Pause(ctx, exec.ID, entity.PauseWeather)
		if !errors.Is(err, service.ErrInvalidTransition) {
			t.Fatalf("pause from %s: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestPause_OpensInterval(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	exec := seedExecution(repo, entity.StatusInProgress)
	svc := newService(repo, &fakeJobs{})

	updated, err := svc.Pause(ctx, exec.ID, entity.PauseMissingMaterial)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if updated.Status != entity.StatusPaused {
		t.Fatalf("expected paused, got %s", updated.Status)
	}
	if repo.savedInterval == nil {
		t.Fatalf("expected a pause interval to be written")
	}
	if repo.savedInterval.Reason != entity.PauseMissingMaterial {
		t.Fatalf("expected reason falta_material, got %s", repo.savedInterval.Reason)
	}
	if !repo.savedInterval.StartedAt.Equal(fixedNow) {
		t.Fatalf("expected interval start %v, got %v", fixedNow, repo.savedInterval.StartedAt)
	}
	if repo.savedInterval.EndedAt != nil {
		t.Fatalf("new interval must be open")
	}
}

func TestPause_RejectsUnknownReason(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	exec := seedExecution(repo, entity.StatusInProgress)
	svc := newService(repo, &fakeJobs{})

	_, err := svc.Pause(ctx, exec.ID, entity.PauseReason("ferias"))
	if !errors.Is(err, service.ErrUnknownPauseReason) {
		t.Fatalf("expected ErrUnknownPauseReason, got %v", err)
	}
	if repo.savedPause != nil {
		t.Fatalf("nothing must be written for an unknown reason")
	}
}

func TestResume_OnlyFromPaused(t *testing.T) {
	ctx := context.Background()

	for _, status := range []entity.ExecutionStatus{entity.StatusInProgress, entity.StatusCompleted, entity.StatusPending} {
		repo := newFakeRepo()
		exec := seedExecution(repo, status)
		svc := newService(repo, &fakeJobs{})

		_, err := svc.Resume(ctx, exec.ID)
		if !errors.Is(err, service.ErrInvalidTransition) {
			t.Fatalf("resume from %s: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestResume_ClosesInterval(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	exec := seedExecution(repo, entity.StatusPaused)
	svc := newService(repo, &fakeJobs{})

	updated, err := svc.Resume(ctx, exec.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if updated.Status != entity.StatusInProgress {
		t.Fatalf("expected in_progress, got %s", updated.Status)
	}
	if !repo.resumeEndedAt.Equal(fixedNow) {
		t.Fatalf("expected interval closed at %v, got %v", fixedNow, repo.resumeEndedAt)
	}
}

func TestCheckOut_FromInProgress(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	exec := seedExecution(repo, entity.StatusInProgress)
	svc := newService(repo, &fakeJobs{})

	updated, err := svc.CheckOut(ctx, exec.ID, service.CheckOutRequest{
		Evidence:    goodEvidence(),
		InstalledM2: 12.345,
		Notes:       "acabamento ok",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if updated.Status != entity.StatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.InstalledM2 == nil || *updated.InstalledM2 != 12.35 {
		t.Fatalf("expected installed area rounded to 12.35, got %v", updated.InstalledM2)
	}
	if updated.Notes != "acabamento ok" {
		t.Fatalf("expected notes to be stored")
	}
	if repo.closePauseAt != nil {
		t.Fatalf("no pause to force-close from in_progress")
	}
}

func TestCheckOut_WhilePausedForceClosesInterval(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	exec := seedExecution(repo, entity.StatusPaused)
	svc := newService(repo, &fakeJobs{})

	_, err := svc.CheckOut(ctx, exec.ID, service.CheckOutRequest{
		Evidence:    goodEvidence(),
		InstalledM2: 5,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.closePauseAt == nil || !repo.closePauseAt.Equal(fixedNow) {
		t.Fatalf("expected open pause force-closed at checkout time, got %v", repo.closePauseAt)
	}
}

func TestCheckOut_RejectsBadArea(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	exec := seedExecution(repo, entity.StatusInProgress)
	svc := newService(repo, &fakeJobs{})

	for name, area := range map[string]float64{
		"negative": -1,
		"nan":      math.NaN(),
		"inf":      math.Inf(1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CheckOut(ctx, exec.ID, service.CheckOutRequest{
				Evidence:    goodEvidence(),
				InstalledM2: area,
			})
			if !errors.Is(err, service.ErrInvalidArea) {
				t.Fatalf("expected ErrInvalidArea, got %v", err)
			}
		})
	}

	// zero area is legitimate (item found already installed, rework visits)
	if _, err := svc.CheckOut(ctx, exec.ID, service.CheckOutRequest{
		Evidence: goodEvidence(), InstalledM2: 0,
	}); err != nil {
		t.Fatalf("zero area must be accepted, got %v", err)
	}
}

func TestCheckOut_OnlyFromActive(t *testing.T) {
	ctx := context.Background()

	for _, status := range []entity.ExecutionStatus{entity.StatusCompleted, entity.StatusPending} {
		repo := newFakeRepo()
		exec := seedExecution(repo, status)
		svc := newService(repo, &fakeJobs{})

		_, err := svc.CheckOut(ctx, exec.ID, service.CheckOutRequest{
			Evidence: goodEvidence(), InstalledM2: 1,
		})
		if !errors.Is(err, service.ErrInvalidTransition) {
			t.Fatalf("checkout from %s: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestTransition_VersionConflictMapped(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	exec := seedExecution(repo, entity.StatusInProgress)
	repo.saveErr = postgresql.ErrVersionConflict
	svc := newService(repo, &fakeJobs{})

	_, err := svc.Pause(ctx, exec.ID, entity.PauseWeather)
	if !errors.Is(err, service.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	// state the next reader sees is unchanged
	stored, _ := repo.GetByID(ctx, exec.ID)
	if stored.Status != entity.StatusInProgress {
		t.Fatalf("failed save must not advance stored state, got %s", stored.Status)
	}
}

func TestStalled_FiltersByThreshold(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()

	stale := seedExecution(repo, entity.StatusInProgress)
	fresh := seedExecution(repo, entity.StatusInProgress)
	freshCheckin := fixedNow.Add(-10 * time.Minute)
	repo.byID[fresh.ID].CheckinAt = &freshCheckin

	svc := newService(repo, &fakeJobs{})

	stalled, err := svc.Stalled(ctx, 1.5)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(stalled) != 1 {
		t.Fatalf("expected 1 stalled execution, got %d", len(stalled))
	}
	if stalled[0].Execution.ID != stale.ID {
		t.Fatalf("wrong execution flagged as stalled")
	}
	if stalled[0].StalledForMinutes != 120 {
		t.Fatalf("expected 120 stalled minutes, got %d", stalled[0].StalledForMinutes)
	}
}
