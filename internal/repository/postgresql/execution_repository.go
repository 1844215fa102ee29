package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"install-pulse-service/internal/entity"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict: the row's version moved between read and write.
	ErrVersionConflict = errors.New("version conflict")
)

const executionColumns = `
id, job_id, item_index, installer_id, status,
checkin_at, checkout_at,
checkin_photo, checkin_gps_lat, checkin_gps_long, checkin_gps_accuracy,
checkout_photo, checkout_gps_lat, checkout_gps_long, checkout_gps_accuracy,
installed_m2, difficulty_level, scenario_category, height_category,
notes, version, created_at, updated_at`

type ExecutionRepository struct {
	pool *pgxpool.Pool
}

func NewExecutionRepository(pool *pgxpool.Pool) *ExecutionRepository {
	return &ExecutionRepository{pool: pool}
}

func (r *ExecutionRepository) CreateCheckin(ctx context.Context, exec *entity.ItemExecution) error {
	const q = `
INSERT INTO item_executions (
    id, job_id, item_index, installer_id, status, checkin_at,
    checkin_photo, checkin_gps_lat, checkin_gps_long, checkin_gps_accuracy,
    notes, version, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
`
	var photo *string
	var lat, long, acc *float64
	if ev := exec.CheckinEvidence; ev != nil {
		photo = &ev.PhotoBase64
		lat, long, acc = ev.GPSLat, ev.GPSLong, ev.GPSAccuracyM
	}

	_, err := r.pool.Exec(ctx, q,
		exec.ID, exec.JobID, exec.ItemIndex, exec.InstallerID, string(exec.Status),
		exec.CheckinAt, photo, lat, long, acc,
		exec.Notes, exec.Version, exec.CreatedAt, exec.UpdatedAt,
	)
	return err
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.ItemExecution, error) {
	q := `SELECT ` + executionColumns + ` FROM item_executions WHERE id = $1;`

	exec, err := scanExecution(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return exec, nil
}

// GetOpenByItem returns the in-progress or paused execution for a job item,
// or ErrNotFound. At most one exists per item at a time.
func (r *ExecutionRepository) GetOpenByItem(ctx context.Context, jobID uuid.UUID, itemIndex int) (*entity.ItemExecution, error) {
	q := `SELECT ` + executionColumns + `
FROM item_executions
WHERE job_id = $1 AND item_index = $2 AND status IN ('in_progress', 'paused')
LIMIT 1;`

	exec, err := scanExecution(r.pool.QueryRow(ctx, q, jobID, itemIndex))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return exec, nil
}

// SavePause writes the paused status and opens the interval in one
// transaction. The status update is versioned; a stale version aborts the
// whole transaction with ErrVersionConflict.
func (r *ExecutionRepository) SavePause(ctx context.Context, exec *entity.ItemExecution, interval *entity.PauseInterval) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.updateStatusTx(ctx, tx, exec); err != nil {
		return err
	}

	const q = `
INSERT INTO pause_intervals (id, execution_id, reason, started_at)
VALUES ($1, $2, $3, $4);
`
	if _, err := tx.Exec(ctx, q, interval.ID, interval.ExecutionID, string(interval.Reason), interval.StartedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	exec.Version++
	return nil
}

// SaveResume writes the in-progress status and closes the open interval.
func (r *ExecutionRepository) SaveResume(ctx context.Context, exec *entity.ItemExecution, endedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.updateStatusTx(ctx, tx, exec); err != nil {
		return err
	}
	if err := closeOpenPauseTx(ctx, tx, exec.ID, endedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	exec.Version++
	return nil
}

// SaveCheckout writes the completed execution. When closePauseAt is set the
// open interval is force-closed at that timestamp in the same transaction,
// so the ledger of a completed execution never carries an open pause.
func (r *ExecutionRepository) SaveCheckout(ctx context.Context, exec *entity.ItemExecution, closePauseAt *time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `
UPDATE item_executions
SET status = $2, checkout_at = $3,
    checkout_photo = $4, checkout_gps_lat = $5, checkout_gps_long = $6, checkout_gps_accuracy = $7,
    installed_m2 = $8, notes = $9, updated_at = $10, version = version + 1
WHERE id = $1 AND version = $11;
`
	var photo *string
	var lat, long, acc *float64
	if ev := exec.CheckoutEvidence; ev != nil {
		photo = &ev.PhotoBase64
		lat, long, acc = ev.GPSLat, ev.GPSLong, ev.GPSAccuracyM
	}

	tag, err := tx.Exec(ctx, q,
		exec.ID, string(exec.Status), exec.CheckoutAt,
		photo, lat, long, acc,
		exec.InstalledM2, exec.Notes, exec.UpdatedAt, exec.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, exec.ID)
	}

	if closePauseAt != nil {
		if err := closeOpenPauseTx(ctx, tx, exec.ID, *closePauseAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	exec.Version++
	return nil
}

func (r *ExecutionRepository) List(ctx context.Context, jobID, installerID *uuid.UUID, status *entity.ExecutionStatus) ([]entity.ItemExecution, error) {
	q := `SELECT ` + executionColumns + ` FROM item_executions WHERE 1=1`
	args := []any{}

	if jobID != nil {
		args = append(args, *jobID)
		q += fmt.Sprintf(" AND job_id = $%d", len(args))
	}
	if installerID != nil {
		args = append(args, *installerID)
		q += fmt.Sprintf(" AND installer_id = $%d", len(args))
	}
	if status != nil {
		args = append(args, string(*status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY checkin_at;"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectExecutions(rows)
}

func (r *ExecutionRepository) ListActive(ctx context.Context) ([]entity.ItemExecution, error) {
	q := `SELECT ` + executionColumns + `
FROM item_executions
WHERE status IN ('in_progress', 'paused')
ORDER BY checkin_at;`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectExecutions(rows)
}

func (r *ExecutionRepository) ListPauses(ctx context.Context, executionID uuid.UUID) ([]entity.PauseInterval, error) {
	const q = `
SELECT id, execution_id, reason, started_at, ended_at
FROM pause_intervals
WHERE execution_id = $1
ORDER BY started_at;
`
	rows, err := r.pool.Query(ctx, q, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPauses(rows)
}

func (r *ExecutionRepository) ListPausesByExecution(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]entity.PauseInterval, error) {
	out := make(map[uuid.UUID][]entity.PauseInterval, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	const q = `
SELECT id, execution_id, reason, started_at, ended_at
FROM pause_intervals
WHERE execution_id = ANY($1)
ORDER BY started_at;
`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pauses, err := collectPauses(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range pauses {
		out[p.ExecutionID] = append(out[p.ExecutionID], p)
	}
	return out, nil
}

func (r *ExecutionRepository) updateStatusTx(ctx context.Context, tx pgx.Tx, exec *entity.ItemExecution) error {
	const q = `
UPDATE item_executions
SET status = $2, updated_at = $3, version = version + 1
WHERE id = $1 AND version = $4;
`
	tag, err := tx.Exec(ctx, q, exec.ID, string(exec.Status), exec.UpdatedAt, exec.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, exec.ID)
	}
	return nil
}

// conflictOrMissing decides whether a zero-row versioned update means the
// row is gone or somebody else won the write.
func (r *ExecutionRepository) conflictOrMissing(ctx context.Context, id uuid.UUID) error {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM item_executions WHERE id = $1;`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrVersionConflict
}

func closeOpenPauseTx(ctx context.Context, tx pgx.Tx, executionID uuid.UUID, endedAt time.Time) error {
	const q = `
UPDATE pause_intervals
SET ended_at = $2
WHERE execution_id = $1 AND ended_at IS NULL;
`
	_, err := tx.Exec(ctx, q, executionID, endedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*entity.ItemExecution, error) {
	var (
		exec       entity.ItemExecution
		statusText string

		checkinPhoto, checkoutPhoto          *string
		ciLat, ciLong, ciAcc                 *float64
		coLat, coLong, coAcc                 *float64
		difficulty                           *int
		scenario, height                     *string
	)

	if err := row.Scan(
		&exec.ID, &exec.JobID, &exec.ItemIndex, &exec.InstallerID, &statusText,
		&exec.CheckinAt, &exec.CheckoutAt,
		&checkinPhoto, &ciLat, &ciLong, &ciAcc,
		&checkoutPhoto, &coLat, &coLong, &coAcc,
		&exec.InstalledM2, &difficulty, &scenario, &height,
		&exec.Notes, &exec.Version, &exec.CreatedAt, &exec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	status, ok := entity.ParseStatus(statusText)
	if !ok {
		return nil, fmt.Errorf("execution %s: unrecognized status %q", exec.ID, statusText)
	}
	exec.Status = status

	exec.CheckinEvidence = buildEvidence(checkinPhoto, ciLat, ciLong, ciAcc)
	exec.CheckoutEvidence = buildEvidence(checkoutPhoto, coLat, coLong, coAcc)

	if difficulty != nil && scenario != nil && height != nil {
		exec.Classification = &entity.Classification{
			DifficultyLevel:  *difficulty,
			ScenarioCategory: entity.ScenarioCategory(*scenario),
			HeightCategory:   entity.HeightCategory(*height),
		}
	}
	return &exec, nil
}

func buildEvidence(photo *string, lat, long, acc *float64) *entity.Evidence {
	if photo == nil && lat == nil && long == nil {
		return nil
	}
	ev := &entity.Evidence{GPSLat: lat, GPSLong: long, GPSAccuracyM: acc}
	if photo != nil {
		ev.PhotoBase64 = *photo
	}
	return ev
}

func collectExecutions(rows pgx.Rows) ([]entity.ItemExecution, error) {
	var out []entity.ItemExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *exec)
	}
	return out, rows.Err()
}

func collectPauses(rows pgx.Rows) ([]entity.PauseInterval, error) {
	var out []entity.PauseInterval
	for rows.Next() {
		var p entity.PauseInterval
		var reason string
		if err := rows.Scan(&p.ID, &p.ExecutionID, &reason, &p.StartedAt, &p.EndedAt); err != nil {
			return nil, err
		}
		p.Reason = entity.PauseReason(reason)
		out = append(out, p)
	}
	return out, rows.Err()
}
