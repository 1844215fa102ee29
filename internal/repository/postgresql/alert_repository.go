package postgresql

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"install-pulse-service/internal/entity"
)

type AlertRepository struct {
	pool *pgxpool.Pool
}

func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

func (r *AlertRepository) Upsert(ctx context.Context, a entity.StallAlert) error {
	const q = `
INSERT INTO stall_alerts (execution_id, job_id, item_index, installer_id, severity, stalled_for_minutes, detected_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (execution_id) DO UPDATE
SET severity = EXCLUDED.severity,
    stalled_for_minutes = EXCLUDED.stalled_for_minutes;
`
	_, err := r.pool.Exec(ctx, q,
		a.ExecutionID, a.JobID, a.ItemIndex, a.InstallerID,
		a.Severity, a.StalledForMinutes, a.DetectedAt,
	)
	return err
}

// Clear drops the alert once the execution transitions again.
func (r *AlertRepository) Clear(ctx context.Context, executionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM stall_alerts WHERE execution_id = $1;`, executionID)
	return err
}

// AlertedIDs returns the executions that already have an open alert, so the
// scanner does not enqueue them again every sweep.
func (r *AlertRepository) AlertedIDs(ctx context.Context) (map[uuid.UUID]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT execution_id FROM stall_alerts;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[uuid.UUID]struct{}{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
