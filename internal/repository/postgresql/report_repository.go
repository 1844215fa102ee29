package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"install-pulse-service/internal/entity"
	"install-pulse-service/internal/report"
)

// ReportRepository serves the aggregation engine. It reads through
// database/sql (pgx stdlib driver) inside a read-only REPEATABLE READ
// transaction, so one report sees one consistent snapshot: an execution is
// either fully transitioned or not there yet, never half-written.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Snapshot(ctx context.Context, f report.Filter) ([]report.SnapshotRow, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := r.listExecutions(ctx, tx, f)
	if err != nil {
		return nil, err
	}
	if err := r.attachPauses(ctx, tx, rows); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ReportRepository) listExecutions(ctx context.Context, tx *sql.Tx, f report.Filter) ([]report.SnapshotRow, error) {
	q := `
SELECT
    e.id, e.job_id, e.item_index, e.installer_id, e.status,
    e.checkin_at, e.checkout_at, e.installed_m2,
    j.title,
    COALESCE(jt.total_area, 0) AS job_total_m2,
    COALESCE(i.description, ''), COALESCE(i.total_area_m2, 0), COALESCE(i.family_name, ''),
    COALESCE(ins.full_name, '')
FROM item_executions e
JOIN jobs j ON j.id = e.job_id
LEFT JOIN job_items i ON i.job_id = e.job_id AND i.item_index = e.item_index
LEFT JOIN (
    SELECT job_id, SUM(total_area_m2) AS total_area FROM job_items GROUP BY job_id
) jt ON jt.job_id = e.job_id
LEFT JOIN installers ins ON ins.id = e.installer_id
WHERE 1=1`
	args := []any{}

	from, to := f.CheckinRange()
	if from != nil {
		args = append(args, *from)
		q += fmt.Sprintf(" AND e.checkin_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		q += fmt.Sprintf(" AND e.checkin_at < $%d", len(args))
	}
	if f.InstallerID != nil {
		args = append(args, *f.InstallerID)
		q += fmt.Sprintf(" AND e.installer_id = $%d", len(args))
	}
	if f.JobID != nil {
		args = append(args, *f.JobID)
		q += fmt.Sprintf(" AND e.job_id = $%d", len(args))
	}
	if f.Family != "" {
		if f.Family == report.UnclassifiedFamily {
			q += " AND (i.family_name IS NULL OR i.family_name = '')"
		} else {
			args = append(args, f.Family)
			q += fmt.Sprintf(" AND i.family_name = $%d", len(args))
		}
	}
	q += " ORDER BY e.checkin_at;"

	rs, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []report.SnapshotRow
	for rs.Next() {
		var (
			row        report.SnapshotRow
			statusText string
		)
		exec := &row.Execution
		if err := rs.Scan(
			&exec.ID, &exec.JobID, &exec.ItemIndex, &exec.InstallerID, &statusText,
			&exec.CheckinAt, &exec.CheckoutAt, &exec.InstalledM2,
			&row.JobTitle, &row.JobTotalM2,
			&row.ItemDescription, &row.ItemAreaM2, &row.Family,
			&row.InstallerName,
		); err != nil {
			return nil, err
		}

		status, ok := entity.ParseStatus(statusText)
		if !ok {
			return nil, fmt.Errorf("execution %s: unrecognized status %q", exec.ID, statusText)
		}
		exec.Status = status
		out = append(out, row)
	}
	return out, rs.Err()
}

func (r *ReportRepository) attachPauses(ctx context.Context, tx *sql.Tx, rows []report.SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows))
	index := make(map[uuid.UUID]int, len(rows))
	for i := range rows {
		id := rows[i].Execution.ID
		index[id] = i
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	q := `
SELECT id, execution_id, reason, started_at, ended_at
FROM pause_intervals
WHERE execution_id IN (` + strings.Join(placeholders, ", ") + `)
ORDER BY started_at;`

	rs, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rs.Close()

	for rs.Next() {
		var p entity.PauseInterval
		var reason string
		if err := rs.Scan(&p.ID, &p.ExecutionID, &reason, &p.StartedAt, &p.EndedAt); err != nil {
			return err
		}
		p.Reason = entity.PauseReason(reason)
		if i, ok := index[p.ExecutionID]; ok {
			rows[i].Pauses = append(rows[i].Pauses, p)
		}
	}
	return rs.Err()
}
