package postgresql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"install-pulse-service/internal/entity"
)

// JobRepository reads job and line-item metadata. Jobs are owned by an
// upstream system; nothing here writes them.
type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `
SELECT id, title, client_name, branch, created_at
FROM jobs
WHERE id = $1;
`
	var job entity.Job
	if err := r.pool.QueryRow(ctx, q, id).Scan(
		&job.ID, &job.Title, &job.ClientName, &job.Branch, &job.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Items = items
	return &job, nil
}

func (r *JobRepository) GetItem(ctx context.Context, jobID uuid.UUID, itemIndex int) (*entity.JobItem, error) {
	const q = `
SELECT item_index, description, quantity, width_m, height_m, total_area_m2, family_name
FROM job_items
WHERE job_id = $1 AND item_index = $2;
`
	item, err := scanJobItem(r.pool.QueryRow(ctx, q, jobID, itemIndex))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *JobRepository) listItems(ctx context.Context, jobID uuid.UUID) ([]entity.JobItem, error) {
	const q = `
SELECT item_index, description, quantity, width_m, height_m, total_area_m2, family_name
FROM job_items
WHERE job_id = $1
ORDER BY item_index;
`
	rows, err := r.pool.Query(ctx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []entity.JobItem
	for rows.Next() {
		item, err := scanJobItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanJobItem(row rowScanner) (*entity.JobItem, error) {
	var item entity.JobItem
	var family *string
	if err := row.Scan(
		&item.ItemIndex, &item.Description, &item.Quantity,
		&item.WidthM, &item.HeightM, &item.TotalAreaM2, &family,
	); err != nil {
		return nil, err
	}
	if family != nil {
		item.FamilyName = *family
	}
	return &item, nil
}
