package postgresql_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"install-pulse-service/internal/entity"
	"install-pulse-service/internal/report"
	"install-pulse-service/internal/repository/postgresql"
)

var executionCols = []string{
	"id", "job_id", "item_index", "installer_id", "status",
	"checkin_at", "checkout_at", "installed_m2",
	"title", "job_total_m2",
	"description", "total_area_m2", "family_name",
	"full_name",
}

var pauseCols = []string{"id", "execution_id", "reason", "started_at", "ended_at"}

func TestSnapshot_JoinsMetadataAndPauses(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	execID := uuid.New()
	jobID := uuid.New()
	installerID := uuid.New()
	checkin := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	checkout := checkin.Add(90 * time.Minute)
	pauseStart := checkin.Add(30 * time.Minute)
	pauseEnd := checkin.Add(45 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.|\n)+FROM item_executions e(.|\n)+ORDER BY e.checkin_at").
		WillReturnRows(sqlmock.NewRows(executionCols).AddRow(
			execID, jobID, 0, installerID, "finalizado",
			checkin, checkout, 10.0,
			"Loja Centro", 40.0,
			"Adesivo vitrine", 20.0, "adesivo",
			"Ana",
		))
	mock.ExpectQuery("SELECT id, execution_id, reason, started_at, ended_at(.|\n)+FROM pause_intervals").
		WithArgs(execID).
		WillReturnRows(sqlmock.NewRows(pauseCols).AddRow(
			uuid.New(), execID, "chuva", pauseStart, pauseEnd,
		))
	mock.ExpectCommit()

	repo := postgresql.NewReportRepository(db)
	rows, err := repo.Snapshot(context.Background(), report.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, execID, row.Execution.ID)
	// legacy spelling normalized at the scan boundary
	assert.Equal(t, entity.StatusCompleted, row.Execution.Status)
	assert.Equal(t, "Loja Centro", row.JobTitle)
	assert.Equal(t, 40.0, row.JobTotalM2)
	assert.Equal(t, "adesivo", row.Family)
	assert.Equal(t, "Ana", row.InstallerName)
	require.Len(t, row.Pauses, 1)
	assert.Equal(t, entity.PauseWeather, row.Pauses[0].Reason)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshot_AppliesDateAndInstallerFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	installerID := uuid.New()
	from := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("checkin_at >= \\$1 AND e.checkin_at < \\$2 AND e.installer_id = \\$3").
		WithArgs(
			time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
			installerID,
		).
		WillReturnRows(sqlmock.NewRows(executionCols))
	mock.ExpectCommit()

	repo := postgresql.NewReportRepository(db)
	rows, err := repo.Snapshot(context.Background(), report.Filter{
		DateFrom:    &from,
		DateTo:      &to,
		InstallerID: &installerID,
		Location:    time.UTC,
	})
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshot_UnclassifiedFamilyFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("family_name IS NULL OR i.family_name = ''").
		WillReturnRows(sqlmock.NewRows(executionCols))
	mock.ExpectCommit()

	repo := postgresql.NewReportRepository(db)
	_, err = repo.Snapshot(context.Background(), report.Filter{Family: report.UnclassifiedFamily})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshot_UnknownStatusFailsLoudly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM item_executions e").
		WillReturnRows(sqlmock.NewRows(executionCols).AddRow(
			uuid.New(), uuid.New(), 0, uuid.New(), "mystery_status",
			time.Now(), nil, nil,
			"Loja", 0.0,
			"", 0.0, "",
			"",
		))
	mock.ExpectRollback()

	repo := postgresql.NewReportRepository(db)
	_, err = repo.Snapshot(context.Background(), report.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized status")
}
