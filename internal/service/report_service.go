package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"install-pulse-service/internal/report"
	"install-pulse-service/internal/timeline"
)

// Snapshot port (implementation: postgresql.ReportRepository).
type ReportSource interface {
	Snapshot(ctx context.Context, f report.Filter) ([]report.SnapshotRow, error)
}

type ReportService struct {
	src    ReportSource
	logger *zap.Logger
	now    func() time.Time
}

func NewReportService(src ReportSource, logger *zap.Logger) *ReportService {
	return &ReportService{src: src, logger: logger, now: time.Now}
}

func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// Productivity builds the full grouped report for the filter. Durations are
// recomputed from the snapshot through the timeline package so the report
// rounds exactly like the live execution views.
func (s *ReportService) Productivity(ctx context.Context, f report.Filter) (*report.Report, error) {
	snap, err := s.src.Snapshot(ctx, f)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rows := make([]report.Row, 0, len(snap))
	for i := range snap {
		sr := &snap[i]
		exec := &sr.Execution
		d := timeline.Compute(exec, sr.Pauses, now)

		var installed float64
		if exec.InstalledM2 != nil {
			installed = *exec.InstalledM2
		}

		var checkin time.Time
		if exec.CheckinAt != nil {
			checkin = *exec.CheckinAt
		}

		rows = append(rows, report.Row{
			ExecutionID:     exec.ID,
			JobID:           exec.JobID,
			JobTitle:        sr.JobTitle,
			JobTotalM2:      sr.JobTotalM2,
			ItemIndex:       exec.ItemIndex,
			ItemDescription: sr.ItemDescription,
			ItemAreaM2:      sr.ItemAreaM2,
			Family:          sr.Family,
			InstallerID:     exec.InstallerID,
			InstallerName:   sr.InstallerName,
			Status:          exec.Status,
			CheckinAt:       checkin,
			CheckoutAt:      exec.CheckoutAt,
			InstalledM2:     installed,
			GrossMinutes:    d.GrossMinutes,
			PauseMinutes:    d.PauseMinutes,
			NetMinutes:      d.NetMinutes,
		})
	}

	s.logger.Debug("productivity report built", zap.Int("rows", len(rows)))
	return report.Aggregate(rows), nil
}
