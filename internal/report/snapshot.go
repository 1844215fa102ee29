package report

import "install-pulse-service/internal/entity"

// SnapshotRow is one execution with the job/item/installer metadata joined
// in, read from a consistent snapshot so aggregation never sees a
// half-written transition.
type SnapshotRow struct {
	Execution       entity.ItemExecution
	Pauses          []entity.PauseInterval
	JobTitle        string
	JobTotalM2      float64
	ItemDescription string
	ItemAreaM2      float64
	Family          string
	InstallerName   string
}
