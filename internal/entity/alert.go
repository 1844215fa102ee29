package entity

import (
	"time"

	"github.com/google/uuid"
)

// StallAlert is a recorded stall for one execution. One row per execution:
// re-detections update the staleness instead of piling up, and the alert is
// cleared once the execution transitions again.
type StallAlert struct {
	ExecutionID       uuid.UUID `json:"execution_id"`
	JobID             uuid.UUID `json:"job_id"`
	ItemIndex         int       `json:"item_index"`
	InstallerID       uuid.UUID `json:"installer_id"`
	Severity          int       `json:"severity"`
	StalledForMinutes int       `json:"stalled_for_minutes"`
	DetectedAt        time.Time `json:"detected_at"`
}
