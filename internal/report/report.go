// Package report folds item executions into the productivity summaries the
// reporting screens consume: per installer, per job, per product family and
// per item. The fold keeps summed numerators and denominators and derives
// every ratio at the end, so aggregating in any order, or in batches merged
// later, yields identical output.
package report

import (
	"time"

	"github.com/google/uuid"

	"install-pulse-service/internal/entity"
)

// UnclassifiedFamily is the bucket for items without a (confident) product
// family classification. They are reported, never dropped.
const UnclassifiedFamily = "unclassified"

// Row is one execution flattened with the job/item/installer metadata the
// groupings need. Duration figures are precomputed by the caller through the
// timeline package so every consumer rounds the same way.
type Row struct {
	ExecutionID     uuid.UUID
	JobID           uuid.UUID
	JobTitle        string
	JobTotalM2      float64 // area specified across the whole job
	ItemIndex       int
	ItemDescription string
	ItemAreaM2      float64 // area specified for this line item
	Family          string  // empty means unclassified
	InstallerID     uuid.UUID
	InstallerName   string
	Status          entity.ExecutionStatus
	CheckinAt       time.Time
	CheckoutAt      *time.Time
	InstalledM2     float64
	GrossMinutes    int
	PauseMinutes    int
	NetMinutes      int
}

// Summary is the overall roll-up across the filtered set.
type Summary struct {
	TotalExecutions      int     `json:"total_executions"`
	CompletedExecutions  int     `json:"completed_executions"`
	TotalM2              float64 `json:"total_m2"`
	NetHours             float64 `json:"net_hours"`
	TotalPauseMinutes    int     `json:"total_pause_minutes"`
	AvgDurationMinutes   float64 `json:"avg_duration_minutes"`
	AvgProductivityM2H   float64 `json:"avg_productivity_m2_h"`
}

type InstallerSummary struct {
	InstallerID      uuid.UUID `json:"installer_id"`
	InstallerName    string    `json:"installer_name"`
	JobsTouched      int       `json:"jobs_touched"`
	Completed        int       `json:"completed_executions"`
	NetHours         float64   `json:"net_hours"`
	TotalM2          float64   `json:"total_m2"`
	ProductivityM2H  float64   `json:"productivity_m2_h"`
}

type JobSummary struct {
	JobID             uuid.UUID `json:"job_id"`
	Title             string    `json:"title"`
	SpecifiedM2       float64   `json:"total_area_m2"`
	ExecutedM2        float64   `json:"total_m2_executed"`
	CompletionPercent float64   `json:"completion_percent"`
	NetHours          float64   `json:"net_hours"`
	ProductivityM2H   float64   `json:"productivity_m2_h"`
}

type FamilySummary struct {
	Family            string  `json:"family"`
	SpecifiedM2       float64 `json:"total_area_m2"`
	ExecutedM2        float64 `json:"total_m2_executed"`
	CompletionPercent float64 `json:"completion_percent"`
	NetHours          float64 `json:"net_hours"`
	ProductivityM2H   float64 `json:"productivity_m2_h"`
}

type ItemSummary struct {
	JobID           uuid.UUID `json:"job_id"`
	JobTitle        string    `json:"job_title"`
	ItemIndex       int       `json:"item_index"`
	Description     string    `json:"description"`
	Family          string    `json:"family"`
	SpecifiedM2     float64   `json:"total_area_m2"`
	ExecutedM2      float64   `json:"total_m2_executed"`
	NetMinutes      int       `json:"net_minutes"`
	ProductivityM2H float64   `json:"productivity_m2_h"`
	Completed       bool      `json:"completed"`
}

// Report is the full payload for the productivity reporting endpoint.
type Report struct {
	Summary     Summary            `json:"summary"`
	ByInstaller []InstallerSummary `json:"by_installer"`
	ByJob       []JobSummary       `json:"by_job"`
	ByFamily    []FamilySummary    `json:"by_family"`
	ByItem      []ItemSummary      `json:"by_item"`
}
