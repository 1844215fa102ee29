package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ExecutionStatus string

const (
	StatusPending    ExecutionStatus = "pending"
	StatusInProgress ExecutionStatus = "in_progress"
	StatusPaused     ExecutionStatus = "paused"
	StatusCompleted  ExecutionStatus = "completed"
)

// ParseStatus normalizes the status spellings that accumulated in stored data
// ("aguardando", "finalizado" etc.) into the canonical enum. This is the only
// place raw status strings are interpreted; everything past the I/O edge
// compares ExecutionStatus values.
func ParseStatus(raw string) (ExecutionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "aguardando":
		return StatusPending, true
	case "in_progress", "em_andamento":
		return StatusInProgress, true
	case "paused", "pausado":
		return StatusPaused, true
	case "completed", "finalizado", "concluido":
		return StatusCompleted, true
	default:
		return "", false
	}
}

// Evidence is a photo plus the GPS fix taken with it. Lat/long are pointers
// because 0,0 is a valid coordinate; a missing fix is nil.
type Evidence struct {
	PhotoBase64  string   `json:"photo_base64,omitempty"`
	GPSLat       *float64 `json:"gps_lat,omitempty"`
	GPSLong      *float64 `json:"gps_long,omitempty"`
	GPSAccuracyM *float64 `json:"gps_accuracy,omitempty"`
}

// Complete reports whether the evidence carries both a photo and a coordinate.
func (e *Evidence) Complete() bool {
	return e != nil && e.PhotoBase64 != "" && e.GPSLat != nil && e.GPSLong != nil
}

// ItemExecution is one installer's attempt at one job line item, from
// check-in to check-out. Version backs optimistic concurrency in the
// repository: a transition read at version N only commits if the row is
// still at version N.
type ItemExecution struct {
	ID               uuid.UUID       `json:"id"`
	JobID            uuid.UUID       `json:"job_id"`
	ItemIndex        int             `json:"item_index"`
	InstallerID      uuid.UUID       `json:"installer_id"`
	Status           ExecutionStatus `json:"status"`
	CheckinAt        *time.Time      `json:"checkin_at,omitempty"`
	CheckoutAt       *time.Time      `json:"checkout_at,omitempty"`
	CheckinEvidence  *Evidence       `json:"checkin_evidence,omitempty"`
	CheckoutEvidence *Evidence       `json:"checkout_evidence,omitempty"`
	InstalledM2      *float64        `json:"installed_m2,omitempty"`
	Classification   *Classification `json:"classification,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Active reports whether the execution still accepts transitions.
func (e *ItemExecution) Active() bool {
	return e.Status == StatusInProgress || e.Status == StatusPaused
}
