package entity

import (
	"time"

	"github.com/google/uuid"
)

type ScenarioCategory string

const (
	ScenarioIndoor  ScenarioCategory = "interna"
	ScenarioOutdoor ScenarioCategory = "externa"
	ScenarioVehicle ScenarioCategory = "veiculo"
	ScenarioWindow  ScenarioCategory = "vitrine"
)

type HeightCategory string

const (
	HeightGround   HeightCategory = "terreo"
	HeightLadder   HeightCategory = "escada"
	HeightScaffold HeightCategory = "andaime"
	HeightPlatform HeightCategory = "plataforma"
)

// Classification is assigned by a manager before work starts; the execution
// state machine reads it but never writes it.
type Classification struct {
	DifficultyLevel  int              `json:"difficulty_level"` // 1..5
	ScenarioCategory ScenarioCategory `json:"scenario_category"`
	HeightCategory   HeightCategory   `json:"height_category"`
}

// JobItem is one product line inside a job. FamilyName comes from an
// upstream classification service and may be empty.
type JobItem struct {
	ItemIndex   int     `json:"item_index"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	WidthM      float64 `json:"width_m"`
	HeightM     float64 `json:"height_m"`
	TotalAreaM2 float64 `json:"total_area_m2"`
	FamilyName  string  `json:"family_name,omitempty"`
}

// Job is consumed read-only here; items and assignments are managed upstream.
type Job struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	ClientName string    `json:"client_name"`
	Branch     string    `json:"branch"` // POA or SP
	Items      []JobItem `json:"items"`
	CreatedAt  time.Time `json:"created_at"`
}

// TotalAreaM2 is the area specified across all line items.
func (j *Job) TotalAreaM2() float64 {
	var total float64
	for _, it := range j.Items {
		total += it.TotalAreaM2
	}
	return total
}

type Installer struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Branch   string    `json:"branch"`
}
