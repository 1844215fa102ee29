package entity

import (
	"time"

	"github.com/google/uuid"
)

type PauseReason string

const (
	PauseWaitingClient   PauseReason = "aguardando_cliente"
	PauseWeather         PauseReason = "chuva"
	PauseMissingMaterial PauseReason = "falta_material"
	PauseLunchBreak      PauseReason = "almoco_intervalo"
	PauseAccessBlocked   PauseReason = "problema_acesso"
	PauseEquipmentIssue  PauseReason = "problema_equipamento"
	PauseWaitingApproval PauseReason = "aguardando_aprovacao"
	PauseOther           PauseReason = "outro"
)

var pauseReasonLabels = map[PauseReason]string{
	PauseWaitingClient:   "Aguardando Cliente",
	PauseWeather:         "Chuva/Intempérie",
	PauseMissingMaterial: "Falta de Material",
	PauseLunchBreak:      "Almoço/Intervalo",
	PauseAccessBlocked:   "Problema de Acesso",
	PauseEquipmentIssue:  "Problema com Equipamento",
	PauseWaitingApproval: "Aguardando Aprovação",
	PauseOther:           "Outro Motivo",
}

// ValidPauseReason reports whether the reason is one of the fixed codes.
func ValidPauseReason(r PauseReason) bool {
	_, ok := pauseReasonLabels[r]
	return ok
}

// Label returns the display label for a reason, or the raw code for
// unrecognized values coming from old data.
func (r PauseReason) Label() string {
	if label, ok := pauseReasonLabels[r]; ok {
		return label
	}
	return string(r)
}

// PauseInterval is one entry in an execution's pause ledger. EndedAt is nil
// while the pause is active; at most one interval per execution is open at
// any time, and intervals are never mutated after they close.
type PauseInterval struct {
	ID          uuid.UUID   `json:"id"`
	ExecutionID uuid.UUID   `json:"execution_id"`
	Reason      PauseReason `json:"reason"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
}

// Open reports whether the interval is still running.
func (p *PauseInterval) Open() bool {
	return p.EndedAt == nil
}
