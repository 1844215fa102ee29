package timeline

import (
	"time"

	"install-pulse-service/internal/entity"
)

// DefaultStallThresholdHours is the default inactivity window before an
// execution is surfaced as stalled. Operational tuning, not business law:
// callers pass their configured value.
const DefaultStallThresholdHours = 3.0

// IsStalled reports whether the execution has seen no transition for at
// least thresholdHours. The reference point is the open pause's start when
// paused, otherwise the most recent of check-in and the last resume, so the
// clock restarts on every transition. Completed and pending executions are
// never stalled.
func IsStalled(exec *entity.ItemExecution, pauses []entity.PauseInterval, now time.Time, thresholdHours float64) bool {
	if thresholdHours <= 0 {
		return false
	}
	threshold := time.Duration(thresholdHours * float64(time.Hour))
	return StalledFor(exec, pauses, now) >= threshold
}

// StalledFor returns how long the execution has been without a transition.
// Zero for executions that are not active (pending or completed).
func StalledFor(exec *entity.ItemExecution, pauses []entity.PauseInterval, now time.Time) time.Duration {
	if !exec.Active() || exec.CheckinAt == nil {
		return 0
	}

	d := now.Sub(lastTransitionAt(exec, pauses))
	if d < 0 {
		return 0
	}
	return d
}

func lastTransitionAt(exec *entity.ItemExecution, pauses []entity.PauseInterval) time.Time {
	ref := *exec.CheckinAt
	if exec.Status == entity.StatusPaused {
		if open := OpenInterval(pauses); open != nil {
			return open.StartedAt
		}
		return ref
	}
	for _, p := range pauses {
		if p.EndedAt != nil && p.EndedAt.After(ref) {
			ref = *p.EndedAt
		}
	}
	return ref
}
