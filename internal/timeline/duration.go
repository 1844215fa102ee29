// Package timeline holds the pure time arithmetic for item executions:
// pause ledger totals, gross/net durations and productivity. Everything here
// is a function of (execution, pauses, now) so the UI can recompute elapsed
// time on every tick instead of keeping counters.
package timeline

import (
	"math"
	"time"

	"install-pulse-service/internal/entity"
)

// TotalPauseMinutes sums the ledger's closed intervals plus, if an interval
// is still open, the partial duration up to asOf. Whole minutes, floored.
func TotalPauseMinutes(pauses []entity.PauseInterval, asOf time.Time) int {
	var total time.Duration
	for _, p := range pauses {
		end := asOf
		if p.EndedAt != nil {
			end = *p.EndedAt
		}
		if end.Before(p.StartedAt) {
			// open interval queried before its own start, or bad data
			continue
		}
		total += end.Sub(p.StartedAt)
	}
	return int(total.Minutes())
}

// OpenInterval returns the active pause, or nil when none is open.
func OpenInterval(pauses []entity.PauseInterval) *entity.PauseInterval {
	for i := range pauses {
		if pauses[i].Open() {
			return &pauses[i]
		}
	}
	return nil
}

// GrossDurationMinutes is checkout (or now, while still running) minus
// check-in, floored to whole minutes. Zero before check-in.
func GrossDurationMinutes(exec *entity.ItemExecution, now time.Time) int {
	if exec.CheckinAt == nil {
		return 0
	}
	end := now
	if exec.CheckoutAt != nil {
		end = *exec.CheckoutAt
	}
	d := end.Sub(*exec.CheckinAt)
	if d < 0 {
		return 0
	}
	return int(d.Minutes())
}

// NetDurationMinutes is gross minus pause time, clamped at zero: clock skew
// or bad ledger data must not surface as a negative working time.
func NetDurationMinutes(exec *entity.ItemExecution, pauses []entity.PauseInterval, now time.Time) int {
	net := GrossDurationMinutes(exec, now) - TotalPauseMinutes(pauses, now)
	if net < 0 {
		return 0
	}
	return net
}

// ProductivityM2PerHour is installed area per net working hour, rounded to
// 2 decimals. Zero net time yields 0, never Inf or NaN.
func ProductivityM2PerHour(installedM2 float64, netMinutes int) float64 {
	if netMinutes <= 0 {
		return 0
	}
	return Round2(installedM2 / (float64(netMinutes) / 60.0))
}

// Round2 rounds to 2 decimal places; areas and rates always pass through
// here so repeated computation from the same inputs is identical.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Durations is the computed view of an execution at a point in time.
type Durations struct {
	GrossMinutes          int     `json:"gross_minutes"`
	PauseMinutes          int     `json:"pause_minutes"`
	NetMinutes            int     `json:"net_minutes"`
	ProductivityM2PerHour float64 `json:"productivity_m2_h"`
}

// Compute derives all duration figures for an execution as of now.
// Productivity is 0 until an installed area has been reported.
func Compute(exec *entity.ItemExecution, pauses []entity.PauseInterval, now time.Time) Durations {
	gross := GrossDurationMinutes(exec, now)
	pause := TotalPauseMinutes(pauses, now)
	net := gross - pause
	if net < 0 {
		net = 0
	}

	var area float64
	if exec.InstalledM2 != nil {
		area = *exec.InstalledM2
	}

	return Durations{
		GrossMinutes:          gross,
		PauseMinutes:          pause,
		NetMinutes:            net,
		ProductivityM2PerHour: ProductivityM2PerHour(area, net),
	}
}
