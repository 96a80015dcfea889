package projector

import "github.com/louisbranch/gridwire/internal/gridwire/event"

// applyClockUpdate advances the clock state machine in place. Redundant
// transitions (start while running, pause while paused) are no-ops, per
// spec §4.2. trueTotalTime is always recomputed as wall-clock since
// create — the open question of whether to carry it is resolved in favor
// of keeping it, since it costs nothing and a client-facing elapsed-time
// readout may want it.
func applyClockUpdate(clock *Clock, p event.ClockUpdatePayload, ts int64) {
	switch p.Action {
	case event.ClockStart, event.ClockResume:
		if clock.Paused {
			clock.Paused = false
			clock.LastUpdatedMs = ts
		}
	case event.ClockPause:
		if !clock.Paused {
			clock.TotalTimeMs += ts - clock.LastUpdatedMs
			clock.Paused = true
			clock.LastUpdatedMs = ts
		}
		if p.TotalTimeMs != nil {
			clock.TotalTimeMs = *p.TotalTimeMs
		}
	}

	if clock.CreatedAtMs > 0 && ts > clock.CreatedAtMs {
		clock.TrueTotalMs = ts - clock.CreatedAtMs
	}
}
