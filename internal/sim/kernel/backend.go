package kernel

import (
	"fmt"
	"log"
	"runtime"

	"emberfield/internal/sim/field"
	"emberfield/internal/sim/tuning"
)

// Backend advances the whole field surface by one tick. Implementations must
// agree on material and integrity outcomes for identical input sequences;
// here they share the transition code and agree on every field.
type Backend interface {
	Step(st *field.Store, tick uint64, dt float64)
	Name() string
}

// Select chooses the execution backend once per session. prefer accepts
// "scalar", "parallel" or "" (auto). When the parallel backend cannot
// initialize the session permanently falls back to scalar; there is no
// mid-session retry.
func Select(tune *tuning.Tuning, seed int64, prefer string, logger *log.Logger) Backend {
	if prefer == "scalar" {
		return NewScalar(tune, seed)
	}
	workers := runtime.NumCPU()
	p, err := NewParallel(tune, seed, workers)
	if err != nil {
		if prefer == "parallel" && logger != nil {
			logger.Printf("parallel backend unavailable (%v); falling back to scalar for this session", err)
		}
		return NewScalar(tune, seed)
	}
	return p
}

func validateGrid(tune *tuning.Tuning) error {
	if tune.Grid.TilesX <= 0 || tune.Grid.TilesY <= 0 || tune.Grid.SubDiv <= 0 {
		return fmt.Errorf("invalid grid %dx%d sub %d", tune.Grid.TilesX, tune.Grid.TilesY, tune.Grid.SubDiv)
	}
	return nil
}

// clampDT bounds a stalled frame's delta so one bad tick cannot destabilize
// the rules.
func clampDT(tune *tuning.Tuning, dt float64) float64 {
	if dt < 0 {
		return 0
	}
	if tune.MaxTickSeconds > 0 && dt > tune.MaxTickSeconds {
		return tune.MaxTickSeconds
	}
	return dt
}
