package kernel

import (
	"emberfield/internal/sim/field"
	"emberfield/internal/sim/tuning"
)

// Scalar is the plain CPU fallback: one flat loop over every subcell per
// tick. It ping-pongs between the store's front surface and an owned back
// surface exactly like the parallel backend, so diffusion never reads
// half-updated state.
type Scalar struct {
	tune *tuning.Tuning
	seed int64
	back *field.Fields
}

func NewScalar(tune *tuning.Tuning, seed int64) *Scalar {
	t := *tune
	return &Scalar{
		tune: &t,
		seed: seed,
		back: field.NewFields(tune.Grid.TilesX*tune.Grid.SubDiv, tune.Grid.TilesY*tune.Grid.SubDiv),
	}
}

func (b *Scalar) Name() string { return "scalar" }

func (b *Scalar) Step(st *field.Store, tick uint64, dt float64) {
	dt = clampDT(b.tune, dt)
	src := st.Front()
	stepRows(st, src, b.back, b.tune, b.seed, tick, dt, 0, src.H)
	prev := st.SwapFront(b.back)
	b.back = prev
	st.ReconcileActivity(prev)
}
