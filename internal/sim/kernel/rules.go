package kernel

import (
	"math"

	"emberfield/internal/sim/field"
	"emberfield/internal/sim/tuning"
)

// stepRows applies the full transition rule set to every subcell in rows
// [y0,y1), reading src and writing dst. Both backends call this with the
// identical arguments; the scalar backend passes the whole surface, the
// parallel backend a band per worker. Because every read goes to src and
// every write to dst, the result is independent of traversal order and the
// two backends agree bitwise on every field.
func stepRows(st *field.Store, src, dst *field.Fields, tune *tuning.Tuning, seed int64, tick uint64, dt float64, y0, y1 int) {
	w := src.W
	for gy := y0; gy < y1; gy++ {
		for gx := 0; gx < w; gx++ {
			stepCell(st, src, dst, tune, seed, tick, dt, gx, gy)
		}
	}
}

func stepCell(st *field.Store, src, dst *field.Fields, tune *tuning.Tuning, seed int64, tick uint64, dt float64, gx, gy int) {
	i := gy*src.W + gx
	mat := st.SubMaterial(gx, gy)

	heat := float64(src.Heat[i])
	fire := float64(src.Fire[i])
	molten := float64(src.Molten[i])
	integrity := float64(src.Integrity[i])
	scorch := float64(src.Scorch[i])

	// 1. Heat diffusion and decay. Average of the four neighbors and self;
	// out-of-range neighbors read as cold.
	sum := heat
	sum += neighborHeat(src, gx-1, gy)
	sum += neighborHeat(src, gx+1, gy)
	sum += neighborHeat(src, gx, gy-1)
	sum += neighborHeat(src, gx, gy+1)
	avg := sum / 5
	heat += (avg - heat) * tune.Heat.SpreadRate
	heat = math.Max(0, heat-tune.Heat.DecayRate*dt)
	// Injection excursions above the soft cap last exactly one step.
	heat = math.Min(heat, tune.Heat.SoftCap)

	// 2-4. Material transitions. The switch is exhaustive over the closed
	// material set; a new material fails to compile until every rule below
	// has been revisited.
	switch mat {
	case field.MaterialWood:
		heat, fire, integrity = stepWood(tune, seed, tick, i, dt, heat, fire, integrity, maxNeighborFire(src, gx, gy))
	case field.MaterialMetal:
		heat, molten, integrity = stepMetal(tune, dt, heat, molten, integrity)
	case field.MaterialNone, field.MaterialBrick, field.MaterialStone, field.MaterialIndestructible:
		// Heat carriers only. Brick, stone and indestructible tiles never
		// burn or melt in the current rule set; None holds no structure.
		fire = 0
	}

	// 4. Molten flow (gather form). A cell loses its own outflow and gains
	// the per-neighbor share of any neighbor draining toward it. None cells
	// enable drainage but the molten leaves the field there.
	out := moltenOutflow(st, src, tune, dt, gx, gy)
	if out > 0 {
		molten = math.Max(0, molten-out)
	}
	if cellOpen(st, src, gx, gy) && mat != field.MaterialNone {
		molten += moltenInflow(st, src, tune, dt, gx, gy)
	}
	if heat < tune.Melt.CoolBelowHeat && molten > 0 {
		molten = math.Max(0, molten-tune.Melt.CoolRate*dt)
	}

	// 5. Scorch is monotonic; no decay rule exists.
	scorch = math.Max(scorch, heat*tune.ScorchFactor)

	// Defensive contract: a non-finite result is skipped, never applied.
	writeField(dst.Heat, src.Heat, i, heat, 0, tune.Heat.HardCap)
	writeField(dst.Fire, src.Fire, i, fire, 0, 1)
	writeField(dst.Molten, src.Molten, i, molten, 0, 2)
	writeField(dst.Integrity, src.Integrity, i, integrity, 0, 1)
	writeField(dst.Scorch, src.Scorch, i, scorch, 0, 1)
}

// stepWood advances combustion for one flammable subcell.
func stepWood(tune *tuning.Tuning, seed int64, tick uint64, cellIndex int, dt, heat, fire, integrity, nbFire float64) (float64, float64, float64) {
	if integrity <= 0 {
		return heat, 0, 0
	}
	switch {
	case fire > 0:
		fire = math.Min(1, fire+0.5*tune.Fire.Speed*dt)
		heat += fire * tune.Fire.HeatFeedback * dt
		integrity -= 0.25 * tune.Fire.Speed * dt
		if integrity <= 0 {
			// Extinguish but leave residual heat so the wreck glows briefly.
			integrity = 0
			fire = 0
			heat = math.Max(heat, tune.Fire.ResidualHeat)
		}
	case heat > tune.Fire.IgnitionThreshold:
		fire = 0.1
	case nbFire > 0:
		// Probabilistic catch from a burning neighbor. The draw is a
		// deterministic function of (seed, tick, cell), so both backends
		// make the same ignition decision.
		p := tune.Fire.CatchChance * tune.Fire.Speed * nbFire * dt
		if cellRand(seed, tick, cellIndex) < p {
			fire = 0.05
		}
	}
	return heat, fire, integrity
}

// stepMetal advances melting for one metal subcell. At the destruction
// transition the cell is pinned to a molten floor and residual heat so the
// switch from solid to molten source never visibly pops.
func stepMetal(tune *tuning.Tuning, dt, heat, molten, integrity float64) (float64, float64, float64) {
	if integrity <= 0 {
		return heat, molten, 0
	}
	if heat > tune.Melt.Threshold {
		loss := tune.Melt.Rate * dt
		integrity -= loss
		molten = math.Min(2, molten+loss*tune.Melt.MoltenConversion)
		if integrity <= 0 {
			integrity = 0
			molten = math.Max(molten, tune.Melt.MoltenFloor)
			heat = math.Max(heat, tune.Melt.ResidualHeat)
		}
	}
	return heat, molten, integrity
}

// moltenOutflow is the amount a cell drains this tick, or 0 when it is below
// pressure or has nowhere to drain.
func moltenOutflow(st *field.Store, src *field.Fields, tune *tuning.Tuning, dt float64, gx, gy int) float64 {
	i := gy*src.W + gx
	molten := float64(src.Molten[i])
	if molten <= 0 {
		return 0
	}
	heat := float64(src.Heat[i])
	if molten+heat*0.5 <= tune.Melt.FlowPressure {
		return 0
	}
	if openNeighborCount(st, src, gx, gy) == 0 {
		return 0
	}
	// Hotter metal flows faster.
	heatScale := math.Min(1, math.Max(0.2, heat))
	return math.Min(molten, molten*tune.Melt.FlowRate*heatScale*dt)
}

func moltenInflow(st *field.Store, src *field.Fields, tune *tuning.Tuning, dt float64, gx, gy int) float64 {
	var in float64
	for _, d := range neighborOffsets {
		nx, ny := gx+d[0], gy+d[1]
		if !src.InBounds(nx, ny) {
			continue
		}
		out := moltenOutflow(st, src, tune, dt, nx, ny)
		if out <= 0 {
			continue
		}
		in += out / float64(openNeighborCount(st, src, nx, ny))
	}
	return in
}

var neighborOffsets = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// cellOpen reports whether molten can enter a cell: empty space or a
// destroyed structure.
func cellOpen(st *field.Store, src *field.Fields, gx, gy int) bool {
	if !src.InBounds(gx, gy) {
		return false
	}
	m := st.SubMaterial(gx, gy)
	if m == field.MaterialNone {
		return true
	}
	return src.Integrity[gy*src.W+gx] <= 0
}

func openNeighborCount(st *field.Store, src *field.Fields, gx, gy int) int {
	n := 0
	for _, d := range neighborOffsets {
		if cellOpen(st, src, gx+d[0], gy+d[1]) {
			n++
		}
	}
	return n
}

func neighborHeat(src *field.Fields, gx, gy int) float64 {
	if !src.InBounds(gx, gy) {
		return 0
	}
	return float64(src.Heat[gy*src.W+gx])
}

func maxNeighborFire(src *field.Fields, gx, gy int) float64 {
	var m float64
	for _, d := range neighborOffsets {
		nx, ny := gx+d[0], gy+d[1]
		if !src.InBounds(nx, ny) {
			continue
		}
		if f := float64(src.Fire[ny*src.W+nx]); f > m {
			m = f
		}
	}
	return m
}

// writeField clamps and stores a computed value, falling back to the previous
// value when the computation produced a non-finite result.
func writeField(dst, prev []float32, i int, v, lo, hi float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		dst[i] = prev[i]
		return
	}
	f := float32(v)
	if f < float32(lo) {
		f = float32(lo)
	}
	if f > float32(hi) {
		f = float32(hi)
	}
	dst[i] = f
}
