package field

// Subcell mutation primitives used by the injection path. Each guards
// against non-finite input, clamps to the field's declared range, and records
// tile activity. Out-of-range coordinates are silent no-ops.

// AddHeat accumulates heat at a subcell up to hardCap. Injections may push
// heat past the soft cap briefly; the next decay step brings it back down.
func (s *Store) AddHeat(gx, gy int, amount float64, hardCap float64) {
	if !s.subInBounds(gx, gy) || !finite(float32(amount)) || amount <= 0 {
		return
	}
	// Empty space still carries transient heat so destroyed areas glow.
	i := gy*s.front.W + gx
	s.front.Heat[i] = clamp32(s.front.Heat[i]+float32(amount), 0, float32(hardCap))
	s.TouchSub(gx, gy)
}

// AddFire sets combustion intensity at a subcell. Only flammable material
// can hold fire; everything else drops the write.
func (s *Store) AddFire(gx, gy int, amount float64) {
	if !s.subInBounds(gx, gy) || !finite(float32(amount)) || amount <= 0 {
		return
	}
	if !s.SubMaterial(gx, gy).Flammable() {
		return
	}
	i := gy*s.front.W + gx
	if s.front.Integrity[i] <= 0 {
		return
	}
	s.front.Fire[i] = clamp32(s.front.Fire[i]+float32(amount), 0, 1)
	s.TouchSub(gx, gy)
}

// AddScorch raises permanent residue; scorch never decreases.
func (s *Store) AddScorch(gx, gy int, amount float64) {
	if !s.subInBounds(gx, gy) || !finite(float32(amount)) || amount <= 0 {
		return
	}
	i := gy*s.front.W + gx
	v := clamp32(float32(amount), 0, 1)
	if v > s.front.Scorch[i] {
		s.front.Scorch[i] = v
	}
	s.TouchSub(gx, gy)
}

// DestroySub zeroes a subcell's integrity outright when the material allows
// it. Used by direct explosive demolition; gradual destruction goes through
// the kernel.
func (s *Store) DestroySub(gx, gy int) {
	if !s.subInBounds(gx, gy) {
		return
	}
	m := s.SubMaterial(gx, gy)
	if !m.Destructible() {
		return
	}
	i := gy*s.front.W + gx
	if s.front.Integrity[i] <= 0 {
		return
	}
	s.front.Integrity[i] = 0
	s.front.Fire[i] = 0
	s.TouchSub(gx, gy)
	s.MarkSubChanged(gx, gy)
}

// ApplySubState overwrites one subcell with absolute values from a periodic
// delta. Non-finite components are skipped individually; the rest still
// apply. Clients never derive integrity themselves, they only receive it
// here or through ReplaceBlock.
func (s *Store) ApplySubState(gx, gy int, integrity, heat, fire, molten, scorch float32) {
	if !s.subInBounds(gx, gy) {
		return
	}
	i := gy*s.front.W + gx
	if finite(integrity) {
		s.front.Integrity[i] = clamp32(integrity, 0, 1)
	}
	if finite(heat) {
		s.front.Heat[i] = clamp32(heat, 0, HeatLimit)
	}
	if finite(fire) {
		s.front.Fire[i] = clamp32(fire, 0, 1)
	}
	if finite(molten) {
		s.front.Molten[i] = clamp32(molten, 0, MoltenLimit)
	}
	if finite(scorch) {
		s.front.Scorch[i] = clamp32(scorch, 0, 1)
	}
	s.TouchSub(gx, gy)
	s.MarkSubChanged(gx, gy)
}

func (s *Store) subInBounds(gx, gy int) bool {
	return gx >= 0 && gx < s.SubW() && gy >= 0 && gy < s.SubH()
}
