package field

import "math/rand/v2"

// Generate lays out the initial materials deterministically from the match
// seed. Host and replicas call this with the seed exchanged at handshake and
// end up with identical grids; integrity starts full everywhere a material
// exists.
func Generate(cfg GridConfig, seed int64) *Store {
	s := NewStore(cfg)
	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))

	// Indestructible frame so nothing burns off the map edge.
	for tx := 0; tx < cfg.TilesX; tx++ {
		s.setMaterialRaw(tx, 0, MaterialIndestructible)
		s.setMaterialRaw(tx, cfg.TilesY-1, MaterialIndestructible)
	}
	for ty := 0; ty < cfg.TilesY; ty++ {
		s.setMaterialRaw(0, ty, MaterialIndestructible)
		s.setMaterialRaw(cfg.TilesX-1, ty, MaterialIndestructible)
	}

	// Scatter rectangular structures. Wood sheds, brick walls, stone
	// foundations, metal bunkers; density tuned for open fire lanes.
	structures := (cfg.TilesX * cfg.TilesY) / 40
	for n := 0; n < structures; n++ {
		w := 2 + rng.IntN(5)
		h := 2 + rng.IntN(4)
		tx0 := 1 + rng.IntN(maxInt(cfg.TilesX-w-2, 1))
		ty0 := 1 + rng.IntN(maxInt(cfg.TilesY-h-2, 1))
		m := pickMaterial(rng)
		for ty := ty0; ty < ty0+h && ty < cfg.TilesY-1; ty++ {
			for tx := tx0; tx < tx0+w && tx < cfg.TilesX-1; tx++ {
				s.setMaterialRaw(tx, ty, m)
			}
		}
	}
	return s
}

func pickMaterial(rng *rand.Rand) Material {
	switch r := rng.Float64(); {
	case r < 0.40:
		return MaterialWood
	case r < 0.65:
		return MaterialBrick
	case r < 0.85:
		return MaterialStone
	default:
		return MaterialMetal
	}
}

// setMaterialRaw assigns material and base integrity without dirty
// notifications; generation runs before any subscriber exists.
func (s *Store) setMaterialRaw(tx, ty int, m Material) {
	s.materials[s.tileIndex(tx, ty)] = m
	if m == MaterialNone {
		return
	}
	sub := s.cfg.SubDiv
	x0, y0 := tx*sub, ty*sub
	for dy := 0; dy < sub; dy++ {
		row := (y0+dy)*s.front.W + x0
		for dx := 0; dx < sub; dx++ {
			s.front.Integrity[row+dx] = 1
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
