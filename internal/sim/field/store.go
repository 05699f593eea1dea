package field

import (
	"fmt"
	"math"
)

// GridConfig fixes the world dimensions for one match. The grid is created
// once and never resized.
type GridConfig struct {
	TilesX   int
	TilesY   int
	TileSize float64
	SubDiv   int
}

// Store owns the per-tile materials and the subcell field surfaces. It is a
// single-writer structure: only the match loop goroutine mutates it (through
// the kernel and the injection primitives below); renderers and collision
// queries hold read-only views and must tolerate values changing between an
// injection and the next tick.
type Store struct {
	cfg GridConfig

	materials []Material
	touched   []bool

	front *Fields
	gen   uint64

	dirty         map[TileCoord]struct{}
	onTileChanged func(tx, ty int)
}

type TileCoord struct {
	TX int `json:"tx"`
	TY int `json:"ty"`
}

func NewStore(cfg GridConfig) *Store {
	nt := cfg.TilesX * cfg.TilesY
	s := &Store{
		cfg:       cfg,
		materials: make([]Material, nt),
		touched:   make([]bool, nt),
		front:     NewFields(cfg.TilesX*cfg.SubDiv, cfg.TilesY*cfg.SubDiv),
		dirty:     map[TileCoord]struct{}{},
	}
	return s
}

func (s *Store) Config() GridConfig { return s.cfg }

// SubW and SubH are the field surface dimensions in subcells.
func (s *Store) SubW() int { return s.cfg.TilesX * s.cfg.SubDiv }
func (s *Store) SubH() int { return s.cfg.TilesY * s.cfg.SubDiv }

func (s *Store) tileIndex(tx, ty int) int { return ty*s.cfg.TilesX + tx }

func (s *Store) tileInBounds(tx, ty int) bool {
	return tx >= 0 && tx < s.cfg.TilesX && ty >= 0 && ty < s.cfg.TilesY
}

// MaterialAt returns MaterialNone for out-of-range coordinates.
func (s *Store) MaterialAt(tx, ty int) Material {
	if !s.tileInBounds(tx, ty) {
		return MaterialNone
	}
	return s.materials[s.tileIndex(tx, ty)]
}

// SetMaterial replaces a tile's material and resets its subcells to the base
// state for that material (full integrity, no heat/fire/molten/scorch).
func (s *Store) SetMaterial(tx, ty int, m Material) {
	if !s.tileInBounds(tx, ty) || !m.Valid() {
		return
	}
	s.materials[s.tileIndex(tx, ty)] = m
	base := float32(0)
	if m != MaterialNone {
		base = 1
	}
	x0, y0 := tx*s.cfg.SubDiv, ty*s.cfg.SubDiv
	for dy := 0; dy < s.cfg.SubDiv; dy++ {
		row := (y0+dy)*s.front.W + x0
		for dx := 0; dx < s.cfg.SubDiv; dx++ {
			i := row + dx
			s.front.Integrity[i] = base
			s.front.Heat[i] = 0
			s.front.Fire[i] = 0
			s.front.Molten[i] = 0
			s.front.Scorch[i] = 0
		}
	}
	s.markTileChanged(tx, ty)
}

// IntegrityBlock returns a copy of the tile's SubDiv×SubDiv integrity values
// in row-major order, or nil for untouched or out-of-range tiles. Callers
// treat nil as "base state for the tile's material".
func (s *Store) IntegrityBlock(tx, ty int) []float32 {
	if !s.tileInBounds(tx, ty) || !s.touched[s.tileIndex(tx, ty)] {
		return nil
	}
	sub := s.cfg.SubDiv
	out := make([]float32, sub*sub)
	x0, y0 := tx*sub, ty*sub
	for dy := 0; dy < sub; dy++ {
		copy(out[dy*sub:(dy+1)*sub], s.front.Integrity[(y0+dy)*s.front.W+x0:(y0+dy)*s.front.W+x0+sub])
	}
	return out
}

// ReplaceBlock overwrites a tile's material and integrity buffer wholesale.
// The sync layer uses it to reproduce the host's state exactly. The buffer
// must hold SubDiv*SubDiv finite values.
func (s *Store) ReplaceBlock(tx, ty int, m Material, integrity []float32) error {
	if !s.tileInBounds(tx, ty) {
		return fmt.Errorf("tile (%d,%d) out of range", tx, ty)
	}
	if !m.Valid() {
		return fmt.Errorf("tile (%d,%d): unknown material %d", tx, ty, uint8(m))
	}
	sub := s.cfg.SubDiv
	if len(integrity) != sub*sub {
		return fmt.Errorf("tile (%d,%d): integrity buffer length %d, want %d", tx, ty, len(integrity), sub*sub)
	}
	ti := s.tileIndex(tx, ty)
	s.materials[ti] = m
	s.touched[ti] = true
	x0, y0 := tx*sub, ty*sub
	for dy := 0; dy < sub; dy++ {
		for dx := 0; dx < sub; dx++ {
			v := integrity[dy*sub+dx]
			if !finite(v) {
				continue
			}
			s.front.Integrity[(y0+dy)*s.front.W+x0+dx] = clamp32(v, 0, 1)
		}
	}
	s.markTileChanged(tx, ty)
	return nil
}

// IsDestroyed reports whether a subcell blocks nothing. A subcell with
// integrity at zero is passable regardless of its original material; None
// tiles are always passable. Out-of-range queries read as empty.
func (s *Store) IsDestroyed(tx, ty, subIndex int) bool {
	if !s.tileInBounds(tx, ty) {
		return true
	}
	ti := s.tileIndex(tx, ty)
	if s.materials[ti] == MaterialNone {
		return true
	}
	sub := s.cfg.SubDiv
	if subIndex < 0 || subIndex >= sub*sub {
		return true
	}
	if !s.touched[ti] {
		return false
	}
	gx := tx*sub + subIndex%sub
	gy := ty*sub + subIndex/sub
	return s.front.Integrity[gy*s.front.W+gx] <= 0
}

// WorldToSub maps world coordinates onto the subcell surface.
func (s *Store) WorldToSub(wx, wy float64) (gx, gy int, ok bool) {
	cell := s.cfg.TileSize / float64(s.cfg.SubDiv)
	gx = int(math.Floor(wx / cell))
	gy = int(math.Floor(wy / cell))
	ok = gx >= 0 && gx < s.SubW() && gy >= 0 && gy < s.SubH()
	return gx, gy, ok
}

// SubCellSize is the world-unit edge length of one subcell.
func (s *Store) SubCellSize() float64 { return s.cfg.TileSize / float64(s.cfg.SubDiv) }

// TileOfSub returns the tile containing a subcell coordinate.
func (s *Store) TileOfSub(gx, gy int) (int, int) {
	return gx / s.cfg.SubDiv, gy / s.cfg.SubDiv
}

// SubMaterial is the material of the tile containing (gx,gy); None when out
// of range.
func (s *Store) SubMaterial(gx, gy int) Material {
	if gx < 0 || gx >= s.SubW() || gy < 0 || gy >= s.SubH() {
		return MaterialNone
	}
	return s.materials[s.tileIndex(gx/s.cfg.SubDiv, gy/s.cfg.SubDiv)]
}

// HeatAt, FireAt and MoltenAt sample the field surfaces at a world point.
// Lighting and particle systems derive glow and buoyancy from these; they
// return 0 outside the grid.
func (s *Store) HeatAt(wx, wy float64) float64   { return s.sampleWorld(s.front.Heat, wx, wy) }
func (s *Store) FireAt(wx, wy float64) float64   { return s.sampleWorld(s.front.Fire, wx, wy) }
func (s *Store) MoltenAt(wx, wy float64) float64 { return s.sampleWorld(s.front.Molten, wx, wy) }

func (s *Store) sampleWorld(surf []float32, wx, wy float64) float64 {
	gx, gy, ok := s.WorldToSub(wx, wy)
	if !ok {
		return 0
	}
	return float64(surf[gy*s.front.W+gx])
}

// IntegrityAtSub reads integrity at subcell resolution; 0 out of range.
func (s *Store) IntegrityAtSub(gx, gy int) float32 {
	if gx < 0 || gx >= s.SubW() || gy < 0 || gy >= s.SubH() {
		return 0
	}
	return s.front.Integrity[gy*s.front.W+gx]
}

// Front exposes the surfaces the next kernel pass reads. Kernel-only.
func (s *Store) Front() *Fields { return s.front }

// SwapFront installs the freshly written back buffer as the front set and
// hands the previous front back to the kernel for reuse. This is the sole
// synchronization point of a tick.
func (s *Store) SwapFront(back *Fields) *Fields {
	old := s.front
	s.front = back
	s.gen++
	return old
}

// Generation counts completed buffer swaps since match start.
func (s *Store) Generation() uint64 { return s.gen }

// ReconcileActivity runs sequentially after a kernel pass. It promotes tiles
// the pass activated (fire spread, molten flow, diffused heat) to touched,
// and flags tiles whose integrity moved as dirty for the renderer. prev is
// the surface set the pass read from.
func (s *Store) ReconcileActivity(prev *Fields) {
	sub := s.cfg.SubDiv
	for ty := 0; ty < s.cfg.TilesY; ty++ {
		for tx := 0; tx < s.cfg.TilesX; tx++ {
			ti := s.tileIndex(tx, ty)
			x0, y0 := tx*sub, ty*sub
			changed := false
			active := s.touched[ti]
		scan:
			for dy := 0; dy < sub; dy++ {
				row := (y0+dy)*s.front.W + x0
				for dx := 0; dx < sub; dx++ {
					i := row + dx
					if s.front.Integrity[i] != prev.Integrity[i] {
						changed = true
						active = true
						break scan
					}
					if !active && (s.front.Heat[i] > 0 || s.front.Fire[i] > 0 || s.front.Molten[i] > 0 || s.front.Scorch[i] > 0) {
						active = true
					}
				}
			}
			if active {
				s.touched[ti] = true
			}
			if changed {
				s.markTileChanged(tx, ty)
			}
		}
	}
}

// TouchSub records subcell activity so the owning tile reports a materialized
// block from then on.
func (s *Store) TouchSub(gx, gy int) {
	tx, ty := s.TileOfSub(gx, gy)
	if s.tileInBounds(tx, ty) {
		s.touched[s.tileIndex(tx, ty)] = true
	}
}

// Touched reports whether a tile has ever had subcell activity.
func (s *Store) Touched(tx, ty int) bool {
	return s.tileInBounds(tx, ty) && s.touched[s.tileIndex(tx, ty)]
}

// TouchedTiles lists every tile with a materialized subcell block, row-major.
func (s *Store) TouchedTiles() []TileCoord {
	var out []TileCoord
	for ty := 0; ty < s.cfg.TilesY; ty++ {
		for tx := 0; tx < s.cfg.TilesX; tx++ {
			if s.touched[s.tileIndex(tx, ty)] {
				out = append(out, TileCoord{TX: tx, TY: ty})
			}
		}
	}
	return out
}

// SetTileChangedFunc registers the renderer's cache-invalidation hook. Called
// synchronously from the match loop; keep it cheap.
func (s *Store) SetTileChangedFunc(fn func(tx, ty int)) { s.onTileChanged = fn }

func (s *Store) markTileChanged(tx, ty int) {
	s.dirty[TileCoord{TX: tx, TY: ty}] = struct{}{}
	if s.onTileChanged != nil {
		s.onTileChanged(tx, ty)
	}
}

// MarkSubChanged flags the tile containing (gx,gy) as dirty.
func (s *Store) MarkSubChanged(gx, gy int) {
	tx, ty := s.TileOfSub(gx, gy)
	if s.tileInBounds(tx, ty) {
		s.markTileChanged(tx, ty)
	}
}

// DrainDirty returns and clears the set of tiles changed since the last call.
func (s *Store) DrainDirty() []TileCoord {
	if len(s.dirty) == 0 {
		return nil
	}
	out := make([]TileCoord, 0, len(s.dirty))
	for tc := range s.dirty {
		out = append(out, tc)
	}
	s.dirty = map[TileCoord]struct{}{}
	return out
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
