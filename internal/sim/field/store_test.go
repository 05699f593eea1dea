package field

import (
	"math"
	"testing"
)

func testGrid() GridConfig {
	return GridConfig{TilesX: 8, TilesY: 8, TileSize: 32, SubDiv: 4}
}

func TestGenerate_DeterministicFromSeed(t *testing.T) {
	a := Generate(testGrid(), 42)
	b := Generate(testGrid(), 42)
	for ty := 0; ty < 8; ty++ {
		for tx := 0; tx < 8; tx++ {
			if a.MaterialAt(tx, ty) != b.MaterialAt(tx, ty) {
				t.Fatalf("tile (%d,%d): %v != %v", tx, ty, a.MaterialAt(tx, ty), b.MaterialAt(tx, ty))
			}
		}
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("same seed produced different digests")
	}
	c := Generate(testGrid(), 43)
	if a.Digest() == c.Digest() {
		t.Fatalf("different seeds produced identical grids")
	}
}

func TestMaterialAt_OutOfRangeIsNone(t *testing.T) {
	s := Generate(testGrid(), 1)
	cases := [][2]int{{-1, 0}, {0, -1}, {8, 0}, {0, 8}, {100, 100}}
	for _, c := range cases {
		if m := s.MaterialAt(c[0], c[1]); m != MaterialNone {
			t.Fatalf("MaterialAt(%d,%d) = %v, want NONE", c[0], c[1], m)
		}
	}
}

func TestIntegrityBlock_LazyUntilTouched(t *testing.T) {
	s := NewStore(testGrid())
	s.SetMaterial(2, 2, MaterialWood)
	if got := s.IntegrityBlock(3, 3); got != nil {
		t.Fatalf("untouched tile returned a block")
	}
	// First write materializes the block with base integrity.
	s.AddHeat(2*4+1, 2*4+1, 0.5, 3)
	block := s.IntegrityBlock(2, 2)
	if block == nil {
		t.Fatalf("touched tile returned nil block")
	}
	if len(block) != 16 {
		t.Fatalf("block length %d, want 16", len(block))
	}
	for i, v := range block {
		if v != 1 {
			t.Fatalf("block[%d] = %v, want full integrity", i, v)
		}
	}
	if s.IntegrityBlock(-1, 0) != nil || s.IntegrityBlock(99, 0) != nil {
		t.Fatalf("out-of-range tile returned a block")
	}
}

func TestIsDestroyed(t *testing.T) {
	s := NewStore(testGrid())
	s.SetMaterial(1, 1, MaterialWood)

	if s.IsDestroyed(1, 1, 0) {
		t.Fatalf("intact wood reported destroyed")
	}
	if !s.IsDestroyed(0, 0, 0) {
		t.Fatalf("None tile should always be passable")
	}
	if !s.IsDestroyed(-5, 2, 0) || !s.IsDestroyed(2, 2, -1) || !s.IsDestroyed(2, 2, 16) {
		t.Fatalf("out-of-range queries should read as empty")
	}

	s.DestroySub(1*4+2, 1*4+3)
	if !s.IsDestroyed(1, 1, 3*4+2) {
		t.Fatalf("destroyed subcell still reported as obstacle")
	}
}

func TestDestroySub_RespectsMaterial(t *testing.T) {
	s := NewStore(testGrid())
	s.SetMaterial(1, 1, MaterialBrick)
	s.SetMaterial(2, 1, MaterialIndestructible)

	s.DestroySub(1*4, 1*4)
	s.DestroySub(2*4, 1*4)
	if s.IsDestroyed(1, 1, 0) || s.IsDestroyed(2, 1, 0) {
		t.Fatalf("brick/indestructible must not be directly destructible")
	}
}

func TestAddHeat_CapsAndRejectsNonFinite(t *testing.T) {
	s := NewStore(testGrid())
	s.SetMaterial(0, 0, MaterialStone)
	s.AddHeat(1, 1, 10, 3)
	if got := s.Front().Heat[1*s.Front().W+1]; got != 3 {
		t.Fatalf("heat = %v, want hard cap 3", got)
	}
	before := s.Front().Heat[2]
	s.AddHeat(2, 0, math.NaN(), 3)
	s.AddHeat(2, 0, math.Inf(1), 3)
	s.AddHeat(2, 0, -1, 3)
	if got := s.Front().Heat[2]; got != before {
		t.Fatalf("non-finite/negative heat injection mutated the store")
	}
}

func TestAddFire_OnlyFlammable(t *testing.T) {
	s := NewStore(testGrid())
	s.SetMaterial(0, 0, MaterialMetal)
	s.SetMaterial(1, 0, MaterialWood)

	s.AddFire(0, 0, 0.5)
	if s.Front().Fire[0] != 0 {
		t.Fatalf("metal accepted fire")
	}
	s.AddFire(4, 0, 0.5)
	if s.Front().Fire[4] != 0.5 {
		t.Fatalf("wood rejected fire")
	}
}

func TestReplaceBlock_Validation(t *testing.T) {
	s := NewStore(testGrid())
	if err := s.ReplaceBlock(99, 0, MaterialWood, make([]float32, 16)); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if err := s.ReplaceBlock(0, 0, MaterialWood, make([]float32, 7)); err == nil {
		t.Fatalf("expected buffer length error")
	}
	if err := s.ReplaceBlock(0, 0, Material(99), make([]float32, 16)); err == nil {
		t.Fatalf("expected unknown material error")
	}

	buf := make([]float32, 16)
	for i := range buf {
		buf[i] = 0.5
	}
	buf[3] = float32(math.NaN())
	buf[4] = 9
	if err := s.ReplaceBlock(0, 0, MaterialWood, buf); err != nil {
		t.Fatalf("valid replace failed: %v", err)
	}
	block := s.IntegrityBlock(0, 0)
	if block[3] != 0 {
		t.Fatalf("NaN entry should be skipped, leaving previous value; got %v", block[3])
	}
	if block[4] != 1 {
		t.Fatalf("out-of-range entry should clamp to 1, got %v", block[4])
	}
	if block[0] != 0.5 {
		t.Fatalf("entry not applied, got %v", block[0])
	}
}

func TestApplySubState_ClampsAndSkipsNonFinite(t *testing.T) {
	s := NewStore(testGrid())
	s.SetMaterial(0, 0, MaterialMetal)

	s.ApplySubState(1, 1, 0.4, 0.8, 0, 1.2, 0.3)
	i := 1*s.Front().W + 1
	if s.Front().Integrity[i] != 0.4 || s.Front().Molten[i] != 1.2 {
		t.Fatalf("absolute state not applied")
	}

	nan := float32(math.NaN())
	s.ApplySubState(1, 1, nan, 5, nan, -3, nan)
	if s.Front().Integrity[i] != 0.4 {
		t.Fatalf("NaN integrity overwrote previous value")
	}
	if s.Front().Heat[i] != 3 {
		t.Fatalf("heat should clamp to %v, got %v", float32(HeatLimit), s.Front().Heat[i])
	}
	if s.Front().Molten[i] != 0 {
		t.Fatalf("negative molten should clamp to 0")
	}
}

func TestDirtySignal(t *testing.T) {
	s := NewStore(testGrid())
	s.SetMaterial(3, 2, MaterialWood)

	var fired []TileCoord
	s.SetTileChangedFunc(func(tx, ty int) { fired = append(fired, TileCoord{TX: tx, TY: ty}) })

	s.DrainDirty() // clear the SetMaterial notification
	s.DestroySub(3*4+1, 2*4+1)

	if len(fired) == 0 || fired[len(fired)-1] != (TileCoord{TX: 3, TY: 2}) {
		t.Fatalf("tile-changed hook not fired for destroyed subcell: %v", fired)
	}
	dirty := s.DrainDirty()
	if len(dirty) != 1 || dirty[0] != (TileCoord{TX: 3, TY: 2}) {
		t.Fatalf("dirty set = %v", dirty)
	}
	if got := s.DrainDirty(); got != nil {
		t.Fatalf("dirty set should clear after drain, got %v", got)
	}
}

func TestDigestWith_TracksIntegrityOnly(t *testing.T) {
	s := NewStore(testGrid())
	s.SetMaterial(0, 0, MaterialWood)
	base := s.Digest()

	// Heat changes must not move the digest.
	s.AddHeat(0, 0, 0.9, 3)
	if s.Digest() != base {
		t.Fatalf("cosmetic field changed the digest")
	}
	s.DestroySub(0, 0)
	if s.Digest() == base {
		t.Fatalf("integrity change did not move the digest")
	}
}
