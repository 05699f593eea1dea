package match

import (
	"encoding/json"
	"sort"

	"emberfield/internal/protocol"
	"emberfield/internal/sim/field"
)

// Host side of the delta sync protocol. Messages are composed from the
// current front surface between ticks; nothing here blocks on the network.

// BuildFullTile captures one tile's material and complete integrity block.
// Sent immediately after a destructive event and for resyncs.
func (m *Match) BuildFullTile(tick uint64, tx, ty int) protocol.FullTileMsg {
	block := m.store.IntegrityBlock(tx, ty)
	if block == nil {
		block = baseIntegrityBlock(m.store, tx, ty)
	}
	return protocol.FullTileMsg{
		Type:            protocol.TypeFullTile,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		TX:              tx,
		TY:              ty,
		Material:        uint8(m.store.MaterialAt(tx, ty)),
		Integrity:       block,
	}
}

// BuildDelta scans for subcells whose integrity or heat moved at least
// DeltaEpsilon since the last scan and returns their absolute state. Shipped
// cells update the scan baseline, so sub-epsilon drift keeps accumulating
// until it ships; nothing is ever lost, only deferred.
func (m *Match) BuildDelta(tick uint64) protocol.DeltaMsg {
	front := m.store.Front()
	eps := float32(m.tune.DeltaEpsilon)
	sub := m.tune.Grid.SubDiv

	var entries []protocol.DeltaEntry
	for _, tc := range m.store.TouchedTiles() {
		x0, y0 := tc.TX*sub, tc.TY*sub
		for dy := 0; dy < sub; dy++ {
			row := (y0+dy)*front.W + x0
			for dx := 0; dx < sub; dx++ {
				i := row + dx
				if abs32(front.Integrity[i]-m.lastScan.Integrity[i]) < eps &&
					abs32(front.Heat[i]-m.lastScan.Heat[i]) < eps {
					continue
				}
				entries = append(entries, protocol.DeltaEntry{
					TX:        tc.TX,
					TY:        tc.TY,
					Sub:       dy*sub + dx,
					Integrity: front.Integrity[i],
					Heat:      front.Heat[i],
					Fire:      front.Fire[i],
					Molten:    front.Molten[i],
					Scorch:    front.Scorch[i],
				})
				m.lastScan.Integrity[i] = front.Integrity[i]
				m.lastScan.Heat[i] = front.Heat[i]
				m.lastScan.Fire[i] = front.Fire[i]
				m.lastScan.Molten[i] = front.Molten[i]
				m.lastScan.Scorch[i] = front.Scorch[i]
			}
		}
	}
	return protocol.DeltaMsg{
		Type:            protocol.TypeDelta,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Digest:          m.store.DigestWith(m.lastScan.Integrity),
		Entries:         entries,
	}
}

func (m *Match) emitDelta(tick uint64) int {
	delta := m.BuildDelta(tick)
	if len(delta.Entries) == 0 {
		return 0
	}
	if b, err := json.Marshal(delta); err == nil {
		m.broadcast(b)
	}
	return len(delta.Entries)
}

// emitFullTiles sends full-tile updates for tiles hit by direct destruction
// this tick, annotated with the first matching injection for client-side
// visual reaction.
func (m *Match) emitFullTiles(tick uint64, tiles []field.TileCoord, pending []Injection) int {
	if len(tiles) == 0 {
		return 0
	}
	seen := map[field.TileCoord]struct{}{}
	sent := 0
	for _, tc := range tiles {
		if _, dup := seen[tc]; dup {
			continue
		}
		seen[tc] = struct{}{}
		msg := m.BuildFullTile(tick, tc.TX, tc.TY)
		if inj, ok := firstDestroy(pending); ok {
			msg.ImpactX = inj.X
			msg.ImpactY = inj.Y
			msg.Source = inj.Source
		}
		m.noteFullTileShipped(tc.TX, tc.TY, msg.Integrity)
		if b, err := json.Marshal(msg); err == nil {
			m.broadcast(b)
			sent++
		}
	}
	return sent
}

// sendActiveTiles streams the current state of every touched tile to one
// peer, sorted row-major so resyncs are deterministic on the wire.
func (m *Match) sendActiveTiles(tick uint64, c *clientState) {
	tiles := m.store.TouchedTiles()
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].TY != tiles[j].TY {
			return tiles[i].TY < tiles[j].TY
		}
		return tiles[i].TX < tiles[j].TX
	})
	for _, tc := range tiles {
		// Baseline stays untouched here: these tiles go to one peer only,
		// and the other peers still need them in the next periodic delta.
		m.sendTo(c, m.BuildFullTile(tick, tc.TX, tc.TY))
	}
}

// noteFullTileShipped records exact integrity values in the scan baseline so
// the next periodic delta does not re-send what a full-tile update carried.
func (m *Match) noteFullTileShipped(tx, ty int, integrity []float32) {
	sub := m.tune.Grid.SubDiv
	x0, y0 := tx*sub, ty*sub
	for dy := 0; dy < sub; dy++ {
		row := (y0+dy)*m.lastScan.W + x0
		for dx := 0; dx < sub; dx++ {
			m.lastScan.Integrity[row+dx] = integrity[dy*sub+dx]
		}
	}
}

func firstDestroy(pending []Injection) (Injection, bool) {
	for _, inj := range pending {
		if inj.Kind == protocol.InjectDestroy {
			return inj, true
		}
	}
	return Injection{}, false
}

func baseIntegrityBlock(st *field.Store, tx, ty int) []float32 {
	sub := st.Config().SubDiv
	block := make([]float32, sub*sub)
	if st.MaterialAt(tx, ty) != field.MaterialNone {
		for i := range block {
			block[i] = 1
		}
	}
	return block
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
