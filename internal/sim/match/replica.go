package match

import (
	"encoding/json"
	"fmt"
	"log"

	"emberfield/internal/protocol"
	"emberfield/internal/sim/field"
)

// Replica is the client side of the sync protocol: a passive copy of the
// host's grid, rebuilt from the shared seed and then kept consistent by
// applying full-tile and delta messages. It never runs the kernel; integrity
// is always the host's word.
type Replica struct {
	store  *field.Store
	sub    int
	logger *log.Logger

	// Diverged latches when a delta digest stops matching; the transport
	// reads it to decide whether to request a resync.
	diverged bool
}

func NewReplica(params protocol.WorldParams, logger *log.Logger) *Replica {
	store := field.Generate(field.GridConfig{
		TilesX:   params.TilesX,
		TilesY:   params.TilesY,
		TileSize: params.TileSize,
		SubDiv:   params.SubDiv,
	}, params.Seed)
	return &Replica{store: store, sub: params.SubDiv, logger: logger}
}

func (r *Replica) Store() *field.Store { return r.store }

// Diverged reports and clears the divergence latch.
func (r *Replica) Diverged() bool {
	d := r.diverged
	r.diverged = false
	return d
}

// Apply routes one raw message from the host. Unknown types are ignored so
// older hosts can add message kinds without breaking replicas.
func (r *Replica) Apply(raw []byte) error {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", protocol.ErrProtoBadRequest, err)
	}
	switch base.Type {
	case protocol.TypeFullTile:
		var msg protocol.FullTileMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
		}
		return r.ApplyFullTile(msg)
	case protocol.TypeDelta:
		var msg protocol.DeltaMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
		}
		r.ApplyDelta(msg)
		return nil
	default:
		return nil
	}
}

// ApplyFullTile replaces a tile wholesale. The store flags the tile dirty,
// which invalidates dependent caches (occlusion mesh, render tiles) through
// the registered tile-changed hook.
func (r *Replica) ApplyFullTile(msg protocol.FullTileMsg) error {
	err := r.store.ReplaceBlock(msg.TX, msg.TY, field.Material(msg.Material), msg.Integrity)
	if err != nil && r.logger != nil {
		r.logger.Printf("full tile rejected: %v", err)
	}
	return err
}

// ApplyDelta overwrites only the listed subcells with their absolute values.
// Applying the same delta twice is a no-op; a replica that missed earlier
// deltas converges on the next one it receives. Bad entries are skipped and
// the remainder still applies.
func (r *Replica) ApplyDelta(msg protocol.DeltaMsg) (applied, skipped int) {
	for _, e := range msg.Entries {
		if e.Sub < 0 || e.Sub >= r.sub*r.sub {
			skipped++
			continue
		}
		tx, ty := e.TX, e.TY
		gx := tx*r.sub + e.Sub%r.sub
		gy := ty*r.sub + e.Sub/r.sub
		if tx < 0 || ty < 0 || gx >= r.store.SubW() || gy >= r.store.SubH() {
			skipped++
			continue
		}
		r.store.ApplySubState(gx, gy, e.Integrity, e.Heat, e.Fire, e.Molten, e.Scorch)
		applied++
	}
	if skipped > 0 && r.logger != nil {
		r.logger.Printf("delta tick=%d: skipped %d malformed entries, applied %d", msg.Tick, skipped, applied)
	}
	if msg.Digest != "" && r.store.Digest() != msg.Digest {
		r.diverged = true
	}
	return applied, skipped
}
