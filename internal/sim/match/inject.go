package match

import (
	"math"

	"emberfield/internal/protocol"
	"emberfield/internal/sim/field"
)

// AddHeat, Ignite and DestroyArea are the only write entry points for
// external systems. They enqueue onto the match inbox; the loop applies them
// before the next kernel pass, so ordering within a tick does not matter.

func (m *Match) AddHeat(worldX, worldY, amount, radius float64) {
	m.inbox <- Injection{Kind: protocol.InjectHeat, X: worldX, Y: worldY, Amount: amount, Radius: radius}
}

func (m *Match) Ignite(worldX, worldY, radius float64) {
	m.inbox <- Injection{Kind: protocol.InjectIgnite, X: worldX, Y: worldY, Amount: 1, Radius: radius}
}

func (m *Match) DestroyArea(worldX, worldY, radius float64, direct bool) {
	m.inbox <- Injection{Kind: protocol.InjectDestroy, X: worldX, Y: worldY, Amount: 1, Radius: radius, Direct: direct}
}

// applyInjection writes one splat into the front surface and returns the
// tiles that took direct destruction, which owe the peers a full-tile
// update. Malformed parameters drop the whole injection; nothing non-finite
// ever reaches the store.
func (m *Match) applyInjection(inj Injection) []field.TileCoord {
	if !finiteAll(inj.X, inj.Y, inj.Amount, inj.Radius) || inj.Radius <= 0 {
		if m.logger != nil {
			m.logger.Printf("dropping malformed injection kind=%q", inj.Kind)
		}
		return nil
	}

	cell := m.store.SubCellSize()
	cx := inj.X / cell
	cy := inj.Y / cell
	radius := inj.Radius / cell
	sigma := radius / 2

	gx0 := int(math.Floor(cx - radius))
	gy0 := int(math.Floor(cy - radius))
	gx1 := int(math.Ceil(cx + radius))
	gy1 := int(math.Ceil(cy + radius))

	destroyed := map[field.TileCoord]struct{}{}

	for gy := gy0; gy <= gy1; gy++ {
		for gx := gx0; gx <= gx1; gx++ {
			dx := float64(gx) + 0.5 - cx
			dy := float64(gy) + 0.5 - cy
			d := math.Hypot(dx, dy)
			if d > radius {
				continue
			}
			w := math.Exp(-(d * d) / (2 * sigma * sigma))

			switch inj.Kind {
			case protocol.InjectHeat:
				m.store.AddHeat(gx, gy, inj.Amount*w, m.tune.Heat.HardCap)
			case protocol.InjectIgnite:
				m.store.AddFire(gx, gy, 0.9*w)
				m.store.AddHeat(gx, gy, 0.3*w, m.tune.Heat.HardCap)
			case protocol.InjectDestroy:
				if inj.Direct {
					tx, ty := m.store.TileOfSub(gx, gy)
					if m.store.MaterialAt(tx, ty).Destructible() {
						destroyed[field.TileCoord{TX: tx, TY: ty}] = struct{}{}
					}
					m.store.DestroySub(gx, gy)
				} else {
					m.store.AddFire(gx, gy, w)
				}
				// Heat and scorch either way, so demolition looks burnt
				// rather than erased.
				m.store.AddHeat(gx, gy, inj.Amount*w, m.tune.Heat.HardCap)
				m.store.AddScorch(gx, gy, w*0.8)
			default:
				if m.logger != nil {
					m.logger.Printf("dropping injection with unknown kind %q", inj.Kind)
				}
				return nil
			}
		}
	}

	out := make([]field.TileCoord, 0, len(destroyed))
	for tc := range destroyed {
		out = append(out, tc)
	}
	return out
}

func finiteAll(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
