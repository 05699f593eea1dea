package protocol

// HELLO (client -> host)
type HelloMsg struct {
	Type              string   `json:"type"`
	ProtocolVersion   string   `json:"protocol_version"`
	PeerName          string   `json:"peer_name"`
	SupportedVersions []string `json:"supported_versions,omitempty"`
}

// WELCOME (host -> client). Carries everything a replica needs to rebuild
// the identical starting grid from the shared seed.
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	PeerID          string      `json:"peer_id"`
	World           WorldParams `json:"world_params"`
	TuningDigest    string      `json:"tuning_digest"`
	ServerTick      uint64      `json:"server_tick"`
}

type WorldParams struct {
	Seed       int64   `json:"seed"`
	TilesX     int     `json:"tiles_x"`
	TilesY     int     `json:"tiles_y"`
	TileSize   float64 `json:"tile_size"`
	SubDiv     int     `json:"sub_div"`
	TickRateHz int     `json:"tick_rate_hz"`
}

// INJECT (client/tool -> host): a localized heat/ignition/destruction event
// in world units. In a real match these come from the combat system; the
// wire form exists for bots and replay tooling.
type InjectMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Kind            string  `json:"kind"` // "heat" | "ignite" | "destroy"
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Amount          float64 `json:"amount,omitempty"`
	Radius          float64 `json:"radius"`
	Direct          bool    `json:"direct,omitempty"`
	Source          string  `json:"source,omitempty"`
}

const (
	InjectHeat    = "heat"
	InjectIgnite  = "ignite"
	InjectDestroy = "destroy"
)

// FULL_TILE (host -> client): sent immediately after a destructive event.
// The integrity buffer is the tile's complete SubDiv*SubDiv block in
// row-major order; the client replaces its copy wholesale. Impact fields are
// cosmetic context only.
type FullTileMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"`
	TX              int       `json:"tx"`
	TY              int       `json:"ty"`
	Material        uint8     `json:"material"`
	Integrity       []float32 `json:"integrity"`
	ImpactX         float64   `json:"impact_x,omitempty"`
	ImpactY         float64   `json:"impact_y,omitempty"`
	Source          string    `json:"source,omitempty"`
}

// DELTA (host -> client): the periodic scan of meaningfully changed
// subcells. Every entry carries absolute values, so applying a delta is
// idempotent and a dropped delta is healed by the next one received.
type DeltaMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	Digest          string       `json:"digest,omitempty"`
	Entries         []DeltaEntry `json:"entries"`
}

type DeltaEntry struct {
	TX        int     `json:"tx"`
	TY        int     `json:"ty"`
	Sub       int     `json:"sub"`
	Integrity float32 `json:"in"`
	Heat      float32 `json:"h,omitempty"`
	Fire      float32 `json:"f,omitempty"`
	Molten    float32 `json:"m,omitempty"`
	Scorch    float32 `json:"s,omitempty"`
}

// RESYNC (client -> host): a replica that detected digest divergence asks
// for full-tile updates covering every active tile.
type ResyncMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Reason          string `json:"reason,omitempty"`
}

// ERROR (host -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
