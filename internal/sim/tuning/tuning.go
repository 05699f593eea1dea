package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tuning holds every rate and threshold the destruction core reads at
// runtime. Values are loaded once at match start and never mutated; the host
// sends its tuning digest in WELCOME so replicas can detect a mismatch.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz      int     `yaml:"tick_rate_hz"`
	MaxTickSeconds  float64 `yaml:"max_tick_seconds"`
	DeltaEveryTicks int     `yaml:"delta_every_ticks"`

	Grid GridTuning `yaml:"grid"`
	Heat HeatTuning `yaml:"heat"`
	Fire FireTuning `yaml:"fire"`
	Melt MeltTuning `yaml:"melt"`

	// ScorchFactor scales heat into permanent scorch residue.
	ScorchFactor float64 `yaml:"scorch_factor"`

	// DeltaEpsilon is the minimum integrity/heat change considered worth
	// shipping in a periodic delta entry.
	DeltaEpsilon float64 `yaml:"delta_epsilon"`
}

type GridTuning struct {
	TilesX   int     `yaml:"tiles_x"`
	TilesY   int     `yaml:"tiles_y"`
	TileSize float64 `yaml:"tile_size"`
	SubDiv   int     `yaml:"sub_div"`
}

type HeatTuning struct {
	SpreadRate float64 `yaml:"spread_rate"`
	DecayRate  float64 `yaml:"decay_rate"`
	SoftCap    float64 `yaml:"soft_cap"`
	HardCap    float64 `yaml:"hard_cap"`
}

type FireTuning struct {
	Speed             float64 `yaml:"speed"`
	IgnitionThreshold float64 `yaml:"ignition_threshold"`
	CatchChance       float64 `yaml:"catch_chance"`
	HeatFeedback      float64 `yaml:"heat_feedback"`
	ResidualHeat      float64 `yaml:"residual_heat"`
}

type MeltTuning struct {
	Threshold        float64 `yaml:"threshold"`
	Rate             float64 `yaml:"rate"`
	MoltenConversion float64 `yaml:"molten_conversion"`
	MoltenFloor      float64 `yaml:"molten_floor"`
	ResidualHeat     float64 `yaml:"residual_heat"`
	FlowPressure     float64 `yaml:"flow_pressure"`
	FlowRate         float64 `yaml:"flow_rate"`
	CoolBelowHeat    float64 `yaml:"cool_below_heat"`
	CoolRate         float64 `yaml:"cool_rate"`
}

// Defaults returns the shipped tuning. Rates are per simulated second.
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      20,
		MaxTickSeconds:  0.25,
		DeltaEveryTicks: 20,
		Grid: GridTuning{
			TilesX:   64,
			TilesY:   48,
			TileSize: 32,
			SubDiv:   10,
		},
		Heat: HeatTuning{
			SpreadRate: 0.35,
			DecayRate:  0.12,
			SoftCap:    1.0,
			HardCap:    3.0,
		},
		Fire: FireTuning{
			Speed:             1.0,
			IgnitionThreshold: 0.6,
			CatchChance:       0.15,
			HeatFeedback:      0.3,
			ResidualHeat:      0.2,
		},
		Melt: MeltTuning{
			Threshold:        0.95,
			Rate:             0.5,
			MoltenConversion: 1.2,
			MoltenFloor:      0.85,
			ResidualHeat:     0.3,
			FlowPressure:     0.9,
			FlowRate:         0.25,
			CoolBelowHeat:    0.1,
			CoolRate:         0.1,
		},
		ScorchFactor: 0.7,
		DeltaEpsilon: 0.01,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %d", t.TickRateHz)
	}
	if t.Grid.TilesX <= 0 || t.Grid.TilesY <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%d", t.Grid.TilesX, t.Grid.TilesY)
	}
	if t.Grid.SubDiv <= 0 {
		return fmt.Errorf("sub_div must be positive, got %d", t.Grid.SubDiv)
	}
	if t.Grid.TileSize <= 0 {
		return fmt.Errorf("tile_size must be positive, got %v", t.Grid.TileSize)
	}
	if t.Heat.HardCap < t.Heat.SoftCap {
		return fmt.Errorf("heat hard_cap %v below soft_cap %v", t.Heat.HardCap, t.Heat.SoftCap)
	}
	if t.Melt.MoltenFloor < 0 || t.Melt.MoltenFloor > 2 {
		return fmt.Errorf("molten_floor out of range: %v", t.Melt.MoltenFloor)
	}
	return nil
}

// Digest is a stable hash over the gameplay-relevant tuning values, used by
// the handshake to catch host/client tuning skew.
func (t Tuning) Digest() string {
	pairs := map[string]float64{
		"tick_rate_hz":      float64(t.TickRateHz),
		"max_tick_seconds":  t.MaxTickSeconds,
		"tiles_x":           float64(t.Grid.TilesX),
		"tiles_y":           float64(t.Grid.TilesY),
		"tile_size":         t.Grid.TileSize,
		"sub_div":           float64(t.Grid.SubDiv),
		"heat_spread":       t.Heat.SpreadRate,
		"heat_decay":        t.Heat.DecayRate,
		"heat_hard_cap":     t.Heat.HardCap,
		"fire_speed":        t.Fire.Speed,
		"fire_ignition":     t.Fire.IgnitionThreshold,
		"melt_threshold":    t.Melt.Threshold,
		"melt_molten_floor": t.Melt.MoltenFloor,
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%.6f;", k, pairs[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
