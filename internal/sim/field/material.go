package field

// Material is the closed set of tile materials. The kernel switches
// exhaustively on this type; adding a material means revisiting every
// transition rule.
type Material uint8

const (
	MaterialNone Material = iota
	MaterialWood
	MaterialBrick
	MaterialStone
	MaterialMetal
	MaterialIndestructible
)

func (m Material) String() string {
	switch m {
	case MaterialNone:
		return "NONE"
	case MaterialWood:
		return "WOOD"
	case MaterialBrick:
		return "BRICK"
	case MaterialStone:
		return "STONE"
	case MaterialMetal:
		return "METAL"
	case MaterialIndestructible:
		return "INDESTRUCTIBLE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether m is a member of the closed material set. Network
// payloads carrying anything else are skipped.
func (m Material) Valid() bool {
	return m <= MaterialIndestructible
}

// Flammable reports whether the combustion rule applies.
func (m Material) Flammable() bool { return m == MaterialWood }

// Meltable reports whether the melting rule applies.
func (m Material) Meltable() bool { return m == MaterialMetal }

// Destructible reports whether integrity can ever drop below 1. Stone and
// brick carry heat for cosmetic glow but never lose integrity in the current
// rule set.
func (m Material) Destructible() bool {
	return m == MaterialWood || m == MaterialMetal
}
