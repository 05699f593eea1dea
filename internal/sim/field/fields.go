package field

// Declared field ranges. Heat may briefly exceed 1.0 after an injection but
// never the hard limit; molten counts liquefied mass, up to two cells' worth.
const (
	HeatLimit   = 3.0
	MoltenLimit = 2.0
)

// Fields is one complete set of continuous subcell surfaces in row-major
// order at subcell resolution. The kernel's ping-pong buffering exchanges
// whole Fields sets; everything else reaches the front set through the Store.
type Fields struct {
	W, H int

	Heat      []float32
	Fire      []float32
	Molten    []float32
	Integrity []float32
	Scorch    []float32
}

func NewFields(w, h int) *Fields {
	n := w * h
	return &Fields{
		W:         w,
		H:         h,
		Heat:      make([]float32, n),
		Fire:      make([]float32, n),
		Molten:    make([]float32, n),
		Integrity: make([]float32, n),
		Scorch:    make([]float32, n),
	}
}

func (f *Fields) Index(x, y int) int { return y*f.W + x }

func (f *Fields) InBounds(x, y int) bool {
	return x >= 0 && x < f.W && y >= 0 && y < f.H
}

func (f *Fields) CopyFrom(src *Fields) {
	copy(f.Heat, src.Heat)
	copy(f.Fire, src.Fire)
	copy(f.Molten, src.Molten)
	copy(f.Integrity, src.Integrity)
	copy(f.Scorch, src.Scorch)
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
