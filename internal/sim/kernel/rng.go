package kernel

// Ignition checks need randomness that both backends reproduce exactly for
// the same tick and cell, regardless of traversal order or sharding. Each
// draw mixes the match seed, the tick counter and the cell index through
// splitmix64; no shared mutable generator exists.

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// cellRand returns a uniform draw in [0,1) for one cell on one tick.
func cellRand(seed int64, tick uint64, cellIndex int) float64 {
	h := splitmix64(uint64(seed) ^ splitmix64(tick) ^ splitmix64(uint64(cellIndex)*0xd6e8feb86659fd93))
	return float64(h>>11) / (1 << 53)
}
