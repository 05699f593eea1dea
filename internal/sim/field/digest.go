package field

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
)

// Digest hashes the gameplay-relevant state: every tile material plus every
// subcell integrity value. Hosts include it in periodic deltas so replicas
// can detect divergence and request a full resync. Cosmetic fields are
// deliberately excluded; they are allowed to drift between peers.
func (s *Store) Digest() string {
	return s.DigestWith(s.front.Integrity)
}

// DigestWith hashes the tile materials against an arbitrary integrity
// surface. The host digests its last-shipped scan so a replica that applied
// every delta matches exactly.
func (s *Store) DigestWith(integrity []float32) string {
	h := fnv.New64a()
	var buf [4]byte
	for _, m := range s.materials {
		h.Write([]byte{byte(m)})
	}
	for _, v := range integrity {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
