package game

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand/v2"
)

// Source supplies random draws to the resolvers. Production uses CryptoSource;
// tests inject a seeded or scripted source so outcomes are reproducible.
type Source interface {
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

func (CryptoSource) IntN(n int) int {
	if n <= 0 {
		panic("game: IntN with non-positive n")
	}
	max := uint64(n)
	// rejection sampling to avoid modulo bias
	limit := (^uint64(0) / max) * max
	for {
		v := cryptoUint64()
		if v < limit {
			return int(v % max)
		}
	}
}

func (CryptoSource) Float64() float64 {
	return float64(cryptoUint64()>>11) / (1 << 53)
}

func cryptoUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("game: crypto rand read failed: " + err.Error())
	}
	return binary.BigEndian.Uint64(b[:])
}

// SeededSource wraps math/rand/v2 for deterministic draws under test.
type SeededSource struct {
	r *mathrand.Rand
}

func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{r: mathrand.New(mathrand.NewPCG(seed, seed))}
}

func (s *SeededSource) IntN(n int) int   { return s.r.IntN(n) }
func (s *SeededSource) Float64() float64 { return s.r.Float64() }
