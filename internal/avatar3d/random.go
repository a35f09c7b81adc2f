package avatar3d

import "math/rand"

// Rand is the random source the generators draw from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

func uniform(r Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + r.Float64()*(max-min)
}
