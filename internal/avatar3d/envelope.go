package avatar3d

import "math"

// DefaultMaxFrameDelta bounds a single frame step in seconds.
const DefaultMaxFrameDelta = 0.05

// ClampDelta guards the frame loop against stalls and clock glitches.
// Non-finite or negative deltas become zero.
func ClampDelta(dt, max float64) float64 {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return 0
	}
	if max > 0 && dt > max {
		return max
	}
	return dt
}

// AttackRelease is an asymmetric one-pole slew filter: the attack time
// constant applies while the target is above the output, release otherwise.
type AttackRelease struct {
	Attack  float64
	Release float64
	value   float64
}

func NewAttackRelease(attack, release float64) *AttackRelease {
	return &AttackRelease{Attack: attack, Release: release}
}

func (ar *AttackRelease) Step(target, dt float64) float64 {
	if dt <= 0 {
		return ar.value
	}
	tc := ar.Release
	if target > ar.value {
		tc = ar.Attack
	}
	alpha := 1 - math.Exp(-dt/math.Max(1e-3, tc))
	ar.value += (target - ar.value) * alpha
	return ar.value
}

func (ar *AttackRelease) Value() float64 {
	return ar.value
}

func (ar *AttackRelease) Reset(v float64) {
	ar.value = v
}

// OneEuro is the 1€ adaptive low-pass filter (Casiez et al.). Slow signals get
// the minimum cutoff; fast signals raise the cutoff by Beta times the
// filtered speed, trading jitter for lag only when it is visible.
type OneEuro struct {
	MinCutoff      float64
	Beta           float64
	DerivateCutoff float64

	x      float64
	dx     float64
	primed bool
}

func NewOneEuro(cfg JitterConfig) *OneEuro {
	return &OneEuro{
		MinCutoff:      cfg.MinCutoff,
		Beta:           cfg.Beta,
		DerivateCutoff: cfg.DerivateCutoff,
	}
}

func (f *OneEuro) Filter(x, dt float64) float64 {
	if !f.primed {
		f.x = x
		f.dx = 0
		f.primed = true
		return x
	}
	if dt <= 0 {
		return f.x
	}

	rawDx := (x - f.x) / dt
	f.dx += (rawDx - f.dx) * smoothingAlpha(f.DerivateCutoff, dt)

	cutoff := f.MinCutoff + f.Beta*math.Abs(f.dx)
	f.x += (x - f.x) * smoothingAlpha(cutoff, dt)
	return f.x
}

func (f *OneEuro) Value() float64 {
	return f.x
}

// Reset seeds the filter at v with zero speed.
func (f *OneEuro) Reset(v float64) {
	f.x = v
	f.dx = 0
	f.primed = true
}

func smoothingAlpha(cutoff, dt float64) float64 {
	if cutoff <= 0 {
		return 1
	}
	tau := 1 / (2 * math.Pi * cutoff)
	return 1 / (1 + tau/dt)
}
