package avatar3d

import "math"

type BlinkState int

const (
	BlinkStateOpen BlinkState = iota
	BlinkStateClosing
	BlinkStateOpening
)

// Blinker fires eyelid blinks at random intervals. The interval timer only
// accumulates while the eyes are open.
type Blinker struct {
	cfg BlinkConfig
	rng Rand

	timer    float64
	next     float64
	phase    float64
	blinking bool
	amount   float32

	count   int
	lastGap float64
}

func NewBlinker(cfg BlinkConfig, rng Rand) *Blinker {
	b := &Blinker{cfg: cfg, rng: rng}
	b.next = uniform(rng, cfg.IntervalMin, cfg.IntervalMax)
	return b
}

func (b *Blinker) TriggerBlink() {
	if b.blinking {
		return
	}
	b.start()
}

func (b *Blinker) Update(dt float64) float32 {
	if !b.blinking {
		b.timer += dt
		if b.timer >= b.next {
			b.start()
		}
	}

	if b.blinking {
		b.phase += dt / math.Max(1e-3, b.cfg.Duration)
		b.amount = clamp01(easeOutCubic(triangle(b.phase)) * float32(b.cfg.Amount))
		if b.phase >= 1 {
			b.blinking = false
			b.amount = 0
		}
	}
	return b.amount
}

func (b *Blinker) start() {
	b.lastGap = b.timer
	b.count++
	b.blinking = true
	b.phase = 0
	b.timer = 0
	b.next = uniform(b.rng, b.cfg.IntervalMin, b.cfg.IntervalMax)
}

func (b *Blinker) State() BlinkState {
	switch {
	case !b.blinking:
		return BlinkStateOpen
	case b.phase < 0.5:
		return BlinkStateClosing
	default:
		return BlinkStateOpening
	}
}

func (b *Blinker) IsBlinking() bool {
	return b.blinking
}

func (b *Blinker) Amount() float32 {
	return b.amount
}

// Count is the number of blinks started so far.
func (b *Blinker) Count() int {
	return b.count
}

// LastGap is the open-eye time that preceded the most recent blink.
func (b *Blinker) LastGap() float64 {
	return b.lastGap
}

// GazeTarget is an eye orientation in radians. Positive yaw looks to the
// avatar's left, positive pitch looks up.
type GazeTarget struct {
	Yaw   float64
	Pitch float64
}

// Saccades moves the gaze to a new random target at random intervals, gliding
// there with a cubic ease-out.
type Saccades struct {
	cfg SaccadeConfig
	rng Rand

	timer    float64
	next     float64
	duration float64
	from     GazeTarget
	to       GazeTarget
	current  GazeTarget
	pending  *GazeTarget
	count    int
}

func NewSaccades(cfg SaccadeConfig, rng Rand) *Saccades {
	s := &Saccades{cfg: cfg, rng: rng, duration: cfg.Duration}
	s.next = uniform(rng, cfg.IntervalMin, cfg.IntervalMax)
	return s
}

// LookAt makes the next saccade land on the given target instead of a random one.
func (s *Saccades) LookAt(yaw, pitch float64) {
	s.pending = &GazeTarget{
		Yaw:   math.Max(-s.cfg.YawMax, math.Min(s.cfg.YawMax, yaw)),
		Pitch: math.Max(-s.cfg.PitchMax, math.Min(s.cfg.PitchMax, pitch)),
	}
}

func (s *Saccades) Update(dt float64) GazeTarget {
	s.timer += dt
	if s.timer >= s.next {
		s.timer = 0
		s.next = uniform(s.rng, s.cfg.IntervalMin, s.cfg.IntervalMax)
		s.duration = s.cfg.Duration
		s.from = s.current
		if s.pending != nil {
			s.to = *s.pending
			s.pending = nil
		} else {
			s.to = GazeTarget{
				Yaw:   uniform(s.rng, -s.cfg.YawMax, s.cfg.YawMax),
				Pitch: uniform(s.rng, -s.cfg.PitchMax, s.cfg.PitchMax),
			}
		}
		s.count++
	}

	r := 1.0
	if s.duration > 0 {
		r = math.Min(1, s.timer/s.duration)
	}
	k := float64(easeOutCubic(float32(r)))
	s.current = GazeTarget{
		Yaw:   s.from.Yaw + (s.to.Yaw-s.from.Yaw)*k,
		Pitch: s.from.Pitch + (s.to.Pitch-s.from.Pitch)*k,
	}
	return s.current
}

func (s *Saccades) Current() GazeTarget {
	return s.current
}

func (s *Saccades) Count() int {
	return s.count
}

// Apply decomposes the gaze into the directional eye-look channels.
func (s *Saccades) Apply(w *Weights) {
	yaw := normalized(s.current.Yaw, s.cfg.YawMax)
	pitch := normalized(s.current.Pitch, s.cfg.PitchMax)

	outLeft := clamp01(float32(math.Max(0, yaw)))
	inLeft := clamp01(float32(math.Max(0, -yaw)))
	up := clamp01(float32(math.Max(0, pitch)))
	down := clamp01(float32(math.Max(0, -pitch)))

	w.Set(EyeLookOutLeft, outLeft)
	w.Set(EyeLookInRight, outLeft)
	w.Set(EyeLookInLeft, inLeft)
	w.Set(EyeLookOutRight, inLeft)

	w.Set(EyeLookUpLeft, up)
	w.Set(EyeLookUpRight, up)
	w.Set(EyesLookUp, up)
	w.Set(EyeLookDownLeft, down)
	w.Set(EyeLookDownRight, down)
	w.Set(EyesLookDown, down)
}

func normalized(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return v / max
}

// triangle rises 0→1 over the first half of p in [0,1] and falls back after.
func triangle(p float64) float32 {
	if p <= 0 || p >= 1 {
		return 0
	}
	if p < 0.5 {
		return float32(p / 0.5)
	}
	return float32(1 - (p-0.5)/0.5)
}
