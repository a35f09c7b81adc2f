package avatar3d

import "math"

type GestureKind int

const (
	GestureNone GestureKind = iota
	GestureBrowFlash
	GesturePress
	GestureSmirkLeft
	GestureSmirkRight
	GestureSneerLeft
	GestureSneerRight
)

var gestureKinds = []GestureKind{
	GestureBrowFlash,
	GesturePress,
	GestureSmirkLeft,
	GestureSmirkRight,
	GestureSneerLeft,
	GestureSneerRight,
}

func (k GestureKind) String() string {
	switch k {
	case GestureBrowFlash:
		return "browFlash"
	case GesturePress:
		return "press"
	case GestureSmirkLeft:
		return "smirkL"
	case GestureSmirkRight:
		return "smirkR"
	case GestureSneerLeft:
		return "sneerL"
	case GestureSneerRight:
		return "sneerR"
	default:
		return "none"
	}
}

// Gesture is the per-frame contribution of the active micro-gesture.
type Gesture struct {
	Kind       GestureKind
	Brow       float32
	Press      float32
	SmirkLeft  float32
	SmirkRight float32
	SneerLeft  float32
	SneerRight float32
}

// MicroGestures triggers short expressive twitches. Only one is active at a
// time; the interval timer runs only between gestures.
type MicroGestures struct {
	cfg MicroConfig
	rng Rand

	timer   float64
	next    float64
	elapsed float64
	active  GestureKind

	count   int
	lastGap float64
}

func NewMicroGestures(cfg MicroConfig, rng Rand) *MicroGestures {
	m := &MicroGestures{cfg: cfg, rng: rng}
	m.next = uniform(rng, cfg.IntervalMin, cfg.IntervalMax)
	return m
}

func (m *MicroGestures) Update(dt float64) Gesture {
	if m.active == GestureNone {
		m.timer += dt
		if m.timer < m.next {
			return Gesture{}
		}
		m.lastGap = m.timer
		m.count++
		m.timer = 0
		m.next = uniform(m.rng, m.cfg.IntervalMin, m.cfg.IntervalMax)
		idx := int(m.rng.Float64() * float64(len(gestureKinds)))
		if idx >= len(gestureKinds) {
			idx = len(gestureKinds) - 1
		}
		m.active = gestureKinds[idx]
		m.elapsed = 0
	}

	m.elapsed += dt
	r := math.Min(1, m.elapsed/math.Max(1e-3, m.cfg.Duration))
	k := easeOutCubic(triangle(r))

	g := Gesture{Kind: m.active}
	switch m.active {
	case GestureBrowFlash:
		g.Brow = float32(m.cfg.BrowFlash) * k
	case GesturePress:
		g.Press = float32(m.cfg.Press) * k
	case GestureSmirkLeft:
		g.SmirkLeft = float32(m.cfg.Smirk) * k
	case GestureSmirkRight:
		g.SmirkRight = float32(m.cfg.Smirk) * k
	case GestureSneerLeft:
		g.SneerLeft = float32(m.cfg.Sneer) * k
	case GestureSneerRight:
		g.SneerRight = float32(m.cfg.Sneer) * k
	}

	if r >= 1 {
		m.active = GestureNone
	}
	return g
}

func (m *MicroGestures) Active() GestureKind {
	return m.active
}

func (m *MicroGestures) Count() int {
	return m.count
}

func (m *MicroGestures) LastGap() float64 {
	return m.lastGap
}

// Apply adds the gesture on top of w, scaled by the idle suppression share.
// The idle layer folds gestures in itself; this covers rigs or configs
// running without it.
func (g Gesture) Apply(w *Weights, scale float32) {
	add := func(c Channel, v float32) {
		if v > 0 {
			w.Set(c, w.Get(c)+v*scale)
		}
	}
	add(BrowInnerUp, g.Brow)
	add(BrowOuterUpLeft, g.Brow*0.7)
	add(BrowOuterUpRight, g.Brow*0.7)
	add(MouthPress, g.Press)
	add(MouthPressLeft, g.Press*0.9)
	add(MouthPressRight, g.Press*0.9)
	add(MouthSmileLeft, g.SmirkLeft*0.6)
	add(MouthSmileRight, g.SmirkRight*0.6)
	add(CheekSquintLeft, g.SmirkLeft*0.5)
	add(CheekSquintRight, g.SmirkRight*0.5)
	add(NoseSneerLeft, g.SneerLeft)
	add(NoseSneerRight, g.SneerRight)
}
