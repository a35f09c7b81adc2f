package avatar3d

import (
	"math"
	"strings"
)

type ExpressionPreset struct {
	Name    string
	Weights Weights
}

func preset(name string, set func(w *Weights)) ExpressionPreset {
	var w Weights
	set(&w)
	return ExpressionPreset{Name: name, Weights: w}
}

var (
	PresetNeutral = ExpressionPreset{Name: "neutral"}

	PresetAttentive = preset("attentive", func(w *Weights) {
		w.Set(BrowInnerUp, 0.15)
		w.Set(EyeWideLeft, 0.1)
		w.Set(EyeWideRight, 0.1)
		w.Set(MouthSmileLeft, 0.05)
		w.Set(MouthSmileRight, 0.05)
	})

	PresetThinking = preset("thinking", func(w *Weights) {
		w.Set(BrowInnerUp, 0.25)
		w.Set(EyeSquintLeft, 0.1)
		w.Set(EyeSquintRight, 0.1)
		w.Set(MouthPressLeft, 0.1)
		w.Set(MouthPressRight, 0.1)
	})

	PresetConcerned = preset("concerned", func(w *Weights) {
		w.Set(BrowInnerUp, 0.35)
		w.Set(BrowDownLeft, 0.2)
		w.Set(BrowDownRight, 0.2)
		w.Set(MouthFrownLeft, 0.15)
		w.Set(MouthFrownRight, 0.15)
	})

	PresetConfident = preset("confident", func(w *Weights) {
		w.Set(MouthSmileLeft, 0.2)
		w.Set(MouthSmileRight, 0.2)
		w.Set(CheekSquintLeft, 0.1)
		w.Set(CheekSquintRight, 0.1)
		w.Set(EyeSquintLeft, 0.05)
		w.Set(EyeSquintRight, 0.05)
	})

	PresetSurprised = preset("surprised", func(w *Weights) {
		w.Set(BrowInnerUp, 0.4)
		w.Set(BrowOuterUpLeft, 0.3)
		w.Set(BrowOuterUpRight, 0.3)
		w.Set(EyeWideLeft, 0.4)
		w.Set(EyeWideRight, 0.4)
	})

	PresetHappy = preset("happy", func(w *Weights) {
		w.Set(MouthSmileLeft, 0.4)
		w.Set(MouthSmileRight, 0.4)
		w.Set(CheekSquintLeft, 0.25)
		w.Set(CheekSquintRight, 0.25)
		w.Set(EyeSquintLeft, 0.15)
		w.Set(EyeSquintRight, 0.15)
	})

	PresetSad = preset("sad", func(w *Weights) {
		w.Set(BrowInnerUp, 0.4)
		w.Set(BrowDownLeft, 0.1)
		w.Set(BrowDownRight, 0.1)
		w.Set(MouthFrownLeft, 0.25)
		w.Set(MouthFrownRight, 0.25)
		w.Set(EyeSquintLeft, 0.1)
		w.Set(EyeSquintRight, 0.1)
	})
)

var presets = []ExpressionPreset{
	PresetNeutral, PresetAttentive, PresetThinking, PresetConcerned,
	PresetConfident, PresetSurprised, PresetHappy, PresetSad,
}

func PresetByName(name string) (ExpressionPreset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return ExpressionPreset{}, false
}

type InterpolationMode int

const (
	InterpLinear InterpolationMode = iota
	InterpEaseInOut
	InterpEaseIn
	InterpEaseOut
	InterpSpring
)

const (
	TransitionFast   = 0.15
	TransitionNormal = 0.3
	TransitionSlow   = 0.5
)

// BlendTransition interpolates between two weight sets over a duration in
// seconds, advanced by frame time.
type BlendTransition struct {
	From     Weights
	To       Weights
	Duration float64
	Mode     InterpolationMode
	elapsed  float64
}

func (t *BlendTransition) Advance(dt float64) Weights {
	t.elapsed += dt
	if t.Duration <= 0 || t.elapsed >= t.Duration {
		return t.To
	}

	progress := float32(t.elapsed / t.Duration)
	switch t.Mode {
	case InterpEaseInOut:
		progress = easeInOutCubic(progress)
	case InterpEaseIn:
		progress = easeInCubic(progress)
	case InterpEaseOut:
		progress = easeOutCubic(progress)
	case InterpSpring:
		progress = springInterpolation(progress, 0.3, 8.0)
	}
	return t.From.Lerp(&t.To, progress)
}

func (t *BlendTransition) IsComplete() bool {
	return t.Duration <= 0 || t.elapsed >= t.Duration
}

// ExpressionController holds a slow emotional bias under the idle layer.
type ExpressionController struct {
	current    Weights
	name       string
	intensity  float32
	transition *BlendTransition
}

func NewExpressionController() *ExpressionController {
	return &ExpressionController{name: PresetNeutral.Name, intensity: 1}
}

func (ec *ExpressionController) TransitionTo(p ExpressionPreset, duration float64) {
	ec.transition = &BlendTransition{
		From:     ec.current,
		To:       p.Weights,
		Duration: duration,
		Mode:     InterpEaseInOut,
	}
	ec.name = p.Name
}

func (ec *ExpressionController) SetImmediate(p ExpressionPreset) {
	ec.current = p.Weights
	ec.name = p.Name
	ec.transition = nil
}

func (ec *ExpressionController) SetIntensity(v float32) {
	ec.intensity = clamp01(v)
}

func (ec *ExpressionController) Update(dt float64) Weights {
	if ec.transition != nil {
		ec.current = ec.transition.Advance(dt)
		if ec.transition.IsComplete() {
			ec.transition = nil
		}
	}
	return ec.current.Scale(ec.intensity)
}

func (ec *ExpressionController) Name() string {
	return ec.name
}

func (ec *ExpressionController) IsTransitioning() bool {
	return ec.transition != nil
}

func easeInOutCubic(t float32) float32 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - float32(math.Pow(float64(-2*t+2), 3))/2
}

func easeInCubic(t float32) float32 {
	return t * t * t
}

func easeOutCubic(t float32) float32 {
	return 1 - float32(math.Pow(float64(1-t), 3))
}

func springInterpolation(t, damping, frequency float32) float32 {
	decay := float32(math.Exp(float64(-damping * t * frequency)))
	oscillation := float32(math.Cos(float64(frequency * t * (1 - damping))))
	return 1 - decay*oscillation
}
