package avatar3d

import "math"

// MouthState is the speech-driven output of one frame.
type MouthState struct {
	Symbol Viseme
	Open   float32
	Jaw    float32
	Smile  float32
	Detail [DetailCount]float32
}

// LipSync runs the speech path of the frame: viseme mapping, cross-fade,
// jitter filtering and attack/release shaping.
type LipSync struct {
	cfg    MouthConfig
	mapper *VisemeMapper
	blend  *VisemeBlend
	jitter *OneEuro
	open   *AttackRelease
	detail [DetailCount]*AttackRelease

	symbol Viseme
	smile  float64
	last   MouthState
}

func NewLipSync(cfg MouthConfig) *LipSync {
	mapper := NewVisemeMapper(cfg)
	rest := mapper.RestShape()

	ls := &LipSync{
		cfg:    cfg,
		mapper: mapper,
		blend:  NewVisemeBlend(cfg.BlendDuration, rest),
		jitter: NewOneEuro(cfg.Jitter),
		open:   NewAttackRelease(cfg.Attack, cfg.Release),
		symbol: mapper.Rest,
	}
	for i := range ls.detail {
		ls.detail[i] = NewAttackRelease(cfg.Attack, cfg.Release)
	}
	ls.settle(rest)
	return ls
}

func (ls *LipSync) Mapper() *VisemeMapper {
	return ls.mapper
}

// Target selects the viseme for this frame. The cross-fade restarts only when
// the symbol changes.
func (ls *LipSync) Target(v Viseme) {
	if v == ls.symbol {
		return
	}
	ls.symbol = v
	ls.blend.Retarget(ls.mapper.Map(v))
}

func (ls *LipSync) Step(dt float64) MouthState {
	shape := ls.blend.Step(dt)

	smoothed := ls.jitter.Filter(float64(shape.Open), dt)
	open := ls.open.Step(smoothed, dt)

	state := MouthState{
		Symbol: ls.symbol,
		Open:   clamp01(float32(open)),
	}
	for i, ar := range ls.detail {
		state.Detail[i] = clamp01(float32(ar.Step(float64(shape.Detail[i]), dt)))
	}
	state.Jaw = clamp01(state.Open * float32(ls.cfg.JawRatio))

	if ls.cfg.SmileCoupling {
		ls.smile += (smileTarget(ls.open.Value()) - ls.smile) * frameRateAlpha(ls.cfg.SmileLerp, dt)
		state.Smile = clamp01(float32(ls.smile))
	}

	ls.last = state
	return state
}

// Rest forces the rest viseme and re-seeds the cross-fade and jitter filter at
// the current shaped output so the release constant alone carries the mouth
// closed. The next Target then fades from the last applied shape.
func (ls *LipSync) Rest() {
	current := MouthShape{Open: float32(ls.open.Value())}
	for i, ar := range ls.detail {
		current.Detail[i] = float32(ar.Value())
	}
	ls.blend.Reset(current)
	ls.jitter.Reset(ls.open.Value())
	ls.symbol = ls.mapper.Rest
	ls.blend.Retarget(ls.mapper.RestShape())
}

func (ls *LipSync) Last() MouthState {
	return ls.last
}

func (ls *LipSync) settle(shape MouthShape) {
	ls.blend.Reset(shape)
	ls.jitter.Reset(float64(shape.Open))
	ls.open.Reset(float64(shape.Open))
	for i, ar := range ls.detail {
		ar.Reset(float64(shape.Detail[i]))
	}
	ls.last = MouthState{
		Symbol: ls.symbol,
		Open:   shape.Open,
		Jaw:    clamp01(shape.Open * float32(ls.cfg.JawRatio)),
		Detail: shape.Detail,
	}
}

// smileTarget lifts the mouth corners on wide vowels.
func smileTarget(open float64) float64 {
	switch {
	case open > 0.8:
		return 0.25
	case open > 0.5:
		return 0.14
	default:
		return 0.02
	}
}

// frameRateAlpha converts a per-frame lerp factor tuned at 60 fps into a
// dt-correct one.
func frameRateAlpha(perFrame, dt float64) float64 {
	if dt <= 0 || perFrame <= 0 {
		return 0
	}
	if perFrame >= 1 {
		return 1
	}
	return 1 - math.Pow(1-perFrame, dt*60)
}
