package avatar3d

import "math"

// IdleAnimator produces the "alive" baseline: slow layered sinusoids on the
// brows, lids, cheeks and lips plus a breathing jaw.
type IdleAnimator struct {
	cfg  IdleConfig
	time float64

	noiseOffsets [8]float64
}

func NewIdleAnimator(cfg IdleConfig, rng Rand) *IdleAnimator {
	ia := &IdleAnimator{cfg: cfg}
	for i := range ia.noiseOffsets {
		ia.noiseOffsets[i] = rng.Float64() * 2 * math.Pi
	}
	return ia
}

func (ia *IdleAnimator) Update(dt float64) {
	ia.time += dt
}

func (ia *IdleAnimator) Time() float64 {
	return ia.time
}

// IdleScale is the share of idle motion left while the mouth is open.
func (ia *IdleAnimator) IdleScale(open float32) float32 {
	return 1 - clamp01(open*float32(ia.cfg.Suppression))
}

// Breath returns the breathing jaw contribution. It never drops below the
// breath floor share, even at full openness.
func (ia *IdleAnimator) Breath(open float32) float32 {
	floor := float32(ia.cfg.BreathFloor)
	scale := floor + (1-floor)*ia.IdleScale(open)
	wave := 0.5 + 0.5*math.Sin(ia.time*ia.cfg.BreathHz*2*math.Pi)
	return clamp01(float32(wave*ia.cfg.Breath)) * scale
}

// Apply writes the suppressed idle layer, with any active micro-gesture folded
// in, into w.
func (ia *IdleAnimator) Apply(w *Weights, open float32, g Gesture) {
	t := ia.time
	c := ia.cfg
	scale := ia.IdleScale(open)

	browUp := c.BrowUp * (0.6 + 0.4*ia.wave(t, c.BrowHz, 0) + 0.2*math.Sin(t*0.07))
	browDown := c.BrowDown * (0.5 + 0.5*math.Sin(t*0.09+ia.noiseOffsets[1]))
	squint := c.Squint * (0.55 + 0.45*ia.wave(t, c.SquintHz, 2))
	eyeWide := c.EyeWide * (0.45 + 0.55*math.Sin(t*0.15+0.8+ia.noiseOffsets[3]))
	press := c.Press * (0.6 + 0.4*ia.wave(t, c.PressHz, 4))
	smile := c.Smile * (0.55 + 0.45*ia.wave(t, c.SmileHz, 5))
	cheek := c.Cheek * (0.6 + 0.4*ia.wave(t, c.CheekHz, 6))

	browUpW := clamp01((float32(browUp) + g.Brow) * scale)
	browDownW := clamp01(float32(browDown) * scale * 0.8)
	squintW := clamp01(float32(squint) * scale)
	eyeWideW := clamp01(float32(eyeWide) * scale * (0.6 + 0.4*(1-squintW)))
	pressW := clamp01((float32(press) + g.Press) * scale)
	smileL := clamp01((float32(smile) + g.SmirkLeft*0.6) * scale)
	smileR := clamp01((float32(smile) + g.SmirkRight*0.6) * scale)
	cheekL := clamp01((float32(cheek) + g.SmirkLeft*0.5) * scale)
	cheekR := clamp01((float32(cheek) + g.SmirkRight*0.5) * scale)

	w.Set(BrowInnerUp, browUpW)
	w.Set(BrowOuterUpLeft, browUpW*0.7)
	w.Set(BrowOuterUpRight, browUpW*0.7)
	w.Set(BrowDownLeft, browDownW*0.6)
	w.Set(BrowDownRight, browDownW*0.6)

	w.Set(EyeSquintLeft, squintW)
	w.Set(EyeSquintRight, squintW)
	w.Set(EyeWideLeft, eyeWideW)
	w.Set(EyeWideRight, eyeWideW)

	w.Set(CheekSquintLeft, cheekL)
	w.Set(CheekSquintRight, cheekR)

	w.Set(MouthPress, pressW)
	w.Set(MouthPressLeft, pressW*0.9)
	w.Set(MouthPressRight, pressW*0.9)
	w.Set(MouthSmileLeft, smileL)
	w.Set(MouthSmileRight, smileR)
	w.Set(MouthStretchLeft, pressW*0.35+smileL*0.25)
	w.Set(MouthStretchRight, pressW*0.35+smileR*0.25)
	w.Set(MouthRollLower, pressW*0.25)
	w.Set(MouthRollUpper, pressW*0.18)
	w.Set(MouthShrugLower, (1-scale)*0.02)
	w.Set(MouthShrugUpper, (1-scale)*0.02)

	w.Set(NoseSneerLeft, g.SneerLeft*scale)
	w.Set(NoseSneerRight, g.SneerRight*scale)
}

func (ia *IdleAnimator) wave(t, hz float64, slot int) float64 {
	return math.Sin(t*hz*2*math.Pi + ia.noiseOffsets[slot])
}

func (ia *IdleAnimator) Reset() {
	ia.time = 0
}
