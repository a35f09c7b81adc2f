package avatar3d

// VisemeBlend cross-fades linearly between successive mouth shapes. A retarget
// mid-fade starts from the currently blended shape, never from the old target.
type VisemeBlend struct {
	Duration float64

	from     MouthShape
	to       MouthShape
	progress float64
	current  MouthShape
}

func NewVisemeBlend(duration float64, initial MouthShape) *VisemeBlend {
	b := &VisemeBlend{Duration: duration}
	b.Reset(initial)
	return b
}

func (b *VisemeBlend) Retarget(shape MouthShape) {
	b.from = b.current
	b.to = shape
	b.progress = 0
	if b.Duration <= 0 {
		b.progress = 1
		b.current = shape
	}
}

func (b *VisemeBlend) Step(dt float64) MouthShape {
	if b.progress < 1 && dt > 0 {
		b.progress += dt / b.Duration
		if b.progress > 1 {
			b.progress = 1
		}
	}
	b.current = b.from.Lerp(b.to, float32(b.progress))
	return b.current
}

// Reset settles on shape with no fade in progress.
func (b *VisemeBlend) Reset(shape MouthShape) {
	b.from = shape
	b.to = shape
	b.current = shape
	b.progress = 1
}

func (b *VisemeBlend) Target() MouthShape {
	return b.to
}

func (b *VisemeBlend) Current() MouthShape {
	return b.current
}

func (b *VisemeBlend) Fading() bool {
	return b.progress < 1
}
