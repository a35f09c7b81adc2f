package avatar3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRand replays a fixed sequence.
type scriptedRand struct {
	values []float64
	i      int
}

func (r *scriptedRand) Float64() float64 {
	v := r.values[r.i%len(r.values)]
	r.i++
	return v
}

const frame = 1.0 / 60

func TestBlinker_GapsWithinInterval(t *testing.T) {
	cfg := DefaultConfig().Blink
	b := NewBlinker(cfg, NewRand(42))

	seen := 0
	for i := 0; i < 60*600; i++ {
		amount := b.Update(frame)
		require.GreaterOrEqual(t, amount, float32(0))
		require.LessOrEqual(t, amount, float32(1))

		if b.Count() != seen {
			seen = b.Count()
			assert.GreaterOrEqual(t, b.LastGap(), cfg.IntervalMin)
			assert.LessOrEqual(t, b.LastGap(), cfg.IntervalMax+frame)
		}
	}
	assert.Greater(t, seen, 600/8)
}

func TestBlinker_TriangularEnvelope(t *testing.T) {
	cfg := BlinkConfig{Enabled: true, IntervalMin: 0.995, IntervalMax: 0.995, Duration: 0.2, Amount: 1}
	b := NewBlinker(cfg, &scriptedRand{values: []float64{0}})

	for i := 0; i < 99; i++ {
		b.Update(0.01)
	}
	require.Equal(t, BlinkStateOpen, b.State())
	assert.Equal(t, float32(0), b.Amount())

	b.Update(0.01)
	require.True(t, b.IsBlinking())

	var peak float32
	for b.IsBlinking() {
		peak = max(peak, b.Update(0.01))
	}
	assert.InDelta(t, 1, peak, 0.01)
	assert.Equal(t, float32(0), b.Amount())
	assert.Equal(t, 1, b.Count())
}

func TestBlinker_TriggerIgnoredWhileBlinking(t *testing.T) {
	b := NewBlinker(DefaultConfig().Blink, NewRand(1))
	b.TriggerBlink()
	b.TriggerBlink()
	assert.Equal(t, 1, b.Count())
	assert.True(t, b.IsBlinking())
}

func TestMicroGestures_GapsAndExclusivity(t *testing.T) {
	cfg := DefaultConfig().Micro
	m := NewMicroGestures(cfg, NewRand(9))

	seen := 0
	kinds := map[GestureKind]bool{}
	for i := 0; i < 60*900; i++ {
		g := m.Update(frame)

		active := 0
		for _, v := range []float32{g.Brow, g.Press, g.SmirkLeft, g.SmirkRight, g.SneerLeft, g.SneerRight} {
			require.GreaterOrEqual(t, v, float32(0))
			if v > 0 {
				active++
			}
		}
		require.LessOrEqual(t, active, 1, "one gesture at a time")

		if m.Count() != seen {
			seen = m.Count()
			kinds[g.Kind] = true
			assert.GreaterOrEqual(t, m.LastGap(), cfg.IntervalMin)
			assert.LessOrEqual(t, m.LastGap(), cfg.IntervalMax+frame)
		}
	}
	assert.Greater(t, seen, 900/10)
	assert.Len(t, kinds, len(gestureKinds))
}

func TestSaccades_Decomposition(t *testing.T) {
	cfg := DefaultConfig().Saccade

	tests := []struct {
		name       string
		yaw, pitch float64
		want       map[Channel]float32
	}{
		{
			name: "left and down",
			yaw:  cfg.YawMax, pitch: -cfg.PitchMax,
			want: map[Channel]float32{
				EyeLookOutLeft: 1, EyeLookInRight: 1, EyeLookInLeft: 0, EyeLookOutRight: 0,
				EyeLookDownLeft: 1, EyeLookDownRight: 1, EyesLookDown: 1, EyeLookUpLeft: 0, EyesLookUp: 0,
			},
		},
		{
			name: "half right and up",
			yaw:  -cfg.YawMax / 2, pitch: cfg.PitchMax / 2,
			want: map[Channel]float32{
				EyeLookInLeft: 0.5, EyeLookOutRight: 0.5, EyeLookOutLeft: 0, EyeLookInRight: 0,
				EyeLookUpLeft: 0.5, EyeLookUpRight: 0.5, EyesLookUp: 0.5, EyeLookDownRight: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSaccades(cfg, &scriptedRand{values: []float64{0}})
			s.LookAt(tt.yaw, tt.pitch)
			for i := 0; i < 90; i++ {
				s.Update(frame)
			}
			require.Equal(t, 1, s.Count())

			var w Weights
			s.Apply(&w)
			for c, v := range tt.want {
				assert.InDelta(t, v, w.Get(c), 1e-4, c.String())
			}
		})
	}
}

func TestSaccades_TargetsWithinRange(t *testing.T) {
	cfg := DefaultConfig().Saccade
	s := NewSaccades(cfg, NewRand(3))
	for i := 0; i < 60*120; i++ {
		g := s.Update(frame)
		require.LessOrEqual(t, g.Yaw, cfg.YawMax+1e-9)
		require.GreaterOrEqual(t, g.Yaw, -cfg.YawMax-1e-9)
		require.LessOrEqual(t, g.Pitch, cfg.PitchMax+1e-9)
		require.GreaterOrEqual(t, g.Pitch, -cfg.PitchMax-1e-9)
	}
	assert.Greater(t, s.Count(), 120/3)
}

func TestIdleAnimator_SuppressedBySpeech(t *testing.T) {
	cfg := DefaultConfig().Idle
	ia := NewIdleAnimator(cfg, NewRand(5))
	for i := 0; i < 90; i++ {
		ia.Update(frame)
	}

	var quiet, speaking Weights
	ia.Apply(&quiet, 0.02, Gesture{})
	ia.Apply(&speaking, 1, Gesture{Brow: 0.45})

	assert.Equal(t, float32(0), ia.IdleScale(1))
	assert.Greater(t, quiet.Get(EyeSquintLeft), float32(0))
	for c := Channel(0); c < ChannelCount; c++ {
		if c == MouthShrugLower || c == MouthShrugUpper {
			assert.InDelta(t, 0.02, speaking.Get(c), 1e-6)
			continue
		}
		assert.Equal(t, float32(0), speaking.Get(c), c.String())
	}

	for i := 0; i < 600; i++ {
		ia.Update(frame)
		b := ia.Breath(1)
		require.LessOrEqual(t, b, float32(cfg.Breath*cfg.BreathFloor)+1e-6)
		require.GreaterOrEqual(t, b, float32(0))
	}
}

func TestIdleAnimator_FoldsGestures(t *testing.T) {
	ia := NewIdleAnimator(DefaultConfig().Idle, NewRand(5))

	var base, smirk Weights
	ia.Apply(&base, 0, Gesture{})
	ia.Apply(&smirk, 0, Gesture{Kind: GestureSmirkLeft, SmirkLeft: 0.35})

	assert.Greater(t, smirk.Get(MouthSmileLeft), base.Get(MouthSmileLeft))
	assert.Equal(t, base.Get(MouthSmileRight), smirk.Get(MouthSmileRight))
	assert.Greater(t, smirk.Get(CheekSquintLeft), base.Get(CheekSquintLeft))
}

func TestExpressionController_TransitionIsFrameDriven(t *testing.T) {
	ec := NewExpressionController()
	ec.TransitionTo(PresetHappy, 0.5)

	w := ec.Update(0.25)
	assert.InDelta(t, 0.2, w.Get(MouthSmileLeft), 1e-5)
	assert.True(t, ec.IsTransitioning())

	w = ec.Update(0.25)
	assert.InDelta(t, 0.4, w.Get(MouthSmileLeft), 1e-6)
	assert.False(t, ec.IsTransitioning())
	assert.Equal(t, "happy", ec.Name())

	p, ok := PresetByName("Thinking")
	require.True(t, ok)
	assert.Equal(t, PresetThinking, p)
}

func TestStateMapper(t *testing.T) {
	m := NewStateMapper()

	p, changed := m.Map(ModeIdle)
	assert.False(t, changed)
	assert.Equal(t, PresetNeutral.Name, p.Name)

	p, changed = m.Map(ModeThinking)
	assert.True(t, changed)
	assert.Equal(t, PresetThinking.Name, p.Name)

	m.Override(ModeSpeaking, PresetHappy)
	p, _ = m.Map(ModeSpeaking)
	assert.Equal(t, PresetHappy.Name, p.Name)
	assert.Equal(t, ModeSpeaking, m.Mode())
}

func TestHeadMotion_ComposesOnBindPose(t *testing.T) {
	h := NewHeadMotion(DefaultConfig().Head)
	pose := h.Update(1.0, 0.5)

	assert.InDelta(t, 0.01*0.5646, pose.Yaw, 1e-4)
	assert.InDelta(t, 1, pose.Rotation.Len(), 1e-5)
	assert.Less(t, pose.OffsetY, float32(0.001)+1e-6)
}
