package avatar3d

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Frame is the result of one Tick.
type Frame struct {
	Time     float64     `json:"t"`
	Elapsed  float64     `json:"elapsed"`
	Playing  bool        `json:"playing"`
	Symbol   Viseme      `json:"symbol"`
	Openness float32     `json:"openness"`
	Clamped  bool        `json:"clamped,omitempty"`
	Gesture  GestureKind `json:"gesture,omitempty"`
	Weights  Weights     `json:"-"`
	Head     HeadPose    `json:"head"`
	// Took is the wall time spent composing the frame.
	Took time.Duration `json:"-"`
}

// FrameSink receives every composed frame.
type FrameSink interface {
	Frame(f Frame)
}

type FrameSinkFunc func(f Frame)

func (fn FrameSinkFunc) Frame(f Frame) { fn(f) }

type Option func(*Session)

func WithRand(r Rand) Option {
	return func(s *Session) { s.rng = r }
}

func WithTimeSource(ts TimeSource) Option {
	return func(s *Session) { s.source = ts }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

type eventKind int

const (
	eventStart eventKind = iota
	eventStop
	eventFail
	eventReload
	eventExpression
	eventLookAt
	eventBlink
)

type event struct {
	kind     eventKind
	track    *CueTrack
	epoch    time.Time
	err      error
	rig      Rig
	preset   ExpressionPreset
	duration float64
	gaze     GazeTarget
}

// Session is the per-avatar animation state. Tick must be called from a
// single goroutine; every other method may be called from anywhere and takes
// effect at the start of the next Tick.
type Session struct {
	cfg    Config
	log    zerolog.Logger
	rng    Rand
	source TimeSource

	mu      sync.Mutex
	pending []event

	clock   *PlaybackClock
	track   *CueTrack
	binding *Binding
	lips    *LipSync
	blink   *Blinker
	gaze    *Saccades
	idle    *IdleAnimator
	micro   *MicroGestures
	expr    *ExpressionController
	head    *HeadMotion
	time    float64

	frameMu sync.RWMutex
	last    Frame
}

func NewSession(cfg Config, opts ...Option) *Session {
	s := &Session{
		cfg: cfg,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = NewRand(time.Now().UnixNano())
	}
	if s.source == nil {
		s.source = SystemTime{}
	}
	if s.cfg.MaxFrameDelta <= 0 {
		s.cfg.MaxFrameDelta = DefaultMaxFrameDelta
	}
	s.log = s.log.With().Str("component", "avatar3d").Logger()

	s.clock = NewPlaybackClock(s.source)
	s.track = EmptyTrack()
	s.binding = Bind(nil, cfg.Head)
	s.lips = NewLipSync(cfg.Mouth)
	s.blink = NewBlinker(cfg.Blink, s.rng)
	s.gaze = NewSaccades(cfg.Saccade, s.rng)
	s.idle = NewIdleAnimator(cfg.Idle, s.rng)
	s.micro = NewMicroGestures(cfg.Micro, s.rng)
	s.expr = NewExpressionController()
	s.head = NewHeadMotion(cfg.Head)
	s.last = Frame{Symbol: s.lips.Mapper().Rest, Openness: s.lips.Last().Open}
	return s
}

// Start begins a new utterance whose audio started at epoch. Any live
// utterance is discarded first.
func (s *Session) Start(track *CueTrack, epoch time.Time) {
	s.enqueue(event{kind: eventStart, track: track, epoch: epoch})
}

// Stop ends the live utterance; speech channels decay to rest.
func (s *Session) Stop() {
	s.enqueue(event{kind: eventStop})
}

// Fail ends the live utterance after a playback error.
func (s *Session) Fail(err error) {
	s.enqueue(event{kind: eventFail, err: err})
}

// Reload rebinds the session to a newly loaded model before the next frame.
func (s *Session) Reload(rig Rig) {
	s.enqueue(event{kind: eventReload, rig: rig})
}

func (s *Session) SetExpression(p ExpressionPreset, duration float64) {
	s.enqueue(event{kind: eventExpression, preset: p, duration: duration})
}

func (s *Session) LookAt(yaw, pitch float64) {
	s.enqueue(event{kind: eventLookAt, gaze: GazeTarget{Yaw: yaw, Pitch: pitch}})
}

func (s *Session) TriggerBlink() {
	s.enqueue(event{kind: eventBlink})
}

func (s *Session) enqueue(ev event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
}

func (s *Session) drain() {
	s.mu.Lock()
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, ev := range events {
		s.apply(ev)
	}
}

func (s *Session) apply(ev event) {
	switch ev.kind {
	case eventStart:
		track := ev.track
		if track == nil {
			track = EmptyTrack()
		}
		track.Reset()
		s.track = track
		s.lips.Rest()
		s.clock.Start(ev.epoch)
		s.log.Info().Int("cues", track.Len()).Float64("duration", track.Duration()).Msg("Utterance started")

	case eventStop:
		s.rest()
		s.log.Debug().Msg("Utterance stopped")

	case eventFail:
		s.rest()
		s.log.Warn().Err(ev.err).Msg("Playback failed, returning to rest")

	case eventReload:
		s.binding = Bind(ev.rig, s.cfg.Head)
		s.log.Info().
			Int("channels", len(s.binding.Bound())).
			Interface("features", s.binding.Features()).
			Msg("Model bound")

	case eventExpression:
		s.expr.TransitionTo(ev.preset, ev.duration)

	case eventLookAt:
		s.gaze.LookAt(ev.gaze.Yaw, ev.gaze.Pitch)

	case eventBlink:
		s.blink.TriggerBlink()
	}
}

func (s *Session) rest() {
	s.clock.Stop()
	s.track = EmptyTrack()
	s.lips.Rest()
}

// Tick advances the engine by dt seconds, writes the composed weights to the
// bound rig and returns the frame.
func (s *Session) Tick(dt float64) Frame {
	began := time.Now()
	raw := dt
	dt = ClampDelta(dt, s.cfg.MaxFrameDelta)

	s.drain()

	if mt, ok := s.source.(*ManualTime); ok {
		mt.Advance(time.Duration(dt * float64(time.Second)))
	}
	s.time += dt

	symbol := s.lips.Mapper().Rest
	elapsed := 0.0
	playing := s.clock.Running()
	if playing {
		elapsed = s.clock.Elapsed()
		if cue, ok := s.track.Active(elapsed); ok {
			symbol = cue.Symbol
		}
	}

	s.lips.Target(symbol)
	mouth := s.lips.Step(dt)

	f := Frame{
		Time:     s.time,
		Elapsed:  elapsed,
		Playing:  playing,
		Symbol:   symbol,
		Openness: mouth.Open,
		Clamped:  raw != dt,
	}
	f.Weights, f.Gesture = s.compose(dt, mouth)

	if s.cfg.Head.Enabled {
		f.Head = s.head.Update(dt, mouth.Open)
		s.binding.Pose(f.Head)
	}
	s.binding.Flush(&f.Weights)
	f.Took = time.Since(began)

	s.frameMu.Lock()
	s.last = f
	s.frameMu.Unlock()
	return f
}

func (s *Session) compose(dt float64, mouth MouthState) (Weights, GestureKind) {
	features := s.binding.Features()
	var w Weights

	scale := s.idle.IdleScale(mouth.Open)

	var gesture Gesture
	if s.cfg.Micro.Enabled && features.Gesture {
		gesture = s.micro.Update(dt)
	}
	if s.cfg.Idle.Enabled && features.Idle {
		s.idle.Update(dt)
		s.idle.Apply(&w, mouth.Open, gesture)
	} else {
		gesture.Apply(&w, scale)
	}

	expr := s.expr.Update(dt)
	expr = expr.Scale(scale)
	w = w.Max(&expr)

	w.Raise(MouthOpen, mouth.Open)
	jaw := mouth.Jaw
	if s.cfg.Idle.Enabled && features.Idle {
		if breath := s.idle.Breath(mouth.Open); breath > jaw {
			jaw = breath
		}
	}
	w.Set(JawOpen, jaw)

	w.Raise(MouthFunnel, mouth.Detail[DetailFunnel])
	w.Raise(MouthPucker, mouth.Detail[DetailPucker])
	w.Raise(MouthPress, mouth.Detail[DetailPress])
	w.Raise(MouthPressLeft, mouth.Detail[DetailPress])
	w.Raise(MouthPressRight, mouth.Detail[DetailPress])
	w.Raise(MouthRollLower, mouth.Detail[DetailRollLower])
	w.Raise(MouthRollUpper, mouth.Detail[DetailRollUpper])
	w.Raise(MouthStretchLeft, mouth.Detail[DetailStretch])
	w.Raise(MouthStretchRight, mouth.Detail[DetailStretch])
	w.Raise(MouthUpperUpLeft, mouth.Detail[DetailUpperUp])
	w.Raise(MouthUpperUpRight, mouth.Detail[DetailUpperUp])
	w.Raise(MouthLowerDownLeft, mouth.Detail[DetailLowerDown])
	w.Raise(MouthLowerDownRight, mouth.Detail[DetailLowerDown])
	w.Raise(MouthSmileLeft, mouth.Smile)
	w.Raise(MouthSmileRight, mouth.Smile)

	if s.cfg.Blink.Enabled && features.Blink {
		amount := s.blink.Update(dt)
		w.Set(EyeBlinkLeft, amount)
		w.Set(EyeBlinkRight, amount)
		w.Set(EyesClosed, amount)
	}

	if s.cfg.Saccade.Enabled && features.Gaze {
		s.gaze.Update(dt)
		s.gaze.Apply(&w)
	}

	return w, gesture.Kind
}

// LastFrame returns the most recent frame. Safe for concurrent use.
func (s *Session) LastFrame() Frame {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.last
}

func (s *Session) Config() Config {
	return s.cfg
}

// Binding exposes the current channel binding. Only valid on the Tick goroutine.
func (s *Session) Binding() *Binding {
	return s.binding
}

func (s *Session) Blinker() *Blinker {
	return s.blink
}

func (s *Session) MicroGestures() *MicroGestures {
	return s.micro
}

func (s *Session) Saccades() *Saccades {
	return s.gaze
}

// Run ticks the session at the given interval until ctx is done, measuring dt
// from the wall clock.
func (s *Session) Run(ctx context.Context, interval time.Duration, sink FrameSink) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			f := s.Tick(dt)
			if sink != nil {
				sink.Frame(f)
			}
		}
	}
}
