package speech

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/facerig/internal/audio"
	"github.com/normanking/facerig/internal/avatar3d"
	"github.com/normanking/facerig/internal/bus"
	"github.com/normanking/facerig/internal/lipsync"
	"github.com/normanking/facerig/internal/tts"
)

// fakeSynth writes a silent clip whose length is looked up by text.
type fakeSynth struct {
	dir     string
	lengths map[string]time.Duration
	err     error
	n       atomic.Int32
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (*tts.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.lengths[text]
	if !ok {
		d = 100 * time.Millisecond
	}
	const rate = 8000
	path := filepath.Join(f.dir, fmt.Sprintf("out-%d.wav", f.n.Add(1)))
	clip := &audio.Clip{SampleRate: rate, Channels: 1, Samples: make([]float32, int(d.Seconds()*rate))}
	if err := audio.Write(path, clip); err != nil {
		return nil, err
	}
	return &tts.Result{WavPath: path, Duration: d, Provider: f.Name()}, nil
}

type stubOracle struct {
	track *avatar3d.CueTrack
	err   error
}

func (s stubOracle) Name() string { return "stub" }

func (s stubOracle) Cues(ctx context.Context, wavPath string) (*avatar3d.CueTrack, error) {
	return s.track, s.err
}

type call struct {
	op    string
	cues  int
	extra string
}

type fakeSession struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeSession) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeSession) Start(track *avatar3d.CueTrack, epoch time.Time) {
	f.record(call{op: "start", cues: track.Len()})
}

func (f *fakeSession) Stop() { f.record(call{op: "stop"}) }

func (f *fakeSession) Fail(err error) { f.record(call{op: "fail", extra: err.Error()}) }

func (f *fakeSession) SetExpression(p avatar3d.ExpressionPreset, duration float64) {
	f.record(call{op: "expr", extra: p.Name})
}

func (f *fakeSession) ops(skipExpr bool) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if skipExpr && c.op == "expr" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (f *fakeSession) started() int {
	n := 0
	for _, c := range f.ops(true) {
		if c.op == "start" {
			n++
		}
	}
	return n
}

func twoCues() *avatar3d.CueTrack {
	return avatar3d.NewCueTrack([]avatar3d.Cue{
		{Start: 0, End: 0.05, Symbol: avatar3d.VisemeA},
		{Start: 0.05, End: 0.1, Symbol: avatar3d.VisemeD},
	})
}

func newTestPipeline(t *testing.T, synth tts.Synthesizer, opts Options) (*Pipeline, *fakeSession, *bus.EventBus) {
	t.Helper()
	b := bus.NewEventBus()
	session := &fakeSession{}
	player := audio.NewPlayer(audio.ClockOutput{}, b, zerolog.Nop())
	return NewPipeline(synth, player, session, b, zerolog.Nop(), opts), session, b
}

func TestPipeline_Speak(t *testing.T) {
	synth := &fakeSynth{dir: t.TempDir()}
	p, session, b := newTestPipeline(t, synth, Options{Oracle: stubOracle{track: twoCues()}})

	ready := make(chan bus.Event, 1)
	b.Subscribe(bus.EventTypeUtteranceCuesReady, func(e bus.Event) { ready <- e })

	u, err := p.Speak(context.Background(), "Hello.")
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, u.Outcome)
	assert.Equal(t, "fake", u.Provider)
	assert.Equal(t, 2, u.Cues)
	assert.Equal(t, "stub", u.CueSource)
	assert.NotEmpty(t, u.ID)

	assert.Equal(t, []call{
		{op: "expr", extra: "thinking"},
		{op: "start", cues: 2},
		{op: "expr", extra: "attentive"},
		{op: "stop"},
		{op: "expr", extra: "neutral"},
	}, session.ops(false))

	select {
	case e := <-ready:
		assert.Equal(t, u.ID, e.String(bus.KeyUtteranceID))
		assert.Equal(t, 2, e.Data[bus.KeyCues])
	case <-time.After(time.Second):
		t.Fatal("no cues_ready event")
	}

	require.Equal(t, 1, p.History().Len())
	assert.Equal(t, u.ID, p.History().Recent(5)[0].ID)
	assert.Empty(t, p.Current())
}

func TestPipeline_CueSources(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantSource string
		wantCues   func(t *testing.T, n int)
	}{
		{
			name:       "oracle failure speaks with empty track",
			opts:       Options{Oracle: stubOracle{err: lipsync.ErrOracleUnavailable}},
			wantSource: "none",
			wantCues:   func(t *testing.T, n int) { assert.Equal(t, 0, n) },
		},
		{
			name:       "malformed cues speak with empty track",
			opts:       Options{Oracle: stubOracle{err: fmt.Errorf("x.json: %w", avatar3d.ErrMalformedCues)}},
			wantSource: "none",
			wantCues:   func(t *testing.T, n int) { assert.Equal(t, 0, n) },
		},
		{
			name:       "oracle failure estimates from text when asked",
			opts:       Options{Oracle: stubOracle{err: lipsync.ErrOracleUnavailable}, EstimateOnFailure: true},
			wantSource: "text",
			wantCues:   func(t *testing.T, n int) { assert.Positive(t, n) },
		},
		{
			name:       "no oracle estimates from text",
			opts:       Options{},
			wantSource: "text",
			wantCues:   func(t *testing.T, n int) { assert.Positive(t, n) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, session, _ := newTestPipeline(t, &fakeSynth{dir: t.TempDir()}, tt.opts)

			u, err := p.Speak(context.Background(), "Make me a map.")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, u.CueSource)
			tt.wantCues(t, u.Cues)

			ops := session.ops(true)
			require.Len(t, ops, 2)
			assert.Equal(t, "start", ops[0].op)
			tt.wantCues(t, ops[0].cues)
			assert.Equal(t, "stop", ops[1].op)
		})
	}
}

func TestPipeline_Failures(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		p, session, _ := newTestPipeline(t, &fakeSynth{dir: t.TempDir()}, Options{})
		u, err := p.Speak(context.Background(), "   ")
		assert.ErrorIs(t, err, tts.ErrEmptyText)
		assert.Equal(t, OutcomeFailed, u.Outcome)
		assert.Empty(t, session.ops(false))
	})

	t.Run("synthesis error", func(t *testing.T) {
		synth := &fakeSynth{dir: t.TempDir(), err: tts.ErrProviderUnavailable}
		p, session, b := newTestPipeline(t, synth, Options{})

		failed := make(chan bus.Event, 1)
		b.Subscribe(bus.EventTypeUtteranceFailed, func(e bus.Event) { failed <- e })

		u, err := p.Speak(context.Background(), "hi")
		assert.ErrorIs(t, err, tts.ErrProviderUnavailable)
		assert.Equal(t, OutcomeFailed, u.Outcome)
		assert.Zero(t, session.started())

		select {
		case e := <-failed:
			assert.Contains(t, e.String(bus.KeyError), "unavailable")
		case <-time.After(time.Second):
			t.Fatal("no utterance.failed event")
		}
	})
}

// failingPlayer starts playback and then reports a device error.
type failingPlayer struct {
	bus *bus.EventBus
}

func (f failingPlayer) Play(ctx context.Context, id, path string) error {
	f.bus.PublishSync(bus.Event{Type: bus.EventTypePlaybackStarted, Data: map[string]any{
		bus.KeyUtteranceID: id, bus.KeyEpoch: time.Now(),
	}})
	f.bus.PublishSync(bus.Event{Type: bus.EventTypePlaybackFailed, Data: map[string]any{
		bus.KeyUtteranceID: id, bus.KeyError: "device unplugged",
	}})
	return audio.ErrPlaybackFailed
}

func TestPipeline_PlaybackFailureIsTerminal(t *testing.T) {
	b := bus.NewEventBus()
	session := &fakeSession{}
	p := NewPipeline(&fakeSynth{dir: t.TempDir()}, failingPlayer{bus: b}, session, b, zerolog.Nop(), Options{Oracle: stubOracle{track: twoCues()}})

	u, err := p.Speak(context.Background(), "hi")
	assert.ErrorIs(t, err, audio.ErrPlaybackFailed)
	assert.Equal(t, OutcomeFailed, u.Outcome)
	assert.Equal(t, []call{{op: "start", cues: 2}, {op: "fail", extra: "device unplugged"}}, session.ops(true))
}

func TestPipeline_NewUtteranceInterrupts(t *testing.T) {
	synth := &fakeSynth{dir: t.TempDir(), lengths: map[string]time.Duration{"long": 5 * time.Second}}
	p, session, _ := newTestPipeline(t, synth, Options{Oracle: stubOracle{track: twoCues()}})

	first := make(chan error, 1)
	go func() {
		_, err := p.Speak(context.Background(), "long")
		first <- err
	}()
	require.Eventually(t, func() bool { return session.started() == 1 }, 2*time.Second, 5*time.Millisecond)

	u, err := p.Speak(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, u.Outcome)

	select {
	case err := <-first:
		assert.ErrorIs(t, err, audio.ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("first utterance did not return")
	}

	assert.Equal(t, []string{"start", "stop", "start", "stop"}, opNames(session.ops(true)))

	outcomes := make(map[string]Outcome)
	for _, h := range p.History().Recent(10) {
		outcomes[h.Text] = h.Outcome
	}
	assert.Equal(t, map[string]Outcome{"long": OutcomeInterrupted, "short": OutcomeCompleted}, outcomes)
}

func TestPipeline_Cancel(t *testing.T) {
	synth := &fakeSynth{dir: t.TempDir(), lengths: map[string]time.Duration{"long": 5 * time.Second}}
	p, session, _ := newTestPipeline(t, synth, Options{Oracle: stubOracle{track: twoCues()}})

	done := make(chan error, 1)
	go func() {
		_, err := p.Speak(context.Background(), "long")
		done <- err
	}()
	require.Eventually(t, func() bool { return session.started() == 1 }, 2*time.Second, 5*time.Millisecond)

	p.Cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, audio.ErrInterrupted))
	case <-time.After(time.Second):
		t.Fatal("Cancel did not stop the utterance")
	}
	assert.Equal(t, []string{"start", "stop"}, opNames(session.ops(true)))
}

func opNames(calls []call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.op
	}
	return out
}

func TestHistory(t *testing.T) {
	h := NewHistory(2)
	h.Add(Utterance{ID: "a"})
	h.Add(Utterance{ID: "b"})
	h.Add(Utterance{ID: "c"})

	assert.Equal(t, 2, h.Len())
	recent := h.Recent(5)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID)
	assert.Equal(t, "c", recent[1].ID)
	assert.Len(t, h.Recent(1), 1)
}
