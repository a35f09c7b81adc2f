package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/facerig/internal/bus"
)

type recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recorder) attach(b *bus.EventBus) {
	b.SubscribeMultiple([]bus.EventType{
		bus.EventTypePlaybackStarted,
		bus.EventTypePlaybackEnded,
		bus.EventTypePlaybackFailed,
	}, func(e bus.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
}

func (r *recorder) types() []bus.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bus.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) get(i int) bus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[i]
}

type fakeOutput struct {
	err   error
	epoch time.Time
	block bool
	clips []*Clip
}

func (f *fakeOutput) Play(ctx context.Context, clip *Clip, started func(time.Time)) error {
	f.clips = append(f.clips, clip)
	if f.err != nil {
		return f.err
	}
	started(f.epoch)
	started(f.epoch.Add(time.Second))
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func newTestPlayer(out Output) (*Player, *recorder) {
	b := bus.NewEventBus()
	rec := &recorder{}
	rec.attach(b)
	return NewPlayer(out, b, zerolog.Nop()), rec
}

func TestPlayer_Play(t *testing.T) {
	path := tone(t, t.TempDir(), 16000, 1, 0.25)
	epoch := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	out := &fakeOutput{epoch: epoch}
	p, rec := newTestPlayer(out)

	require.NoError(t, p.Play(context.Background(), "utt-1", path))

	require.Equal(t, []bus.EventType{bus.EventTypePlaybackStarted, bus.EventTypePlaybackEnded}, rec.types())
	started := rec.get(0)
	assert.Equal(t, "utt-1", started.String(bus.KeyUtteranceID))
	assert.Equal(t, epoch, started.Data[bus.KeyEpoch])
	assert.Equal(t, 250*time.Millisecond, started.Data[bus.KeyDuration])
	assert.Equal(t, false, rec.get(1).Data[bus.KeyInterrupted])

	require.Len(t, out.clips, 1)
	assert.Equal(t, 16000, out.clips[0].SampleRate)
	assert.Empty(t, p.Current())
}

func TestPlayer_Failures(t *testing.T) {
	dir := t.TempDir()
	path := tone(t, dir, 16000, 1, 0.1)

	t.Run("output error", func(t *testing.T) {
		p, rec := newTestPlayer(&fakeOutput{err: errors.New("device busy")})
		err := p.Play(context.Background(), "u", path)
		assert.ErrorIs(t, err, ErrPlaybackFailed)
		assert.Equal(t, []bus.EventType{bus.EventTypePlaybackFailed}, rec.types())
		assert.Equal(t, "device busy", rec.get(0).String(bus.KeyError))
	})

	t.Run("undecodable file", func(t *testing.T) {
		p, rec := newTestPlayer(&fakeOutput{})
		err := p.Play(context.Background(), "u", dir+"/missing.wav")
		assert.ErrorIs(t, err, ErrPlaybackFailed)
		assert.Equal(t, []bus.EventType{bus.EventTypePlaybackFailed}, rec.types())
	})
}

func TestPlayer_Stop(t *testing.T) {
	path := tone(t, t.TempDir(), 16000, 1, 0.1)
	p, rec := newTestPlayer(&fakeOutput{block: true})

	done := make(chan error, 1)
	go func() { done <- p.Play(context.Background(), "u", path) }()

	require.Eventually(t, func() bool { return p.Current() == "u" }, time.Second, time.Millisecond)
	p.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("Play did not return after Stop")
	}

	require.Eventually(t, func() bool { return len(rec.types()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, bus.EventTypePlaybackEnded, rec.get(1).Type)
	assert.Equal(t, true, rec.get(1).Data[bus.KeyInterrupted])
}

func TestClockOutput(t *testing.T) {
	clip := &Clip{SampleRate: 1000, Channels: 1, Samples: make([]float32, 20)}
	fixed := time.Unix(100, 0)

	var got time.Time
	err := ClockOutput{Now: func() time.Time { return fixed }}.Play(context.Background(), clip, func(e time.Time) { got = e })
	require.NoError(t, err)
	assert.Equal(t, fixed, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	long := &Clip{SampleRate: 1000, Channels: 1, Samples: make([]float32, 60000)}
	err = ClockOutput{}.Play(ctx, long, func(time.Time) {})
	assert.ErrorIs(t, err, context.Canceled)
}
