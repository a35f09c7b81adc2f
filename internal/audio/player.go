package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/facerig/internal/bus"
)

// Output renders a clip. Play blocks until the clip finished or ctx is done
// and calls started exactly once, with the wall-clock time the first sample
// went out, before returning nil.
type Output interface {
	Play(ctx context.Context, clip *Clip, started func(epoch time.Time)) error
}

// Player plays one utterance at a time. A new Play interrupts the previous one.
type Player struct {
	output   Output
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
}

func NewPlayer(output Output, eventBus *bus.EventBus, logger zerolog.Logger) *Player {
	return &Player{
		output:   output,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "audio").Logger(),
	}
}

// Play decodes path and plays it, publishing playback.started with the epoch,
// then playback.ended or playback.failed. It returns ErrInterrupted when ctx is
// canceled or Stop is called mid-clip.
func (p *Player) Play(ctx context.Context, utteranceID, path string) error {
	clip, err := Decode(path)
	if err != nil {
		p.publish(bus.EventTypePlaybackFailed, utteranceID, map[string]any{bus.KeyPath: path, bus.KeyError: err.Error()})
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.current, p.cancel = utteranceID, cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.current == utteranceID {
			p.current, p.cancel = "", nil
		}
		p.mu.Unlock()
		cancel()
	}()

	p.logger.Debug().
		Str("utterance", utteranceID).
		Str("path", path).
		Dur("duration", clip.Duration()).
		Msg("Playback starting")

	var once sync.Once
	err = p.output.Play(ctx, clip, func(epoch time.Time) {
		once.Do(func() {
			p.publish(bus.EventTypePlaybackStarted, utteranceID, map[string]any{
				bus.KeyEpoch:    epoch,
				bus.KeyPath:     path,
				bus.KeyDuration: clip.Duration(),
			})
		})
	})

	switch {
	case err == nil:
		p.publish(bus.EventTypePlaybackEnded, utteranceID, map[string]any{bus.KeyInterrupted: false})
		return nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		p.publish(bus.EventTypePlaybackEnded, utteranceID, map[string]any{bus.KeyInterrupted: true})
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	default:
		p.logger.Error().Err(err).Str("utterance", utteranceID).Msg("Playback failed")
		p.publish(bus.EventTypePlaybackFailed, utteranceID, map[string]any{bus.KeyPath: path, bus.KeyError: err.Error()})
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}
}

// Stop interrupts the clip that is playing, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Current returns the utterance being played, or "".
func (p *Player) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Events are delivered synchronously so a subscriber sees started before the
// first frame of the clip is due.
func (p *Player) publish(t bus.EventType, utteranceID string, data map[string]any) {
	if p.eventBus == nil {
		return
	}
	data[bus.KeyUtteranceID] = utteranceID
	p.eventBus.PublishSync(bus.Event{Type: t, Data: data})
}

// ClockOutput plays nothing and takes as long as the clip. It stands in for a
// sound device on headless machines and in tests.
type ClockOutput struct {
	Now func() time.Time
}

func (o ClockOutput) Play(ctx context.Context, clip *Clip, started func(time.Time)) error {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	started(now())

	timer := time.NewTimer(clip.Duration())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
