// Package speech runs an utterance end to end: synthesize the reply, obtain
// its lip-sync cues, play the audio and drive the avatar from the playback
// events.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/facerig/internal/audio"
	"github.com/normanking/facerig/internal/avatar3d"
	"github.com/normanking/facerig/internal/bus"
	"github.com/normanking/facerig/internal/lipsync"
	"github.com/normanking/facerig/internal/metrics"
	"github.com/normanking/facerig/internal/tts"
)

var ErrCanceled = errors.New("utterance canceled")

// Session is the part of the animation engine the pipeline drives.
type Session interface {
	Start(track *avatar3d.CueTrack, epoch time.Time)
	Stop()
	Fail(err error)
	SetExpression(p avatar3d.ExpressionPreset, duration float64)
}

// Player plays a WAV and announces playback on the bus.
type Player interface {
	Play(ctx context.Context, utteranceID, path string) error
}

type Options struct {
	// Oracle produces cues from audio. Nil estimates them from the text.
	Oracle lipsync.Oracle
	// EstimateOnFailure falls back to text estimation instead of an empty
	// track when the oracle fails.
	EstimateOnFailure bool
	// ExpressionBlend is the cross-fade into each mode's expression, seconds.
	ExpressionBlend float64
	HistorySize     int
}

// Pipeline speaks one utterance at a time; a new one cancels the last.
type Pipeline struct {
	synth    tts.Synthesizer
	player   Player
	session  Session
	eventBus *bus.EventBus
	logger   zerolog.Logger
	opts     Options
	history  *History

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
	done    chan struct{}

	// live is the utterance the session is animating.
	liveMu sync.Mutex
	live   string
	tracks map[string]*avatar3d.CueTrack
	mapper *avatar3d.StateMapper
}

func NewPipeline(synth tts.Synthesizer, player Player, session Session, eventBus *bus.EventBus, logger zerolog.Logger, opts Options) *Pipeline {
	if opts.ExpressionBlend <= 0 {
		opts.ExpressionBlend = 0.4
	}
	p := &Pipeline{
		synth:    synth,
		player:   player,
		session:  session,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "speech").Logger(),
		opts:     opts,
		history:  NewHistory(opts.HistorySize),
		tracks:   make(map[string]*avatar3d.CueTrack),
		mapper:   avatar3d.NewStateMapper(),
	}

	eventBus.Subscribe(bus.EventTypePlaybackStarted, p.onStarted)
	eventBus.SubscribeMultiple([]bus.EventType{bus.EventTypePlaybackEnded, bus.EventTypePlaybackFailed}, p.onFinished)
	return p
}

func (p *Pipeline) History() *History {
	return p.history
}

// Speak synthesizes text and plays it with lip-sync, returning when playback
// ends. Playback failure ends the utterance; it is not retried.
func (p *Pipeline) Speak(ctx context.Context, text string) (*Utterance, error) {
	u := &Utterance{ID: uuid.NewString(), Text: text, Started: time.Now()}
	err := p.speak(ctx, u)

	u.Finished = time.Now()
	switch {
	case err == nil:
		u.Outcome = OutcomeCompleted
		metrics.Utterances.WithLabelValues(metrics.OutcomeCompleted).Inc()
	case errors.Is(err, audio.ErrInterrupted):
		u.Outcome = OutcomeInterrupted
		metrics.Utterances.WithLabelValues(metrics.OutcomeInterrupted).Inc()
	case errors.Is(err, ErrCanceled):
		u.Outcome = OutcomeCanceled
		metrics.Utterances.WithLabelValues(metrics.OutcomeInterrupted).Inc()
		p.publish(bus.EventTypeUtteranceCanceled, u.ID, nil)
	default:
		u.Outcome = OutcomeFailed
		u.Error = err.Error()
		metrics.Utterances.WithLabelValues(metrics.OutcomeFailed).Inc()
		p.publish(bus.EventTypeUtteranceFailed, u.ID, map[string]any{bus.KeyError: err.Error()})
	}
	p.history.Add(*u)
	if p.Current() == "" {
		p.setMode(avatar3d.ModeIdle)
	}
	return u, err
}

func (p *Pipeline) speak(ctx context.Context, u *Utterance) error {
	if strings.TrimSpace(u.Text) == "" {
		return tts.ErrEmptyText
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	defer close(done)

	p.mu.Lock()
	prevCancel, prevDone := p.cancel, p.done
	p.current, p.cancel, p.done = u.ID, cancel, done
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.current == u.ID {
			p.current, p.cancel, p.done = "", nil, nil
		}
		p.mu.Unlock()
	}()

	if prevCancel != nil {
		prevCancel()
		select {
		case <-prevDone:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		}
	}

	p.publish(bus.EventTypeUtteranceRequested, u.ID, map[string]any{bus.KeyText: u.Text})
	p.setMode(avatar3d.ModeThinking)

	res, err := p.synth.Synthesize(ctx, u.Text)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		return fmt.Errorf("synthesize: %w", err)
	}
	u.Provider, u.WavPath, u.Duration = res.Provider, res.WavPath, res.Duration
	metrics.SynthesisLatency.WithLabelValues(res.Provider).Observe(res.ProcessingTime.Seconds())
	p.publish(bus.EventTypeUtteranceSynthesized, u.ID, map[string]any{
		bus.KeyPath:     res.WavPath,
		bus.KeyDuration: res.Duration,
	})

	track, source := p.cues(ctx, u.Text, res)
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}
	u.Cues, u.CueSource = track.Len(), source
	p.publish(bus.EventTypeUtteranceCuesReady, u.ID, map[string]any{bus.KeyCues: track.Len()})

	p.liveMu.Lock()
	p.tracks[u.ID] = track
	p.liveMu.Unlock()
	defer func() {
		p.liveMu.Lock()
		delete(p.tracks, u.ID)
		p.liveMu.Unlock()
	}()

	return p.player.Play(ctx, u.ID, res.WavPath)
}

// cues never fails: a broken oracle leaves the avatar idling through the
// utterance rather than dropping the audio.
func (p *Pipeline) cues(ctx context.Context, text string, res *tts.Result) (*avatar3d.CueTrack, string) {
	if p.opts.Oracle == nil {
		return lipsync.EstimateCues(text, res.Duration), "text"
	}

	track, err := p.opts.Oracle.Cues(ctx, res.WavPath)
	if err == nil {
		return track, p.opts.Oracle.Name()
	}
	if errors.Is(err, avatar3d.ErrMalformedCues) {
		metrics.MalformedCues.Inc()
	}
	if ctx.Err() != nil {
		return avatar3d.EmptyTrack(), "none"
	}

	if p.opts.EstimateOnFailure {
		p.logger.Warn().Err(err).Str("oracle", p.opts.Oracle.Name()).Msg("Lip-sync failed, estimating cues from text")
		return lipsync.EstimateCues(text, res.Duration), "text"
	}
	p.logger.Warn().Err(err).Str("oracle", p.opts.Oracle.Name()).Msg("Lip-sync failed, speaking without mouth cues")
	return avatar3d.EmptyTrack(), "none"
}

func (p *Pipeline) onStarted(e bus.Event) {
	id := e.String(bus.KeyUtteranceID)
	epoch, ok := e.Data[bus.KeyEpoch].(time.Time)
	if !ok {
		epoch = time.Now()
	}

	p.liveMu.Lock()
	track, known := p.tracks[id]
	if known {
		p.live = id
	}
	p.liveMu.Unlock()
	if !known {
		return
	}

	p.session.Start(track, epoch)
	p.setMode(avatar3d.ModeSpeaking)
	metrics.Utterances.WithLabelValues(metrics.OutcomeStarted).Inc()
	p.logger.Info().Str("utterance", id).Int("cues", track.Len()).Msg("Speaking")
}

func (p *Pipeline) onFinished(e bus.Event) {
	id := e.String(bus.KeyUtteranceID)

	p.liveMu.Lock()
	live := p.live == id
	if live {
		p.live = ""
	}
	p.liveMu.Unlock()
	if !live {
		return
	}

	if e.Type == bus.EventTypePlaybackFailed {
		p.session.Fail(errors.New(e.String(bus.KeyError)))
		return
	}
	p.session.Stop()
}

// Cancel interrupts the utterance in progress, if any.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Current returns the ID of the utterance in progress, or "".
func (p *Pipeline) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Pipeline) setMode(mode avatar3d.Mode) {
	p.liveMu.Lock()
	preset, changed := p.mapper.Map(mode)
	p.liveMu.Unlock()
	if changed {
		p.session.SetExpression(preset, p.opts.ExpressionBlend)
	}
}

func (p *Pipeline) publish(t bus.EventType, id string, data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	data[bus.KeyUtteranceID] = id
	p.eventBus.Publish(bus.Event{Type: t, Data: data})
}
