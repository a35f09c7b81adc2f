package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoOutput plays through the system sound device. oto allows one context
// per process, so the first clip fixes the sample rate and channel count.
type OtoOutput struct {
	BufferSize time.Duration
	Volume     float64

	mu       sync.Mutex
	ctx      *oto.Context
	rate     int
	channels int
	poll     time.Duration
}

func NewOtoOutput(bufferSize time.Duration, volume float64) *OtoOutput {
	return &OtoOutput{BufferSize: bufferSize, Volume: volume, poll: 10 * time.Millisecond}
}

func (o *OtoOutput) context(clip *Clip) (*oto.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx != nil {
		if clip.SampleRate != o.rate || clip.Channels != o.channels {
			return nil, fmt.Errorf("%w: clip %d Hz x%d, output %d Hz x%d",
				ErrFormatMismatch, clip.SampleRate, clip.Channels, o.rate, o.channels)
		}
		return o.ctx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   clip.SampleRate,
		ChannelCount: clip.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   o.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open sound device: %w", err)
	}
	<-ready

	o.ctx, o.rate, o.channels = ctx, clip.SampleRate, clip.Channels
	return ctx, nil
}

func (o *OtoOutput) Play(ctx context.Context, clip *Clip, started func(time.Time)) error {
	octx, err := o.context(clip)
	if err != nil {
		return err
	}

	player := octx.NewPlayer(bytes.NewReader(float32LE(clip.Samples)))
	defer player.Close()
	player.SetVolume(o.Volume)

	player.Play()
	started(time.Now())

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func float32LE(samples []float32) []byte {
	out := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(s))
	}
	return out
}
