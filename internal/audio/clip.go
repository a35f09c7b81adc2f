// Package audio decodes synthesized speech and plays it, announcing playback
// start and end on the event bus.
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Common errors
var (
	ErrInvalidFormat  = errors.New("invalid audio format")
	ErrFormatMismatch = errors.New("audio format differs from the open output")
	ErrPlaybackFailed = errors.New("playback failed")
	ErrInterrupted    = errors.New("playback interrupted")
)

// Clip is a decoded PCM file. Samples are interleaved and normalized to -1..1.
type Clip struct {
	Path       string
	SampleRate int
	Channels   int
	Samples    []float32
}

// Frames returns the number of sample frames.
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.Frames()) / float64(c.SampleRate) * float64(time.Second))
}

// Decode reads a PCM WAV file.
func Decode(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a WAV file", ErrInvalidFormat, path)
	}
	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: %s uses WAV format %d, want PCM", ErrInvalidFormat, path, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %s has no format chunk", ErrInvalidFormat, path)
	}

	return &Clip{
		Path:       path,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Samples:    normalize(buf, int(d.BitDepth)),
	}, nil
}

func normalize(buf *audio.IntBuffer, bitDepth int) []float32 {
	out := make([]float32, len(buf.Data))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		for i, v := range buf.Data {
			out[i] = float32(v-128) / 128
		}
		return out
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(math.Pow(2, float64(bitDepth-1)))
	for i, v := range buf.Data {
		out[i] = float32(v) / scale
	}
	return out
}

// Duration returns the playing time of a WAV file without decoding samples.
func Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return 0, fmt.Errorf("%w: %s is not a WAV file", ErrInvalidFormat, path)
	}
	return d.Duration()
}

// Envelope returns the RMS energy of each window of the clip across all
// channels.
func Envelope(c *Clip, window time.Duration) []float64 {
	frames := int(float64(c.SampleRate) * window.Seconds())
	if frames <= 0 || c.Channels <= 0 {
		return nil
	}
	step := frames * c.Channels

	out := make([]float64, 0, len(c.Samples)/step+1)
	for start := 0; start < len(c.Samples); start += step {
		end := min(start+step, len(c.Samples))
		out = append(out, rms(c.Samples[start:end]))
	}
	return out
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Write encodes the clip as 16-bit PCM WAV.
func Write(path string, c *Clip) error {
	if c.Channels <= 0 || c.SampleRate <= 0 {
		return fmt.Errorf("%w: %d Hz x%d", ErrInvalidFormat, c.SampleRate, c.Channels)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]int, len(c.Samples))
	for i, s := range c.Samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * 32767))
	}

	enc := wav.NewEncoder(f, c.SampleRate, 16, c.Channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: c.Channels, SampleRate: c.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
