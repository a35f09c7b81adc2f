package lipsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/normanking/facerig/internal/audio"
	"github.com/normanking/facerig/internal/avatar3d"
)

// EnergyOracle derives a coarse cue track from loudness alone. It needs no
// external tools, so it backs up Rhubarb on machines without it.
type EnergyOracle struct {
	Window time.Duration
	// Silence is the fraction of the peak level below which the mouth rests.
	Silence float64
}

func NewEnergyOracle() *EnergyOracle {
	return &EnergyOracle{Window: 40 * time.Millisecond, Silence: 0.08}
}

func (o *EnergyOracle) Name() string {
	return "energy"
}

func (o *EnergyOracle) Cues(ctx context.Context, wavPath string) (*avatar3d.CueTrack, error) {
	clip, err := audio.Decode(wavPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrWavNotFound, wavPath)
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env := audio.Envelope(clip, o.Window)
	var peak float64
	for _, e := range env {
		peak = max(peak, e)
	}
	if peak == 0 {
		return avatar3d.EmptyTrack(), nil
	}

	step := o.Window.Seconds()
	cues := make([]avatar3d.Cue, 0, len(env))
	for i, e := range env {
		shape := o.level(e / peak)
		start := float64(i) * step
		end := min(start+step, clip.Duration().Seconds())
		if n := len(cues); n > 0 && cues[n-1].Symbol == shape {
			cues[n-1].End = end
			continue
		}
		cues = append(cues, avatar3d.Cue{Start: start, End: end, Symbol: shape})
	}
	return avatar3d.NewCueTrack(cues), nil
}

// level picks a shape by openness for a loudness relative to the peak.
func (o *EnergyOracle) level(rel float64) avatar3d.Viseme {
	switch {
	case rel < o.Silence:
		return avatar3d.VisemeX
	case rel < 0.3:
		return avatar3d.VisemeB
	case rel < 0.55:
		return avatar3d.VisemeE
	case rel < 0.8:
		return avatar3d.VisemeC
	default:
		return avatar3d.VisemeD
	}
}
