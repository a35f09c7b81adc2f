// Package lipsync obtains viseme cue tracks for synthesized audio from an
// external lip-sync oracle.
package lipsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/normanking/facerig/internal/avatar3d"
)

var (
	ErrOracleUnavailable = errors.New("lip-sync oracle unavailable")
	ErrWavNotFound       = errors.New("lip-sync: WAV not found")
	ErrNoOutput          = errors.New("lip-sync: cue JSON not produced")
)

// Oracle turns an audio file into a cue track.
type Oracle interface {
	Name() string
	Cues(ctx context.Context, wavPath string) (*avatar3d.CueTrack, error)
}

// FileOracle reads a pre-computed cue document. With an empty Path it looks
// for a sidecar next to the WAV: speech.wav pairs with speech.json.
type FileOracle struct {
	Path string
}

func (o *FileOracle) Name() string {
	return "file"
}

func (o *FileOracle) Cues(ctx context.Context, wavPath string) (*avatar3d.CueTrack, error) {
	path := o.Path
	if path == "" {
		path = strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ".json"
	}
	return ReadCues(path)
}

// NopOracle always answers with an empty track: the avatar idles through the
// utterance.
type NopOracle struct{}

func (NopOracle) Name() string {
	return "none"
}

func (NopOracle) Cues(ctx context.Context, wavPath string) (*avatar3d.CueTrack, error) {
	return avatar3d.EmptyTrack(), nil
}

// ReadCues loads and normalizes a cue document from disk.
func ReadCues(path string) (*avatar3d.CueTrack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cues: %w", err)
	}
	track, err := avatar3d.ParseCues(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return track, nil
}
