// Package tts turns reply text into a WAV file by driving a local speech
// synthesizer.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/normanking/facerig/internal/audio"
)

// Common errors
var (
	ErrEmptyText           = errors.New("TTS: empty text")
	ErrProviderUnavailable = errors.New("TTS provider unavailable")
	ErrNoOutput            = errors.New("TTS: no audio produced")
)

// Synthesizer is the interface all TTS providers implement
type Synthesizer interface {
	// Name returns the provider identifier (e.g. "piper")
	Name() string

	// Synthesize writes speech for text to a new WAV file
	Synthesize(ctx context.Context, text string) (*Result, error)
}

// Result describes a synthesized utterance
type Result struct {
	WavPath        string        `json:"wav_path"`
	Duration       time.Duration `json:"duration"`
	Provider       string        `json:"provider"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// OutputPath returns a fresh WAV path under <runtimeDir>/audio, creating the
// directory.
func OutputPath(runtimeDir string) (string, error) {
	dir := filepath.Join(runtimeDir, "audio")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	return filepath.Join(dir, fmt.Sprintf("out-%d.wav", time.Now().UnixMilli())), nil
}

// run executes cmd, folding stderr into the error on failure.
func run(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", filepath.Base(cmd.Path), err, msg)
		}
		return fmt.Errorf("%s: %w", filepath.Base(cmd.Path), err)
	}
	return nil
}

// finish checks the synthesizer left a playable file behind.
func finish(provider, outPath string, started time.Time) (*Result, error) {
	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOutput, outPath)
	}
	d, err := audio.Duration(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoOutput, err)
	}
	return &Result{
		WavPath:        outPath,
		Duration:       d,
		Provider:       provider,
		ProcessingTime: time.Since(started),
	}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
