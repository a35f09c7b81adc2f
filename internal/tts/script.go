package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ScriptConfig configures the Python synthesis script
type ScriptConfig struct {
	Python     string // empty: <vendor>/tts-venv/bin/python3, then python3
	Script     string
	VendorDir  string
	RuntimeDir string
	Timeout    time.Duration
}

// ScriptSynthesizer runs `python <script> <text> <out.wav>`. The script owns
// the model (Coqui by default) and must write a WAV to the given path.
type ScriptSynthesizer struct {
	logger zerolog.Logger
	config ScriptConfig
}

func NewScriptSynthesizer(logger zerolog.Logger, config ScriptConfig) *ScriptSynthesizer {
	return &ScriptSynthesizer{
		logger: logger.With().Str("provider", "script-tts").Logger(),
		config: config,
	}
}

func (s *ScriptSynthesizer) Name() string {
	return "script"
}

// Python returns the interpreter that will run the script.
func (s *ScriptSynthesizer) Python() string {
	if s.config.Python != "" {
		return s.config.Python
	}
	venv := filepath.Join(s.config.VendorDir, "tts-venv", "bin", "python3")
	if _, err := os.Stat(venv); err == nil {
		return venv
	}
	return "python3"
}

func (s *ScriptSynthesizer) Synthesize(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if _, err := os.Stat(s.config.Script); err != nil {
		return nil, fmt.Errorf("%w: script %s: %w", ErrProviderUnavailable, s.config.Script, err)
	}

	outPath, err := OutputPath(s.config.RuntimeDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.config.Timeout)
	defer cancel()

	started := time.Now()
	python := s.Python()
	s.logger.Debug().
		Str("python", python).
		Str("script", s.config.Script).
		Int("textLen", len(text)).
		Msg("Synthesizing")

	cmd := exec.CommandContext(ctx, python, s.config.Script, text, outPath)
	if err := run(cmd); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("synthesis: %w", ctx.Err())
		}
		return nil, fmt.Errorf("synthesis: %w", err)
	}

	res, err := finish(s.Name(), outPath, started)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("wav", res.WavPath).
		Dur("duration", res.Duration).
		Dur("processingTime", res.ProcessingTime).
		Msg("Synthesis complete")
	return res, nil
}
