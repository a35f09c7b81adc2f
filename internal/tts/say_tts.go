package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SayConfig holds macOS TTS configuration
type SayConfig struct {
	Binary     string // default "say"
	Voice      string // Samantha, Daniel, etc.
	Rate       int    // words per minute, 175 is the system default
	RuntimeDir string
	Timeout    time.Duration
}

// SaySynthesizer uses the macOS 'say' command. It needs no models and is the
// fallback on a Mac without Python or Piper.
type SaySynthesizer struct {
	logger zerolog.Logger
	config SayConfig
}

func NewSaySynthesizer(logger zerolog.Logger, config SayConfig) *SaySynthesizer {
	if config.Binary == "" {
		config.Binary = "say"
	}
	return &SaySynthesizer{
		logger: logger.With().Str("provider", "say-tts").Logger(),
		config: config,
	}
}

func (p *SaySynthesizer) Name() string {
	return "say"
}

func (p *SaySynthesizer) Available() error {
	if _, err := exec.LookPath(p.config.Binary); err != nil {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, p.config.Binary)
	}
	return nil
}

func (p *SaySynthesizer) args(text, outPath string) []string {
	args := []string{"-o", outPath, "--file-format=WAVE", "--data-format=LEI16@22050"}
	if p.config.Voice != "" {
		args = append(args, "-v", p.config.Voice)
	}
	if p.config.Rate > 0 && p.config.Rate != 175 {
		args = append(args, "-r", strconv.Itoa(p.config.Rate))
	}
	return append(args, "--", text)
}

func (p *SaySynthesizer) Synthesize(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := p.Available(); err != nil {
		return nil, err
	}

	outPath, err := OutputPath(p.config.RuntimeDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, p.config.Timeout)
	defer cancel()

	started := time.Now()
	p.logger.Debug().
		Str("voice", p.config.Voice).
		Int("textLen", len(text)).
		Msg("Synthesizing with macOS TTS")

	if err := run(exec.CommandContext(ctx, p.config.Binary, p.args(text, outPath)...)); err != nil {
		p.logger.Error().Err(err).Msg("macOS TTS failed")
		if ctx.Err() != nil {
			return nil, fmt.Errorf("say: %w", ctx.Err())
		}
		return nil, fmt.Errorf("say: %w", err)
	}
	return finish(p.Name(), outPath, started)
}
