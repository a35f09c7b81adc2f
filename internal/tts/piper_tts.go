package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PiperConfig holds Piper TTS configuration
type PiperConfig struct {
	BinaryPath string // empty: PIPER_BIN, then common install locations
	ModelsDir  string // directory containing <voice>.onnx models
	Voice      string
	RuntimeDir string
	Timeout    time.Duration
}

// PiperSynthesizer runs the local Piper neural TTS.
// https://github.com/rhasspy/piper
type PiperSynthesizer struct {
	logger     zerolog.Logger
	config     PiperConfig
	binaryPath string
}

func NewPiperSynthesizer(logger zerolog.Logger, config PiperConfig) *PiperSynthesizer {
	homeDir, _ := os.UserHomeDir()
	if config.ModelsDir == "" {
		config.ModelsDir = filepath.Join(homeDir, ".facerig", "piper-voices")
	}

	binaryPath := config.BinaryPath
	if binaryPath == "" {
		binaryPath = os.Getenv("PIPER_BIN")
	}
	if binaryPath == "" {
		candidates := []string{
			filepath.Join(homeDir, ".local/bin/piper"),
			"/usr/local/bin/piper",
			"/opt/homebrew/bin/piper",
		}
		for _, path := range candidates {
			if _, err := os.Stat(path); err == nil {
				binaryPath = path
				break
			}
		}
	}

	return &PiperSynthesizer{
		logger:     logger.With().Str("provider", "piper-tts").Logger(),
		config:     config,
		binaryPath: binaryPath,
	}
}

func (p *PiperSynthesizer) Name() string {
	return "piper"
}

// Available checks the binary and the voice model are present
func (p *PiperSynthesizer) Available() error {
	if p.binaryPath == "" {
		return fmt.Errorf("%w: piper binary not found, set PIPER_BIN", ErrProviderUnavailable)
	}
	if _, err := os.Stat(p.binaryPath); err != nil {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, p.binaryPath)
	}
	if _, err := os.Stat(p.modelPath()); err != nil {
		return fmt.Errorf("%w: model %s", ErrProviderUnavailable, p.modelPath())
	}
	return nil
}

func (p *PiperSynthesizer) modelPath() string {
	return filepath.Join(p.config.ModelsDir, p.config.Voice+".onnx")
}

func (p *PiperSynthesizer) Synthesize(ctx context.Context, text string) (*Result, error) {
	text = sanitizeText(text)
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
		Msg("Synthesizing with Piper TTS")

	// echo "text" | piper --model model.onnx -f output.wav
	cmd := exec.CommandContext(ctx, p.binaryPath, "--model", p.modelPath(), "-f", outPath)
	cmd.Stdin = bytes.NewBufferString(text)
	if err := run(cmd); err != nil {
		p.logger.Error().Err(err).Msg("Piper TTS failed")
		if ctx.Err() != nil {
			return nil, fmt.Errorf("piper: %w", ctx.Err())
		}
		return nil, fmt.Errorf("piper: %w", err)
	}

	res, err := finish(p.Name(), outPath, started)
	if err != nil {
		return nil, err
	}
	p.logger.Info().
		Str("voice", p.config.Voice).
		Dur("duration", res.Duration).
		Dur("processingTime", res.ProcessingTime).
		Msg("Piper TTS synthesis complete")
	return res, nil
}

var (
	reBold       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	reItalic     = regexp.MustCompile(`\*([^*]+)\*`)
	reCodeBlock  = regexp.MustCompile("(?s)```.*?```")
	reInlineCode = regexp.MustCompile("`[^`]+`")
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reBullet     = regexp.MustCompile(`(?m)^\s*[-*•]\s+`)
	reNumbered   = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	reSpace      = regexp.MustCompile(`\s+`)
)

// sanitizeText strips markdown from chat replies so it is not read aloud.
func sanitizeText(text string) string {
	text = reCodeBlock.ReplaceAllString(text, "")
	text = reInlineCode.ReplaceAllString(text, "")
	text = reBold.ReplaceAllString(text, "$1")
	text = reItalic.ReplaceAllString(text, "$1")
	text = reLink.ReplaceAllString(text, "$1")
	text = reBullet.ReplaceAllString(text, "")
	text = reNumbered.ReplaceAllString(text, "")
	text = reSpace.ReplaceAllString(text, " ")

	text = strings.ReplaceAll(text, "\"", "'")
	text = strings.ReplaceAll(text, "\\", "")
	return strings.TrimSpace(text)
}
