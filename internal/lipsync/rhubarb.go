package lipsync

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

	"github.com/rs/zerolog"

	"github.com/normanking/facerig/internal/avatar3d"
)

// RhubarbConfig holds Rhubarb Lip Sync configuration
type RhubarbConfig struct {
	Binary         string        // Path to the rhubarb executable
	OutputDir      string        // Cue JSON is written to <OutputDir>/cues
	WorkDir        string        // Working directory for the process
	Recognizer     string        // pocketSphinx or phonetic; empty keeps rhubarb's default
	ExtendedShapes string        // e.g. "GHX"; empty keeps rhubarb's default
	Timeout        time.Duration // 0 means no timeout beyond ctx
}

// ResolveRhubarbBinary picks the executable: explicit config, then the
// RHUBARB_BIN environment variable, then the bundled vendor copy.
func ResolveRhubarbBinary(configured, vendorDir string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv("RHUBARB_BIN"); env != "" {
		return env
	}
	return filepath.Join(vendorDir, "rhubarb", "rhubarb", "rhubarb")
}

// Rhubarb runs the Rhubarb Lip Sync CLI as the oracle.
type Rhubarb struct {
	logger zerolog.Logger
	config RhubarbConfig
}

func NewRhubarb(logger zerolog.Logger, config RhubarbConfig) *Rhubarb {
	return &Rhubarb{
		logger: logger.With().Str("oracle", "rhubarb").Logger(),
		config: config,
	}
}

func (r *Rhubarb) Name() string {
	return "rhubarb"
}

// Available reports whether the executable can be found.
func (r *Rhubarb) Available() bool {
	_, err := r.binary()
	return err == nil
}

func (r *Rhubarb) binary() (string, error) {
	bin := r.config.Binary
	if bin == "" {
		return "", fmt.Errorf("%w: no binary configured", ErrOracleUnavailable)
	}
	if !strings.ContainsRune(bin, os.PathSeparator) {
		path, err := exec.LookPath(bin)
		if err != nil {
			return "", fmt.Errorf("%w: %s not on PATH", ErrOracleUnavailable, bin)
		}
		return path, nil
	}
	if _, err := os.Stat(bin); err != nil {
		return "", fmt.Errorf("%w: binary not found at %s, set RHUBARB_BIN", ErrOracleUnavailable, bin)
	}
	return bin, nil
}

// CuePath is where the cues for wavPath are written: out-<ts>.wav pairs with
// cues/out-<ts>.json.
func (r *Rhubarb) CuePath(wavPath string) string {
	base := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	return filepath.Join(r.config.OutputDir, "cues", base+".json")
}

func (r *Rhubarb) args(wavPath, outPath string) []string {
	args := []string{"-f", "json"}
	if r.config.Recognizer != "" {
		args = append(args, "-r", r.config.Recognizer)
	}
	if r.config.ExtendedShapes != "" {
		args = append(args, "--extendedShapes", r.config.ExtendedShapes)
	}
	return append(args, "-o", outPath, wavPath)
}

// Cues runs rhubarb on wavPath and parses its JSON output.
func (r *Rhubarb) Cues(ctx context.Context, wavPath string) (*avatar3d.CueTrack, error) {
	if wavPath == "" {
		return nil, ErrWavNotFound
	}
	if _, err := os.Stat(wavPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWavNotFound, wavPath)
	}
	bin, err := r.binary()
	if err != nil {
		return nil, err
	}

	outPath := r.CuePath(wavPath)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, fmt.Errorf("create cue directory: %w", err)
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	cmd := exec.CommandContext(ctx, bin, r.args(wavPath, outPath)...)
	cmd.Dir = r.config.WorkDir
	cmd.WaitDelay = 2 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug().Str("wav", wavPath).Str("out", outPath).Msg("Rhubarb start")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("rhubarb: %w", ctxErr)
		}
		r.logger.Error().Err(err).Str("stderr", strings.TrimSpace(stderr.String())).Msg("Rhubarb failed")
		return nil, fmt.Errorf("rhubarb failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	if _, err := os.Stat(outPath); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoOutput
	}

	track, err := ReadCues(outPath)
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Int("cues", track.Len()).
		Float64("duration", track.Duration()).
		Dur("processingTime", time.Since(startTime)).
		Msg("Rhubarb cues ready")

	return track, nil
}
