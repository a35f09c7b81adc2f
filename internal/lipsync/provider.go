package lipsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/normanking/facerig/internal/avatar3d"
	"github.com/normanking/facerig/internal/config"
)

// Chain asks each oracle in turn and returns the first track produced.
type Chain struct {
	oracles []Oracle
	logger  zerolog.Logger
}

func NewChain(logger zerolog.Logger, oracles ...Oracle) *Chain {
	return &Chain{oracles: oracles, logger: logger.With().Str("component", "lipsync").Logger()}
}

func (c *Chain) Name() string {
	name := ""
	for i, o := range c.oracles {
		if i > 0 {
			name += "+"
		}
		name += o.Name()
	}
	return name
}

func (c *Chain) Cues(ctx context.Context, wavPath string) (*avatar3d.CueTrack, error) {
	var errs []error
	for _, o := range c.oracles {
		track, err := o.Cues(ctx, wavPath)
		if err == nil {
			return track, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn().Err(err).Str("oracle", o.Name()).Msg("Lip-sync oracle failed, trying next")
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrOracleUnavailable
	}
	return nil, errors.Join(errs...)
}

// New builds the oracle named by cfg. It returns nil for the "text" provider:
// the caller estimates cues from the utterance text instead.
func New(logger zerolog.Logger, cfg *config.Config) (Oracle, error) {
	switch cfg.LipSync.Provider {
	case "rhubarb":
		rb := NewRhubarb(logger, RhubarbConfig{
			Binary:         ResolveRhubarbBinary(cfg.LipSync.Binary, cfg.Runtime.VendorDir),
			OutputDir:      cfg.Runtime.Dir,
			Recognizer:     cfg.LipSync.Recognizer,
			ExtendedShapes: cfg.LipSync.ExtendedShapes,
			Timeout:        cfg.LipSync.Timeout,
		})
		if _, err := rb.binary(); err != nil {
			logger.Warn().Err(err).Msg("Rhubarb not found, using energy lip-sync")
			return NewEnergyOracle(), nil
		}
		return NewChain(logger, rb, NewEnergyOracle()), nil
	case "energy":
		return NewEnergyOracle(), nil
	case "text":
		return nil, nil
	case "none":
		return NopOracle{}, nil
	default:
		return nil, fmt.Errorf("%w: lipsync provider %q", config.ErrInvalidConfig, cfg.LipSync.Provider)
	}
}
