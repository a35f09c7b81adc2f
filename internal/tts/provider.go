package tts

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/normanking/facerig/internal/config"
)

// New builds the synthesizer named by cfg.TTS.Provider.
func New(logger zerolog.Logger, cfg *config.Config) (Synthesizer, error) {
	t := cfg.TTS
	switch t.Provider {
	case "script":
		return NewScriptSynthesizer(logger, ScriptConfig{
			Python:     t.Python,
			Script:     t.Script,
			VendorDir:  cfg.Runtime.VendorDir,
			RuntimeDir: cfg.Runtime.Dir,
			Timeout:    t.Timeout,
		}), nil
	case "piper":
		return NewPiperSynthesizer(logger, PiperConfig{
			BinaryPath: t.PiperBinary,
			ModelsDir:  t.PiperModels,
			Voice:      t.PiperVoice,
			RuntimeDir: cfg.Runtime.Dir,
			Timeout:    t.Timeout,
		}), nil
	case "say":
		return NewSaySynthesizer(logger, SayConfig{
			Voice:      t.SayVoice,
			Rate:       t.SayRate,
			RuntimeDir: cfg.Runtime.Dir,
			Timeout:    t.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("%w: tts provider %q", config.ErrInvalidConfig, t.Provider)
	}
}
