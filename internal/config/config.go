// Package config provides configuration management for facerig
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/normanking/facerig/internal/avatar3d"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix namespaces environment overrides, e.g. FACERIG_TTS_PROVIDER.
const EnvPrefix = "FACERIG"

// Config holds all application configuration
type Config struct {
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Animation avatar3d.Config `mapstructure:"animation"`
	TTS       TTSConfig       `mapstructure:"tts"`
	LipSync   LipSyncConfig   `mapstructure:"lipsync"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Model     ModelConfig     `mapstructure:"model"`
	Viewer    ViewerConfig    `mapstructure:"viewer"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// RuntimeConfig locates generated artifacts and drives the frame loop.
type RuntimeConfig struct {
	Dir       string `mapstructure:"dir"`        // audio/ and cues/ are created below it
	VendorDir string `mapstructure:"vendor_dir"` // bundled tools: tts-venv, rhubarb
	FPS       int    `mapstructure:"fps"`
}

// TTSConfig configures text-to-speech
type TTSConfig struct {
	Provider string        `mapstructure:"provider"` // script, piper, say
	Python   string        `mapstructure:"python"`   // empty: vendor venv, then python3
	Script   string        `mapstructure:"script"`
	Timeout  time.Duration `mapstructure:"timeout"`

	PiperBinary string `mapstructure:"piper_binary"`
	PiperModels string `mapstructure:"piper_models"`
	PiperVoice  string `mapstructure:"piper_voice"`

	SayVoice string `mapstructure:"say_voice"`
	SayRate  int    `mapstructure:"say_rate"`
}

// LipSyncConfig configures the external lip-sync oracle
type LipSyncConfig struct {
	Provider       string        `mapstructure:"provider"` // rhubarb, energy, text, none
	Binary         string        `mapstructure:"binary"`   // empty: RHUBARB_BIN, then vendor path
	Recognizer     string        `mapstructure:"recognizer"`
	ExtendedShapes string        `mapstructure:"extended_shapes"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// AudioConfig configures playback
type AudioConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BufferSize time.Duration `mapstructure:"buffer_size"`
	Volume     float64       `mapstructure:"volume"` // 0..1
}

// ModelConfig locates the renderable model
type ModelConfig struct {
	Path     string        `mapstructure:"path"`
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// ViewerConfig configures the remote renderer endpoint
type ViewerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	SendBuffer int    `mapstructure:"send_buffer"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Dir:       "runtime",
			VendorDir: "vendor",
			FPS:       60,
		},
		Animation: avatar3d.DefaultConfig(),
		TTS: TTSConfig{
			Provider:   "script",
			Script:     filepath.Join("services", "tts", "coqui_tts.py"),
			Timeout:    2 * time.Minute,
			PiperVoice: "en_US-lessac-medium",
			SayVoice:   "Samantha",
			SayRate:    175,
		},
		LipSync: LipSyncConfig{
			Provider: "rhubarb",
			Timeout:  time.Minute,
		},
		Audio: AudioConfig{
			Enabled:    true,
			BufferSize: 50 * time.Millisecond,
			Volume:     1.0,
		},
		Model: ModelConfig{
			Watch:    true,
			Debounce: 250 * time.Millisecond,
		},
		Viewer: ViewerConfig{
			Addr:       "127.0.0.1:8765",
			SendBuffer: 8,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    true,
		},
	}
}

// envKeys are the settings that can be overridden from the environment.
var envKeys = []string{
	"runtime.dir", "runtime.vendor_dir", "runtime.fps",
	"tts.provider", "tts.python", "tts.script", "tts.timeout",
	"tts.piper_binary", "tts.piper_models", "tts.piper_voice", "tts.say_voice",
	"lipsync.provider", "lipsync.binary", "lipsync.recognizer", "lipsync.timeout",
	"audio.enabled", "audio.volume",
	"model.path", "model.watch",
	"viewer.enabled", "viewer.addr",
	"logging.level", "logging.dir", "logging.console", "logging.file",
	"animation.mouth.gain", "animation.mouth.exponent",
	"animation.mouth.attack", "animation.mouth.release",
	"animation.blink.enabled", "animation.saccade.enabled",
	"animation.idle.enabled", "animation.micro.enabled", "animation.head.enabled",
}

// Load reads configuration from path, or from ~/.facerig/config.yaml and
// ./config.yaml when path is empty, then applies environment overrides.
// A missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Defaults live in the struct Unmarshal decodes into; only keys present in the
// file or environment overwrite them.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Save writes the configuration to path as YAML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var settings map[string]any
	if err := mapstructure.Decode(cfg, &settings); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	v := viper.New()
	for key, value := range settings {
		v.Set(key, value)
	}
	return v.WriteConfigAs(path)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	m := c.Animation.Mouth
	check(c.Runtime.FPS > 0 && c.Runtime.FPS <= 240, "runtime.fps %d out of range", c.Runtime.FPS)
	check(m.Gain > 0, "animation.mouth.gain must be positive")
	check(m.Exponent > 0, "animation.mouth.exponent must be positive")
	check(m.Attack >= 0 && m.Release >= 0, "animation.mouth attack/release must not be negative")
	check(m.BlendDuration >= 0, "animation.mouth.blend_duration must not be negative")

	for name, r := range map[string][2]float64{
		"blink":   {c.Animation.Blink.IntervalMin, c.Animation.Blink.IntervalMax},
		"saccade": {c.Animation.Saccade.IntervalMin, c.Animation.Saccade.IntervalMax},
		"micro":   {c.Animation.Micro.IntervalMin, c.Animation.Micro.IntervalMax},
	} {
		check(r[0] > 0 && r[0] <= r[1], "animation.%s interval [%v, %v] invalid", name, r[0], r[1])
	}

	switch c.TTS.Provider {
	case "script", "piper", "say":
	default:
		check(false, "unknown tts.provider %q", c.TTS.Provider)
	}
	switch c.LipSync.Provider {
	case "rhubarb", "energy", "text", "none":
	default:
		check(false, "unknown lipsync.provider %q", c.LipSync.Provider)
	}
	switch c.Animation.Head.Rig {
	case "neck", "head", "none", "":
	default:
		check(false, "unknown animation.head.rig %q", c.Animation.Head.Rig)
	}
	check(c.Audio.Volume >= 0 && c.Audio.Volume <= 1, "audio.volume %v out of range", c.Audio.Volume)

	return errors.Join(errs...)
}

// FrameInterval is the tick period implied by Runtime.FPS.
func (c *Config) FrameInterval() time.Duration {
	if c.Runtime.FPS <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.Runtime.FPS)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".facerig"), nil
}
