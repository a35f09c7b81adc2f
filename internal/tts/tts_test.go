package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/facerig/internal/audio"
	"github.com/normanking/facerig/internal/config"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script synthesizer")
	}
}

// fixture writes a half-second silent WAV the fake synthesizers copy.
func fixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fixture.wav")
	require.NoError(t, audio.Write(path, &audio.Clip{SampleRate: 22050, Channels: 1, Samples: make([]float32, 11025)}))
	return path
}

func script(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestScriptSynthesizer(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	wav := fixture(t, dir)
	py := filepath.Join(dir, "coqui_tts.py")
	require.NoError(t, os.WriteFile(py, []byte("# model lives here\n"), 0644))

	tests := []struct {
		name    string
		python  string
		script  string
		text    string
		timeout time.Duration
		wantErr error
		errText string
	}{
		{
			name:   "success",
			python: fmt.Sprintf("echo \"$2\" > %s/said.txt\ncp %s \"$3\"\n", dir, wav),
			text:   "  Hello there.  ",
		},
		{
			name:    "empty text",
			python:  "exit 0\n",
			text:    " \n ",
			wantErr: ErrEmptyText,
		},
		{
			name:    "missing script",
			python:  "exit 0\n",
			script:  filepath.Join(dir, "nope.py"),
			text:    "hi",
			wantErr: ErrProviderUnavailable,
		},
		{
			name:    "no output",
			python:  "exit 0\n",
			text:    "hi",
			wantErr: ErrNoOutput,
		},
		{
			name:    "failure carries stderr",
			python:  "echo 'CUDA out of memory' >&2\nexit 1\n",
			text:    "hi",
			errText: "CUDA out of memory",
		},
		{
			name:    "timeout",
			python:  "exec sleep 5\n",
			text:    "hi",
			timeout: 100 * time.Millisecond,
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scriptPath := py
			if tt.script != "" {
				scriptPath = tt.script
			}
			runtimeDir := t.TempDir()
			s := NewScriptSynthesizer(zerolog.Nop(), ScriptConfig{
				Python:     script(t, t.TempDir(), "python3", tt.python),
				Script:     scriptPath,
				RuntimeDir: runtimeDir,
				Timeout:    tt.timeout,
			})

			res, err := s.Synthesize(context.Background(), tt.text)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, "script", res.Provider)
				assert.Equal(t, filepath.Join(runtimeDir, "audio"), filepath.Dir(res.WavPath))
				assert.True(t, strings.HasPrefix(filepath.Base(res.WavPath), "out-"))
				assert.InDelta(t, 0.5, res.Duration.Seconds(), 0.01)

				said, err := os.ReadFile(filepath.Join(dir, "said.txt"))
				require.NoError(t, err)
				assert.Equal(t, "Hello there.\n", string(said))
			}
		})
	}
}

func TestScriptSynthesizer_Python(t *testing.T) {
	vendor := t.TempDir()
	s := NewScriptSynthesizer(zerolog.Nop(), ScriptConfig{VendorDir: vendor})
	assert.Equal(t, "python3", s.Python())

	venv := filepath.Join(vendor, "tts-venv", "bin", "python3")
	require.NoError(t, os.MkdirAll(filepath.Dir(venv), 0755))
	require.NoError(t, os.WriteFile(venv, nil, 0755))
	assert.Equal(t, venv, s.Python())

	s = NewScriptSynthesizer(zerolog.Nop(), ScriptConfig{Python: "/usr/bin/python3.12", VendorDir: vendor})
	assert.Equal(t, "/usr/bin/python3.12", s.Python())
}

func TestPiperSynthesizer(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	wav := fixture(t, dir)
	models := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(models, "en_US-lessac-medium.onnx"), []byte("onnx"), 0644))

	bin := script(t, dir, "piper", fmt.Sprintf(`out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -f) out="$2"; shift ;;
  esac
  shift
done
cat > %s/stdin.txt
cp %s "$out"
`, dir, wav))

	p := NewPiperSynthesizer(zerolog.Nop(), PiperConfig{
		BinaryPath: bin,
		ModelsDir:  models,
		Voice:      "en_US-lessac-medium",
		RuntimeDir: t.TempDir(),
	})
	require.NoError(t, p.Available())

	res, err := p.Synthesize(context.Background(), "**Sure.** Run `ls` and see [the docs](http://x).")
	require.NoError(t, err)
	assert.Equal(t, "piper", res.Provider)

	stdin, err := os.ReadFile(filepath.Join(dir, "stdin.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Sure. Run and see the docs.", string(stdin))

	missing := NewPiperSynthesizer(zerolog.Nop(), PiperConfig{BinaryPath: bin, ModelsDir: models, Voice: "nobody"})
	_, err = missing.Synthesize(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"**bold** and *italic*", "bold and italic"},
		{"- one\n- two\n1. three", "one two three"},
		{"before ```go\nfmt.Println()\n``` after", "before after"},
		{`say "hi"`, "say 'hi'"},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeText(tt.in), tt.in)
	}
}

func TestSaySynthesizer(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	wav := fixture(t, dir)
	bin := script(t, dir, "say", fmt.Sprintf("echo \"$@\" > %s/args.txt\ncp %s \"$2\"\n", dir, wav))

	s := NewSaySynthesizer(zerolog.Nop(), SayConfig{Binary: bin, Voice: "Samantha", Rate: 200, RuntimeDir: t.TempDir()})
	res, err := s.Synthesize(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "say", res.Provider)

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "--data-format=LEI16@22050")
	assert.Contains(t, string(args), "-v Samantha -r 200 -- Hello")

	_, err = NewSaySynthesizer(zerolog.Nop(), SayConfig{Binary: filepath.Join(dir, "missing")}).Synthesize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig()
	for provider, want := range map[string]string{"script": "script", "piper": "piper", "say": "say"} {
		cfg.TTS.Provider = provider
		s, err := New(zerolog.Nop(), cfg)
		require.NoError(t, err)
		assert.Equal(t, want, s.Name())
	}

	cfg.TTS.Provider = "cloud"
	_, err := New(zerolog.Nop(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
