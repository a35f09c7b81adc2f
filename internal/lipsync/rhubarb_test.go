package lipsync

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/facerig/internal/avatar3d"
)

const fakeRhubarbOK = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift ;;
  esac
  shift
done
printf '{"metadata":{"duration":0.6},"mouthCues":[{"start":0.0,"end":0.3,"value":"A"},{"start":0.3,"end":0.6,"value":"X"}]}' > "$out"
`

const fakeRhubarbFail = `#!/bin/sh
echo "could not read WAV" >&2
exit 3
`

const fakeRhubarbGarbage = `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    -o) printf 'not json' > "$2"; shift ;;
  esac
  shift
done
`

const fakeRhubarbSlow = `#!/bin/sh
exec sleep 5
`

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "rhubarb")
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func writeWav(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "out-1700000000000.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))
	return path
}

func TestRhubarb_Cues(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script oracle")
	}
	dir := t.TempDir()

	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		check   func(t *testing.T, track *avatar3d.CueTrack, err error)
	}{
		{
			name:   "success",
			script: fakeRhubarbOK,
			check: func(t *testing.T, track *avatar3d.CueTrack, err error) {
				require.NoError(t, err)
				assert.Equal(t, []avatar3d.Cue{
					{Start: 0, End: 0.3, Symbol: avatar3d.VisemeA},
					{Start: 0.3, End: 0.6, Symbol: avatar3d.VisemeX},
				}, track.Cues())
			},
		},
		{
			name:   "non-zero exit carries stderr",
			script: fakeRhubarbFail,
			check: func(t *testing.T, track *avatar3d.CueTrack, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "could not read WAV")
			},
		},
		{
			name:   "malformed output",
			script: fakeRhubarbGarbage,
			check: func(t *testing.T, track *avatar3d.CueTrack, err error) {
				assert.ErrorIs(t, err, avatar3d.ErrMalformedCues)
			},
		},
		{
			name:    "timeout",
			script:  fakeRhubarbSlow,
			timeout: 100 * time.Millisecond,
			check: func(t *testing.T, track *avatar3d.CueTrack, err error) {
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work := t.TempDir()
			r := NewRhubarb(zerolog.Nop(), RhubarbConfig{
				Binary:    writeScript(t, work, tt.script),
				OutputDir: dir,
				Timeout:   tt.timeout,
			})
			require.True(t, r.Available())

			track, err := r.Cues(context.Background(), writeWav(t, work))
			tt.check(t, track, err)
		})
	}
}

func TestRhubarb_CuePathPairsWithWav(t *testing.T) {
	r := NewRhubarb(zerolog.Nop(), RhubarbConfig{OutputDir: "runtime"})
	assert.Equal(t, filepath.Join("runtime", "cues", "out-42.json"), r.CuePath(filepath.Join("runtime", "audio", "out-42.wav")))
}

func TestRhubarb_Unavailable(t *testing.T) {
	r := NewRhubarb(zerolog.Nop(), RhubarbConfig{Binary: filepath.Join(t.TempDir(), "missing", "rhubarb")})
	assert.False(t, r.Available())

	_, err := r.Cues(context.Background(), writeWav(t, t.TempDir()))
	assert.ErrorIs(t, err, ErrOracleUnavailable)

	_, err = r.Cues(context.Background(), filepath.Join(t.TempDir(), "none.wav"))
	assert.ErrorIs(t, err, ErrWavNotFound)
}

func TestResolveRhubarbBinary(t *testing.T) {
	t.Setenv("RHUBARB_BIN", "")
	assert.Equal(t, "/opt/rb", ResolveRhubarbBinary("/opt/rb", "vendor"))
	assert.Equal(t, filepath.Join("vendor", "rhubarb", "rhubarb", "rhubarb"), ResolveRhubarbBinary("", "vendor"))

	t.Setenv("RHUBARB_BIN", "/usr/local/bin/rhubarb")
	assert.Equal(t, "/usr/local/bin/rhubarb", ResolveRhubarbBinary("", "vendor"))
}

func TestFileOracle(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "speech.wav")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "speech.json"), []byte(`[{"start":0,"end":1,"value":"B"}]`), 0644))

	track, err := (&FileOracle{}).Cues(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, 1, track.Len())

	_, err = (&FileOracle{Path: filepath.Join(dir, "other.json")}).Cues(context.Background(), wav)
	assert.ErrorIs(t, err, os.ErrNotExist)

	track, err = NopOracle{}.Cues(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, 0, track.Len())
}
