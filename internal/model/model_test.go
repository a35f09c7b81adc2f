package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/facerig/internal/avatar3d"
)

// A head mesh and a teeth mesh that share jawOpen, plus an unnamed target.
const avatarGLTF = `{
  "asset": {"version": "2.0"},
  "meshes": [
    {
      "name": "Head",
      "extras": {"targetNames": ["jawOpen", "eyeBlinkLeft", "eyeBlinkRight", "mouthSmileLeft"]},
      "weights": [0.25, 0, 0, 0],
      "primitives": [{"attributes": {"POSITION": 0}, "targets": [{"POSITION": 0}, {"POSITION": 0}, {"POSITION": 0}, {"POSITION": 0}]}]
    },
    {
      "name": "Teeth",
      "extras": {"targetNames": ["JawOpen"]},
      "primitives": [{"attributes": {"POSITION": 0}, "targets": [{"POSITION": 0}, {"POSITION": 0}]}]
    }
  ],
  "nodes": [
    {"name": "Hips"},
    {"name": "Neck", "rotation": [0, 0.7071068, 0, 0.7071068]},
    {"name": "Head"}
  ]
}`

func writeModel(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "avatar.gltf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	m, err := Load(writeModel(t, t.TempDir(), avatarGLTF))
	require.NoError(t, err)

	require.Len(t, m.Meshes(), 2)
	assert.Equal(t, []string{"jawOpen", "eyeBlinkLeft", "eyeBlinkRight", "mouthSmileLeft"}, m.Meshes()[0].Targets)
	assert.Equal(t, []string{"JawOpen", "target_1"}, m.Meshes()[1].Targets)
	assert.Equal(t, []float32{0.25, 0, 0, 0}, m.Meshes()[0].Weights())

	assert.Equal(t, []string{"jawOpen", "eyeBlinkLeft", "eyeBlinkRight", "mouthSmileLeft", "JawOpen", "target_1"}, m.MorphTargets())

	_, err = Load(filepath.Join(t.TempDir(), "missing.glb"))
	assert.Error(t, err)
}

func TestModel_FindMorphTarget(t *testing.T) {
	m, err := Load(writeModel(t, t.TempDir(), avatarGLTF))
	require.NoError(t, err)

	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"jawOpen", 0, true},
		{"JawOpen", 4, true},
		{"EYEBLINKLEFT", 1, true},
		{"mouthFunnel", 0, false},
	}
	for _, tt := range tests {
		idx, ok := m.FindMorphTarget(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		if tt.ok {
			assert.Equal(t, tt.want, idx, tt.name)
		}
	}
}

func TestModel_SetMorphWeight(t *testing.T) {
	m, err := Load(writeModel(t, t.TempDir(), avatarGLTF))
	require.NoError(t, err)

	m.SetMorphWeight(0, 0.8)
	m.SetMorphWeight(1, 0.5)
	m.SetMorphWeight(99, 1)
	m.SetMorphWeight(-1, 1)

	snap := m.Snapshot()
	assert.Equal(t, float32(0.8), snap["jawOpen"])
	assert.Equal(t, float32(0.5), snap["eyeBlinkLeft"])
	assert.Equal(t, float32(0), snap["JawOpen"])
	assert.Equal(t, []float32{0.8, 0.5, 0, 0, 0, 0}, m.Dense())
}

func TestModel_FanOut(t *testing.T) {
	const shared = `{
  "asset": {"version": "2.0"},
  "meshes": [
    {"name": "Face", "extras": {"targetNames": ["mouthOpen"]}, "primitives": [{"attributes": {"POSITION": 0}, "targets": [{"POSITION": 0}]}]},
    {"name": "Beard", "extras": {"targetNames": ["mouthOpen"]}, "primitives": [{"attributes": {"POSITION": 0}, "targets": [{"POSITION": 0}]}]}
  ]
}`
	m, err := Load(writeModel(t, t.TempDir(), shared))
	require.NoError(t, err)
	require.Equal(t, []string{"mouthOpen"}, m.MorphTargets())

	m.SetMorphWeight(0, 0.6)
	assert.Equal(t, []float32{0.6}, m.Meshes()[0].Weights())
	assert.Equal(t, []float32{0.6}, m.Meshes()[1].Weights())
}

func TestModel_Bones(t *testing.T) {
	m, err := Load(writeModel(t, t.TempDir(), avatarGLTF))
	require.NoError(t, err)

	bone, ok := m.FindBone("neck")
	require.True(t, ok)
	assert.Equal(t, "Neck", bone.Name())
	assert.InDelta(t, 0.7071068, bone.BindRotation().W, 1e-6)

	q := mgl32.QuatRotate(0.1, mgl32.Vec3{1, 0, 0})
	bone.SetRotation(q)
	bone.SetOffsetY(0.01)
	rot, dy := m.Bones()[1].Pose()
	assert.Equal(t, q, rot)
	assert.Equal(t, float32(0.01), dy)

	hips, ok := m.FindBone("Hips")
	require.True(t, ok)
	assert.Equal(t, mgl32.QuatIdent(), hips.BindRotation())

	_, ok = m.FindBone("Tail")
	assert.False(t, ok)
}

func TestModel_Inventory(t *testing.T) {
	m, err := Load(writeModel(t, t.TempDir(), avatarGLTF))
	require.NoError(t, err)

	cfg := avatar3d.DefaultConfig().Head
	cfg.Enabled = true
	inv := m.Inventory(cfg)

	assert.Equal(t, []string{"Hips", "Neck", "Head"}, inv.Bones)
	assert.Equal(t, "Neck", inv.HeadBone)
	assert.Contains(t, inv.Bound, ChannelBinding{Channel: "jawOpen", Target: "jawOpen"})
	assert.Contains(t, inv.Bound, ChannelBinding{Channel: "eyeBlinkLeft", Target: "eyeBlinkLeft"})
	assert.Contains(t, inv.Unbound, "mouthFunnel")
	assert.Equal(t, []string{"JawOpen", "target_1"}, inv.Unused)
	assert.True(t, inv.Features.Mouth)
	assert.True(t, inv.Features.Blink)
	assert.True(t, inv.Features.Head)
	assert.False(t, inv.Features.Gaze)
}

func TestModel_DrivenBySession(t *testing.T) {
	m, err := Load(writeModel(t, t.TempDir(), avatarGLTF))
	require.NoError(t, err)

	cfg := avatar3d.DefaultConfig()
	s := avatar3d.NewSession(cfg, avatar3d.WithRand(avatar3d.NewRand(3)), avatar3d.WithTimeSource(avatar3d.NewManualTime(time.Unix(0, 0))))
	s.Reload(m)
	for i := 0; i < 10; i++ {
		s.Tick(1.0 / 60)
	}

	w := s.LastFrame().Weights
	assert.InDelta(t, w.Get(avatar3d.JawOpen), m.Snapshot()["jawOpen"], 1e-6)
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := writeModel(t, dir, avatarGLTF)

	reloads := make(chan *Model, 4)
	w, err := NewWatcher(path, 50*time.Millisecond, zerolog.Nop(), func(m *Model, err error) {
		if err == nil {
			reloads <- m
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))
	for i := 0; i < 3; i++ {
		writeModel(t, dir, avatarGLTF)
	}

	select {
	case m := <-reloads:
		assert.Len(t, m.MorphTargets(), 6)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after model write")
	}

	select {
	case <-reloads:
		t.Fatal("burst of writes should reload once")
	case <-time.After(200 * time.Millisecond):
	}
}
