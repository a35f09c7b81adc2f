package viewer

import (
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/facerig/internal/avatar3d"
)

// BoneInfo is a bone as announced by a renderer. Rotation is x, y, z, w.
type BoneInfo struct {
	Name     string     `json:"name"`
	Rotation [4]float32 `json:"rotation"`
}

// RemoteRig is the union of what the connected renderers expose. The engine
// writes into it like a local model and the server reads it back per client.
type RemoteRig struct {
	mu      sync.RWMutex
	names   []string
	index   map[string]int
	weights []float32
	bones   []*RemoteBone
	posed   *RemoteBone
}

func NewRemoteRig(targets []string, bones []BoneInfo) *RemoteRig {
	r := &RemoteRig{index: make(map[string]int)}
	for _, name := range targets {
		if _, ok := r.index[name]; ok || name == "" {
			continue
		}
		r.index[name] = len(r.names)
		r.names = append(r.names, name)
	}
	r.weights = make([]float32, len(r.names))

	seen := make(map[string]bool)
	for _, b := range bones {
		if seen[b.Name] || b.Name == "" {
			continue
		}
		seen[b.Name] = true
		bind := mgl32.Quat{W: b.Rotation[3], V: mgl32.Vec3{b.Rotation[0], b.Rotation[1], b.Rotation[2]}}
		if bind.Len() == 0 {
			bind = mgl32.QuatIdent()
		}
		r.bones = append(r.bones, &RemoteBone{rig: r, name: b.Name, bind: bind, rotation: bind})
	}
	return r
}

func (r *RemoteRig) FindMorphTarget(name string) (int, bool) {
	if idx, ok := r.index[name]; ok {
		return idx, true
	}
	for i, n := range r.names {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return 0, false
}

func (r *RemoteRig) SetMorphWeight(index int, weight float32) {
	if index < 0 || index >= len(r.weights) {
		return
	}
	r.mu.Lock()
	r.weights[index] = weight
	r.mu.Unlock()
}

func (r *RemoteRig) FindBone(name string) (avatar3d.Bone, bool) {
	for _, b := range r.bones {
		if b.name == name {
			return b, true
		}
	}
	for _, b := range r.bones {
		if strings.EqualFold(b.name, name) {
			return b, true
		}
	}
	return nil, false
}

func (r *RemoteRig) Targets() []string {
	return append([]string(nil), r.names...)
}

// Weight returns the weight of a named target, or 0 if the rig lacks it.
func (r *RemoteRig) Weight(name string) float32 {
	idx, ok := r.index[name]
	if !ok {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.weights[idx]
}

// Gather returns the weights for targets, in that order.
func (r *RemoteRig) Gather(targets []string) []float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]float32, len(targets))
	for i, name := range targets {
		if idx, ok := r.index[name]; ok {
			out[i] = r.weights[idx]
		}
	}
	return out
}

// Inherit copies weights from a previous rig by target name so a
// rebuild does not snap the face to zero.
func (r *RemoteRig) Inherit(prev *RemoteRig) {
	if prev == nil {
		return
	}
	prev.mu.RLock()
	defer prev.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, name := range r.names {
		if idx, ok := prev.index[name]; ok {
			r.weights[i] = prev.weights[idx]
		}
	}
}

// HeadPose reports the bone the engine posed most recently.
type HeadPose struct {
	Bone     string     `json:"bone"`
	Rotation [4]float32 `json:"rotation"`
	OffsetY  float32    `json:"offsetY"`
}

func (r *RemoteRig) Head() *HeadPose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b := r.posed
	if b == nil {
		return nil
	}
	q := b.rotation
	return &HeadPose{
		Bone:     b.name,
		Rotation: [4]float32{q.V[0], q.V[1], q.V[2], q.W},
		OffsetY:  b.offsetY,
	}
}

// RemoteBone records the pose for the renderer to apply.
type RemoteBone struct {
	rig      *RemoteRig
	name     string
	bind     mgl32.Quat
	rotation mgl32.Quat
	offsetY  float32
}

func (b *RemoteBone) Name() string {
	return b.name
}

func (b *RemoteBone) BindRotation() mgl32.Quat {
	return b.bind
}

func (b *RemoteBone) SetRotation(q mgl32.Quat) {
	b.rig.mu.Lock()
	b.rotation = q
	b.rig.posed = b
	b.rig.mu.Unlock()
}

func (b *RemoteBone) SetOffsetY(dy float32) {
	b.rig.mu.Lock()
	b.offsetY = dy
	b.rig.posed = b
	b.rig.mu.Unlock()
}
