// Package model loads glTF/GLB avatars headlessly: it discovers morph targets
// and bones and stores the weights the animation engine writes, so a renderer
// (local or remote) can read them back.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"github.com/normanking/facerig/internal/avatar3d"
)

var ErrNoMorphTargets = errors.New("model has no morph targets")

// Mesh is one glTF mesh and its morph targets.
type Mesh struct {
	Name    string
	Targets []string
	weights []float32
}

// Weights returns a copy of the mesh's current target weights.
func (m *Mesh) Weights() []float32 {
	return append([]float32(nil), m.weights...)
}

type slot struct {
	mesh   int
	target int
}

// Model is a loaded avatar. It implements avatar3d.BoneRig: a morph index
// names a target across all meshes, and writing it updates every mesh that
// carries that name.
type Model struct {
	Path string

	mu     sync.RWMutex
	meshes []*Mesh
	names  []string
	index  map[string]int
	fanout [][]slot
	bones  []*Bone
}

// Load opens a .gltf or .glb file.
func Load(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	m := FromDocument(doc)
	m.Path = path
	return m, nil
}

// FromDocument indexes an already decoded document.
func FromDocument(doc *gltf.Document) *Model {
	m := &Model{index: make(map[string]int)}

	for mi, gm := range doc.Meshes {
		mesh := &Mesh{Name: gm.Name}
		if mesh.Name == "" {
			mesh.Name = fmt.Sprintf("mesh_%d", mi)
		}

		count := 0
		for _, prim := range gm.Primitives {
			count = max(count, len(prim.Targets))
		}
		names := targetNames(gm.Extras)
		for i := 0; i < count; i++ {
			name := fmt.Sprintf("target_%d", i)
			if i < len(names) && names[i] != "" {
				name = names[i]
			}
			mesh.Targets = append(mesh.Targets, name)
		}

		mesh.weights = make([]float32, count)
		for i, w := range gm.Weights {
			if i < count {
				mesh.weights[i] = float32(w)
			}
		}

		for ti, name := range mesh.Targets {
			idx, ok := m.index[name]
			if !ok {
				idx = len(m.names)
				m.index[name] = idx
				m.names = append(m.names, name)
				m.fanout = append(m.fanout, nil)
			}
			m.fanout[idx] = append(m.fanout[idx], slot{mesh: len(m.meshes), target: ti})
		}
		m.meshes = append(m.meshes, mesh)
	}

	for ni, node := range doc.Nodes {
		name := node.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", ni)
		}
		r := node.Rotation
		m.bones = append(m.bones, newBone(name, mgl32.Quat{
			W: float32(r[3]),
			V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])},
		}, &m.mu))
	}
	return m
}

// targetNames reads the de facto standard extras.targetNames array.
func targetNames(extras any) []string {
	fields, ok := extras.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := fields["targetNames"].([]any)
	if !ok {
		return nil
	}
	names := make([]string, len(raw))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			names[i] = s
		}
	}
	return names
}

// FindMorphTarget matches exactly first, then ignoring case.
func (m *Model) FindMorphTarget(name string) (int, bool) {
	if idx, ok := m.index[name]; ok {
		return idx, true
	}
	for i, n := range m.names {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return 0, false
}

func (m *Model) SetMorphWeight(index int, weight float32) {
	if index < 0 || index >= len(m.fanout) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.fanout[index] {
		m.meshes[s.mesh].weights[s.target] = weight
	}
}

func (m *Model) FindBone(name string) (avatar3d.Bone, bool) {
	for _, b := range m.bones {
		if b.name == name {
			return b, true
		}
	}
	for _, b := range m.bones {
		if strings.EqualFold(b.name, name) {
			return b, true
		}
	}
	return nil, false
}

// MorphTargets lists the unique target names in rig index order.
func (m *Model) MorphTargets() []string {
	return append([]string(nil), m.names...)
}

func (m *Model) Meshes() []*Mesh {
	return m.meshes
}

// Bones returns the nodes in document order.
func (m *Model) Bones() []*Bone {
	return m.bones
}

// Snapshot returns name -> weight. A name shared by several meshes reports the
// first mesh's weight; they are always written together.
func (m *Model) Snapshot() map[string]float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float32, len(m.names))
	for i, name := range m.names {
		if s := m.fanout[i]; len(s) > 0 {
			out[name] = m.meshes[s[0].mesh].weights[s[0].target]
		}
	}
	return out
}

// Dense returns the weights in MorphTargets order.
func (m *Model) Dense() []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]float32, len(m.names))
	for i := range m.names {
		if s := m.fanout[i]; len(s) > 0 {
			out[i] = m.meshes[s[0].mesh].weights[s[0].target]
		}
	}
	return out
}

// MeshInfo is one line of an inventory.
type MeshInfo struct {
	Name    string   `json:"name"`
	Targets []string `json:"targets"`
}

// ChannelBinding reports which morph target an engine channel drives.
type ChannelBinding struct {
	Channel string `json:"channel"`
	Target  string `json:"target,omitempty"`
}

// Inventory describes what a model exposes and how the engine binds to it.
type Inventory struct {
	Path     string            `json:"path"`
	Meshes   []MeshInfo        `json:"meshes"`
	Bones    []string          `json:"bones"`
	Bound    []ChannelBinding  `json:"bound"`
	Unbound  []string          `json:"unbound"`
	Unused   []string          `json:"unused"`
	HeadBone string            `json:"head_bone,omitempty"`
	Features avatar3d.Features `json:"features"`
}

func (m *Model) Inventory(head avatar3d.HeadConfig) Inventory {
	inv := Inventory{Path: m.Path}
	for _, mesh := range m.meshes {
		inv.Meshes = append(inv.Meshes, MeshInfo{Name: mesh.Name, Targets: append([]string(nil), mesh.Targets...)})
	}
	for _, b := range m.bones {
		inv.Bones = append(inv.Bones, b.name)
	}

	binding := avatar3d.Bind(m, head)
	used := make(map[int]bool)
	for c := avatar3d.Channel(0); c < avatar3d.ChannelCount; c++ {
		if binding.Has(c) {
			idx := binding.Index(c)
			used[idx] = true
			inv.Bound = append(inv.Bound, ChannelBinding{Channel: c.String(), Target: m.names[idx]})
		} else {
			inv.Unbound = append(inv.Unbound, c.String())
		}
	}
	for i, name := range m.names {
		if !used[i] {
			inv.Unused = append(inv.Unused, name)
		}
	}
	sort.Strings(inv.Unused)

	if b := binding.HeadBone(); b != nil {
		inv.HeadBone = b.Name()
	}
	inv.Features = binding.Features()
	return inv
}
