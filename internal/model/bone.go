package model

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Bone is a glTF node the head motion can pose.
type Bone struct {
	name string
	bind mgl32.Quat

	mu       *sync.RWMutex
	rotation mgl32.Quat
	offsetY  float32
}

func newBone(name string, bind mgl32.Quat, mu *sync.RWMutex) *Bone {
	if bind.Len() == 0 {
		bind = mgl32.QuatIdent()
	}
	return &Bone{name: name, bind: bind, rotation: bind, mu: mu}
}

func (b *Bone) Name() string {
	return b.name
}

func (b *Bone) BindRotation() mgl32.Quat {
	return b.bind
}

func (b *Bone) SetRotation(q mgl32.Quat) {
	b.mu.Lock()
	b.rotation = q
	b.mu.Unlock()
}

func (b *Bone) SetOffsetY(dy float32) {
	b.mu.Lock()
	b.offsetY = dy
	b.mu.Unlock()
}

// Pose returns the current rotation and vertical offset.
func (b *Bone) Pose() (mgl32.Quat, float32) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rotation, b.offsetY
}
