package avatar3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// HeadPose is the derived head motion of one frame, relative to the bind pose.
type HeadPose struct {
	Yaw      float32    `json:"yaw"`
	Pitch    float32    `json:"pitch"`
	Roll     float32    `json:"roll"`
	OffsetY  float32    `json:"offsetY"`
	Rotation mgl32.Quat `json:"-"`
}

// HeadMotion sways the head bone with independent slow sinusoids per axis and
// bobs it vertically, slightly more while the mouth is open.
type HeadMotion struct {
	cfg  HeadConfig
	time float64
}

func NewHeadMotion(cfg HeadConfig) *HeadMotion {
	return &HeadMotion{cfg: cfg}
}

func (h *HeadMotion) Update(dt float64, open float32) HeadPose {
	h.time += dt
	t := h.time

	pose := HeadPose{
		Yaw:     float32(h.cfg.Yaw * math.Sin(t*0.6)),
		Pitch:   float32(h.cfg.Pitch * math.Sin(t*0.8+1.3)),
		Roll:    float32(h.cfg.Roll * math.Sin(t*0.5+0.7)),
		OffsetY: float32(h.cfg.Bob * (math.Sin(t*2.2)*0.6 + float64(open)*0.4)),
	}

	qYaw := mgl32.QuatRotate(pose.Yaw, mgl32.Vec3{0, 1, 0})
	qPitch := mgl32.QuatRotate(pose.Pitch, mgl32.Vec3{1, 0, 0})
	qRoll := mgl32.QuatRotate(pose.Roll, mgl32.Vec3{0, 0, 1})
	pose.Rotation = qYaw.Mul(qPitch).Mul(qRoll)
	return pose
}

// Compose applies the pose additively on top of a bind rotation.
func (p HeadPose) Compose(bind mgl32.Quat) mgl32.Quat {
	return bind.Mul(p.Rotation).Normalize()
}
