package avatar3d

import "github.com/go-gl/mathgl/mgl32"

// Rig is the renderable model as the engine sees it: a set of named morph
// targets addressed by index.
type Rig interface {
	FindMorphTarget(name string) (int, bool)
	SetMorphWeight(index int, weight float32)
}

// Bone is a transform node the head motion can rotate.
type Bone interface {
	Name() string
	BindRotation() mgl32.Quat
	SetRotation(q mgl32.Quat)
	SetOffsetY(dy float32)
}

// BoneRig is implemented by rigs that expose a skeleton.
type BoneRig interface {
	Rig
	FindBone(name string) (Bone, bool)
}

// Features records which generators have something to drive on a rig.
type Features struct {
	Mouth   bool `json:"mouth"`
	Blink   bool `json:"blink"`
	Gaze    bool `json:"gaze"`
	Idle    bool `json:"idle"`
	Gesture bool `json:"gesture"`
	Head    bool `json:"head"`
}

// combined channels shadow their per-side variants when a rig has both.
var combinedChannels = map[Channel][]Channel{
	EyesClosed: {EyeBlinkLeft, EyeBlinkRight},
	MouthPress: {MouthPressLeft, MouthPressRight},
}

var idleChannels = []Channel{
	BrowInnerUp, BrowOuterUpLeft, BrowOuterUpRight, BrowDownLeft, BrowDownRight,
	EyeSquintLeft, EyeSquintRight, EyeWideLeft, EyeWideRight,
	CheekSquintLeft, CheekSquintRight,
	MouthPress, MouthPressLeft, MouthPressRight, MouthSmileLeft, MouthSmileRight,
	MouthStretchLeft, MouthStretchRight, MouthRollLower, MouthRollUpper,
	MouthShrugLower, MouthShrugUpper, NoseSneerLeft, NoseSneerRight, JawOpen,
}

// gestureChannels are the channels micro-gestures write.
var gestureChannels = []Channel{
	BrowInnerUp, BrowOuterUpLeft, BrowOuterUpRight,
	MouthPress, MouthPressLeft, MouthPressRight, MouthSmileLeft, MouthSmileRight,
	CheekSquintLeft, CheekSquintRight, NoseSneerLeft, NoseSneerRight,
}

var gazeChannels = []Channel{
	EyeLookInLeft, EyeLookOutLeft, EyeLookUpLeft, EyeLookDownLeft,
	EyeLookInRight, EyeLookOutRight, EyeLookUpRight, EyeLookDownRight,
	EyesLookUp, EyesLookDown,
}

// Binding caches channel discovery for one loaded rig. It is rebuilt on every
// model load and never re-resolved per frame.
type Binding struct {
	rig      Rig
	index    [ChannelCount]int
	head     Bone
	features Features
}

func Bind(rig Rig, head HeadConfig) *Binding {
	b := &Binding{rig: rig}
	for i := range b.index {
		b.index[i] = -1
	}
	if rig == nil {
		return b
	}

	for c := Channel(0); c < ChannelCount; c++ {
		if idx, ok := rig.FindMorphTarget(ChannelNames[c]); ok {
			b.index[c] = idx
		}
	}
	for alias, c := range channelAliases {
		if b.index[c] < 0 {
			if idx, ok := rig.FindMorphTarget(alias); ok {
				b.index[c] = idx
			}
		}
	}
	for combined, split := range combinedChannels {
		if b.index[combined] >= 0 {
			for _, c := range split {
				b.index[c] = -1
			}
		}
	}

	if head.Enabled {
		if br, ok := rig.(BoneRig); ok {
			b.head = findHeadBone(br, head)
		}
	}

	b.features = Features{
		Mouth:   b.HasAny(MouthOpen, JawOpen),
		Blink:   b.HasAny(EyeBlinkLeft, EyeBlinkRight, EyesClosed),
		Gaze:    b.HasAny(gazeChannels...),
		Idle:    b.HasAny(idleChannels...),
		Gesture: b.HasAny(gestureChannels...),
		Head:    b.head != nil,
	}
	return b
}

func findHeadBone(br BoneRig, cfg HeadConfig) Bone {
	var candidates [][]string
	if len(cfg.Bones) > 0 {
		candidates = append(candidates, cfg.Bones)
	}
	switch cfg.Rig {
	case "none":
		return nil
	case "head":
		candidates = append(candidates, headBoneNames, neckBoneNames)
	default:
		candidates = append(candidates, neckBoneNames, headBoneNames)
	}

	for _, names := range candidates {
		for _, name := range names {
			if bone, ok := br.FindBone(name); ok {
				return bone
			}
		}
	}
	return nil
}

func (b *Binding) Has(c Channel) bool {
	return c >= 0 && c < ChannelCount && b.index[c] >= 0
}

func (b *Binding) HasAny(channels ...Channel) bool {
	for _, c := range channels {
		if b.Has(c) {
			return true
		}
	}
	return false
}

func (b *Binding) Index(c Channel) int {
	return b.index[c]
}

func (b *Binding) Features() Features {
	return b.features
}

func (b *Binding) HeadBone() Bone {
	return b.head
}

// Bound lists the channels that resolved to a morph target.
func (b *Binding) Bound() []Channel {
	var out []Channel
	for c := Channel(0); c < ChannelCount; c++ {
		if b.index[c] >= 0 {
			out = append(out, c)
		}
	}
	return out
}

// Flush writes every bound channel. Unbound channels are skipped.
func (b *Binding) Flush(w *Weights) {
	if b.rig == nil {
		return
	}
	for c, idx := range b.index {
		if idx < 0 {
			continue
		}
		b.rig.SetMorphWeight(idx, clamp01(w[c]))
	}
}

// Pose rotates the head bone on top of its bind rotation.
func (b *Binding) Pose(p HeadPose) {
	if b.head == nil {
		return
	}
	b.head.SetRotation(p.Compose(b.head.BindRotation()))
	b.head.SetOffsetY(p.OffsetY)
}
