package avatar3d

import "strings"

// Channel indexes a named facial control exposed by a rig as a morph target.
type Channel int

const (
	BrowDownLeft Channel = iota
	BrowDownRight
	BrowInnerUp
	BrowOuterUpLeft
	BrowOuterUpRight
	CheekPuff
	CheekSquintLeft
	CheekSquintRight
	EyeBlinkLeft
	EyeBlinkRight
	EyeLookDownLeft
	EyeLookDownRight
	EyeLookInLeft
	EyeLookInRight
	EyeLookOutLeft
	EyeLookOutRight
	EyeLookUpLeft
	EyeLookUpRight
	EyeSquintLeft
	EyeSquintRight
	EyeWideLeft
	EyeWideRight
	JawForward
	JawLeft
	JawOpen
	JawRight
	MouthClose
	MouthDimpleLeft
	MouthDimpleRight
	MouthFrownLeft
	MouthFrownRight
	MouthFunnel
	MouthLeft
	MouthLowerDownLeft
	MouthLowerDownRight
	MouthPressLeft
	MouthPressRight
	MouthPucker
	MouthRight
	MouthRollLower
	MouthRollUpper
	MouthShrugLower
	MouthShrugUpper
	MouthSmileLeft
	MouthSmileRight
	MouthStretchLeft
	MouthStretchRight
	MouthUpperUpLeft
	MouthUpperUpRight
	NoseSneerLeft
	NoseSneerRight
	TongueOut

	// Aliases exported by non-ARKit rigs (Ready Player Me, VRoid exports).
	MouthOpen
	MouthPress
	EyesClosed
	EyesLookUp
	EyesLookDown

	ChannelCount
)

var ChannelNames = [ChannelCount]string{
	"browDownLeft",
	"browDownRight",
	"browInnerUp",
	"browOuterUpLeft",
	"browOuterUpRight",
	"cheekPuff",
	"cheekSquintLeft",
	"cheekSquintRight",
	"eyeBlinkLeft",
	"eyeBlinkRight",
	"eyeLookDownLeft",
	"eyeLookDownRight",
	"eyeLookInLeft",
	"eyeLookInRight",
	"eyeLookOutLeft",
	"eyeLookOutRight",
	"eyeLookUpLeft",
	"eyeLookUpRight",
	"eyeSquintLeft",
	"eyeSquintRight",
	"eyeWideLeft",
	"eyeWideRight",
	"jawForward",
	"jawLeft",
	"jawOpen",
	"jawRight",
	"mouthClose",
	"mouthDimpleLeft",
	"mouthDimpleRight",
	"mouthFrownLeft",
	"mouthFrownRight",
	"mouthFunnel",
	"mouthLeft",
	"mouthLowerDownLeft",
	"mouthLowerDownRight",
	"mouthPressLeft",
	"mouthPressRight",
	"mouthPucker",
	"mouthRight",
	"mouthRollLower",
	"mouthRollUpper",
	"mouthShrugLower",
	"mouthShrugUpper",
	"mouthSmileLeft",
	"mouthSmileRight",
	"mouthStretchLeft",
	"mouthStretchRight",
	"mouthUpperUpLeft",
	"mouthUpperUpRight",
	"noseSneerLeft",
	"noseSneerRight",
	"tongueOut",
	"mouthOpen",
	"mouthPress",
	"eyesClosed",
	"eyesLookUp",
	"eyesLookDown",
}

func (c Channel) String() string {
	if c < 0 || c >= ChannelCount {
		return "unknown"
	}
	return ChannelNames[c]
}

var channelAliases = map[string]Channel{
	"blink": EyesClosed,
}

// ChannelByName resolves a morph target name to a channel. Matching ignores case.
func ChannelByName(name string) (Channel, bool) {
	for i, n := range ChannelNames {
		if strings.EqualFold(n, name) {
			return Channel(i), true
		}
	}
	if c, ok := channelAliases[strings.ToLower(name)]; ok {
		return c, true
	}
	return -1, false
}

// Weights holds one value per channel. Values written through Set are kept in [0,1].
type Weights [ChannelCount]float32

func (w *Weights) Set(c Channel, value float32) {
	w[c] = clamp01(value)
}

func (w *Weights) Get(c Channel) float32 {
	return w[c]
}

// Raise sets the channel to value if value is larger than what it holds.
func (w *Weights) Raise(c Channel, value float32) {
	if v := clamp01(value); v > w[c] {
		w[c] = v
	}
}

func (w *Weights) Reset() {
	for i := range w {
		w[i] = 0
	}
}

func (w *Weights) Lerp(target *Weights, t float32) Weights {
	if t <= 0 {
		return *w
	}
	if t >= 1 {
		return *target
	}

	var result Weights
	for i := range w {
		result[i] = w[i] + (target[i]-w[i])*t
	}
	return result
}

func (w *Weights) Scale(factor float32) Weights {
	var result Weights
	for i := range w {
		result[i] = clamp01(w[i] * factor)
	}
	return result
}

// Max returns the channel-wise maximum of w and other.
func (w *Weights) Max(other *Weights) Weights {
	var result Weights
	for i := range w {
		result[i] = w[i]
		if other[i] > result[i] {
			result[i] = other[i]
		}
	}
	return result
}

func clamp(v, min, max float32) float32 {
	if v != v {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clamp01(v float32) float32 {
	return clamp(v, 0, 1)
}
