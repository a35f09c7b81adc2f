package avatar3d

// Mode is the conversational state of the avatar as the speech pipeline sees it.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeThinking Mode = "thinking"
	ModeSpeaking Mode = "speaking"
)

// StateMapper picks the expression bias for each pipeline mode.
type StateMapper struct {
	lastMode Mode
	presets  map[Mode]ExpressionPreset
}

func NewStateMapper() *StateMapper {
	return &StateMapper{
		lastMode: ModeIdle,
		presets: map[Mode]ExpressionPreset{
			ModeIdle:     PresetNeutral,
			ModeThinking: PresetThinking,
			ModeSpeaking: PresetAttentive,
		},
	}
}

// Map returns the preset for mode and whether the mode changed since the last call.
func (m *StateMapper) Map(mode Mode) (ExpressionPreset, bool) {
	p, ok := m.presets[mode]
	if !ok {
		p = PresetNeutral
	}
	changed := mode != m.lastMode
	m.lastMode = mode
	return p, changed
}

func (m *StateMapper) Override(mode Mode, p ExpressionPreset) {
	m.presets[mode] = p
}

func (m *StateMapper) Mode() Mode {
	return m.lastMode
}
