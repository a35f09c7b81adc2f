package avatar3d

// Config is the single tuning surface of the engine. Times are in seconds.
type Config struct {
	Mouth         MouthConfig   `mapstructure:"mouth" json:"mouth"`
	Blink         BlinkConfig   `mapstructure:"blink" json:"blink"`
	Saccade       SaccadeConfig `mapstructure:"saccade" json:"saccade"`
	Idle          IdleConfig    `mapstructure:"idle" json:"idle"`
	Micro         MicroConfig   `mapstructure:"micro" json:"micro"`
	Head          HeadConfig    `mapstructure:"head" json:"head"`
	MaxFrameDelta float64       `mapstructure:"max_frame_delta" json:"max_frame_delta"`
}

type MouthConfig struct {
	Gain          float64      `mapstructure:"gain" json:"gain"`
	Exponent      float64      `mapstructure:"exponent" json:"exponent"`
	Attack        float64      `mapstructure:"attack" json:"attack"`
	Release       float64      `mapstructure:"release" json:"release"`
	JawRatio      float64      `mapstructure:"jaw_ratio" json:"jaw_ratio"`
	BlendDuration float64      `mapstructure:"blend_duration" json:"blend_duration"`
	RestSymbol    string       `mapstructure:"rest_symbol" json:"rest_symbol"`
	SmileCoupling bool         `mapstructure:"smile_coupling" json:"smile_coupling"`
	SmileLerp     float64      `mapstructure:"smile_lerp" json:"smile_lerp"`
	Jitter        JitterConfig `mapstructure:"jitter" json:"jitter"`
}

// JitterConfig parameterizes the adaptive jitter filter.
type JitterConfig struct {
	MinCutoff      float64 `mapstructure:"min_cutoff" json:"min_cutoff"`
	Beta           float64 `mapstructure:"beta" json:"beta"`
	DerivateCutoff float64 `mapstructure:"derivate_cutoff" json:"derivate_cutoff"`
}

type BlinkConfig struct {
	Enabled     bool    `mapstructure:"enabled" json:"enabled"`
	IntervalMin float64 `mapstructure:"interval_min" json:"interval_min"`
	IntervalMax float64 `mapstructure:"interval_max" json:"interval_max"`
	Duration    float64 `mapstructure:"duration" json:"duration"`
	Amount      float64 `mapstructure:"amount" json:"amount"`
}

type SaccadeConfig struct {
	Enabled     bool    `mapstructure:"enabled" json:"enabled"`
	IntervalMin float64 `mapstructure:"interval_min" json:"interval_min"`
	IntervalMax float64 `mapstructure:"interval_max" json:"interval_max"`
	Duration    float64 `mapstructure:"duration" json:"duration"`
	YawMax      float64 `mapstructure:"yaw_max" json:"yaw_max"`
	PitchMax    float64 `mapstructure:"pitch_max" json:"pitch_max"`
}

type IdleConfig struct {
	Enabled     bool    `mapstructure:"enabled" json:"enabled"`
	BrowUp      float64 `mapstructure:"brow_up" json:"brow_up"`
	BrowDown    float64 `mapstructure:"brow_down" json:"brow_down"`
	Squint      float64 `mapstructure:"squint" json:"squint"`
	EyeWide     float64 `mapstructure:"eye_wide" json:"eye_wide"`
	Press       float64 `mapstructure:"press" json:"press"`
	Smile       float64 `mapstructure:"smile" json:"smile"`
	Cheek       float64 `mapstructure:"cheek" json:"cheek"`
	Breath      float64 `mapstructure:"breath" json:"breath"`
	BreathHz    float64 `mapstructure:"breath_hz" json:"breath_hz"`
	BrowHz      float64 `mapstructure:"brow_hz" json:"brow_hz"`
	SquintHz    float64 `mapstructure:"squint_hz" json:"squint_hz"`
	PressHz     float64 `mapstructure:"press_hz" json:"press_hz"`
	SmileHz     float64 `mapstructure:"smile_hz" json:"smile_hz"`
	CheekHz     float64 `mapstructure:"cheek_hz" json:"cheek_hz"`
	Suppression float64 `mapstructure:"suppression" json:"suppression"`
	BreathFloor float64 `mapstructure:"breath_floor" json:"breath_floor"`
}

type MicroConfig struct {
	Enabled     bool    `mapstructure:"enabled" json:"enabled"`
	IntervalMin float64 `mapstructure:"interval_min" json:"interval_min"`
	IntervalMax float64 `mapstructure:"interval_max" json:"interval_max"`
	Duration    float64 `mapstructure:"duration" json:"duration"`
	BrowFlash   float64 `mapstructure:"brow_flash" json:"brow_flash"`
	Press       float64 `mapstructure:"press" json:"press"`
	Smirk       float64 `mapstructure:"smirk" json:"smirk"`
	Sneer       float64 `mapstructure:"sneer" json:"sneer"`
}

type HeadConfig struct {
	Enabled bool     `mapstructure:"enabled" json:"enabled"`
	Yaw     float64  `mapstructure:"yaw" json:"yaw"`
	Pitch   float64  `mapstructure:"pitch" json:"pitch"`
	Roll    float64  `mapstructure:"roll" json:"roll"`
	Bob     float64  `mapstructure:"bob" json:"bob"`
	Rig     string   `mapstructure:"rig" json:"rig"` // neck, head or none
	Bones   []string `mapstructure:"bones" json:"bones"`
}

var (
	headBoneNames = []string{"Head", "head", "Wolf3D_Head", "CC_Base_Head", "mixamorigHead", "mixamorig:Head"}
	neckBoneNames = []string{"Neck", "neck", "Wolf3D_Neck", "CC_Base_Neck", "mixamorigNeck", "mixamorig:Neck"}
)

func DefaultConfig() Config {
	return Config{
		Mouth: MouthConfig{
			Gain:          1.35,
			Exponent:      0.9,
			Attack:        0.16,
			Release:       0.22,
			JawRatio:      0.65,
			BlendDuration: 0.2,
			RestSymbol:    string(VisemeX),
			SmileCoupling: true,
			SmileLerp:     0.25,
			Jitter: JitterConfig{
				MinCutoff:      3.0,
				Beta:           1.5,
				DerivateCutoff: 1.0,
			},
		},
		Blink: BlinkConfig{
			Enabled:     true,
			IntervalMin: 3.5,
			IntervalMax: 7.5,
			Duration:    0.18,
			Amount:      1.0,
		},
		Saccade: SaccadeConfig{
			Enabled:     true,
			IntervalMin: 0.8,
			IntervalMax: 2.2,
			Duration:    0.22,
			YawMax:      0.18,
			PitchMax:    0.10,
		},
		Idle: IdleConfig{
			Enabled:     true,
			BrowUp:      0.05,
			BrowDown:    0.03,
			Squint:      0.04,
			EyeWide:     0.03,
			Press:       0.02,
			Smile:       0.02,
			Cheek:       0.03,
			Breath:      0.08,
			BreathHz:    0.44,
			BrowHz:      0.12,
			SquintHz:    0.18,
			PressHz:     0.10,
			SmileHz:     0.08,
			CheekHz:     0.14,
			Suppression: 1.2,
			BreathFloor: 0.4,
		},
		Micro: MicroConfig{
			Enabled:     true,
			IntervalMin: 4.0,
			IntervalMax: 9.0,
			Duration:    0.42,
			BrowFlash:   0.45,
			Press:       0.25,
			Smirk:       0.35,
			Sneer:       0.35,
		},
		Head: HeadConfig{
			Enabled: true,
			Yaw:     0.01,
			Pitch:   0.001,
			Roll:    0.001,
			Bob:     0.001,
			Rig:     "neck",
		},
		MaxFrameDelta: DefaultMaxFrameDelta,
	}
}
