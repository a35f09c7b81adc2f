package avatar3d

import (
	"math"
	"strings"
)

// Viseme is a mouth-shape symbol from the lip-sync alphabet.
type Viseme string

const (
	VisemeA Viseme = "A"
	VisemeB Viseme = "B"
	VisemeC Viseme = "C"
	VisemeD Viseme = "D"
	VisemeE Viseme = "E"
	VisemeF Viseme = "F"
	VisemeG Viseme = "G"
	VisemeH Viseme = "H"
	VisemeL Viseme = "L"
	VisemeX Viseme = "X"
)

// ParseViseme normalizes an oracle symbol. Rest sentinels map to VisemeX.
func ParseViseme(s string) Viseme {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rest", "sil", "silence", "x":
		return VisemeX
	}
	return Viseme(strings.ToUpper(strings.TrimSpace(s)))
}

// Detail indexes the secondary lip channels a viseme shape carries.
type Detail int

const (
	DetailFunnel Detail = iota
	DetailPucker
	DetailPress
	DetailRollLower
	DetailRollUpper
	DetailStretch
	DetailUpperUp
	DetailLowerDown
	DetailCount
)

// MouthShape is the mapped target for one viseme.
type MouthShape struct {
	Open   float32
	Detail [DetailCount]float32
}

func (s MouthShape) Lerp(to MouthShape, t float32) MouthShape {
	if t <= 0 {
		return s
	}
	if t >= 1 {
		return to
	}
	out := MouthShape{Open: s.Open + (to.Open-s.Open)*t}
	for i := range s.Detail {
		out.Detail[i] = s.Detail[i] + (to.Detail[i]-s.Detail[i])*t
	}
	return out
}

type visemeEntry struct {
	open   float32
	detail map[Detail]float32
}

var visemeTable = map[Viseme]visemeEntry{
	VisemeX: {open: 0.02},
	VisemeA: {open: 1.00, detail: map[Detail]float32{DetailStretch: 0.20, DetailLowerDown: 0.30}},
	VisemeB: {open: 0.25, detail: map[Detail]float32{DetailStretch: 0.30, DetailUpperUp: 0.10}},
	VisemeC: {open: 0.85, detail: map[Detail]float32{DetailLowerDown: 0.35, DetailUpperUp: 0.20}},
	VisemeD: {open: 0.75, detail: map[Detail]float32{DetailFunnel: 0.35, DetailLowerDown: 0.20}},
	VisemeE: {open: 0.55, detail: map[Detail]float32{DetailFunnel: 0.45, DetailPucker: 0.25}},
	VisemeF: {open: 0.45, detail: map[Detail]float32{DetailPucker: 0.60, DetailFunnel: 0.30}},
	VisemeG: {open: 1.00, detail: map[Detail]float32{DetailRollLower: 0.45, DetailUpperUp: 0.25}},
	VisemeH: {open: 0.35, detail: map[Detail]float32{DetailStretch: 0.15, DetailUpperUp: 0.15}},
	VisemeL: {open: 0.60, detail: map[Detail]float32{DetailPress: 0.15, DetailRollUpper: 0.20}},
}

// VisemeMapper turns symbols into mouth shapes. Openness of every entry except
// the rest entry passes through clamp01(pow(raw, Exponent) * Gain).
type VisemeMapper struct {
	Gain     float64
	Exponent float64
	Rest     Viseme
}

func NewVisemeMapper(cfg MouthConfig) *VisemeMapper {
	rest := ParseViseme(cfg.RestSymbol)
	if _, ok := visemeTable[rest]; !ok {
		rest = VisemeX
	}
	return &VisemeMapper{
		Gain:     cfg.Gain,
		Exponent: cfg.Exponent,
		Rest:     rest,
	}
}

func (m *VisemeMapper) Map(v Viseme) MouthShape {
	entry, ok := visemeTable[v]
	if !ok || v == m.Rest {
		return m.RestShape()
	}

	shape := MouthShape{Open: m.curve(entry.open)}
	for d, w := range entry.detail {
		shape.Detail[d] = clamp01(w)
	}
	return shape
}

// RestShape is the resting mouth. Its openness is published unshaped so that
// gain tuning never lifts the closed mouth.
func (m *VisemeMapper) RestShape() MouthShape {
	entry := visemeTable[m.Rest]
	shape := MouthShape{Open: entry.open}
	for d, w := range entry.detail {
		shape.Detail[d] = w
	}
	return shape
}

func (m *VisemeMapper) curve(raw float32) float32 {
	exp := m.Exponent
	if exp <= 0 {
		exp = 1
	}
	gain := m.Gain
	if gain <= 0 {
		gain = 1
	}
	return clamp01(float32(math.Pow(float64(raw), exp) * gain))
}
