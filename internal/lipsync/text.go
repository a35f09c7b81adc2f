package lipsync

import (
	"strings"
	"time"
	"unicode"

	"github.com/normanking/facerig/internal/avatar3d"
)

// letterShapes maps spelling to the closest Rhubarb mouth shape. Anything not
// listed is a generic consonant (B).
var letterShapes = map[string]avatar3d.Viseme{
	"p": avatar3d.VisemeA, "b": avatar3d.VisemeA, "m": avatar3d.VisemeA,
	"f": avatar3d.VisemeG, "v": avatar3d.VisemeG,
	"l": avatar3d.VisemeH,
	"a": avatar3d.VisemeD, "h": avatar3d.VisemeD,
	"e": avatar3d.VisemeC, "i": avatar3d.VisemeC, "y": avatar3d.VisemeC,
	"o": avatar3d.VisemeE, "r": avatar3d.VisemeE,
	"u": avatar3d.VisemeF, "w": avatar3d.VisemeF, "oo": avatar3d.VisemeF,
	"th": avatar3d.VisemeB, "ch": avatar3d.VisemeB, "sh": avatar3d.VisemeB,
}

// Nominal segment lengths before scaling to the audio duration.
const (
	vowelDur     = 0.10
	fricativeDur = 0.08
	consonantDur = 0.06
	wordGap      = 0.08
	clauseGap    = 0.10
	sentenceGap  = 0.15
	leadIn       = 0.05
)

// EstimateCues approximates a cue track from spelling alone. When duration is
// positive the result is stretched or squeezed to end with the audio. Used
// when no oracle can analyse the audio.
func EstimateCues(text string, duration time.Duration) *avatar3d.CueTrack {
	runes := []rune(strings.ToLower(strings.TrimSpace(text)))
	if len(runes) == 0 {
		return avatar3d.EmptyTrack()
	}

	var cues []avatar3d.Cue
	t := leadIn
	push := func(v avatar3d.Viseme, d float64) {
		if n := len(cues); n > 0 && cues[n-1].Symbol == v && cues[n-1].End == t {
			cues[n-1].End += d
		} else {
			cues = append(cues, avatar3d.Cue{Start: t, End: t + d, Symbol: v})
		}
		t += d
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			push(avatar3d.VisemeX, wordGap)
			continue
		case r == '.' || r == '!' || r == '?':
			push(avatar3d.VisemeX, sentenceGap)
			continue
		case r == ',' || r == ';' || r == ':':
			push(avatar3d.VisemeX, clauseGap)
			continue
		case !unicode.IsLetter(r):
			continue
		}

		key := string(r)
		if i+1 < len(runes) {
			if _, ok := letterShapes[string(runes[i:i+2])]; ok {
				key = string(runes[i : i+2])
				i++
			}
		}
		shape, ok := letterShapes[key]
		if !ok {
			shape = avatar3d.VisemeB
		}

		d := consonantDur
		switch {
		case isVowel(r):
			d = vowelDur
		case r == 's' || r == 'z' || r == 'f' || r == 'v':
			d = fricativeDur
		}
		push(shape, d)
	}

	if total := duration.Seconds(); total > 0 && t > 0 {
		scale := total / t
		for i := range cues {
			cues[i].Start *= scale
			cues[i].End *= scale
		}
	}
	return avatar3d.NewCueTrack(cues)
}

func isVowel(r rune) bool {
	return strings.ContainsRune("aeiou", r)
}
