package avatar3d

import (
	"math"
	"sort"
)

// Cue is a timed viseme. Times are seconds from the start of the utterance audio.
type Cue struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Symbol Viseme  `json:"value"`
}

// CueTrack is an ordered, non-overlapping cue list with a forward-only cursor.
// The cue list never changes after construction; the cursor is owned by the
// frame loop.
type CueTrack struct {
	cues   []Cue
	cursor int
	lastT  float64
}

// NewCueTrack sorts the cues by start time, drops cues with invalid bounds and
// clips overlapping cues so that each starts no earlier than the previous end.
func NewCueTrack(cues []Cue) *CueTrack {
	valid := make([]Cue, 0, len(cues))
	for _, c := range cues {
		if math.IsNaN(c.Start) || math.IsNaN(c.End) || math.IsInf(c.Start, 0) || math.IsInf(c.End, 0) {
			continue
		}
		if c.End < c.Start {
			continue
		}
		c.Symbol = ParseViseme(string(c.Symbol))
		valid = append(valid, c)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Start < valid[j].Start })

	out := valid[:0]
	for _, c := range valid {
		if n := len(out); n > 0 && c.Start < out[n-1].End {
			c.Start = out[n-1].End
			if c.End <= c.Start {
				continue
			}
		}
		out = append(out, c)
	}

	return &CueTrack{cues: out, lastT: math.Inf(-1)}
}

// EmptyTrack returns a track that always reports rest.
func EmptyTrack() *CueTrack {
	return NewCueTrack(nil)
}

// Active returns the cue covering t, or false for rest. A t lower than the
// previous lookup resets the cursor.
func (ct *CueTrack) Active(t float64) (Cue, bool) {
	if t < ct.lastT {
		ct.cursor = 0
	}
	ct.lastT = t

	for ct.cursor < len(ct.cues) && ct.cues[ct.cursor].End < t {
		ct.cursor++
	}
	if ct.cursor >= len(ct.cues) {
		return Cue{}, false
	}

	c := ct.cues[ct.cursor]
	if t >= c.Start && t <= c.End {
		return c, true
	}
	return Cue{}, false
}

func (ct *CueTrack) Reset() {
	ct.cursor = 0
	ct.lastT = math.Inf(-1)
}

func (ct *CueTrack) Cursor() int {
	return ct.cursor
}

func (ct *CueTrack) Len() int {
	return len(ct.cues)
}

func (ct *CueTrack) Cues() []Cue {
	out := make([]Cue, len(ct.cues))
	copy(out, ct.cues)
	return out
}

// Duration is the end time of the last cue.
func (ct *CueTrack) Duration() float64 {
	if len(ct.cues) == 0 {
		return 0
	}
	return ct.cues[len(ct.cues)-1].End
}
