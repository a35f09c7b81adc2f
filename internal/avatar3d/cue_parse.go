package avatar3d

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedCues is returned when oracle output cannot be normalized into a
// cue list. Callers fall back to EmptyTrack.
var ErrMalformedCues = errors.New("malformed cue data")

// containerKeys lists the object keys under which oracles wrap the cue array.
var containerKeys = []string{"mouthCues", "cues", "data", "items", "result", "visemes"}

type rawCue struct {
	Start  *float64 `json:"start"`
	End    *float64 `json:"end"`
	Value  string   `json:"value"`
	Symbol string   `json:"symbol"`
	Viseme string   `json:"viseme"`
}

// ParseCues accepts a bare JSON array of cues or an object wrapping it.
func ParseCues(data []byte) (*CueTrack, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedCues)
	}

	var list json.RawMessage
	switch data[0] {
	case '[':
		list = data
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCues, err)
		}
		for _, key := range containerKeys {
			if v, ok := obj[key]; ok {
				list = v
				break
			}
		}
		if list == nil {
			return nil, fmt.Errorf("%w: no cue array under known keys", ErrMalformedCues)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected token %q", ErrMalformedCues, data[0])
	}

	var raws []rawCue
	if err := json.Unmarshal(list, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCues, err)
	}

	cues := make([]Cue, 0, len(raws))
	for i, r := range raws {
		if r.Start == nil || r.End == nil {
			return nil, fmt.Errorf("%w: cue %d missing start or end", ErrMalformedCues, i)
		}
		sym := r.Value
		if sym == "" {
			sym = r.Symbol
		}
		if sym == "" {
			sym = r.Viseme
		}
		cues = append(cues, Cue{Start: *r.Start, End: *r.End, Symbol: ParseViseme(sym)})
	}

	return NewCueTrack(cues), nil
}
