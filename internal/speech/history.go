package speech

import (
	"sync"
	"time"
)

// Outcome is how an utterance ended.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeCanceled    Outcome = "canceled"
	OutcomeFailed      Outcome = "failed"
)

// Utterance records one Speak call.
type Utterance struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Provider  string        `json:"provider,omitempty"`
	WavPath   string        `json:"wavPath,omitempty"`
	Duration  time.Duration `json:"duration"`
	Cues      int           `json:"cues"`
	CueSource string        `json:"cueSource,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Started   time.Time     `json:"started"`
	Finished  time.Time     `json:"finished"`
}

// History keeps the most recent utterances.
type History struct {
	mu      sync.RWMutex
	entries []Utterance
	max     int
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = 20
	}
	return &History{entries: make([]Utterance, 0, max), max: max}
}

// Add records u, dropping the oldest entry beyond the limit.
func (h *History) Add(u Utterance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, u)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

// Recent returns up to n entries, oldest first.
func (h *History) Recent(n int) []Utterance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	start := max(len(h.entries)-n, 0)
	out := make([]Utterance, len(h.entries)-start)
	copy(out, h.entries[start:])
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
