package avatar3d

import (
	"sync"
	"time"
)

// TimeSource abstracts the wall clock so playback can be simulated.
type TimeSource interface {
	Now() time.Time
}

type SystemTime struct{}

func (SystemTime) Now() time.Time {
	return time.Now()
}

// ManualTime only moves when told to.
type ManualTime struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualTime(start time.Time) *ManualTime {
	return &ManualTime{now: start}
}

func (m *ManualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// PlaybackClock measures elapsed audio time from a single epoch. Start
// replaces the epoch; nothing else moves it.
type PlaybackClock struct {
	source  TimeSource
	epoch   time.Time
	running bool
}

func NewPlaybackClock(source TimeSource) *PlaybackClock {
	if source == nil {
		source = SystemTime{}
	}
	return &PlaybackClock{source: source}
}

func (c *PlaybackClock) Start(epoch time.Time) {
	c.epoch = epoch
	c.running = true
}

func (c *PlaybackClock) Stop() {
	c.running = false
}

func (c *PlaybackClock) Running() bool {
	return c.running
}

// Elapsed returns seconds since the epoch, or 0 when stopped.
func (c *PlaybackClock) Elapsed() float64 {
	if !c.running {
		return 0
	}
	return c.source.Now().Sub(c.epoch).Seconds()
}

func (c *PlaybackClock) Now() time.Time {
	return c.source.Now()
}
