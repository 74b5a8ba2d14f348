// Package trajectory records pointer-drag gestures on the slide control and
// summarises them into a slide answer.
//
// Positions are in track units: the slide track spans [0, TrackMax]. Pointer
// coordinates may fall outside that range; the control offset is clamped, the
// raw coordinates are what the trace records.
package trajectory

import (
	"math"
	"time"

	"captchaclient/internal/captcha"
)

const (
	// DefaultTrackMax is the travel of the slide control in track units.
	DefaultTrackMax = 280

	// DefaultThreshold is the minimum horizontal movement, exclusive, before
	// a new point is appended to the trace.
	DefaultThreshold = 2
)

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// Trace is a finished drag gesture.
type Trace struct {
	Points       []int
	Start        time.Time
	Duration     time.Duration
	FinalOffset  int
	FinalPercent int
}

// Answer converts the trace to the wire answer.
func (t Trace) Answer() captcha.SlideAnswer {
	points := make([]int, len(t.Points))
	copy(points, t.Points)
	return captcha.SlideAnswer{
		X:        t.FinalPercent,
		Track:    points,
		Duration: t.Duration.Milliseconds(),
	}
}

// Sampler tracks one gesture at a time. It is not safe for concurrent use;
// it lives on the UI loop.
type Sampler struct {
	trackMax  int
	threshold int
	now       Clock

	active        bool
	startX        int
	initialOffset int
	offset        int
	start         time.Time
	points        []int
}

// NewSampler builds a sampler. Non-positive arguments fall back to the
// defaults and a nil clock to time.Now.
func NewSampler(trackMax, threshold int, clock Clock) *Sampler {
	if trackMax <= 0 {
		trackMax = DefaultTrackMax
	}
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	if clock == nil {
		clock = time.Now
	}
	return &Sampler{trackMax: trackMax, threshold: threshold, now: clock}
}

// TrackMax returns the track length in units.
func (s *Sampler) TrackMax() int { return s.trackMax }

// Active reports whether a gesture is in progress.
func (s *Sampler) Active() bool { return s.active }

// Offset is the current clamped control position.
func (s *Sampler) Offset() int { return s.offset }

// Begin starts a gesture at pointer coordinate x. The control keeps its
// current offset as the starting point; any previous points are dropped.
func (s *Sampler) Begin(x int) {
	s.active = true
	s.start = s.now()
	s.startX = x
	s.initialOffset = s.offset
	s.points = s.points[:0]
}

// Move updates the control position for pointer coordinate x and returns the
// new clamped offset. Outside a gesture it is a no-op.
func (s *Sampler) Move(x int) int {
	if !s.active {
		return s.offset
	}
	s.offset = clamp(s.initialOffset+(x-s.startX), 0, s.trackMax)

	if n := len(s.points); n == 0 || abs(x-s.points[n-1]) > s.threshold {
		s.points = append(s.points, x)
	}
	return s.offset
}

// End finishes the gesture. ok is false if no gesture was active.
func (s *Sampler) End() (trace Trace, ok bool) {
	if !s.active {
		return Trace{}, false
	}
	s.active = false

	points := make([]int, len(s.points))
	copy(points, s.points)
	return Trace{
		Points:       points,
		Start:        s.start,
		Duration:     s.now().Sub(s.start),
		FinalOffset:  s.offset,
		FinalPercent: Percent(s.offset, s.trackMax),
	}, true
}

// Reset abandons any gesture and returns the control to the track start.
func (s *Sampler) Reset() {
	s.active = false
	s.offset = 0
	s.initialOffset = 0
	s.points = s.points[:0]
}

// Percent maps an offset on a track of length trackMax to 0-100. The offset
// is clamped first.
func Percent(offset, trackMax int) int {
	if trackMax <= 0 {
		return 0
	}
	offset = clamp(offset, 0, trackMax)
	return int(math.Round(float64(offset) / float64(trackMax) * 100))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
