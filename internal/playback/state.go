package playback

import "math"

// State is the caller-facing snapshot of a Controller.
//
// Once DurationKnown is true, 0 <= CurrentTime <= TotalDuration. IsLoading
// holds from SetSource until metadata or an error arrives, and IsPlaying is
// never true while IsLoading.
type State struct {
	SourceURL     string
	IsLoading     bool
	IsPlaying     bool
	CurrentTime   float64
	TotalDuration float64
	DurationKnown bool
	Volume        float64
	IsMuted       bool
	LastError     error
}

// EffectiveVolume is the volume applied to the element.
func (s State) EffectiveVolume() float64 {
	if s.IsMuted {
		return 0
	}
	return s.Volume
}

// Failed reports whether the current source is unusable until a new one is set.
func (s State) Failed() bool {
	return s.LastError != nil
}

func (s *State) clampTime(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if s.DurationKnown && t > s.TotalDuration {
		return s.TotalDuration
	}
	return t
}
