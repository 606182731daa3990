package logging

import (
	"math"
	"strings"
)

// ProgressSampler decides which progress updates are worth a log line: the
// first one for each stage and then one per step of percentage. Not safe for
// concurrent use.
type ProgressSampler struct {
	step  float64
	stage string
	next  float64
}

// NewProgressSampler returns a sampler that logs every step percent. A
// non-positive step means 5.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step}
}

// ShouldLog reports whether percent in stage should be logged. A negative
// percent is treated as unknown and only a stage change can emit it.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage = stage
		s.next = 0
		emit = true
	}
	if percent < 0 {
		return emit
	}
	percent = math.Min(percent, 100)
	if percent >= s.next {
		s.next = (math.Floor(percent/s.step) + 1) * s.step
		emit = true
	}
	return emit
}

// Reset forgets the last stage and threshold.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.stage = ""
		s.next = 0
	}
}
