package audiosink

import "time"

// TimeNone is the sentinel timestamp meaning "absent" on a Buffer, the
// render pipeline's cue to take the ASAP write-position path (step 2).
const TimeNone = time.Duration(-1)

// Segment is the active time window external collaborators (the generic
// pipeline base-sink) establish via NewSegment: a [Start, Stop) window with
// a playback Rate, used for clipping and running-time conversion. Negative
// Rate means reverse playback.
type Segment struct {
	Start time.Duration
	Stop  time.Duration
	Rate  float64
	// Base is the running time at which this segment began, so
	// ToRunningTime can translate a segment-relative timestamp.
	Base time.Duration
}

// DefaultSegment returns a forward-playing, unbounded segment — the state a
// freshly-created sink has before any NewSegment event.
func DefaultSegment() Segment {
	return Segment{Start: 0, Stop: time.Duration(1<<63 - 1), Rate: 1.0}
}

// Clip intersects [start, stop) with the segment's [Start, Stop). It
// returns ok=false when the intersection is empty, signaling the render
// pipeline to drop the buffer silently.
func (s Segment) Clip(start, stop time.Duration) (clippedStart, clippedStop time.Duration, ok bool) {
	if stop <= s.Start || start >= s.Stop {
		return 0, 0, false
	}
	if start < s.Start {
		start = s.Start
	}
	if stop > s.Stop {
		stop = s.Stop
	}
	if start >= stop {
		return 0, 0, false
	}
	return start, stop, true
}

// ToRunningTime converts a segment-relative timestamp to running time: time
// elapsed on the pipeline clock since pipeline start, per the segment's
// rate and base.
func (s Segment) ToRunningTime(t time.Duration) time.Duration {
	rate := s.Rate
	if rate == 0 {
		rate = 1
	}
	offset := t - s.Start
	if rate < 0 {
		offset = -offset
	}
	scaled := time.Duration(float64(offset) / absRate(rate))
	return s.Base + scaled
}

func absRate(r float64) float64 {
	if r < 0 {
		return -r
	}
	return r
}
