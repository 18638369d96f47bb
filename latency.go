package audiosink

import (
	"time"

	"github.com/rustyguts/audiosink/internal/ringspec"
)

// LatencyInfo is the result of a latency query.
type LatencyInfo struct {
	IsLive bool
	Min    time.Duration
	Max    time.Duration // MaxUnbounded means "infinite"
}

// MaxUnbounded is the sentinel LatencyInfo.Max value meaning "no upper
// bound" (the peer's max latency was infinite, or unknown).
const MaxUnbounded = time.Duration(1<<63 - 1)

// QueryLatency reports (min, max, is_live) by combining the device's
// segment-latency headroom with the upstream peer's reported latency.
// ok is false when the ring buffer is not acquired or its rate is
// unknown ("not yet known").
func (s *Sink) QueryLatency() (info LatencyInfo, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring == nil || !s.ring.IsAcquired() || s.ring.Rate() == 0 {
		return LatencyInfo{}, false
	}

	var isLive, peerIsLive bool
	var peerMin, peerMax time.Duration
	if s.base != nil {
		isLive, peerIsLive, peerMin, peerMax = s.base.QueryLatency()
	}
	s.usLatency = peerMin
	if s.providedClock != nil {
		s.providedClock.SetUsLatency(peerMin)
	}

	if !isLive || !peerIsLive {
		return LatencyInfo{IsLive: isLive, Min: 0, Max: MaxUnbounded}, true
	}

	rate := s.ring.Rate()
	segSize, bps, segLatency := s.ringSegmentGeometryLocked()
	ourMinNs := ringspec.SamplesToNs(int64(segLatency)*int64(segSize)/int64(bps), rate)
	ourMin := time.Duration(ourMinNs)

	min := ourMin + peerMin
	max := MaxUnbounded
	if peerMax != MaxUnbounded {
		max = min + peerMax
	}
	return LatencyInfo{IsLive: true, Min: min, Max: max}, true
}

// ringSegmentGeometryLocked returns the segment geometry of the spec used
// at the last SetFormat/Acquire.
func (s *Sink) ringSegmentGeometryLocked() (segSize, bytesPerSample, segLatency int) {
	return s.lastSpec.SegSize, s.lastSpec.BytesPerSample, s.lastSpec.SegLatency
}
