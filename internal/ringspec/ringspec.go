// Package ringspec carries the format of a hardware ring buffer (sample
// rate, bytes per sample, segment layout) and the time↔sample conversions
// every other component in this module needs to agree on.
package ringspec

import "math/big"

// Spec describes the layout of a ring buffer in terms a device driver would
// understand: sample rate, frame width, and segmentation.
type Spec struct {
	Rate           int64 // Hz
	BytesPerSample int   // bytes per sample frame (all channels)
	SegSize        int   // bytes per segment
	SegTotal       int   // number of segments in the ring
	SegLatency     int   // segments of headroom before playback starts
	BufferTimeUs   int64 // total device-buffer duration, microseconds
	LatencyTimeUs  int64 // per-segment duration, microseconds
}

// Valid reports whether the spec satisfies the acquired-ring-buffer
// invariants: positive rate and frame width, and a segment size that is an
// exact multiple of the frame width.
func (s Spec) Valid() bool {
	return s.Rate > 0 && s.BytesPerSample > 0 && s.SegSize%s.BytesPerSample == 0
}

// SamplesPerSeg returns the number of sample frames held by one segment.
func (s Spec) SamplesPerSeg() int64 {
	if s.BytesPerSample == 0 {
		return 0
	}
	return int64(s.SegSize / s.BytesPerSample)
}

// Derive fills LatencyTimeUs and BufferTimeUs from SegSize/SegTotal/Rate, the
// way a ring buffer recomputes its advertised segment duration once the
// device has fixed an actual segment size (which may differ slightly from
// what was requested).
func (s Spec) Derive() Spec {
	s.LatencyTimeUs = NsToUs(BytesToNs(int64(s.SegSize), s.Rate, s.BytesPerSample))
	s.BufferTimeUs = int64(s.SegTotal) * s.LatencyTimeUs
	return s
}

// NsToSamples converts a duration in nanoseconds to a sample count at rate,
// rounding toward zero. Negative ns saturates to 0 samples, matching the
// "subtraction saturates at 0" discipline used throughout the sink.
func NsToSamples(ns int64, rate int64) int64 {
	if ns <= 0 || rate <= 0 {
		return 0
	}
	// ns * rate / 1e9 can overflow int64 for large ns*rate; go through
	// math/big so the result is exact regardless of magnitude.
	num := new(big.Int).Mul(big.NewInt(ns), big.NewInt(rate))
	num.Quo(num, big.NewInt(1e9))
	return num.Int64()
}

// SamplesToNs is the inverse of NsToSamples: samples at rate, in
// nanoseconds, rounded toward zero.
func SamplesToNs(samples int64, rate int64) int64 {
	if samples <= 0 || rate <= 0 {
		return 0
	}
	num := new(big.Int).Mul(big.NewInt(samples), big.NewInt(1e9))
	num.Quo(num, big.NewInt(rate))
	return num.Int64()
}

// BytesToNs converts a byte count to nanoseconds given the sample rate and
// frame width (bytes per sample frame).
func BytesToNs(bytes int64, rate int64, bytesPerSample int) int64 {
	if bytesPerSample <= 0 {
		return 0
	}
	return SamplesToNs(bytes/int64(bytesPerSample), rate)
}

// NsToUs converts nanoseconds to microseconds, rounding toward zero.
func NsToUs(ns int64) int64 {
	return ns / 1000
}

// UsToNs converts microseconds to nanoseconds.
func UsToNs(us int64) int64 {
	return us * 1000
}

// SatSub returns a-b, saturating at 0 rather than going negative. Used for
// every "played minus queued" / "now minus anchor" computation in the sink,
// none of which are allowed to underflow into a negative time.
func SatSub(a, b int64) int64 {
	if b >= a {
		return 0
	}
	return a - b
}
