package audiosink

import (
	"log"

	"github.com/rustyguts/audiosink/internal/slave"
)

// Format describes the PCM layout negotiated with upstream.
type Format struct {
	Rate      int
	Channels  int
	Width     int // bits per sample
	Depth     int // round_up_8(Width)
	Signed    bool
	BigEndian bool // false = host/little-endian default
}

// DefaultFormat returns the caps fixation defaults: 44100 Hz, stereo, 16-bit
// signed, host endianness.
func DefaultFormat() Format {
	return Format{Rate: 44100, Channels: 2, Width: 16, Depth: roundUp8(16), Signed: true}
}

func roundUp8(bits int) int {
	return (bits + 7) / 8 * 8
}

// BytesPerSample returns the frame width in bytes for f (Channels *
// Depth/8).
func (f Format) BytesPerSample() int {
	return f.Channels * (f.Depth / 8)
}

// Option configures a Sink at construction time. Out-of-range values are
// clamped rather than rejected.
type Option func(*Sink)

// WithBufferTime sets the buffer-time property (µs), clamped to >= 1.
// Default 200000 (200ms).
func WithBufferTime(us int64) Option {
	return func(s *Sink) {
		if us < 1 {
			us = 1
		}
		s.bufferTimeUs = us
	}
}

// WithLatencyTime sets the latency-time property (µs, per-segment
// duration), clamped to >= 1. Default 10000 (10ms).
func WithLatencyTime(us int64) Option {
	return func(s *Sink) {
		if us < 1 {
			us = 1
		}
		s.latencyTimeUs = us
	}
}

// WithProvideClock sets whether the sink advertises its playback clock to
// the pipeline. Default true.
func WithProvideClock(provide bool) Option {
	return func(s *Sink) { s.provideClock = provide }
}

// WithSlaveMethod sets the clock-slaving algorithm. Default Skew.
func WithSlaveMethod(m slave.Method) Option {
	return func(s *Sink) { s.slaveMethod = m }
}

// WithLogger overrides the *log.Logger the sink logs through: state-change
// failures, plus warnings/errors when neither an OnMessage callback nor a
// BaseSink is set. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// WithPullEnabled permits the sink to be driven in pull mode via
// EnablePull. Default false: pull mode must be explicitly opted into
// before it can be activated.
func WithPullEnabled(enabled bool) Option {
	return func(s *Sink) { s.canActivatePull = enabled }
}

// WithCreateRingBuffer installs the subclass hook: a factory invoked
// once on NULL->READY, modeled as a closure rather than inheritance.
// The returned RingBuffer becomes owned by the Sink.
func WithCreateRingBuffer(factory CreateRingBufferFunc) Option {
	return func(s *Sink) { s.createRingBuffer = factory }
}
