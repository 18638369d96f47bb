// Package ringbuffer defines the RingBuffer contract the render pipeline
// commits samples into, plus two implementations: an in-memory Fake used by
// every test in this module, and a PortAudio-backed device ring buffer used
// by cmd/sinkdemo.
package ringbuffer

import "github.com/rustyguts/audiosink/internal/ringspec"

// PullFunc is invoked by a ring buffer operating in pull mode whenever it
// needs more bytes; userData is the opaque context supplied to SetCallback.
type PullFunc func(userData any, segment []byte) (filled int)

// RingBuffer is the narrow interface the render pipeline, the state
// machine, and the latency query consume. It intentionally excludes device
// negotiation and driver setup — those are out of scope per the sink's
// Subclass hook (CreateRingBuffer) which returns an already-open RingBuffer.
type RingBuffer interface {
	Acquire(spec ringspec.Spec) error
	Release() error
	Start() error
	Pause() error
	SetFlushing(flushing bool)
	MayStart(may bool)
	IsAcquired() bool

	// SamplesDone is the total number of sample frames the device has
	// consumed from the ring since Acquire.
	SamplesDone() uint64
	// Delay is the number of sample frames queued in the device but not yet
	// played.
	Delay() uint32
	// Rate is the acquired spec's sample rate, or 0 if not acquired.
	Rate() int64

	// SegDone and SegBase are the atomics the render pipeline's ASAP path
	// reads to detect a write-vs-play race (see Sink.asapWritePositionLocked).
	SegDone() uint64
	SegBase() uint64

	// CommitFull attempts to write inSamples source sample frames from data
	// starting at the ring position *sampleOffset, optionally resampling so
	// the output spans outSamples frames of playback. accum carries
	// resampler-phase remainder across calls. Returns the number of source
	// sample frames actually written; *sampleOffset is advanced by the
	// corresponding number of output frames. A short write (written <
	// inSamples) signals the caller was interrupted by flush or stop.
	CommitFull(sampleOffset *int64, data []byte, inSamples, outSamples int, accum *float64) (written int, err error)

	// SetCallback installs the pull-mode producer function.
	SetCallback(fn PullFunc, userData any)

	// Close releases the underlying device handle. Idempotent.
	Close() error
}
