// Package audiosink implements the synchronization core of a media-pipeline
// audio sink: a render pipeline that commits timestamped buffers into a
// hardware ring buffer sample-accurately, three clock-slaving algorithms,
// and the NULL/READY/PAUSED/PLAYING lifecycle that drives the ring buffer.
//
// The actual audio device driver, caps negotiation, and generic pipeline
// base-sink primitives (preroll, segment clipping machinery) are external
// collaborators, consumed through the narrow interfaces in this package and
// internal/ringbuffer.
package audiosink

import (
	"log"
	"sync"
	"time"

	"github.com/rustyguts/audiosink/internal/ringbuffer"
	"github.com/rustyguts/audiosink/internal/ringspec"
	"github.com/rustyguts/audiosink/internal/sinkclock"
	"github.com/rustyguts/audiosink/internal/slave"
)

// RingBuffer is the narrow ring-buffer contract the sink consumes; see
// internal/ringbuffer.RingBuffer for the full documented interface.
type RingBuffer = ringbuffer.RingBuffer

// CreateRingBufferFunc is the subclass hook: called once during
// NULL->READY, it returns the RingBuffer the sink will own for its
// lifetime.
type CreateRingBufferFunc func() (RingBuffer, error)

// State is one of the sink's four lifecycle states.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// PipelineClock is the minimal view of the pipeline-wide clock the sink
// slaves against. A Sink whose ProvidedClock() happens to be the pipeline's
// chosen clock is "self-synced": the render pipeline still calls the
// slaving engine, but in None mode.
type PipelineClock interface {
	Now() time.Duration
}

// BaseSink is the generic pipeline base-sink collaborator API the sink
// calls up to: preroll waiting, EOS waiting, latency/base-time queries,
// the pipeline clock, and message posting. A real pipeline framework supplies this; tests
// supply a fake.
type BaseSink interface {
	QueryLatency() (isLive, peerIsLive bool, peerMin, peerMax time.Duration)
	WaitPreroll() FlowResult
	WaitEos(runningTime time.Duration, cancel <-chan struct{}) FlowResult
	GetLatency() time.Duration
	GetBaseTime() time.Duration
	PipelineClock() PipelineClock // nil if no pipeline clock is set
	PostMessage(ElementMessage)
}

// Sink is a single instance of the audio-sink synchronization core.
// Construct with New; the zero value is not usable.
type Sink struct {
	mu sync.Mutex

	// Configurable properties.
	bufferTimeUs  int64
	latencyTimeUs int64
	provideClock  bool
	slaveMethod   slave.Method

	createRingBuffer CreateRingBufferFunc
	ring             RingBuffer
	lastSpec         ringspec.Spec
	providedClock    *sinkclock.Clock
	base             BaseSink
	logger           *log.Logger

	state State

	// Render/alignment state.
	nextSample int64
	avgSkew    int64
	lastAlign  int64
	usLatency  time.Duration

	segment Segment

	canActivatePull bool // gates EnablePull
	pullFn          PullFunc
	eosPosted       bool

	OnMessage func(ElementMessage)
}

// PullFunc is the pull-mode producer signature: given dst, fill it with up
// to len(dst) bytes and return how many were written.
type PullFunc func(dst []byte) (filled int)

// New constructs a Sink with its defaults (buffer-time 200ms,
// latency-time 10ms, provide-clock true, slave-method Skew) plus opts
// applied on top.
func New(opts ...Option) *Sink {
	s := &Sink{
		bufferTimeUs:  200000,
		latencyTimeUs: 10000,
		provideClock:  true,
		slaveMethod:   slave.Skew,
		nextSample:    -1,
		avgSkew:       -1,
		segment:       DefaultSegment(),
		logger:        log.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.createRingBuffer == nil {
		s.createRingBuffer = func() (RingBuffer, error) { return ringbuffer.NewFake(), nil }
	}
	return s
}

// ProvidedClock returns the sink's playback clock. It is nil until
// SetFormat first acquires the ring buffer; after that, Now() returns
// sinkclock.None whenever the ring buffer is not acquired (rate 0).
func (s *Sink) ProvidedClock() *sinkclock.Clock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providedClock
}

// SetBaseSink installs the generic pipeline base-sink collaborator.
func (s *Sink) SetBaseSink(b BaseSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = b
}

// State returns the sink's current lifecycle state.
func (s *Sink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ringSpecFromFormat builds a ringspec.Spec from a negotiated format and the
// configured buffer/latency times.
func ringSpecFromFormat(f Format, bufferTimeUs, latencyTimeUs int64) ringspec.Spec {
	bps := f.BytesPerSample()
	samplesPerSeg := int64(float64(f.Rate) * float64(latencyTimeUs) / 1e6)
	if samplesPerSeg < 1 {
		samplesPerSeg = 1
	}
	segSize := int(samplesPerSeg) * bps
	segTotal := int(bufferTimeUs / latencyTimeUs)
	if segTotal < 1 {
		segTotal = 1
	}
	spec := ringspec.Spec{
		Rate:           int64(f.Rate),
		BytesPerSample: bps,
		SegSize:        segSize,
		SegTotal:       segTotal,
		SegLatency:     2,
	}
	return spec.Derive()
}

func (s *Sink) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf("[sink] "+format, args...)
	}
}
