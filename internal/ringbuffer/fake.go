package ringbuffer

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rustyguts/audiosink/internal/ringspec"
)

// ErrWrongState is returned by CommitFull when the fake ring buffer was
// flushing, released, or never acquired, or when the write came up short,
// and by Start when the ring buffer is not acquired.
var ErrWrongState = errors.New("ringbuffer: wrong state")

// Fake is an in-memory RingBuffer used by every test in this module: a
// single contiguous byte ring addressed by a wrapping index, with the
// segdone/segbase atomics and cancelable-commit discipline the render
// pipeline's concurrency model requires.
//
// Fake is not safe for concurrent Acquire/Release with concurrent
// CommitFull, mirroring the real contract that those calls are serialized
// by the sink's state machine.
type Fake struct {
	mu   sync.Mutex
	spec ringspec.Spec
	buf  []byte

	acquired atomic.Bool
	flushing atomic.Bool
	mayStart atomic.Bool
	started  atomic.Bool
	paused   atomic.Bool
	closed   atomic.Bool

	segDone atomic.Uint64
	segBase atomic.Uint64

	samplesDone atomic.Uint64
	delay       atomic.Uint32

	callback PullFunc
	userData any

	// WriteLimit, when > 0, caps the number of source samples a single
	// CommitFull call writes, letting tests exercise the render pipeline's
	// partial-write / commit-loop retry path.
	WriteLimit int

	// written counts total source samples ever committed, for assertions.
	written atomic.Uint64
}

// NewFake returns an unacquired Fake ring buffer.
func NewFake() *Fake { return &Fake{} }

func (f *Fake) Acquire(spec ringspec.Spec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !spec.Valid() {
		return errors.New("ringbuffer: invalid spec")
	}
	f.spec = spec
	capacity := spec.SegTotal * spec.SegSize
	f.buf = make([]byte, capacity)
	f.acquired.Store(true)
	f.flushing.Store(false)
	return nil
}

func (f *Fake) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired.Store(false)
	f.started.Store(false)
	f.buf = nil
	return nil
}

func (f *Fake) Start() error {
	if !f.acquired.Load() {
		return ErrWrongState
	}
	f.started.Store(true)
	f.paused.Store(false)
	return nil
}

func (f *Fake) Pause() error {
	f.paused.Store(true)
	return nil
}

func (f *Fake) SetFlushing(flushing bool) { f.flushing.Store(flushing) }
func (f *Fake) MayStart(may bool)         { f.mayStart.Store(may) }
func (f *Fake) IsAcquired() bool          { return f.acquired.Load() }

func (f *Fake) SamplesDone() uint64 { return f.samplesDone.Load() }
func (f *Fake) Delay() uint32       { return f.delay.Load() }

func (f *Fake) Rate() int64 {
	if !f.acquired.Load() {
		return 0
	}
	return f.spec.Rate
}

func (f *Fake) SegDone() uint64 { return f.segDone.Load() }
func (f *Fake) SegBase() uint64 { return f.segBase.Load() }

// AdvancePlayback simulates the device consuming n further sample frames —
// tests use it to drive Clock.Now() and the ASAP write-position logic.
func (f *Fake) AdvancePlayback(n uint64) { f.samplesDone.Add(n) }

// SetDelay sets the samples-queued-but-not-played counter.
func (f *Fake) SetDelay(d uint32) { f.delay.Store(d) }

// AdvanceSegDone simulates the device finishing n more segments — tests use
// it to exercise the write-vs-play race in Sink.asapWritePositionLocked.
func (f *Fake) AdvanceSegDone(n uint64) { f.segDone.Add(n) }

// SetSegBase resets the segment-counter origin, as happens on flush-stop.
func (f *Fake) SetSegBase(v uint64) { f.segBase.Store(v) }

func (f *Fake) CommitFull(sampleOffset *int64, data []byte, inSamples, outSamples int, accum *float64) (int, error) {
	if f.flushing.Load() || !f.acquired.Load() {
		return 0, ErrWrongState
	}
	if inSamples <= 0 {
		return 0, nil
	}

	toWrite := inSamples
	if f.WriteLimit > 0 && f.WriteLimit < toWrite {
		toWrite = f.WriteLimit
	}

	bps := f.spec.BytesPerSample
	capacitySamples := int64(f.spec.SegTotal) * f.spec.SamplesPerSeg()
	if capacitySamples <= 0 {
		return 0, ErrWrongState
	}

	f.mu.Lock()
	for i := 0; i < toWrite; i++ {
		if f.flushing.Load() {
			// Interrupted mid-loop: report what was written so far.
			toWrite = i
			break
		}
		pos := (*sampleOffset + int64(i)) % capacitySamples
		if pos < 0 {
			pos += capacitySamples
		}
		src := data[i*bps : (i+1)*bps]
		copy(f.buf[pos*int64(bps):pos*int64(bps)+int64(bps)], src)
	}
	f.mu.Unlock()

	outAdvance := outSamples
	if inSamples != outSamples && inSamples > 0 {
		outAdvance = int(int64(toWrite) * int64(outSamples) / int64(inSamples))
	} else {
		outAdvance = toWrite
	}
	*sampleOffset += int64(outAdvance)
	f.written.Add(uint64(toWrite))

	if toWrite < inSamples {
		return toWrite, ErrWrongState
	}
	return toWrite, nil
}

func (f *Fake) SetCallback(fn PullFunc, userData any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = fn
	f.userData = userData
}

// Pull invokes the installed pull callback to fill segment, as the device
// thread would when it needs more bytes.
func (f *Fake) Pull(segment []byte) int {
	f.mu.Lock()
	cb, ud := f.callback, f.userData
	f.mu.Unlock()
	if cb == nil {
		return 0
	}
	return cb(ud, segment)
}

func (f *Fake) Close() error {
	f.closed.Store(true)
	return f.Release()
}

// WrittenSamples returns the total number of source samples ever committed.
func (f *Fake) WrittenSamples() uint64 { return f.written.Load() }
