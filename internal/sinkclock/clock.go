// Package sinkclock implements the sink's "provided clock": a virtual clock
// whose Now() reports playback position, plus an affine calibration used by
// the slaving engine to translate between the pipeline's clock and this
// one.
package sinkclock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rustyguts/audiosink/internal/ringspec"
)

// None is the sentinel returned by Now() when the playback position is
// undefined (no ring buffer acquired, or rate not yet known).
const None = time.Duration(-1)

// RingSource is the minimal view of a ring buffer the clock needs to compute
// playback position. Implemented by internal/ringbuffer.RingBuffer.
type RingSource interface {
	SamplesDone() uint64
	Delay() uint32
	Rate() int64
}

// Calibration is the affine map (cinternal, cexternal, rateNum, rateDenom)
// between an external (pipeline) clock and this one. A RateNum of 0 is
// treated as 1/1 (identity rate).
type Calibration struct {
	Internal  time.Duration
	External  time.Duration
	RateNum   int64
	RateDenom int64
}

// normalizedRate returns (num, denom) with the 0-means-identity rule applied.
func (c Calibration) normalizedRate() (int64, int64) {
	if c.RateNum == 0 {
		return 1, 1
	}
	denom := c.RateDenom
	if denom == 0 {
		denom = 1
	}
	return c.RateNum, denom
}

// Clock is the sink's provided clock. The zero value is not usable; use New.
type Clock struct {
	ring RingSource

	// usLatency is added to Now() and is set by the sink's latency query.
	usLatency atomic.Int64

	calMu sync.Mutex
	cal   atomic.Pointer[Calibration] // lock-free snapshot read by observers

	masterMu   sync.Mutex
	masterStop chan struct{}
	masterWg   sync.WaitGroup
}

// New returns a Clock reporting playback position from ring, with the
// identity calibration.
func New(ring RingSource) *Clock {
	c := &Clock{ring: ring}
	c.cal.Store(&Calibration{RateNum: 1, RateDenom: 1})
	return c
}

// SetUsLatency records the upstream peer's minimum latency, folded into
// every Now() reading as an additive offset.
func (c *Clock) SetUsLatency(d time.Duration) {
	c.usLatency.Store(int64(d))
}

// Now returns the current playback position: samples_to_ns(samples_done -
// delay, rate) + us_latency. Returns None if the ring buffer is absent or
// its rate is not yet known.
func (c *Clock) Now() time.Duration {
	if c.ring == nil {
		return None
	}
	rate := c.ring.Rate()
	if rate == 0 {
		return None
	}
	done := c.ring.SamplesDone()
	delay := uint64(c.ring.Delay())
	var played int64
	if delay >= done {
		played = 0
	} else {
		played = int64(done - delay)
	}
	ns := ringspec.SamplesToNs(played, rate)
	return time.Duration(ns + c.usLatency.Load())
}

// Calibration returns the current calibration via a wait-free atomic
// snapshot read — safe to call from any clock-observer goroutine.
func (c *Clock) Calibration() Calibration {
	return *c.cal.Load()
}

// SetCalibration installs a new calibration quadruple. Takes calMu so
// concurrent setters serialize, but readers never block on it.
func (c *Clock) SetCalibration(cal Calibration) {
	c.calMu.Lock()
	defer c.calMu.Unlock()
	cp := cal
	c.cal.Store(&cp)
}

// ExternalObserver is the interface a pipeline-wide master clock exposes so
// this clock can slave its rate to it (Resample method only).
type ExternalObserver interface {
	Now() time.Duration
}

// SlaveTo starts a background goroutine that periodically resamples
// external's rate of advance against this clock's own rate of advance and
// folds the observed ratio into the calibration's RateNum/RateDenom. Used
// only by the Resample slave method (see internal/slave). Calling SlaveTo
// again replaces any previous master. Call StopSlaving to detach.
func (c *Clock) SlaveTo(external ExternalObserver, interval time.Duration) {
	c.masterMu.Lock()
	defer c.masterMu.Unlock()
	c.stopSlavingLocked()

	stop := make(chan struct{})
	c.masterStop = stop
	c.masterWg.Add(1)

	go func() {
		defer c.masterWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		cal := c.Calibration()
		lastExt := external.Now()
		lastInt := c.Now()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ext := external.Now()
				internal := c.Now()
				if ext == None || internal == None || lastExt == None || lastInt == None {
					lastExt, lastInt = ext, internal
					continue
				}
				dExt := ext - lastExt
				dInt := internal - lastInt
				if dExt > 0 && dInt > 0 {
					cal.RateNum = int64(dInt)
					cal.RateDenom = int64(dExt)
					cal.External = ext
					cal.Internal = internal
					c.SetCalibration(cal)
				}
				lastExt, lastInt = ext, internal
			}
		}
	}()
}

// StopSlaving detaches any master clock previously attached via SlaveTo.
func (c *Clock) StopSlaving() {
	c.masterMu.Lock()
	defer c.masterMu.Unlock()
	c.stopSlavingLocked()
}

func (c *Clock) stopSlavingLocked() {
	if c.masterStop != nil {
		close(c.masterStop)
		c.masterWg.Wait()
		c.masterStop = nil
	}
}
