// Package slave implements the three clock-slaving algorithms (resample,
// skew, none) that reconcile a sink's internal sample clock with a
// pipeline-wide master clock. See the render pipeline's step 7 for how an
// Engine is invoked once per buffer.
package slave

import (
	"time"

	"github.com/rustyguts/audiosink/internal/sinkclock"
)

func durationOf(ns int64) time.Duration { return time.Duration(ns) }

// Method selects which slaving algorithm Engine.Slave applies.
type Method int

const (
	// None applies the affine calibration map only; no calibration update.
	None Method = iota
	// Resample applies the affine map only and assumes the rate factor is
	// kept current by clock-mastering (sinkclock.Clock.SlaveTo).
	Resample
	// Skew periodically compares both clocks and nudges the calibration's
	// external anchor to correct drift, via an EMA-smoothed skew estimate.
	Skew
)

// String implements fmt.Stringer for log messages.
func (m Method) String() string {
	switch m {
	case None:
		return "none"
	case Resample:
		return "resample"
	case Skew:
		return "skew"
	default:
		return "unknown"
	}
}

// emaWeight is the fixed weight in avg_skew = (31*avg_skew + skew)/32. It
// is not a tuning knob — callers cannot override it.
const emaWeight = 31

// UninitializedSkew is the sentinel avg_skew value at cold start and after
// each flush-stop / async-play.
const UninitializedSkew int64 = -1

// Endpoints is a (start, stop) pair of render timestamps, expressed as
// nanoseconds on the pipeline (external) clock, already advanced by base
// time and pipeline latency (render pipeline step 6).
type Endpoints struct {
	Start int64
	Stop  int64
}

// Engine converts render timestamps into the sink's internal time frame
// using the configured Method.
type Engine struct {
	Method Method

	// SegTimeNs is one segment's duration in nanoseconds (the ring buffer's
	// LatencyTimeUs converted to ns); used as the Skew correction step size.
	SegTimeNs int64

	// UsLatencyNs is subtracted (saturating to 0) from every mapped
	// endpoint.
	UsLatencyNs int64

	// Internal and External are the clock observers used by Skew to sample
	// both timelines. External is nil when there is no pipeline clock (ASAP
	// path never reaches the engine in that case, but Skew's periodic
	// observation still needs both to be set by the caller before Observe).
	Internal sinkclock.ExternalObserver
	External sinkclock.ExternalObserver

	// AvgSkewNs is the running EMA of (internal-external) skew; callers
	// seed it to UninitializedSkew at cold start / flush-stop / async-play.
	AvgSkewNs int64

	// LastAlignSamples is the signed sample shift the render pipeline's
	// alignment step applied on the previous buffer; Skew's resync decision
	// reads it (see Observe).
	LastAlignSamples int64
	// SamplesPerSeg bounds the Skew resync decision the same way.
	SamplesPerSeg int64

	// Resync is set to true by Observe when the accumulated drift demands a
	// next_sample reset; the caller (the sink) must act on it. Each Skew
	// comparison in Observe resets it to false before deciding.
	Resync bool
}

// affineMap applies the calibration's affine map to one endpoint x,
// saturating the result (and the subsequent us_latency subtraction) at 0.
func affineMap(x int64, cal sinkclock.Calibration) int64 {
	ci, ce := int64(cal.Internal), int64(cal.External)
	rn, rd := cal.RateNum, cal.RateDenom
	if rn == 0 {
		rn, rd = 1, 1
	}
	if rd == 0 {
		rd = 1
	}

	var mapped int64
	if x >= ce {
		mapped = ci + mulDiv(x-ce, rd, rn)
	} else {
		delta := mulDiv(ce-x, rd, rn)
		if delta > ci {
			mapped = 0
		} else {
			mapped = ci - delta
		}
	}
	if mapped < 0 {
		mapped = 0
	}
	return mapped
}

// mulDiv computes a*b/c using int64 arithmetic; inputs in this module are
// always small enough (nanosecond deltas times small rate ratios) that a
// plain int64 product does not overflow, unlike the sample-count
// conversions in ringspec which go through math/big.
func mulDiv(a, b, c int64) int64 {
	if c == 0 {
		return a * b
	}
	return (a * b) / c
}

// Slave maps render start/stop timestamps into internal time using the
// calibration currently installed on providedClock, then subtracts
// UsLatencyNs (saturating at 0). It does not itself decide whether the stop
// endpoint should be re-aligned afterward (step 9's resample carve-out) —
// that decision belongs to the render pipeline, which knows the alignment
// outcome.
func (e *Engine) Slave(cal sinkclock.Calibration, ep Endpoints) Endpoints {
	start := affineMap(ep.Start, cal)
	stop := affineMap(ep.Stop, cal)
	start = satSub(start, e.UsLatencyNs)
	stop = satSub(stop, e.UsLatencyNs)
	return Endpoints{Start: start, Stop: stop}
}

func satSub(a, b int64) int64 {
	if b >= a {
		return 0
	}
	return a - b
}

// Observe runs one periodic Skew comparison, updating AvgSkewNs and, when
// drift exceeds half a segment, nudging cal's external anchor and setting
// Resync. It is a no-op (returns cal unchanged) for None and Resample. The
// caller is responsible for calling Observe at a steady cadence (e.g. once
// per segment) only when Method == Skew.
func (e *Engine) Observe(cal sinkclock.Calibration) sinkclock.Calibration {
	if e.Method != Skew || e.Internal == nil || e.External == nil {
		return cal
	}

	etime := int64(e.External.Now()) - int64(cal.External)
	if etime < 0 {
		etime = 0
	}
	itime := int64(e.Internal.Now()) - int64(cal.Internal)
	if itime < 0 {
		itime = 0
	}
	skew := itime - etime

	if e.AvgSkewNs == UninitializedSkew {
		e.AvgSkewNs = skew
	} else {
		e.AvgSkewNs = (emaWeight*e.AvgSkewNs + skew) / (emaWeight + 1)
	}

	half := e.SegTimeNs / 2
	e.Resync = false

	switch {
	case e.AvgSkewNs > half:
		ce := int64(cal.External) - e.SegTimeNs
		if ce < 0 {
			ce = 0
		}
		cal.External = durationOf(ce)
		e.AvgSkewNs -= e.SegTimeNs
		if e.LastAlignSamples < 0 || e.LastAlignSamples > e.SamplesPerSeg {
			e.Resync = true
		}
	case e.AvgSkewNs < -half:
		cal.External = durationOf(int64(cal.External) + e.SegTimeNs)
		e.AvgSkewNs += e.SegTimeNs
		if e.LastAlignSamples > 0 || -e.LastAlignSamples > e.SamplesPerSeg {
			e.Resync = true
		}
	}

	return cal
}
