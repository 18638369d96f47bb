package audiosink

import (
	"time"

	"github.com/rustyguts/audiosink/internal/ringspec"
	"github.com/rustyguts/audiosink/internal/slave"
)

// diffTolerance is the half-second alignment tolerance denominator: a
// rate/diffTolerance drift is tolerated before a resync is forced.
const diffTolerance = 2

// Buffer is one timestamped chunk of PCM handed to Render. Timestamp ==
// TimeNone means "no timestamp", taking the ASAP write-position path.
type Buffer struct {
	Data      []byte
	Timestamp time.Duration
	Discont   bool
}

// Render clips a buffer to the active segment, converts it to running
// time, slaves it into the sink's internal sample frame, aligns it to
// the previous commit's tail, and commits the samples into the ring
// buffer, retrying across partial writes the same way a blocking device
// write is retried after a short write.
func (s *Sink) Render(buf *Buffer) FlowResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring == nil || !s.ring.IsAcquired() {
		s.postMessage(MessageNotNegotiatedError, "sink not negotiated")
		return FlowNotNegotiated
	}

	bps := s.lastSpec.BytesPerSample
	if bps <= 0 || len(buf.Data)%bps != 0 {
		s.postMessage(MessageWrongSizeError, "sink received buffer of wrong size")
		return FlowError
	}

	rate := s.lastSpec.Rate
	samples := len(buf.Data) / bps
	outSamples := samples
	data := buf.Data

	var renderStart, renderStop int64
	var slaved bool

	if buf.Timestamp == TimeNone {
		renderStart = s.asapWritePositionLocked()
		renderStop = renderStart + int64(samples)
	} else {
		timestamp := buf.Timestamp
		stop := timestamp + time.Duration(ringspec.SamplesToNs(int64(samples), rate))

		cStart, cStop, ok := s.segment.Clip(timestamp, stop)
		if !ok {
			return FlowOK
		}
		if diff := cStart - timestamp; diff > 0 {
			diffSamples := ringspec.NsToSamples(int64(diff), rate)
			samples -= int(diffSamples)
			data = data[int(diffSamples)*bps:]
		}
		if diff := stop - cStop; diff > 0 {
			diffSamples := ringspec.NsToSamples(int64(diff), rate)
			samples -= int(diffSamples)
			stop = cStop
		}
		if samples <= 0 {
			return FlowOK
		}
		outSamples = samples

		var pipelineClock PipelineClock
		if s.base != nil {
			pipelineClock = s.base.PipelineClock()
		}
		sync := pipelineClock != nil

		if !sync {
			renderStart = s.asapWritePositionLocked()
			renderStop = renderStart + int64(samples)
		} else {
			runStart := int64(s.segment.ToRunningTime(cStart))
			runStop := int64(s.segment.ToRunningTime(stop))

			var baseTime, latency time.Duration
			if s.base != nil {
				baseTime = s.base.GetBaseTime()
				latency = s.base.GetLatency()
			}
			runStart += int64(baseTime) + int64(latency)
			runStop += int64(baseTime) + int64(latency)

			slaved = !s.isSelfSyncedLocked(pipelineClock)
			eng := s.slaveEngineLocked(pipelineClock)
			ep := eng.Slave(s.providedClock.Calibration(), slave.Endpoints{Start: runStart, Stop: runStop})
			renderStart = ep.Start
			renderStop = ep.Stop

			renderStart = ringspec.NsToSamples(renderStart, rate)
			renderStop = ringspec.NsToSamples(renderStop, rate)

			renderStart, renderStop = s.alignSamplesLocked(buf.Discont, renderStart, renderStop, slaved)
			outSamples = int(renderStop - renderStart)
		}
	}

	sampleOffset := renderStart
	if s.segment.Rate < 0 {
		sampleOffset = renderStop
	}

	commitResult, alignNext := s.commitLoopLocked(&sampleOffset, data, samples, outSamples)
	if alignNext {
		s.nextSample = sampleOffset
	} else {
		s.nextSample = -1
	}

	if commitResult == FlowWrongState {
		return FlowWrongState
	}

	if buf.Timestamp != TimeNone {
		stopTime := buf.Timestamp + time.Duration(ringspec.SamplesToNs(int64(len(buf.Data)/bps), rate))
		if stopTime >= s.segment.Stop {
			_ = s.ring.Start()
		}
	}

	return FlowOK
}

// alignSamplesLocked aligns the current buffer's sample endpoints to the
// previous commit's tail when the drift is within tolerance, or records
// a resync when it is not.
func (s *Sink) alignSamplesLocked(discont bool, start, stop int64, slaved bool) (int64, int64) {
	if discont || s.nextSample == -1 {
		s.lastAlign = 0
		return start, stop
	}

	ref := start
	if s.segment.Rate < 0 {
		ref = stop
	}
	diff := ref - s.nextSample
	if diff < 0 {
		diff = -diff
	}

	rate := s.lastSpec.Rate

	if diff < rate/diffTolerance {
		align := s.nextSample - ref
		s.lastAlign = align
		start += align
		if !(slaved && s.slaveMethod == slave.Resample) {
			stop += align
		}
		return start, stop
	}

	s.postMessage(MessageResyncWarning, "Compensating for audio synchronisation problems")
	s.lastAlign = 0
	return start, stop
}

// commitLoopLocked commits samples into the ring buffer, retrying across
// partial writes: a short write means we were interrupted (flush or
// stop), so we wait for preroll to resume and retry with what's left,
// never re-aligning the next commit to this buffer's tail once interrupted.
func (s *Sink) commitLoopLocked(sampleOffset *int64, data []byte, samples, outSamples int) (result FlowResult, alignNext bool) {
	bps := s.lastSpec.BytesPerSample
	alignNext = true
	var accum float64

	for {
		written, _ := s.ring.CommitFull(sampleOffset, data, samples, outSamples, &accum)
		if written == samples {
			return FlowOK, alignNext
		}

		var fr FlowResult = FlowOK
		if s.base != nil {
			fr = s.base.WaitPreroll()
		}
		if fr != FlowOK {
			return FlowWrongState, false
		}

		alignNext = false
		samples -= written
		data = data[written*bps:]
	}
}

// asapWritePositionLocked returns a valid write position that won't be
// overwritten by playback, used whenever sync is impossible.
func (s *Sink) asapWritePositionLocked() int64 {
	sample := s.nextSample
	if sample < 0 {
		sample = 0
	}
	sps := s.lastSpec.SamplesPerSeg()
	if sps <= 0 {
		return sample
	}
	writeseg := sample / sps
	segdone := int64(s.ring.SegDone()) - int64(s.ring.SegBase())
	if writeseg < segdone {
		sample = (segdone + 1) * sps
	}
	return sample
}

// slaveEngineLocked builds a slave.Engine reflecting the sink's current
// configuration and clock state. When slaved (pipeline clock differs from
// the provided clock) it uses the configured method; when self-synced it
// is forced to None.
func (s *Sink) slaveEngineLocked(pipelineClock PipelineClock) *slave.Engine {
	method := slave.None
	if !s.isSelfSyncedLocked(pipelineClock) {
		method = s.slaveMethod
	}
	eng := &slave.Engine{
		Method:           method,
		SegTimeNs:        ringspec.UsToNs(s.latencyTimeUs),
		UsLatencyNs:      int64(s.usLatency),
		AvgSkewNs:        s.avgSkew,
		LastAlignSamples: s.lastAlign,
		SamplesPerSeg:    s.lastSpec.SamplesPerSeg(),
	}
	if method == slave.Skew && s.base != nil {
		eng.Internal = s.providedClock
		eng.External = pipelineClock
		cal := s.providedClock.Calibration()
		cal = eng.Observe(cal)
		s.providedClock.SetCalibration(cal)
		s.avgSkew = eng.AvgSkewNs
		if eng.Resync {
			s.nextSample = -1
		}
	}
	return eng
}

func (s *Sink) postMessage(kind MessageKind, text string) {
	msg := ElementMessage{Kind: kind, Text: text}
	if s.base != nil {
		s.base.PostMessage(msg)
	}
	if s.OnMessage != nil {
		s.OnMessage(msg)
	} else if s.base == nil {
		s.logf("%s", text)
	}
}
