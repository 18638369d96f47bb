package audiosink

import (
	"time"

	"github.com/rustyguts/audiosink/internal/sinkclock"
	"github.com/rustyguts/audiosink/internal/slave"
)

// SetFormat negotiates the PCM format and, if the ring buffer has been
// created (NULL->READY already happened), acquires it with the derived
// spec: the caps-set moment that binds the ring buffer to a concrete
// sample rate and layout.
func (s *Sink) SetFormat(f Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring == nil {
		return ErrNotNegotiated
	}
	spec := ringSpecFromFormat(f, s.bufferTimeUs, s.latencyTimeUs)
	if err := s.ring.Acquire(spec); err != nil {
		return err
	}
	s.lastSpec = spec
	if s.providedClock == nil {
		s.providedClock = sinkclock.New(s.ring)
	}
	return nil
}

// SetState drives the NULL/READY/PAUSED/PLAYING transition table. Only
// the six adjacent transitions are legal and a request for the current
// state is a no-op; anything else is ErrInvalidTransition.
func (s *Sink) SetState(target State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	switch {
	case from == StateNull && target == StateReady:
		return s.nullToReadyLocked()
	case from == StateReady && target == StatePaused:
		return s.readyToPausedLocked()
	case from == StatePaused && target == StatePlaying:
		return s.pausedToPlayingLocked()
	case from == StatePlaying && target == StatePaused:
		return s.playingToPausedLocked()
	case from == StatePaused && target == StateReady:
		return s.pausedToReadyLocked()
	case from == StateReady && target == StateNull:
		return s.readyToNullLocked()
	case from == target:
		return nil
	default:
		return ErrInvalidTransition
	}
}

func (s *Sink) nullToReadyLocked() error {
	ring, err := s.createRingBuffer()
	if err != nil {
		s.logf("create ring buffer: %v", err)
		return ErrOpenFailed
	}
	s.ring = ring
	s.state = StateReady
	return nil
}

func (s *Sink) readyToPausedLocked() error {
	s.nextSample = -1
	s.lastAlign = -1
	if s.ring != nil {
		s.ring.SetFlushing(false)
		s.ring.MayStart(false)
	}
	s.state = StatePaused
	return nil
}

func (s *Sink) pausedToPlayingLocked() error {
	if s.ring != nil {
		s.ring.MayStart(true)
	}

	var pipelineClock PipelineClock
	if s.base != nil {
		pipelineClock = s.base.PipelineClock()
	}
	if pipelineClock != nil && s.providedClock != nil && !s.isSelfSyncedLocked(pipelineClock) {
		itime := s.providedClock.Now()
		etime := pipelineClock.Now()
		if itime != sinkclock.None && etime != sinkclock.None {
			prev := s.providedClock.Calibration()
			rateNum, rateDenom := prev.RateNum, prev.RateDenom
			if rateNum == 0 {
				rateNum, rateDenom = 1, 1
			}
			if rateDenom == 0 {
				rateDenom = 1
			}
			s.providedClock.SetCalibration(sinkclock.Calibration{
				Internal: itime, External: etime, RateNum: rateNum, RateDenom: rateDenom,
			})
		}
		s.avgSkew = slave.UninitializedSkew
		s.nextSample = -1
		if s.slaveMethod == slave.Resample && s.providedClock != nil {
			s.providedClock.SlaveTo(pipelineClock, s.latencyDuration())
		}
	}

	if s.ring != nil {
		if err := s.ring.Start(); err != nil {
			return err
		}
	}
	s.state = StatePlaying
	return nil
}

func (s *Sink) isSelfSyncedLocked(pipelineClock PipelineClock) bool {
	pc, ok := pipelineClock.(*sinkclock.Clock)
	return ok && pc == s.providedClock
}

func (s *Sink) playingToPausedLocked() error {
	if s.ring != nil {
		s.ring.MayStart(false)
		if err := s.ring.Pause(); err != nil {
			return err
		}
	}
	if s.providedClock != nil {
		s.providedClock.StopSlaving()
	}
	s.state = StatePaused
	return nil
}

func (s *Sink) pausedToReadyLocked() error {
	if s.ring != nil {
		s.ring.SetFlushing(true)
		if err := s.ring.Release(); err != nil {
			return err
		}
	}
	s.state = StateReady
	return nil
}

func (s *Sink) readyToNullLocked() error {
	if s.ring != nil {
		_ = s.ring.Release()
		err := s.ring.Close()
		s.ring = nil
		if err != nil {
			s.logf("close device: %v", err)
		}
	}
	s.state = StateNull
	return nil
}

// FlushStart marks the ring buffer as flushing, unblocking any in-flight
// commit/preroll wait.
func (s *Sink) FlushStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring != nil {
		s.ring.SetFlushing(true)
	}
}

// FlushStop resets the sentinels and clears the flushing flag.
func (s *Sink) FlushStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avgSkew = slave.UninitializedSkew
	s.nextSample = -1
	if s.ring != nil {
		s.ring.SetFlushing(false)
	}
}

// NewSegment records the active segment for clipping and running-time
// conversion.
func (s *Sink) NewSegment(seg Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segment = seg
}

func (s *Sink) latencyDuration() time.Duration {
	return time.Duration(s.latencyTimeUs) * time.Microsecond
}
