package audiosink

import (
	"time"

	"github.com/rustyguts/audiosink/internal/ringspec"
)

// Eos drains the sink: it starts the ring buffer if it was
// acquired-but-never-started (content shorter than one buffer), converts
// the pending sample tail to a running time, and blocks until every
// committed sample has been played before resetting nextSample. The sink
// passes no cancel channel to BaseSink.WaitEos; a cancelled wait is
// whatever non-OK result the BaseSink returns, which Eos propagates after
// resetting nextSample.
func (s *Sink) Eos() FlowResult {
	s.mu.Lock()

	if s.ring == nil || s.ring.Rate() == 0 {
		s.mu.Unlock()
		return FlowOK
	}
	if s.ring.IsAcquired() {
		_ = s.ring.Start()
	}

	if s.nextSample == -1 {
		s.mu.Unlock()
		return FlowOK
	}

	rate := s.ring.Rate()
	runningTime := time.Duration(ringspec.SamplesToNs(s.nextSample, rate))

	var baseTime time.Duration
	if s.base != nil {
		baseTime = s.base.GetBaseTime()
	}
	if runningTime > baseTime {
		runningTime -= baseTime
	} else {
		runningTime = 0
	}

	base := s.base
	s.mu.Unlock()

	if base != nil {
		if fr := base.WaitEos(runningTime, nil); fr != FlowOK {
			s.mu.Lock()
			s.nextSample = -1
			s.mu.Unlock()
			return fr
		}
	}

	s.mu.Lock()
	s.nextSample = -1
	s.mu.Unlock()
	return FlowOK
}
