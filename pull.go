package audiosink

// EnablePull installs the sink as the ring buffer's pull-mode producer:
// the ring buffer's device thread calls back into PullCallback whenever
// it needs more bytes. Pulling must be explicitly permitted at
// construction time via WithPullEnabled before it can be activated here.
func (s *Sink) EnablePull() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canActivatePull {
		return ErrPullNotEnabled
	}
	if s.ring == nil {
		return ErrNotNegotiated
	}
	s.ring.SetCallback(s.pullTrampoline, nil)
	return nil
}

// pullTrampoline adapts the ring buffer's untyped PullFunc signature to
// PullCallback; userData is unused since the sink itself is the producer.
func (s *Sink) pullTrampoline(_ any, segment []byte) int {
	return s.PullCallback(segment)
}

// PullCallback fills dst with up to len(dst) bytes from the configured
// PullFunc producer (the upstream peer) and returns how many bytes were
// filled. A short fill (filled < len(dst)) signals end of stream: the
// callback posts an Eos message upstream exactly once, latched via
// eosPosted so a producer that keeps returning short fills after EOS
// doesn't repost.
func (s *Sink) PullCallback(dst []byte) int {
	s.mu.Lock()
	fn := s.pullFn
	alreadyPosted := s.eosPosted
	s.mu.Unlock()

	if fn == nil {
		return 0
	}

	filled := fn(dst)
	if filled < len(dst) && !alreadyPosted {
		s.mu.Lock()
		s.eosPosted = true
		s.mu.Unlock()
		s.postMessage(MessageEos, "end of stream")
	}
	return filled
}

// SetPullFunc installs the upstream producer PullCallback drives. Passing
// nil disables pulling (PullCallback then returns 0 immediately).
func (s *Sink) SetPullFunc(fn PullFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pullFn = fn
	s.eosPosted = false
}
