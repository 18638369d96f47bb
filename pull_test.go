package audiosink

import (
	"testing"

	"github.com/rustyguts/audiosink/internal/ringbuffer"
)

func TestPullCallbackDrivesProducer(t *testing.T) {
	s := New()
	calls := 0
	s.SetPullFunc(func(dst []byte) int {
		calls++
		for i := range dst {
			dst[i] = 0x7f
		}
		return len(dst)
	})
	dst := make([]byte, 64)
	n := s.PullCallback(dst)
	if n != 64 {
		t.Errorf("PullCallback() = %d, want 64", n)
	}
	if calls != 1 {
		t.Errorf("producer called %d times, want 1", calls)
	}
}

func TestPullCallbackWithoutProducerReturnsZero(t *testing.T) {
	s := New()
	if n := s.PullCallback(make([]byte, 16)); n != 0 {
		t.Errorf("PullCallback() = %d, want 0", n)
	}
}

func TestPullCallbackPostsEosOnceOnShortFill(t *testing.T) {
	s := New()
	base := newFakeBaseSink(&fakePipelineClock{})
	s.SetBaseSink(base)
	var delivered []ElementMessage
	s.OnMessage = func(m ElementMessage) { delivered = append(delivered, m) }
	s.SetPullFunc(func(dst []byte) int { return len(dst) / 2 })

	s.PullCallback(make([]byte, 64))
	s.PullCallback(make([]byte, 64))

	countEos := func(msgs []ElementMessage) int {
		n := 0
		for _, m := range msgs {
			if m.Kind == MessageEos {
				n++
			}
		}
		return n
	}
	if n := countEos(base.messages); n != 1 {
		t.Errorf("Eos posted to the base sink %d times, want exactly 1 (latched)", n)
	}
	if n := countEos(delivered); n != 1 {
		t.Errorf("Eos delivered to OnMessage %d times, want exactly 1 (latched)", n)
	}
}

func TestEnablePullRequiresPullEnabledOption(t *testing.T) {
	fake := ringbuffer.NewFake()
	s := New(WithCreateRingBuffer(func() (RingBuffer, error) { return fake, nil }))
	if err := s.SetState(StateReady); err != nil {
		t.Fatal(err)
	}
	if err := s.EnablePull(); err != ErrPullNotEnabled {
		t.Errorf("EnablePull() = %v, want ErrPullNotEnabled", err)
	}
}

func TestEnablePullRequiresRingBuffer(t *testing.T) {
	s := New(WithPullEnabled(true))
	if err := s.EnablePull(); err != ErrNotNegotiated {
		t.Errorf("EnablePull() = %v, want ErrNotNegotiated", err)
	}
}

func TestEnablePullInstallsCallback(t *testing.T) {
	fake := ringbuffer.NewFake()
	s := New(WithCreateRingBuffer(func() (RingBuffer, error) { return fake, nil }), WithPullEnabled(true))
	if err := s.SetState(StateReady); err != nil {
		t.Fatal(err)
	}
	s.SetPullFunc(func(dst []byte) int { return len(dst) })
	if err := s.EnablePull(); err != nil {
		t.Fatalf("EnablePull: %v", err)
	}
	if n := fake.Pull(make([]byte, 32)); n != 32 {
		t.Errorf("ring-driven Pull() = %d, want 32", n)
	}
}
