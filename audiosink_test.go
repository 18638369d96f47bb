package audiosink

import (
	"testing"
	"time"

	"github.com/rustyguts/audiosink/internal/ringbuffer"
	"github.com/rustyguts/audiosink/internal/slave"
)

// fakePipelineClock is a settable PipelineClock used by render/state tests
// to stand in for the generic pipeline-wide master clock.
type fakePipelineClock struct{ now time.Duration }

func (c *fakePipelineClock) Now() time.Duration { return c.now }

// fakeBaseSink is a minimal BaseSink used by every test in this package, in
// place of the generic pipeline base-sink collaborator.
type fakeBaseSink struct {
	clock    PipelineClock
	baseTime time.Duration
	latency  time.Duration

	isLive, peerIsLive bool
	peerMin, peerMax   time.Duration

	prerollResult FlowResult
	eosWaits      []time.Duration
	eosResult     FlowResult
	messages      []ElementMessage
}

func newFakeBaseSink(clock PipelineClock) *fakeBaseSink {
	return &fakeBaseSink{clock: clock, prerollResult: FlowOK, eosResult: FlowOK}
}

func (f *fakeBaseSink) QueryLatency() (bool, bool, time.Duration, time.Duration) {
	return f.isLive, f.peerIsLive, f.peerMin, f.peerMax
}
func (f *fakeBaseSink) WaitPreroll() FlowResult { return f.prerollResult }
func (f *fakeBaseSink) WaitEos(runningTime time.Duration, _ <-chan struct{}) FlowResult {
	f.eosWaits = append(f.eosWaits, runningTime)
	return f.eosResult
}
func (f *fakeBaseSink) GetLatency() time.Duration   { return f.latency }
func (f *fakeBaseSink) GetBaseTime() time.Duration  { return f.baseTime }
func (f *fakeBaseSink) PipelineClock() PipelineClock { return f.clock }
func (f *fakeBaseSink) PostMessage(m ElementMessage) { f.messages = append(f.messages, m) }

// newPlayingSink brings a Sink with a fresh ringbuffer.Fake into PLAYING at
// the given rate/segment geometry, with an independent pipeline clock so
// the sink is genuinely slaved (not self-synced). segTotal is chosen so
// latency-time (10ms default) * segTotal == bufferTimeUs.
func newPlayingSink(t *testing.T, method slave.Method, segTotal int64) (*Sink, *ringbuffer.Fake, *fakeBaseSink, *fakePipelineClock) {
	t.Helper()
	fake := ringbuffer.NewFake()
	s := New(
		WithSlaveMethod(method),
		WithCreateRingBuffer(func() (RingBuffer, error) { return fake, nil }),
		WithBufferTime(int64(segTotal)*10000),
		WithLatencyTime(10000),
	)
	pc := &fakePipelineClock{now: 0}
	base := newFakeBaseSink(pc)
	s.SetBaseSink(base)

	if err := s.SetState(StateReady); err != nil {
		t.Fatalf("NULL->READY: %v", err)
	}
	if err := s.SetFormat(Format{Rate: 48000, Channels: 2, Width: 16, Depth: 16, Signed: true}); err != nil {
		t.Fatalf("SetFormat: %v", err)
	}
	if err := s.SetState(StatePaused); err != nil {
		t.Fatalf("READY->PAUSED: %v", err)
	}
	if err := s.SetState(StatePlaying); err != nil {
		t.Fatalf("PAUSED->PLAYING: %v", err)
	}
	return s, fake, base, pc
}

func pcmBuffer(samples int) []byte {
	return make([]byte, samples*4)
}
