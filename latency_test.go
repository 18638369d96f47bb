package audiosink

import (
	"testing"
	"time"

	"github.com/rustyguts/audiosink/internal/slave"
)

func TestQueryLatencyNotYetKnownWithoutRing(t *testing.T) {
	s := New()
	_, ok := s.QueryLatency()
	if ok {
		t.Error("QueryLatency() ok = true, want false before acquisition")
	}
}

func TestQueryLatencyLiveCombinesPeerAndOurs(t *testing.T) {
	s, _, base, _ := newPlayingSink(t, slave.None, 10)
	base.isLive = true
	base.peerIsLive = true
	base.peerMin = 5 * time.Millisecond
	base.peerMax = 50 * time.Millisecond

	info, ok := s.QueryLatency()
	if !ok {
		t.Fatal("QueryLatency() ok = false, want true")
	}
	if !info.IsLive {
		t.Error("IsLive = false, want true")
	}
	if info.Min <= base.peerMin {
		t.Errorf("Min = %v, want > peerMin (%v)", info.Min, base.peerMin)
	}
	if info.Max != info.Min+base.peerMax {
		t.Errorf("Max = %v, want Min+peerMax = %v", info.Max, info.Min+base.peerMax)
	}
}

func TestQueryLatencyNotLiveReportsUnbounded(t *testing.T) {
	s, _, base, _ := newPlayingSink(t, slave.None, 10)
	base.isLive = false
	base.peerIsLive = true

	info, ok := s.QueryLatency()
	if !ok {
		t.Fatal("QueryLatency() ok = false, want true")
	}
	if info.Min != 0 {
		t.Errorf("Min = %v, want 0", info.Min)
	}
	if info.Max != MaxUnbounded {
		t.Errorf("Max = %v, want MaxUnbounded", info.Max)
	}
}

