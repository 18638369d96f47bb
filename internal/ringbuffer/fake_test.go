package ringbuffer

import (
	"testing"

	"github.com/rustyguts/audiosink/internal/ringspec"
)

func testSpec() ringspec.Spec {
	return ringspec.Spec{Rate: 48000, BytesPerSample: 4, SegSize: 1920, SegTotal: 10, SegLatency: 2}
}

func TestAcquireRejectsInvalidSpec(t *testing.T) {
	f := NewFake()
	err := f.Acquire(ringspec.Spec{Rate: 0})
	if err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if f.IsAcquired() {
		t.Error("IsAcquired() should be false after failed Acquire")
	}
}

func TestCommitFullWritesContiguously(t *testing.T) {
	f := NewFake()
	if err := f.Acquire(testSpec()); err != nil {
		t.Fatal(err)
	}
	data := make([]byte, 960*4)
	var offset int64
	var accum float64
	n, err := f.CommitFull(&offset, data, 960, 960, &accum)
	if err != nil {
		t.Fatalf("CommitFull: %v", err)
	}
	if n != 960 {
		t.Errorf("written = %d, want 960", n)
	}
	if offset != 960 {
		t.Errorf("offset after commit = %d, want 960", offset)
	}
}

func TestCommitFullRejectsWhenFlushing(t *testing.T) {
	f := NewFake()
	if err := f.Acquire(testSpec()); err != nil {
		t.Fatal(err)
	}
	f.SetFlushing(true)
	var offset int64
	var accum float64
	_, err := f.CommitFull(&offset, make([]byte, 40), 10, 10, &accum)
	if err != ErrWrongState {
		t.Errorf("err = %v, want ErrWrongState", err)
	}
}

func TestCommitFullPartialWrite(t *testing.T) {
	f := NewFake()
	if err := f.Acquire(testSpec()); err != nil {
		t.Fatal(err)
	}
	f.WriteLimit = 100
	var offset int64
	var accum float64
	n, err := f.CommitFull(&offset, make([]byte, 960*4), 960, 960, &accum)
	if n != 100 {
		t.Errorf("written = %d, want 100 (WriteLimit)", n)
	}
	if err != ErrWrongState {
		t.Errorf("short write should report ErrWrongState, got %v", err)
	}
	if offset != 100 {
		t.Errorf("offset = %d, want 100", offset)
	}
}

func TestPullCallback(t *testing.T) {
	f := NewFake()
	called := false
	f.SetCallback(func(userData any, segment []byte) int {
		called = true
		return len(segment)
	}, nil)
	n := f.Pull(make([]byte, 64))
	if !called {
		t.Error("callback was not invoked")
	}
	if n != 64 {
		t.Errorf("Pull() = %d, want 64", n)
	}
}

func TestPullWithNoCallback(t *testing.T) {
	f := NewFake()
	if n := f.Pull(make([]byte, 64)); n != 0 {
		t.Errorf("Pull() with no callback = %d, want 0", n)
	}
}

func TestAdvancePlaybackAndDelay(t *testing.T) {
	f := NewFake()
	_ = f.Acquire(testSpec())
	f.AdvancePlayback(960)
	f.SetDelay(100)
	if f.SamplesDone() != 960 {
		t.Errorf("SamplesDone() = %d, want 960", f.SamplesDone())
	}
	if f.Delay() != 100 {
		t.Errorf("Delay() = %d, want 100", f.Delay())
	}
}

func TestReleaseClearsAcquired(t *testing.T) {
	f := NewFake()
	_ = f.Acquire(testSpec())
	_ = f.Release()
	if f.IsAcquired() {
		t.Error("IsAcquired() should be false after Release")
	}
	if f.Rate() != 0 {
		t.Errorf("Rate() after release = %d, want 0", f.Rate())
	}
}
