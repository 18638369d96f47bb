package ringspec

import "testing"

func TestSpecValid(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want bool
	}{
		{"good", Spec{Rate: 48000, BytesPerSample: 4, SegSize: 1920}, true},
		{"zero rate", Spec{Rate: 0, BytesPerSample: 4, SegSize: 1920}, false},
		{"zero width", Spec{Rate: 48000, BytesPerSample: 0, SegSize: 1920}, false},
		{"misaligned segsize", Spec{Rate: 48000, BytesPerSample: 4, SegSize: 1921}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSamplesPerSeg(t *testing.T) {
	s := Spec{BytesPerSample: 4, SegSize: 1920}
	if got := s.SamplesPerSeg(); got != 480 {
		t.Errorf("SamplesPerSeg() = %d, want 480", got)
	}
}

func TestNsToSamplesRoundTrip(t *testing.T) {
	const rate = 48000
	for _, samples := range []int64{0, 1, 480, 960, 48000, 48000 * 3600} {
		ns := SamplesToNs(samples, rate)
		back := NsToSamples(ns, rate)
		// Both conversions round toward zero, so a sample count whose
		// duration is not a whole number of nanoseconds comes back one short.
		want := samples
		if samples*1e9%rate != 0 {
			want = samples - 1
		}
		if back != want {
			t.Errorf("round trip %d samples: ns=%d back=%d, want %d", samples, ns, back, want)
		}
	}
}

func TestNsToSamplesNegativeSaturates(t *testing.T) {
	if got := NsToSamples(-5, 48000); got != 0 {
		t.Errorf("NsToSamples(-5) = %d, want 0", got)
	}
	if got := SamplesToNs(-5, 48000); got != 0 {
		t.Errorf("SamplesToNs(-5) = %d, want 0", got)
	}
}

func TestNsToSamplesLargeNoOverflow(t *testing.T) {
	// 10 years in nanoseconds at 48kHz should not overflow int64 math.
	const tenYearsNs = int64(10) * 365 * 24 * 3600 * 1e9
	got := NsToSamples(tenYearsNs, 48000)
	if got <= 0 {
		t.Errorf("expected positive sample count, got %d", got)
	}
}

func TestDerive(t *testing.T) {
	s := Spec{Rate: 48000, BytesPerSample: 4, SegSize: 1920, SegTotal: 10}
	d := s.Derive()
	if d.LatencyTimeUs != 10000 {
		t.Errorf("LatencyTimeUs = %d, want 10000", d.LatencyTimeUs)
	}
	if d.BufferTimeUs != 100000 {
		t.Errorf("BufferTimeUs = %d, want 100000", d.BufferTimeUs)
	}
}

func TestSatSub(t *testing.T) {
	if got := SatSub(5, 10); got != 0 {
		t.Errorf("SatSub(5,10) = %d, want 0", got)
	}
	if got := SatSub(10, 5); got != 5 {
		t.Errorf("SatSub(10,5) = %d, want 5", got)
	}
}
