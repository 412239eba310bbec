package convolve

import "testing"

func TestHRTFIsEmptyInitially(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(64, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	hrtf := NewHRTF(plan)
	if !hrtf.IsEmpty() {
		t.Error("IsEmpty() = false on a fresh HRTF")
	}

	left, right, _, _ := hrtf.GetImpulseResponse(0, 0)
	if left != nil || right != nil {
		t.Error("GetImpulseResponse on an empty HRTF should return nils")
	}
}

func TestHRTFAddImpulseResponseRejectsNonMono(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(64, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	hrtf := NewHRTF(plan)

	stereo := newMemReader(48000, [][]float32{impulseSamples(8), impulseSamples(8)})
	if hrtf.AddImpulseResponse(stereo, 0, 0) {
		t.Error("AddImpulseResponse accepted a non-mono source")
	}
}

func TestHRTFAddImpulseResponseRejectsRateMismatchAfterFirst(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(64, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	hrtf := NewHRTF(plan)

	if !hrtf.AddImpulseResponse(newMemReader(48000, [][]float32{impulseSamples(8)}), 0, 0) {
		t.Fatal("first AddImpulseResponse unexpectedly rejected")
	}

	if hrtf.AddImpulseResponse(newMemReader(44100, [][]float32{impulseSamples(8)}), 90, 0) {
		t.Error("AddImpulseResponse accepted a rate mismatch against the fixed database rate")
	}
}

func TestHRTFGetImpulseResponseNearestNeighbor(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(64, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	hrtf := NewHRTF(plan)

	for _, az := range []float32{0, 90, 180, 270} {
		if !hrtf.AddImpulseResponse(newMemReader(48000, [][]float32{impulseSamples(8)}), az, 0) {
			t.Fatalf("AddImpulseResponse(az=%v) unexpectedly rejected", az)
		}
	}

	_, _, effAz, effEl := hrtf.GetImpulseResponse(100, 0)
	if effAz != 90 {
		t.Errorf("effAz = %v, want 90 (nearest to 100)", effAz)
	}

	if effEl != 0 {
		t.Errorf("effEl = %v, want 0", effEl)
	}
}

func TestHRTFGetImpulseResponseTieBreaksTowardSmaller(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(64, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	hrtf := NewHRTF(plan)

	// Azimuth 0 and 180 are equidistant from 90; ascending-order
	// scanning with strict "<" favors the smaller candidate.
	hrtf.AddImpulseResponse(newMemReader(48000, [][]float32{impulseSamples(8)}), 0, 0)
	hrtf.AddImpulseResponse(newMemReader(48000, [][]float32{impulseSamples(8)}), 180, 0)

	_, _, effAz, _ := hrtf.GetImpulseResponse(90, 0)
	if effAz != 0 {
		t.Errorf("effAz = %v, want 0 (tie-break favors the smaller candidate)", effAz)
	}
}

func TestHRTFGetImpulseResponseLeftEarIsMirroredAzimuth(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(64, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	hrtf := NewHRTF(plan)

	right30 := newMemReader(48000, [][]float32{impulseSamples(8)})
	left330 := newMemReader(48000, [][]float32{impulseSamples(8)})

	hrtf.AddImpulseResponse(right30, 30, 0)
	hrtf.AddImpulseResponse(left330, 330, 0)

	left, right, effAz, _ := hrtf.GetImpulseResponse(30, 0)
	if effAz != 30 {
		t.Fatalf("effAz = %v, want 30", effAz)
	}

	if left == right {
		t.Error("left and right ear impulse responses should be distinct for an off-center azimuth")
	}
}

func TestHRTFAddImpulseResponseNormalizesAzimuth(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(64, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	hrtf := NewHRTF(plan)

	if !hrtf.AddImpulseResponse(newMemReader(48000, [][]float32{impulseSamples(8)}), -30, 0) {
		t.Fatal("AddImpulseResponse unexpectedly rejected")
	}

	_, _, effAz, _ := hrtf.GetImpulseResponse(330, 0)
	if effAz != 330 {
		t.Errorf("effAz = %v, want 330 (azimuth -30 normalized to 330)", effAz)
	}
}
