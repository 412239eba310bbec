package convolve

import "testing"

func TestNewImpulseResponseFromSamplesRejectsEmpty(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(256, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	if _, err := NewImpulseResponseFromSamples(48000, nil, plan); err != ErrEmptyImpulseResponse {
		t.Errorf("error = %v, want ErrEmptyImpulseResponse", err)
	}

	if _, err := NewImpulseResponseFromSamples(48000, [][]float32{{}}, plan); err != ErrEmptyImpulseResponse {
		t.Errorf("error = %v, want ErrEmptyImpulseResponse", err)
	}
}

func TestNewImpulseResponseFromSamplesRejectsMismatchedChannelLengths(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(256, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	_, err = NewImpulseResponseFromSamples(48000, [][]float32{
		make([]float32, 10),
		make([]float32, 11),
	}, plan)
	if err == nil {
		t.Fatal("expected an error for mismatched channel lengths, got nil")
	}
}

func TestNewImpulseResponseFromSamplesPartitionCount(t *testing.T) {
	t.Parallel()

	const n = 256

	plan, err := NewFFTPlan(n, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	m := n / 2

	tests := []struct {
		length        int
		wantPartitions int
	}{
		{1, 1},
		{m, 1},
		{m + 1, 2},
		{m * 3, 3},
		{m*3 + 1, 4},
	}

	for _, tc := range tests {
		ir, err := NewImpulseResponseFromSamples(48000, [][]float32{make([]float32, tc.length)}, plan)
		if err != nil {
			t.Fatalf("length %d: NewImpulseResponseFromSamples failed: %v", tc.length, err)
		}

		if ir.NumPartitions() != tc.wantPartitions {
			t.Errorf("length %d: NumPartitions() = %d, want %d", tc.length, ir.NumPartitions(), tc.wantPartitions)
		}

		if ir.Length() != tc.length {
			t.Errorf("length %d: Length() = %d, want %d", tc.length, ir.Length(), tc.length)
		}
	}
}

func TestNewImpulseResponseBuffersReader(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(256, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	source := newMemReader(48000, [][]float32{impulseSamples(300)})

	ir, err := NewImpulseResponse(source, plan)
	if err != nil {
		t.Fatalf("NewImpulseResponse failed: %v", err)
	}

	if ir.Specs().Channels != 1 {
		t.Errorf("Channels = %d, want 1", ir.Specs().Channels)
	}

	if ir.Length() != 300 {
		t.Errorf("Length() = %d, want 300", ir.Length())
	}
}

func TestNewImpulseResponseRejectsEmptyReader(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(256, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	source := newMemReader(48000, [][]float32{{}})

	if _, err := NewImpulseResponse(source, plan); err != ErrEmptyImpulseResponse {
		t.Errorf("error = %v, want ErrEmptyImpulseResponse", err)
	}
}
