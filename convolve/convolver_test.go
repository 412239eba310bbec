package convolve

import "testing"

func buildImpulsePartitions(t *testing.T, plan *FFTPlan, irLength int) []Partition {
	t.Helper()

	ir, err := NewImpulseResponseFromSamples(48000, [][]float32{impulseSamples(irLength)}, plan)
	if err != nil {
		t.Fatalf("NewImpulseResponseFromSamples failed: %v", err)
	}

	return ir.Channel(0)
}

func TestNewConvolverRejectsEmptyPartitionSet(t *testing.T) {
	t.Parallel()

	plan, err := NewFFTPlan(64, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	pool, err := NewThreadPool(1)
	if err != nil {
		t.Fatalf("NewThreadPool failed: %v", err)
	}
	defer pool.Close()

	if _, err := NewConvolver(nil, 0, pool, plan); err != ErrEmptyImpulseResponse {
		t.Errorf("error = %v, want ErrEmptyImpulseResponse", err)
	}
}

// TestConvolverUnitImpulsePassesThroughWithoutLatency verifies the core
// property: a single-partition unit-impulse response at sample 0
// reproduces each input block in the same call's output block.
func TestConvolverUnitImpulsePassesThroughWithoutLatency(t *testing.T) {
	t.Parallel()

	const n = 64

	plan, err := NewFFTPlan(n, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	pool, err := NewThreadPool(2)
	if err != nil {
		t.Fatalf("NewThreadPool failed: %v", err)
	}
	defer pool.Close()

	parts := buildImpulsePartitions(t, plan, n/2)

	cv, err := NewConvolver(parts, n/2, pool, plan)
	if err != nil {
		t.Fatalf("NewConvolver failed: %v", err)
	}

	m := plan.Size() / 2

	block1 := make([]float32, m)
	block1[5] = 0.75

	out1 := make([]float32, m)
	produced, eos := cv.GetNext(block1, out1, m)

	if produced != m || eos {
		t.Fatalf("block1: produced=%d eos=%v, want %d false", produced, eos, m)
	}

	const eps = 1e-3

	for i, v := range out1 {
		want := float32(0)
		if i == 5 {
			want = 0.75
		}

		if diff := v - want; diff > eps || diff < -eps {
			t.Errorf("out1[%d] = %v, want ~%v (input passed through unshifted)", i, v, want)
		}
	}

	block2 := make([]float32, m)
	out2 := make([]float32, m)

	produced, eos = cv.GetNext(block2, out2, m)
	if produced != m || eos {
		t.Fatalf("block2: produced=%d eos=%v, want %d false", produced, eos, m)
	}

	for i, v := range out2 {
		if v > eps || v < -eps {
			t.Errorf("out2[%d] = %v, want 0 (silent input block)", i, v)
		}
	}
}

func TestConvolverTailDrainReportsEOSAfterPPartitions(t *testing.T) {
	t.Parallel()

	const n = 64

	plan, err := NewFFTPlan(n, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	pool, err := NewThreadPool(2)
	if err != nil {
		t.Fatalf("NewThreadPool failed: %v", err)
	}
	defer pool.Close()

	m := plan.Size() / 2
	irLength := m*3 + 1 // 4 partitions

	parts := buildImpulsePartitions(t, plan, irLength)

	cv, err := NewConvolver(parts, irLength, pool, plan)
	if err != nil {
		t.Fatalf("NewConvolver failed: %v", err)
	}

	if cv.NumPartitions() != 4 {
		t.Fatalf("NumPartitions() = %d, want 4", cv.NumPartitions())
	}

	in := make([]float32, m)
	out := make([]float32, m)

	if _, eos := cv.GetNext(in, out, m); eos {
		t.Fatal("input block reported eos")
	}

	// Drain the tail: P calls with in=nil are needed before eos.
	sawEOS := false

	for i := 0; i < cv.NumPartitions()+1; i++ {
		_, eos := cv.GetNext(nil, out, m)
		if eos {
			sawEOS = true
			break
		}
	}

	if !sawEOS {
		t.Error("GetNext never reported eos while draining the tail")
	}

	_, eos := cv.GetNext(nil, out, m)
	if !eos {
		t.Error("GetNext after eos should keep reporting eos")
	}
}

func TestConvolverResetClearsState(t *testing.T) {
	t.Parallel()

	const n = 64

	plan, err := NewFFTPlan(n, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	pool, err := NewThreadPool(2)
	if err != nil {
		t.Fatalf("NewThreadPool failed: %v", err)
	}
	defer pool.Close()

	m := plan.Size() / 2
	parts := buildImpulsePartitions(t, plan, m)

	cv, err := NewConvolver(parts, m, pool, plan)
	if err != nil {
		t.Fatalf("NewConvolver failed: %v", err)
	}

	in := make([]float32, m)
	in[0] = 1
	out := make([]float32, m)

	cv.GetNext(in, out, m)
	cv.Reset()

	out2 := make([]float32, m)
	produced, eos := cv.GetNext(make([]float32, m), out2, m)

	if produced != m || eos {
		t.Fatalf("post-reset: produced=%d eos=%v, want %d false", produced, eos, m)
	}

	for i, v := range out2 {
		if v != 0 {
			t.Errorf("post-reset out2[%d] = %v, want 0 (state should have been cleared)", i, v)
		}
	}
}

// TestConvolverMatchesDirectConvolutionAcrossPartitions exercises an
// impulse response with a distinct nonzero tap in every partition (not
// just partition 0) and checks the streamed output against a brute-force
// direct convolution computed independently of the FDL machinery.
func TestConvolverMatchesDirectConvolutionAcrossPartitions(t *testing.T) {
	t.Parallel()

	const n = 64

	plan, err := NewFFTPlan(n, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	pool, err := NewThreadPool(3)
	if err != nil {
		t.Fatalf("NewThreadPool failed: %v", err)
	}
	defer pool.Close()

	m := plan.Size() / 2
	irLength := m*3 + 1 // 4 partitions, one tap placed in each

	taps := make([]float32, irLength)
	taps[0] = 1.0
	taps[m] = 0.5
	taps[2*m] = -0.3
	taps[3*m] = 0.2

	ir, err := NewImpulseResponseFromSamples(48000, [][]float32{taps}, plan)
	if err != nil {
		t.Fatalf("NewImpulseResponseFromSamples failed: %v", err)
	}

	cv, err := NewConvolver(ir.Channel(0), irLength, pool, plan)
	if err != nil {
		t.Fatalf("NewConvolver failed: %v", err)
	}

	if cv.NumPartitions() != 4 {
		t.Fatalf("NumPartitions() = %d, want 4", cv.NumPartitions())
	}

	x := pseudoSignal(m * 4)

	var stream []float32

	for off := 0; off < len(x); off += m {
		in := x[off : off+m]
		out := make([]float32, m)

		produced, eos := cv.GetNext(in, out, m)
		if eos {
			t.Fatalf("eos reported while feeding real input at offset %d", off)
		}

		stream = append(stream, out[:produced]...)
	}

	for {
		out := make([]float32, m)

		produced, eos := cv.GetNext(nil, out, m)
		stream = append(stream, out[:produced]...)

		if eos {
			break
		}
	}

	want := directConvolve(x, taps)

	overlap := len(stream)
	if overlap > len(want) {
		overlap = len(want)
	}

	if overlap < m*4 {
		t.Fatalf("overlap too small to be a meaningful check: %d", overlap)
	}

	const eps = 2e-3

	for i := 0; i < overlap; i++ {
		got := stream[i]

		diff := got - want[i]
		if diff > eps || diff < -eps {
			t.Errorf("sample %d: got %v, want %v (direct convolution)", i, got, want[i])
		}
	}
}

func directConvolve(x, h []float32) []float32 {
	out := make([]float32, len(x)+len(h)-1)
	for i := range x {
		for k := range h {
			out[i+k] += x[i] * h[k]
		}
	}

	return out
}

func pseudoSignal(n int) []float32 {
	out := make([]float32, n)

	seed := uint32(2463534242) // xorshift32
	for i := range out {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		out[i] = (float32(seed%20001) - 10000) / 10000
	}

	return out
}

func TestConvolverSetImpulseResponseRejectsPartitionCountChange(t *testing.T) {
	t.Parallel()

	const n = 64

	plan, err := NewFFTPlan(n, 0)
	if err != nil {
		t.Fatalf("NewFFTPlan failed: %v", err)
	}

	pool, err := NewThreadPool(1)
	if err != nil {
		t.Fatalf("NewThreadPool failed: %v", err)
	}
	defer pool.Close()

	m := plan.Size() / 2

	cv, err := NewConvolver(buildImpulsePartitions(t, plan, m), m, pool, plan)
	if err != nil {
		t.Fatalf("NewConvolver failed: %v", err)
	}

	longer := buildImpulsePartitions(t, plan, m*2+1)

	if err := cv.SetImpulseResponse(longer, m*2+1); err != ErrPlanMismatch {
		t.Errorf("error = %v, want ErrPlanMismatch", err)
	}
}
