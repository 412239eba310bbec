package convolve

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// DefaultFFTSize is used when FFTPlan is constructed with N <= 0.
const DefaultFFTSize = 4096

// FFTPlan owns the forward and inverse real<->complex FFT plans for a
// fixed size N and vends scratch buffers sized for them. It is shared
// read-only between an ImpulseResponse and every Convolver built against
// it; the same FFTPlan must be used on both sides of that pairing.
type FFTPlan struct {
	n    int
	real *algofft.PlanRealT[float32, complex64]
}

// NewFFTPlan builds a plan for N-point real<->complex transforms. N
// defaults to DefaultFFTSize when <= 0. measureTimeSeconds is an
// advisory planning-time budget for planners that support it; algo-fft
// has no tunable planner, so the value is accepted and ignored, as
// spec.md's FFTPlan contract explicitly permits.
func NewFFTPlan(n int, measureTimeSeconds float64) (*FFTPlan, error) {
	_ = measureTimeSeconds

	if n <= 0 {
		n = DefaultFFTSize
	}

	plan, err := algofft.NewPlanReal32(n)
	if err != nil {
		return nil, fmt.Errorf("convolve: failed to build FFT plan of size %d: %w", n, err)
	}

	return &FFTPlan{n: n, real: plan}, nil
}

// Size returns N.
func (p *FFTPlan) Size() int { return p.n }

// SpectrumSize returns N/2+1, the number of complex bins in a transform.
func (p *FFTPlan) SpectrumSize() int { return p.n/2 + 1 }

// Forward executes the forward real-to-complex transform: src holds N
// real samples, dst receives N/2+1 complex bins. The result is unscaled;
// callers divide by N at the per-bin multiply step.
func (p *FFTPlan) Forward(dst []complex64, src []float32) error {
	return p.real.Forward(dst, src)
}

// Inverse executes the inverse complex-to-real transform: src holds
// N/2+1 complex bins, dst receives N real samples. Output is NOT
// rescaled by 1/N.
func (p *FFTPlan) Inverse(dst []float32, src []complex64) error {
	return p.real.Inverse(dst, src)
}

// NewTimeBuffer allocates a buffer of N real samples suitable for Forward/Inverse.
func (p *FFTPlan) NewTimeBuffer() []float32 { return make([]float32, p.n) }

// NewSpectrum allocates a buffer of N/2+1 complex bins suitable for Forward/Inverse.
func (p *FFTPlan) NewSpectrum() []complex64 { return make([]complex64, p.SpectrumSize()) }
