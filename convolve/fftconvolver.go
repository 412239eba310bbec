package convolve

// FFTConvolver convolves arriving blocks of up to M real samples against
// a single partition H in the frequency domain. It owns the state a
// single partition needs: a shift buffer holding the current and
// previous M-sample halves of the analysis window, a tail buffer for
// textbook overlap-add, and FFT scratch space.
//
// The FDL-prefixed methods (NextFDLIn, NextFDLAcc, IFFTFDL) are what the
// partitioned Convolver uses; Next and Tail are a self-contained
// overlap-add convenience path for callers that are not driving a
// frequency-delay-line scheduler themselves.
type FFTConvolver struct {
	h Partition // shared, read-only partition spectrum
	n int       // FFT size
	m int        // partition size, N/2

	shift []float32 // N samples: previous half + current half
	tail  []float32 // M-1 samples of overlap-add carry

	scratchTime []float32 // N samples, IFFT scratch for Next/IFFTFDL
}

// NewFFTConvolver creates a convolver for partition h under plan.
func NewFFTConvolver(h Partition, plan *FFTPlan) *FFTConvolver {
	n := plan.Size()
	m := n / 2

	return &FFTConvolver{
		h:           h,
		n:           n,
		m:           m,
		shift:       make([]float32, n),
		tail:        make([]float32, m-1),
		scratchTime: make([]float32, n),
	}
}

// setPartition swaps the partition spectrum this convolver multiplies
// against, used by Convolver.SetImpulseResponse.
func (c *FFTConvolver) setPartition(h Partition) { c.h = h }

// Clear zeroes the shift and tail buffers so a fresh convolution can start.
func (c *FFTConvolver) Clear() {
	for i := range c.shift {
		c.shift[i] = 0
	}

	for i := range c.tail {
		c.tail[i] = 0
	}
}

// NextFDLIn advances the shift buffer with up to M new input samples,
// forward-transforms it into outX (so the caller can cache the
// spectrum in its frequency delay line), and additively accumulates
// this partition's contribution into acc. length must be <= M.
func (c *FFTConvolver) NextFDLIn(plan *FFTPlan, in []float32, acc []complex64, length int, outX []complex64) error {
	if length > c.m {
		return ErrBufferTooLarge
	}

	copy(c.shift, c.shift[c.m:])

	for i := c.m; i < c.n; i++ {
		c.shift[i] = 0
	}

	copy(c.shift[c.m:c.m+length], in[:length])

	if err := plan.Forward(outX, c.shift); err != nil {
		return err
	}

	c.accumulate(outX, acc)

	return nil
}

// NextFDLAcc accumulates this partition's contribution into acc using a
// previously cached spectrum from the caller's frequency delay line.
func (c *FFTConvolver) NextFDLAcc(cached []complex64, acc []complex64) {
	c.accumulate(cached, acc)
}

func (c *FFTConvolver) accumulate(x []complex64, acc []complex64) {
	scale := complex(1/float32(c.n), 0)
	for k := range acc {
		acc[k] += x[k] * c.h[k] * scale
	}
}

// IFFTFDL inverse-transforms acc and copies the valid second half (the
// only part that is a correct convolution result for this call) into out.
func (c *FFTConvolver) IFFTFDL(plan *FFTPlan, acc []complex64, out []float32, length int) error {
	if length > c.m {
		return ErrBufferTooLarge
	}

	if err := plan.Inverse(c.scratchTime, acc); err != nil {
		return err
	}

	copy(out[:length], c.scratchTime[c.m:c.m+length])

	return nil
}

// Next implements textbook overlap-add convolution for a single
// partition, for clients that are not using the partitioned FDL
// scheduler. length must be <= M.
func (c *FFTConvolver) Next(plan *FFTPlan, in []float32, out []float32, length int) error {
	if length > c.m {
		return ErrBufferTooLarge
	}

	buf := c.scratchTime
	for i := range buf {
		buf[i] = 0
	}

	copy(buf[:length], in[:length])

	spectrum := plan.NewSpectrum()
	if err := plan.Forward(spectrum, buf); err != nil {
		return err
	}

	scale := complex(1/float32(c.n), 0)
	for k := range spectrum {
		spectrum[k] *= c.h[k] * scale
	}

	if err := plan.Inverse(buf, spectrum); err != nil {
		return err
	}

	for i := range length {
		v := buf[i]
		if i < len(c.tail) {
			v += c.tail[i]
		}

		out[i] = v
	}

	newTail := make([]float32, c.m-1)
	copy(newTail, buf[length:length+c.m-1])

	for i := length; i < len(c.tail); i++ {
		newTail[i-length] += c.tail[i]
	}

	c.tail = newTail

	return nil
}

// Tail drains the overlap-add carry into out, returning how many
// samples were produced. It always reports eos = true: the tail itself
// has no further state once drained.
func (c *FFTConvolver) Tail(out []float32) (length int, eos bool) {
	length = len(c.tail)
	if length > len(out) {
		length = len(out)
	}

	copy(out[:length], c.tail[:length])

	for i := range c.tail {
		c.tail[i] = 0
	}

	return length, true
}
