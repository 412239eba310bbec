package convolve

// memReader is a fixed, in-memory mono/multichannel Reader used across
// the package's tests. data is de-interleaved, one slice per channel.
type memReader struct {
	specs    Specs
	data     [][]float32
	position int64
}

func newMemReader(rate float64, data [][]float32) *memReader {
	return &memReader{specs: Specs{Rate: rate, Channels: len(data)}, data: data}
}

func (r *memReader) Specs() Specs { return r.specs }

func (r *memReader) IsSeekable() bool { return true }

func (r *memReader) Length() int64 {
	if len(r.data) == 0 {
		return 0
	}

	return int64(len(r.data[0]))
}

func (r *memReader) Position() int64 { return r.position }

func (r *memReader) Seek(position int64) error {
	if position < 0 || position > r.Length() {
		position = r.Length()
	}

	r.position = position

	return nil
}

func (r *memReader) Read(buffer []float32, length int) (produced int, eos bool) {
	remaining := r.Length() - r.position
	if remaining <= 0 {
		return 0, true
	}

	n := int64(length)
	if n > remaining {
		n = remaining
	}

	channels := r.specs.Channels
	for i := range int(n) {
		for c := range channels {
			buffer[i*channels+c] = r.data[c][int(r.position)+i]
		}
	}

	r.position += n

	return int(n), r.position >= r.Length()
}

// impulseSamples returns a unit impulse at index 0 in an n-sample buffer.
func impulseSamples(n int) []float32 {
	out := make([]float32, n)
	out[0] = 1

	return out
}

// drainReader pulls every sample out of r in block-sized chunks,
// de-interleaving into one slice per channel.
func drainReader(r Reader, blockSize int) [][]float32 {
	channels := r.Specs().Channels
	out := make([][]float32, channels)

	buf := make([]float32, blockSize*channels)

	for {
		n, eos := r.Read(buf, blockSize)

		for i := range n {
			for c := range channels {
				out[c] = append(out[c], buf[i*channels+c])
			}
		}

		if eos {
			break
		}
	}

	return out
}
