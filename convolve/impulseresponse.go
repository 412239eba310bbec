package convolve

import "fmt"

// Partition is one M-sample, zero-padded-to-N partition of an impulse
// response, stored as its N/2+1 complex forward-FFT bins.
type Partition []complex64

// ImpulseResponse is the frequency-domain, per-channel, per-partition
// representation of a fully buffered impulse response. It is immutable
// after construction and cheap to share between any number of
// Convolvers built from the same FFTPlan.
type ImpulseResponse struct {
	specs    Specs
	length   int
	channels [][]Partition // channels[c][p]
	plan     *FFTPlan
}

// NewImpulseResponseFromSamples builds an ImpulseResponse directly from
// fully buffered, de-interleaved channel data. Every channel slice must
// have the same, nonzero length.
func NewImpulseResponseFromSamples(rate float64, channels [][]float32, plan *FFTPlan) (*ImpulseResponse, error) {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return nil, ErrEmptyImpulseResponse
	}

	length := len(channels[0])
	for c, ch := range channels {
		if len(ch) != length {
			return nil, fmt.Errorf("convolve: channel %d has length %d, want %d", c, len(ch), length)
		}
	}

	n := plan.Size()
	m := n / 2
	numParts := (length + m - 1) / m

	out := make([][]Partition, len(channels))
	scratch := plan.NewTimeBuffer()

	for c, ch := range channels {
		parts := make([]Partition, numParts)

		for p := range numParts {
			for i := range scratch {
				scratch[i] = 0
			}

			start := p * m
			count := m
			if start+count > length {
				count = length - start
			}

			copy(scratch[:count], ch[start:start+count])

			spectrum := make(Partition, plan.SpectrumSize())
			if err := plan.Forward(spectrum, scratch); err != nil {
				return nil, fmt.Errorf("convolve: forward FFT of partition %d/%d failed: %w", c, p, err)
			}

			parts[p] = spectrum
		}

		out[c] = parts
	}

	return &ImpulseResponse{
		specs:    Specs{Rate: rate, Channels: len(channels)},
		length:   length,
		channels: out,
		plan:     plan,
	}, nil
}

// NewImpulseResponse fully buffers source (which must be finite and
// seekable-or-otherwise-terminating) and converts it into the
// partitioned frequency-domain form. Passing a non-terminating stream
// is undefined, matching spec.md's ImpulseResponse contract.
func NewImpulseResponse(source Reader, plan *FFTPlan) (*ImpulseResponse, error) {
	specs := source.Specs()

	length := int(source.Length())
	if length <= 0 {
		return nil, ErrEmptyImpulseResponse
	}

	interleaved := make([]float32, length*specs.Channels)

	produced, _ := source.Read(interleaved, length)
	if produced <= 0 {
		return nil, ErrEmptyImpulseResponse
	}

	channels := make([][]float32, specs.Channels)
	for c := range channels {
		channels[c] = make([]float32, produced)
		for i := range produced {
			channels[c][i] = interleaved[i*specs.Channels+c]
		}
	}

	return NewImpulseResponseFromSamples(specs.Rate, channels, plan)
}

// Specs returns the impulse response's sample rate and channel count.
func (ir *ImpulseResponse) Specs() Specs { return ir.specs }

// Length returns the impulse response's length in samples per channel.
func (ir *ImpulseResponse) Length() int { return ir.length }

// Channel returns the partition list for channel c.
func (ir *ImpulseResponse) Channel(c int) []Partition { return ir.channels[c] }

// NumPartitions returns the number of partitions per channel.
func (ir *ImpulseResponse) NumPartitions() int {
	if len(ir.channels) == 0 {
		return 0
	}

	return len(ir.channels[0])
}

// Plan returns the FFTPlan this impulse response was built with.
func (ir *ImpulseResponse) Plan() *FFTPlan { return ir.plan }
