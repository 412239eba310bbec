package main

import (
	"io"

	"spatialconv/convolve"
	"spatialconv/internal/aiff"
)

// aiffReader adapts a fully decoded *aiff.File to convolve.Reader. The
// entire file lives in memory; Seek repositions a cursor into it.
type aiffReader struct {
	specs    convolve.Specs
	data     [][]float32 // [channel][sample]
	length   int64
	position int64
}

func newAIFFReader(f *aiff.File) *aiffReader {
	return &aiffReader{
		specs:  convolve.Specs{Rate: f.SampleRate, Channels: f.NumChannels},
		data:   f.Data,
		length: int64(f.NumSamples),
	}
}

func (r *aiffReader) Specs() convolve.Specs { return r.specs }

func (r *aiffReader) IsSeekable() bool { return true }

func (r *aiffReader) Length() int64 { return r.length }

func (r *aiffReader) Position() int64 { return r.position }

func (r *aiffReader) Seek(position int64) error {
	if position < 0 {
		position = 0
	}

	if position > r.length {
		position = r.length
	}

	r.position = position

	return nil
}

func (r *aiffReader) Read(buffer []float32, length int) (produced int, eos bool) {
	remaining := r.length - r.position
	if remaining <= 0 {
		return 0, true
	}

	n := int64(length)
	if n > remaining {
		n = remaining
	}

	channels := r.specs.Channels
	for i := range int(n) {
		for ch := range channels {
			buffer[i*channels+ch] = r.data[ch][int(r.position)+i]
		}
	}

	r.position += n

	return int(n), r.position >= r.length
}

// drainToAIFF runs source to completion, collecting its output into
// de-interleaved channel buffers, and writes the result as an AIFF file.
// onBlock, if non-nil, is called after every produced block with the
// interleaved samples actually written (n frames).
func drainToAIFF(source convolve.Reader, blockSize int, out io.Writer, onBlock func(buffer []float32, n int)) error {
	specs := source.Specs()
	channels := specs.Channels

	buffer := make([]float32, blockSize*channels)

	collected := make([][]float32, channels)
	for c := range collected {
		collected[c] = make([]float32, 0, source.Length())
	}

	for {
		n, eos := source.Read(buffer, blockSize)

		for i := range n {
			for c := range channels {
				collected[c] = append(collected[c], buffer[i*channels+c])
			}
		}

		if onBlock != nil {
			onBlock(buffer, n)
		}

		if eos {
			break
		}
	}

	return aiff.Write(out, collected, specs.Rate)
}
