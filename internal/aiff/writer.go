package aiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Write encodes de-interleaved float32 channel data (each in [-1.0,
// 1.0]) as a 16-bit PCM AIFF file.
func Write(w io.Writer, data [][]float32, sampleRate float64) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: no channels to write", ErrInvalidFile)
	}

	numChannels := len(data)
	numSamples := len(data[0])

	for ch, samples := range data {
		if len(samples) != numSamples {
			return fmt.Errorf("%w: channel %d has %d samples, want %d", ErrInvalidFile, ch, len(samples), numSamples)
		}
	}

	const bytesPerSample = 2

	ssndSize := 8 + numSamples*numChannels*bytesPerSample
	commSize := 18
	formSize := 4 + (8 + commSize) + (8 + ssndSize)

	if err := writeChunkHeader(w, "FORM", uint32(formSize)); err != nil {
		return err
	}

	if _, err := w.Write([]byte("AIFF")); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	if err := writeCOMM(w, numChannels, numSamples, sampleRate); err != nil {
		return err
	}

	return writeSSND(w, data, numSamples, numChannels)
}

func writeChunkHeader(w io.Writer, id string, size uint32) error {
	var header [8]byte

	copy(header[0:4], id)
	binary.BigEndian.PutUint32(header[4:8], size)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	return nil
}

func writeCOMM(w io.Writer, numChannels, numSamples int, sampleRate float64) error {
	if err := writeChunkHeader(w, "COMM", 18); err != nil {
		return err
	}

	var body [18]byte

	binary.BigEndian.PutUint16(body[0:2], uint16(numChannels))
	binary.BigEndian.PutUint32(body[2:6], uint32(numSamples))
	binary.BigEndian.PutUint16(body[6:8], 16) // bits per sample

	extended := float64ToExtended(sampleRate)
	copy(body[8:18], extended[:])

	if _, err := w.Write(body[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	return nil
}

func writeSSND(w io.Writer, data [][]float32, numSamples, numChannels int) error {
	const bytesPerSample = 2

	size := 8 + numSamples*numChannels*bytesPerSample
	if err := writeChunkHeader(w, "SSND", uint32(size)); err != nil {
		return err
	}

	var offsetBlock [8]byte
	if _, err := w.Write(offsetBlock[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	frame := make([]byte, numChannels*bytesPerSample)

	for i := range numSamples {
		for ch := range numChannels {
			sample := data[ch][i]
			if sample > 1 {
				sample = 1
			}

			if sample < -1 {
				sample = -1
			}

			s := int16(sample * 32767)
			binary.BigEndian.PutUint16(frame[ch*bytesPerSample:], uint16(s))
		}

		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
	}

	return nil
}

// float64ToExtended converts a float64 to an 80-bit IEEE 754 extended
// precision value, AIFF's sample-rate encoding.
func float64ToExtended(v float64) [10]byte {
	var out [10]byte

	if v == 0 {
		return out
	}

	sign := uint16(0)
	if v < 0 {
		sign = 1 << 15
		v = -v
	}

	frac, exp := math.Frexp(v)
	exponent := exp - 1 + 16383

	mantissa := uint64(frac * (1 << 64))

	binary.BigEndian.PutUint16(out[0:2], sign|uint16(exponent))
	binary.BigEndian.PutUint64(out[2:10], mantissa)

	return out
}
