package main

import (
	"math"
	"sync/atomic"
)

// levelMeter tracks the left and right peak absolute amplitude of the
// most recently produced stereo block, read concurrently by the TUI/web
// status surfaces via atomic loads of the bit-packed float32 values.
type levelMeter struct {
	left  atomic.Uint32
	right atomic.Uint32
}

func (m *levelMeter) observe(buffer []float32, n int) {
	var peakL, peakR float32

	for i := range n {
		if i*2 >= len(buffer) {
			break
		}

		l := abs32(buffer[i*2])
		if l > peakL {
			peakL = l
		}

		if len(buffer) > i*2+1 {
			r := abs32(buffer[i*2+1])
			if r > peakR {
				peakR = r
			}
		}
	}

	storeFloat32(&m.left, peakL)
	storeFloat32(&m.right, peakR)
}

func (m *levelMeter) get() (left, right float32) {
	return loadFloat32(&m.left), loadFloat32(&m.right)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}

	return v
}

func storeFloat32(a *atomic.Uint32, v float32) { a.Store(math.Float32bits(v)) }

func loadFloat32(a *atomic.Uint32) float32 { return math.Float32frombits(a.Load()) }
