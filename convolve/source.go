package convolve

import (
	"math"
	"sync/atomic"
)

// Source holds the mutable azimuth, elevation and distance of a sound
// relative to the listener, read concurrently by the binaural pipeline
// via atomic loads. Azimuth goes clockwise: a source at the listener's
// right has azimuth 90.
type Source struct {
	azimuth   atomic.Uint32 // float32 bits
	elevation atomic.Uint32
	distance  atomic.Uint32
}

// NewSource creates a Source with the given initial azimuth, elevation
// and distance (clamped to [0,1] is the caller's responsibility; the
// only derived clamping here is Volume()).
func NewSource(azimuth, elevation, distance float32) *Source {
	s := &Source{}
	s.azimuth.Store(math.Float32bits(normalizeAzimuth(azimuth)))
	s.elevation.Store(math.Float32bits(elevation))
	s.distance.Store(math.Float32bits(distance))

	return s
}

func normalizeAzimuth(az float32) float32 {
	az = float32(math.Mod(float64(az), 360))
	if az < 0 {
		az += 360
	}

	return az
}

// Azimuth returns the current azimuth in [0, 360).
func (s *Source) Azimuth() float32 { return math.Float32frombits(s.azimuth.Load()) }

// Elevation returns the current elevation.
func (s *Source) Elevation() float32 { return math.Float32frombits(s.elevation.Load()) }

// Distance returns the current distance.
func (s *Source) Distance() float32 { return math.Float32frombits(s.distance.Load()) }

// Volume returns the attenuation implied by the current distance: max(0, 1-distance).
func (s *Source) Volume() float32 {
	v := 1 - s.Distance()
	if v < 0 {
		v = 0
	}

	return v
}

// SetAzimuth updates the azimuth, normalizing it into [0, 360).
func (s *Source) SetAzimuth(azimuth float32) {
	s.azimuth.Store(math.Float32bits(normalizeAzimuth(azimuth)))
}

// SetElevation updates the elevation. No clamping is applied.
func (s *Source) SetElevation(elevation float32) {
	s.elevation.Store(math.Float32bits(elevation))
}

// SetDistance updates the distance. No clamping is applied; callers
// wanting the [0,1] contract documented in spec.md enforce it themselves.
func (s *Source) SetDistance(distance float32) {
	s.distance.Store(math.Float32bits(distance))
}
