package convolve

import (
	"math"
	"sort"
)

// HRTF is a database mapping (elevation, azimuth) to a mono impulse
// response, queried by nearest neighbor. All entries share one sample
// rate, fixed by the first entry accepted. An HRTF instance carries the
// FFTPlan used to build its entries; the same plan must be used to
// construct any ConvolverSound/BinauralSound consuming it.
type HRTF struct {
	plan     *FFTPlan
	rate     float64
	empty    bool
	byElev   map[float32]map[float32]*ImpulseResponse
}

// NewHRTF creates an empty HRTF database backed by plan.
func NewHRTF(plan *FFTPlan) *HRTF {
	return &HRTF{
		plan:   plan,
		empty:  true,
		byElev: make(map[float32]map[float32]*ImpulseResponse),
	}
}

// AddImpulseResponse buffers source and stores it at (azimuth,
// elevation). Azimuth is normalized into [0, 360) first. It returns
// false without modifying the database if source is not mono, or its
// rate does not match an already-fixed database rate.
func (h *HRTF) AddImpulseResponse(source Reader, azimuth, elevation float32) bool {
	specs := source.Specs()
	azimuth = normalizeAzimuth(azimuth)

	if specs.Channels != 1 {
		return false
	}

	if !h.empty && specs.Rate != h.rate {
		return false
	}

	ir, err := NewImpulseResponse(source, h.plan)
	if err != nil {
		return false
	}

	if h.byElev[elevation] == nil {
		h.byElev[elevation] = make(map[float32]*ImpulseResponse)
	}

	h.byElev[elevation][azimuth] = ir
	h.rate = specs.Rate
	h.empty = false

	return true
}

// Specs returns the database's fixed specs: mono at the rate of its
// first accepted entry. The zero value is returned while empty.
func (h *HRTF) Specs() Specs {
	if h.empty {
		return Specs{}
	}

	return Specs{Rate: h.rate, Channels: 1}
}

// IsEmpty reports whether the database has no entries.
func (h *HRTF) IsEmpty() bool { return h.empty }

// GetImpulseResponse returns the (left, right) impulse responses
// nearest to the given azimuth/elevation, along with the effective
// azimuth/elevation actually matched. It returns (nil, nil, azimuth,
// elevation) when the database is empty.
//
// Nearest elevation is found first (ties favor the smaller elevation,
// since candidates are scanned in ascending order with strict "<");
// within that elevation, nearest azimuth gives the right-ear response.
// The left ear is the entry at the mirrored azimuth (360-az*) mod 360
// if present, otherwise the nearest azimuth to that mirror point at the
// same elevation.
func (h *HRTF) GetImpulseResponse(azimuth, elevation float32) (left, right *ImpulseResponse, effAzimuth, effElevation float32) {
	if h.empty {
		return nil, nil, azimuth, elevation
	}

	azimuth = normalizeAzimuth(azimuth)

	elevations := sortedKeys(h.byElev)

	bestEl := nearest(elevations, elevation)
	effElevation = bestEl

	row := h.byElev[bestEl]
	azimuths := sortedKeys(row)

	bestAz := nearest(azimuths, azimuth)
	effAzimuth = bestAz
	right = row[bestAz]

	mirror := float32(360) - bestAz
	if mirror == 360 {
		mirror = 0
	}

	if ir, ok := row[mirror]; ok {
		left = ir
	} else {
		left = row[nearest(azimuths, mirror)]
	}

	return left, right, effAzimuth, effElevation
}

func sortedKeys[V any](m map[float32]V) []float32 {
	keys := make([]float32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

// nearest returns the element of sortedCandidates (ascending) closest
// to target, with ties resolved in favor of the smaller candidate.
func nearest(sortedCandidates []float32, target float32) float32 {
	best := sortedCandidates[0]
	bestDiff := float32(math.Abs(float64(target - best)))

	for _, c := range sortedCandidates[1:] {
		diff := float32(math.Abs(float64(target - c)))
		if diff < bestDiff {
			bestDiff = diff
			best = c
		}
	}

	return best
}
