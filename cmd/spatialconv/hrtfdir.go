package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"spatialconv/convolve"
	"spatialconv/internal/aiff"
)

// hrtfFilePattern matches HRTF measurement filenames of the form
// "az<azimuth>_el<elevation>.aif", azimuth and elevation being signed
// integers in degrees, e.g. "az030_el-15.aif".
var hrtfFilePattern = regexp.MustCompile(`^az(-?\d+)_el(-?\d+)\.(?:aif|aiff)$`)

// loadHRTFDir builds an HRTF database from every matching file in dir.
// Files that do not match hrtfFilePattern are skipped.
func loadHRTFDir(dir string, plan *convolve.FFTPlan) (*convolve.HRTF, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("spatialconv: failed to read HRTF directory %s: %w", dir, err)
	}

	hrtf := convolve.NewHRTF(plan)

	loaded := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		match := hrtfFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}

		az, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}

		el, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("spatialconv: failed to open %s: %w", path, err)
		}

		parsed, err := aiff.Parse(f)
		_ = f.Close()

		if err != nil {
			return nil, fmt.Errorf("spatialconv: failed to parse %s: %w", path, err)
		}

		if !hrtf.AddImpulseResponse(newAIFFReader(parsed), float32(az), float32(el)) {
			return nil, fmt.Errorf("spatialconv: %s is incompatible with the HRTF database (must be mono, matching sample rate)", path)
		}

		loaded++
	}

	if loaded == 0 {
		return nil, fmt.Errorf("spatialconv: no HRTF files matching az<N>_el<N>.aif found in %s", dir)
	}

	return hrtf, nil
}
