// Command spatialconv renders an audio file through a partitioned
// convolution engine, either as a straightforward reverb-style
// convolution against a single (possibly multichannel) impulse
// response, or as a binaural render against an HRTF database with a
// live, steerable listener-relative source position.
//
// Usage:
//
//	spatialconv -mode convolver -in voice.aiff -ir hall.aiff -out wet.aiff
//	spatialconv -mode binaural -in voice.aiff -hrtf-dir ./hrtf -out binaural.aiff
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"spatialconv/convolve"
	"spatialconv/internal/aiff"
	"spatialconv/pkg/irformat"
	"spatialconv/pkg/resampler"
	"spatialconv/web"
)

func main() {
	mode := flag.String("mode", "convolver", `Render mode: "convolver" or "binaural"`)
	inFile := flag.String("in", "", "Input AIFF file (required)")
	outFile := flag.String("out", "", "Output AIFF file (required)")

	irFile := flag.String("ir", "", "Impulse response AIFF file (convolver mode)")
	irLibrary := flag.String("irlib", "", "Path to an IR library file (.irlib, convolver mode)")
	irName := flag.String("ir-name", "", "Name of IR to load from library")
	irIndex := flag.Int("ir-index", 0, "Index of IR to load from library")

	hrtfDir := flag.String("hrtf-dir", "", "Directory of az<N>_el<N>.aif HRTF measurements (binaural mode)")
	azimuth := flag.Float64("azimuth", 0, "Initial source azimuth in degrees (binaural mode)")
	elevation := flag.Float64("elevation", 0, "Initial source elevation in degrees (binaural mode)")
	distance := flag.Float64("distance", 0, "Initial source distance, 0=full volume, 1=silent (binaural mode)")

	fftSize := flag.Int("fft-size", convolve.DefaultFFTSize, "FFT plan size (partition length is fftSize/2)")
	workers := flag.Int("workers", runtime.NumCPU(), "Thread pool worker count")

	tui := flag.Bool("tui", false, "Enable interactive TUI while rendering (binaural mode)")
	webUI := flag.Bool("web", false, "Enable the status web UI while rendering")
	webPort := flag.Int("port", 8080, "Web server port")
	noBrowser := flag.Bool("no-browser", false, "Don't auto-open the browser when -web is set")

	logFile := flag.String("log", "spatialconv.log", "Log file path")

	flag.Parse()

	if err := run(runOptions{
		mode: *mode, inFile: *inFile, outFile: *outFile,
		irFile: *irFile, irLibrary: *irLibrary, irName: *irName, irIndex: *irIndex,
		hrtfDir: *hrtfDir, azimuth: *azimuth, elevation: *elevation, distance: *distance,
		fftSize: *fftSize, workers: *workers,
		tui: *tui, webUI: *webUI, webPort: *webPort, noBrowser: *noBrowser,
		logFile: *logFile,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type runOptions struct {
	mode, inFile, outFile                       string
	irFile, irLibrary, irName                   string
	irIndex                                     int
	hrtfDir                                     string
	azimuth, elevation, distance                float64
	fftSize, workers                            int
	tui, webUI, noBrowser                       bool
	webPort                                     int
	logFile                                     string
}

func run(opts runOptions) error {
	if opts.inFile == "" || opts.outFile == "" {
		return errors.New("spatialconv: -in and -out are required")
	}

	logHandle, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return fmt.Errorf("spatialconv: failed to open log file: %w", err)
	}
	defer logHandle.Close()

	slog.SetDefault(slog.New(slog.NewTextHandler(logHandle, nil)))
	slog.Info("Starting spatialconv", "mode", opts.mode, "in", opts.inFile, "out", opts.outFile)

	plan, err := convolve.NewFFTPlan(opts.fftSize, 0)
	if err != nil {
		return err
	}

	pool, err := convolve.NewThreadPool(opts.workers)
	if err != nil {
		return err
	}
	defer pool.Close()

	inHandle, err := os.Open(opts.inFile)
	if err != nil {
		return fmt.Errorf("spatialconv: failed to open input file: %w", err)
	}

	parsedIn, err := aiff.Parse(inHandle)
	_ = inHandle.Close()

	if err != nil {
		return fmt.Errorf("spatialconv: failed to parse input file: %w", err)
	}

	source := newAIFFReader(parsedIn)
	slog.Info("Input loaded", "channels", parsedIn.NumChannels, "rate", parsedIn.SampleRate, "samples", parsedIn.NumSamples)

	switch opts.mode {
	case "convolver":
		return runConvolver(opts, source, pool, plan)
	case "binaural":
		return runBinaural(opts, source, pool, plan)
	default:
		return fmt.Errorf("spatialconv: unknown -mode %q, want convolver or binaural", opts.mode)
	}
}

func runConvolver(opts runOptions, source *aiffReader, pool *convolve.ThreadPool, plan *convolve.FFTPlan) error {
	ir, err := loadImpulseResponse(opts, source.Specs().Rate, plan)
	if err != nil {
		return err
	}

	reader, err := convolve.NewConvolverReader(source, ir, pool, plan)
	if err != nil {
		return err
	}

	outHandle, err := os.Create(opts.outFile)
	if err != nil {
		return fmt.Errorf("spatialconv: failed to create output file: %w", err)
	}
	defer outHandle.Close()

	meter := &levelMeter{}

	err = drainToAIFF(reader, plan.Size()/2, outHandle, func(buffer []float32, n int) {
		meter.observe(buffer, n)

		slog.Debug("Render progress", "position", reader.Position(), "length", reader.Length())
	})
	if err != nil {
		return fmt.Errorf("spatialconv: render failed: %w", err)
	}

	slog.Info("Render complete", "frames", reader.Position())

	return nil
}

func runBinaural(opts runOptions, source *aiffReader, pool *convolve.ThreadPool, plan *convolve.FFTPlan) error {
	if opts.hrtfDir == "" {
		return errors.New("spatialconv: -hrtf-dir is required in binaural mode")
	}

	hrtf, err := loadHRTFDir(opts.hrtfDir, plan)
	if err != nil {
		return err
	}

	pos := convolve.NewSource(float32(opts.azimuth), float32(opts.elevation), float32(opts.distance))

	reader, err := convolve.NewBinauralReader(source, hrtf, pos, pool, plan)
	if err != nil {
		return err
	}

	outHandle, err := os.Create(opts.outFile)
	if err != nil {
		return fmt.Errorf("spatialconv: failed to create output file: %w", err)
	}
	defer outHandle.Close()

	meter := &levelMeter{}

	var webServer *web.Server
	if opts.webUI {
		webServer = web.NewServer(&positionAdapter{source: pos, reader: reader}, nil, opts.webPort)

		go func() {
			if err := webServer.Start(); err != nil {
				slog.Error("Web server error", "error", err)
			}
		}()

		if !opts.noBrowser {
			time.Sleep(200 * time.Millisecond)

			go func() {
				url := fmt.Sprintf("http://localhost:%d", opts.webPort)
				if err := web.OpenBrowser(url); err != nil {
					slog.Error("Failed to open browser", "error", err)
				}
			}()
		}

		fmt.Printf("Web UI available at http://localhost:%d\n", opts.webPort)
	}

	renderErr := make(chan error, 1)

	go func() {
		renderErr <- drainToAIFF(reader, plan.Size()/2, outHandle, func(buffer []float32, n int) {
			meter.observe(buffer, n)
		})
	}()

	if opts.tui {
		runTUI(pos, renderProgress{
			position: reader.Position,
			length:   reader.Length,
			meters: func() (inL, inR, outL, outR float32) {
				l, r := meter.get()
				return l, r, l, r
			},
		})
	}

	err = <-renderErr
	if err != nil {
		return fmt.Errorf("spatialconv: render failed: %w", err)
	}

	slog.Info("Render complete", "frames", reader.Position())

	if webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := webServer.Shutdown(ctx); err != nil {
			slog.Error("Web server shutdown error", "error", err)
		}
	}

	return nil
}

func loadImpulseResponse(opts runOptions, rate float64, plan *convolve.FFTPlan) (*convolve.ImpulseResponse, error) {
	var asset *irformat.IRAsset

	switch {
	case opts.irLibrary != "":
		libHandle, err := os.Open(opts.irLibrary)
		if err != nil {
			return nil, fmt.Errorf("spatialconv: failed to open IR library: %w", err)
		}
		defer libHandle.Close()

		lib, err := irformat.ReadLibrary(libHandle)
		if err != nil {
			return nil, fmt.Errorf("spatialconv: failed to read IR library: %w", err)
		}

		asset, err = selectFromLibrary(lib, opts.irName, opts.irIndex)
		if err != nil {
			return nil, err
		}

	case opts.irFile != "":
		irHandle, err := os.Open(opts.irFile)
		if err != nil {
			return nil, fmt.Errorf("spatialconv: failed to open impulse response: %w", err)
		}
		defer irHandle.Close()

		parsed, err := aiff.Parse(irHandle)
		if err != nil {
			return nil, fmt.Errorf("spatialconv: failed to parse impulse response: %w", err)
		}

		asset = irformat.NewIRAsset(opts.irFile, parsed.SampleRate, parsed.NumChannels, parsed.Data)

	default:
		return nil, errors.New("spatialconv: one of -ir or -irlib is required in convolver mode")
	}

	data := asset.Audio.Data
	if asset.Metadata.SampleRate != rate {
		data = resampleChannels(data, asset.Metadata.SampleRate, rate)
	}

	return convolve.NewImpulseResponseFromSamples(rate, data, plan)
}

func selectFromLibrary(lib *irformat.IRLibrary, name string, index int) (*irformat.IRAsset, error) {
	if name != "" {
		for _, ir := range lib.IRs {
			if ir.Metadata.Name == name {
				return ir, nil
			}
		}

		return nil, fmt.Errorf("spatialconv: IR %q not found in library", name)
	}

	if index < 0 || index >= len(lib.IRs) {
		return nil, fmt.Errorf("spatialconv: IR index %d out of range (library has %d entries)", index, len(lib.IRs))
	}

	return lib.IRs[index], nil
}

func resampleChannels(data [][]float32, srcRate, dstRate float64) [][]float32 {
	r := resampler.New()

	out, err := r.ResampleMultiChannel(data, srcRate, dstRate)
	if err != nil {
		return data
	}

	return out
}

// positionAdapter satisfies web.PositionController by bridging
// convolve.Source and a convolve.Reader's Position/Length.
type positionAdapter struct {
	source *convolve.Source
	reader *convolve.BinauralReader
}

func (a *positionAdapter) GetAzimuth() float64   { return float64(a.source.Azimuth()) }
func (a *positionAdapter) GetElevation() float64 { return float64(a.source.Elevation()) }
func (a *positionAdapter) GetDistance() float64  { return float64(a.source.Distance()) }

func (a *positionAdapter) SetAzimuth(value float64)   { a.source.SetAzimuth(float32(value)) }
func (a *positionAdapter) SetElevation(value float64) { a.source.SetElevation(float32(value)) }
func (a *positionAdapter) SetDistance(value float64)  { a.source.SetDistance(float32(value)) }

func (a *positionAdapter) Progress() (position, length int64) {
	return a.reader.Position(), a.reader.Length()
}

