package main

import (
	"fmt"
	"math"
	"time"

	"github.com/nsf/termbox-go"

	"spatialconv/convolve"
)

const (
	colDef    = termbox.ColorDefault
	colWhite  = termbox.ColorWhite
	colRed    = termbox.ColorRed
	colGreen  = termbox.ColorGreen
	colYellow = termbox.ColorYellow
	colBlue   = termbox.ColorBlue
	colCyan   = termbox.ColorCyan
)

// renderProgress is polled by the TUI to show how far a background
// render has advanced; position/length are frames, matching
// convolve.Reader.Position/Length.
type renderProgress struct {
	position func() int64
	length   func() int64
	meters   func() (inL, inR, outL, outR float32)
}

type TUIState struct {
	selectedParam int
	source        *convolve.Source
	progress      renderProgress
	exit          bool
}

var paramNames = []string{
	"Azimuth (deg)",
	"Elevation (deg)",
	"Distance (0-1)",
}

func runTUI(source *convolve.Source, progress renderProgress) {
	err := termbox.Init()
	if err != nil {
		//nolint:forbidigo // TUI initialization error requires direct output
		fmt.Printf("Failed to initialize TUI: %v\n", err)
		return
	}
	defer termbox.Close()

	termbox.SetInputMode(termbox.InputEsc)

	state := &TUIState{
		source:   source,
		progress: progress,
	}

	eventQueue := make(chan termbox.Event)

	go func() {
		for {
			eventQueue <- termbox.PollEvent()
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	draw(state)

	for !state.exit {
		select {
		case ev := <-eventQueue:
			switch ev.Type {
			case termbox.EventKey:
				handleKey(ev, state)
			case termbox.EventResize:
				draw(state)
			}
		case <-ticker.C:
			draw(state)
		}
	}
}

func handleKey(ev termbox.Event, s *TUIState) {
	if ev.Key == termbox.KeyEsc || ev.Ch == 'q' {
		s.exit = true
		return
	}

	switch ev.Key {
	case termbox.KeyArrowUp:
		s.selectedParam--
		if s.selectedParam < 0 {
			s.selectedParam = len(paramNames) - 1
		}
	case termbox.KeyArrowDown:
		s.selectedParam++
		if s.selectedParam >= len(paramNames) {
			s.selectedParam = 0
		}
	}

	var change float32

	if ev.Key == termbox.KeyArrowRight {
		change = 1
	}

	if ev.Key == termbox.KeyArrowLeft {
		change = -1
	}

	if change == 0 {
		return
	}

	switch s.selectedParam {
	case 0:
		s.source.SetAzimuth(s.source.Azimuth() + change*5)
	case 1:
		s.source.SetElevation(s.source.Elevation() + change*5)
	case 2:
		s.source.SetDistance(s.source.Distance() + change*0.05)
	}
}

func draw(state *TUIState) {
	_ = termbox.Clear(colDef, colDef)

	printTB(0, 0, colCyan, colDef, "spatialconv - Interactive Mode")
	printTB(0, 2, colDef, colDef, "Use Arrows to navigate/adjust. 'q' or Esc to quit.")
	printTB(0, 3, colDef, colDef, "----------------------------------------------------")

	vals := []string{
		fmt.Sprintf("%.1f", state.source.Azimuth()),
		fmt.Sprintf("%.1f", state.source.Elevation()),
		fmt.Sprintf("%.2f", state.source.Distance()),
	}

	for i, name := range paramNames {
		col := colWhite
		bgColor := colDef
		prefix := "  "

		if i == state.selectedParam {
			col = colDef
			bgColor = colWhite
			prefix = "> "
		}

		line := fmt.Sprintf("%-22s %s", prefix+name, vals[i])
		printTB(0, 5+i, col, bgColor, line)
	}

	pos := state.progress.position()
	length := state.progress.length()

	progressY := 10
	printTB(0, progressY, colYellow, colDef, fmt.Sprintf("Progress: %d / %d frames", pos, length))

	if length > 0 {
		drawBar(progressY+1, float64(pos)/float64(length))
	}

	meterY := 13
	printTB(0, meterY, colYellow, colDef, "Meters:")

	inL, inR, outL, outR := state.progress.meters()

	linToDB := func(l float32) float64 {
		if l <= 1e-9 {
			return -96.0
		}

		return 20 * math.Log10(float64(l))
	}

	drawMeter(meterY+2, "In L ", linToDB(inL), colGreen)
	drawMeter(meterY+3, "In R ", linToDB(inR), colGreen)
	drawMeter(meterY+5, "Out L", linToDB(outL), colBlue)
	drawMeter(meterY+6, "Out R", linToDB(outR), colBlue)

	termbox.Flush()
}

func drawBar(yPos int, ratio float64) {
	const barWidth = 60

	if ratio < 0 {
		ratio = 0
	}

	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio * float64(barWidth))

	for i := range barWidth {
		barChar := '░'
		if i < filled {
			barChar = '█'
		}

		termbox.SetCell(2+i, yPos, barChar, colCyan, colDef)
	}
}

func drawMeter(yPos int, label string, db float64, color termbox.Attribute) {
	const (
		barWidth = 60
		xPos     = 2
		minDB    = -96.0
		maxDB    = 6.0
	)

	if db < minDB {
		db = minDB
	}

	if db > maxDB {
		db = maxDB
	}

	ratio := (db - minDB) / (maxDB - minDB)
	filled := int(ratio * float64(barWidth))

	printTB(xPos, yPos, colDef, colDef, fmt.Sprintf("%s [%-6.1f dB] ", label, db))

	startX := xPos + 15

	for i := range barWidth {
		var barChar rune

		bgCol := colDef

		if i < filled {
			barChar = '█'
		} else {
			barChar = '░'
		}

		termbox.SetCell(startX+i, yPos, barChar, color, bgCol)
	}
}

func printTB(x, y int, fg, bg termbox.Attribute, msg string) {
	for _, c := range msg {
		termbox.SetCell(x, y, c, fg, bg)
		x++
	}
}
