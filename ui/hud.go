package ui

import (
	"fmt"
	"sort"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// HUDData holds everything the run panel shows.
type HUDData struct {
	Frame     int
	Frames    int
	Particles int
	Workers   int
	FPS       int32
	Done      bool

	Coverage  float64
	Saturated float64
	Mean      float64
	Max       float64
	Deposited int
	Discarded int
}

// HUD renders the run statistics panel.
type HUD struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewHUD creates a HUD panel at (x, y).
func NewHUD(x, y, width int32) *HUD {
	return &HUD{renderer: NewRenderer(), x: x, y: y, width: width}
}

// Draw renders the HUD and returns the Y position below it.
func (h *HUD) Draw(data HUDData) int32 {
	r := h.renderer
	pad := r.Theme.Padding
	height := int32(210)
	r.DrawPanel(h.x, h.y, h.width, height)

	x := h.x + pad
	y := r.DrawSectionHeader(x, h.y+pad, "Spray")

	status := "Running"
	if data.Done {
		status = "Done"
	}
	y = r.DrawLabelValue(x, y, "Frame", fmt.Sprintf("%d / %d  %s", data.Frame, data.Frames, status))
	y = r.DrawLabelValue(x, y, "Particles", fmt.Sprintf("%d on %d workers", data.Particles, data.Workers))
	y = r.DrawLabelValue(x, y, "FPS", fmt.Sprintf("%d", data.FPS))
	y += 4

	y = r.DrawBar(x, y, "Coverage", float32(data.Coverage), 2, h.width-2*pad)
	y = r.DrawBar(x, y, "Saturated", float32(data.Saturated), 0.05, h.width-2*pad)
	y = r.DrawBar(x, y, "Mean", float32(data.Mean), 2, h.width-2*pad)
	y = r.DrawBar(x, y, "Max", float32(data.Max), 1, h.width-2*pad)
	y += 4

	hitRate := 0.0
	if total := data.Deposited + data.Discarded; total > 0 {
		hitRate = float64(data.Deposited) / float64(total) * 100
	}
	r.DrawLabelValue(x, y, "Hits", fmt.Sprintf("%d (%.1f%%)", data.Deposited, hitRate))
	return h.y + height
}

// PerfPanelData holds performance metrics for display.
type PerfPanelData struct {
	PhaseTimes map[string]time.Duration
	Total      time.Duration
}

// PerfPanel renders the per-phase performance panel.
type PerfPanel struct {
	x, y int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{x: x, y: y}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel, slowest phase first.
func (p *PerfPanel) Draw(data PerfPanelData) {
	x := p.x
	y := p.y

	rl.DrawText("Frame Performance", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Total: %s", data.Total.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16

	names := make([]string, 0, len(data.PhaseTimes))
	for name := range data.PhaseTimes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return data.PhaseTimes[names[i]] > data.PhaseTimes[names[j]]
	})

	for _, name := range names {
		avg := data.PhaseTimes[name]
		pct := float64(0)
		if data.Total > 0 {
			pct = float64(avg) / float64(data.Total) * 100
		}

		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = rl.Orange
		}

		rl.DrawText(
			fmt.Sprintf("%-10s %8s %5.1f%%", name, avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
