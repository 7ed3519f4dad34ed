// Package nozzle computes the nozzle position for each frame.
package nozzle

import (
	"math"

	"github.com/pthm-cable/spray/config"
)

// Pose is the nozzle position for one frame. Z is a constant depth used only
// when placing the nozzle marker in the scene.
type Pose struct {
	X, Y, Z float64
}

// Path sweeps the nozzle horizontally from StartX to EndX over Frames frames
// while Y oscillates around BaseY.
type Path struct {
	StartX, EndX float64
	BaseY        float64
	Amplitude    float64
	Frequency    float64 // radians per frame
	Depth        float64
	Frames       int
}

// NewPath builds a path from config.
func NewPath(cfg *config.Config) Path {
	return Path{
		StartX:    cfg.Nozzle.StartX,
		EndX:      cfg.Nozzle.EndX,
		BaseY:     cfg.Nozzle.BaseY,
		Amplitude: cfg.Nozzle.Amplitude,
		Frequency: cfg.Nozzle.Frequency,
		Depth:     cfg.Nozzle.Depth,
		Frames:    cfg.Run.Frames,
	}
}

// Pose returns the nozzle position at frame f. A single-frame path stays at StartX.
func (p Path) Pose(f int) Pose {
	x := p.StartX
	if p.Frames > 1 {
		x += float64(f) * (p.EndX - p.StartX) / float64(p.Frames-1)
	}
	return Pose{
		X: x,
		Y: p.BaseY + math.Sin(float64(f)*p.Frequency)*p.Amplitude,
		Z: p.Depth,
	}
}
