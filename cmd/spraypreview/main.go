// Spray preview tool - interactive parameter tuning with sliders.
//
// Usage: go run ./cmd/spraypreview [-config path]
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/spray/config"
	"github.com/pthm-cable/spray/nozzle"
	"github.com/pthm-cable/spray/renderer"
	"github.com/pthm-cable/spray/sim"
	"github.com/pthm-cable/spray/spray"
	"github.com/pthm-cable/spray/telemetry"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
)

// SprayParams holds the slider-controlled values.
type SprayParams struct {
	Pressure      float32
	ConeHalfAngle float32
	MaxDistance   float32
	Particles     int
	Frames        int
}

func paramsFrom(cfg *config.Config) SprayParams {
	return SprayParams{
		Pressure:      float32(cfg.Spray.Pressure),
		ConeHalfAngle: float32(cfg.Spray.ConeHalfAngle),
		MaxDistance:   float32(cfg.Spray.MaxDistance),
		Particles:     cfg.Run.Particles,
		Frames:        cfg.Run.Frames,
	}
}

// runPreview runs every frame with params applied to base and returns the
// final frame and its stats.
func runPreview(base *config.Config, p SprayParams) (sim.Frame, telemetry.FrameStats, error) {
	cfg := base.Clone()
	cfg.Spray.Pressure = float64(p.Pressure)
	cfg.Spray.ConeHalfAngle = float64(p.ConeHalfAngle)
	cfg.Spray.MaxDistance = float64(p.MaxDistance)
	cfg.Run.Particles = p.Particles
	cfg.Run.Frames = p.Frames
	if err := cfg.Revalidate(); err != nil {
		return sim.Frame{}, telemetry.FrameStats{}, err
	}

	d, err := sim.NewDriver(cfg, sim.Options{})
	if err != nil {
		return sim.Frame{}, telemetry.FrameStats{}, err
	}
	defer d.Close()

	var last sim.Frame
	rec := telemetry.NewRecorder(nil, nil, false)
	err = d.Run(sim.ExporterFunc(func(f sim.Frame) error {
		last = f
		return rec.Export(f)
	}))
	return last, rec.Last(), err
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	base := config.Cfg()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	proj := spray.Projection{
		MinX: base.Projection.MinX, MaxX: base.Projection.MaxX,
		MinY: base.Projection.MinY, MaxY: base.Projection.MaxY,
	}
	path := nozzle.NewPath(base)

	rl.InitWindow(windowWidth, windowHeight, "Spray Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	view := renderer.NewCanvasView()
	defer view.Unload()

	params := paramsFrom(base)
	var last sim.Frame
	var stats telemetry.FrameStats
	var runErr error
	needsRun := true

	for !rl.WindowShouldClose() {
		if needsRun {
			last, stats, runErr = runPreview(base, params)
			if runErr == nil {
				view.Update(last.Snapshot)
			}
			needsRun = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		dst := rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize}
		view.Draw(dst)
		if runErr == nil {
			renderer.DrawNozzle(dst, proj, last.Pose)
		}

		statsY := int32(previewSize + 25)
		if runErr != nil {
			rl.DrawText(runErr.Error(), 15, statsY, 14, rl.Red)
		} else {
			rl.DrawText(fmt.Sprintf("Coverage: %.3f  Saturated: %.3f", stats.Coverage, stats.Saturated), 15, statsY, 16, rl.DarkGray)
			rl.DrawText(fmt.Sprintf("Mean: %.4f  Max: %.3f  P95: %.3f", stats.Mean, stats.Max, stats.PaintedP95), 15, statsY+20, 16, rl.DarkGray)
			rl.DrawText(fmt.Sprintf("Deposited: %d  Discarded: %d", stats.Deposited, stats.Discarded), 15, statsY+40, 16, rl.DarkGray)
		}

		// Control panel
		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Spray Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		if v, changed := slider(panelX, &panelY, "Pressure (intensity at zero distance)", params.Pressure, 0.01, 1.0, "%.3f"); changed {
			params.Pressure = v
			needsRun = true
		}
		if v, changed := slider(panelX, &panelY, "Cone half-angle (radians)", params.ConeHalfAngle, 0.05, 1.2, "%.3f"); changed {
			params.ConeHalfAngle = v
			needsRun = true
		}
		if v, changed := slider(panelX, &panelY, "Max distance (world units)", params.MaxDistance, 0.5, 6.0, "%.2f"); changed {
			params.MaxDistance = v
			needsRun = true
		}
		if v, changed := slider(panelX, &panelY, "Particles per frame", float32(params.Particles), 100, 20000, "%.0f"); changed {
			params.Particles = int(v)
			needsRun = true
		}
		if v, changed := slider(panelX, &panelY, "Frames", float32(params.Frames), 1, 240, "%.0f"); changed {
			params.Frames = int(v)
			needsRun = true
		}

		panelY += 10
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = paramsFrom(base)
			needsRun = true
		}
		panelY += 55

		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		yaml := yamlSnippet(params)
		for _, line := range strings.Split(yaml, "\n") {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(yaml)
		}

		// Nozzle path trace
		if runErr == nil && params.Frames > 1 {
			path.Frames = params.Frames
			for f := 0; f < params.Frames; f += max(params.Frames/60, 1) {
				pose := path.Pose(f)
				u, w := proj.Normalize(pose.X, pose.Y)
				if u >= 0 && u <= 1 && w >= 0 && w <= 1 {
					rl.DrawPixel(int32(dst.X+float32(u)*dst.Width), int32(dst.Y+float32(1-w)*dst.Height), rl.Gray)
				}
			}
		}

		rl.EndDrawing()
	}
}

// slider draws a labelled slider and advances panelY. It reports whether
// the value changed this frame.
func slider(panelX float32, panelY *float32, label string, value, lo, hi float32, format string) (float32, bool) {
	rl.DrawText(label, int32(panelX), int32(*panelY), 14, rl.Gray)
	*panelY += 18
	next := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: *panelY, Width: float32(panelWidth - 80), Height: 20},
		fmt.Sprintf(format, lo), fmt.Sprintf(format, hi),
		value, lo, hi,
	)
	rl.DrawText(fmt.Sprintf(format, value), int32(panelX+float32(panelWidth-70)), int32(*panelY+2), 16, rl.DarkGray)
	*panelY += 40
	return next, next != value
}

func yamlSnippet(p SprayParams) string {
	return fmt.Sprintf(`spray:
  pressure: %.3f
  cone_half_angle: %.3f
  max_distance: %.2f
run:
  particles: %d
  frames: %d`,
		p.Pressure, p.ConeHalfAngle, p.MaxDistance, p.Particles, p.Frames)
}
