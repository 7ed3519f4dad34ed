package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/spray/config"
	"github.com/pthm-cable/spray/export"
	"github.com/pthm-cable/spray/renderer"
	"github.com/pthm-cable/spray/scene"
	"github.com/pthm-cable/spray/sim"
	"github.com/pthm-cable/spray/spray"
	"github.com/pthm-cable/spray/telemetry"
	"github.com/pthm-cable/spray/ui"
)

// SceneFile is the scene description written next to the textures.
const SceneFile = "final_scene.usda"

const panelWidth = 300

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Log per-frame stats via slog (overrides telemetry.log_frames)")
	outputDir := flag.String("output-dir", "", "Output directory for textures, scene, CSV logs and config snapshot")
	seed := flag.Uint("seed", 0, "Seed offset added to each slot index (0 = use config)")
	frames := flag.Int("frames", 0, "Frames to produce (0 = use config)")
	particles := flag.Int("particles", 0, "Particles per frame (0 = use config)")
	workers := flag.Int("workers", 0, "Dispatch workers (0 = use config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// CLI overrides
	if *seed > 0 {
		cfg.Run.Seed = uint32(*seed)
	}
	if *frames > 0 {
		cfg.Run.Frames = *frames
	}
	if *particles > 0 {
		cfg.Run.Particles = *particles
	}
	if *workers > 0 {
		cfg.Run.Workers = *workers
	}
	if *outputDir != "" {
		cfg.Export.Dir = *outputDir
	}
	if *logStats {
		cfg.Telemetry.LogFrames = true
	}
	if err := cfg.Revalidate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var err error
	if *headless {
		err = runHeadless(cfg)
	} else {
		err = runGraphical(cfg)
	}
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// pipeline bundles the exporters and telemetry for one run.
type pipeline struct {
	out      *telemetry.OutputManager
	perf     *telemetry.PerfCollector
	recorder *telemetry.Recorder
	images   *export.ImageExporter
	stage    *scene.Stage
	exporter sim.Exporter
}

func newPipeline(cfg *config.Config) (*pipeline, error) {
	p := &pipeline{perf: telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)}

	out, err := telemetry.NewOutputManager(cfg.Export.Dir)
	if err != nil {
		return nil, err
	}
	p.out = out
	if err := out.WriteConfig(cfg); err != nil {
		out.Close()
		return nil, err
	}
	p.recorder = telemetry.NewRecorder(out, p.perf, cfg.Telemetry.LogFrames)

	multi := export.Multi{}
	if cfg.Export.Dir != "" {
		images, err := export.NewImageExporter(cfg)
		if err != nil {
			out.Close()
			return nil, err
		}
		p.images = images
		multi = append(multi, images)
		if cfg.Export.Scene {
			p.stage = scene.NewStage(cfg, images.TexturePath)
			multi = append(multi, p.stage)
		}
	}
	p.exporter = append(multi, p.recorder)
	return p, nil
}

// finish writes the scene description and closes the CSV outputs.
func (p *pipeline) finish(cfg *config.Config) error {
	var sceneErr error
	if p.stage != nil {
		name := filepath.Join(cfg.Export.Dir, SceneFile)
		sceneErr = p.stage.WriteFile(name)
		if sceneErr == nil {
			slog.Info("scene written", "path", name, "samples", p.stage.Samples())
		}
	}
	if err := p.out.Close(); err != nil && sceneErr == nil {
		return err
	}
	return sceneErr
}

func runHeadless(cfg *config.Config) error {
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	d, err := sim.NewDriver(cfg, sim.Options{Timer: p.perf})
	if err != nil {
		p.out.Close()
		return err
	}
	defer d.Close()

	slog.Info("starting headless run",
		"seed", cfg.Run.Seed,
		"frames", cfg.Run.Frames,
		"output_dir", cfg.Export.Dir,
	)

	if err := d.Run(p.exporter); err != nil {
		p.out.Close()
		return err
	}
	p.perf.Stats().LogStats()
	return p.finish(cfg)
}

func runGraphical(cfg *config.Config) error {
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	d, err := sim.NewDriver(cfg, sim.Options{Timer: p.perf})
	if err != nil {
		p.out.Close()
		return err
	}
	defer d.Close()

	screenW := int32(cfg.Canvas.Width) + panelWidth
	screenH := max(int32(cfg.Canvas.Height), 420)
	rl.InitWindow(screenW, screenH, "Spray")
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	view := renderer.NewCanvasView()
	defer view.Unload()

	proj := spray.Projection{
		MinX: cfg.Projection.MinX, MaxX: cfg.Projection.MaxX,
		MinY: cfg.Projection.MinY, MaxY: cfg.Projection.MaxY,
	}
	dst := rl.Rectangle{X: 0, Y: 0, Width: float32(cfg.Canvas.Width), Height: float32(cfg.Canvas.Height)}

	panelX := int32(cfg.Canvas.Width) + 10
	hud := ui.NewHUD(panelX, 10, panelWidth-20)
	perfPanel := ui.NewPerfPanel(panelX, 0)

	var last sim.Frame
	for !rl.WindowShouldClose() {
		if !d.Done() {
			f, err := d.Step()
			if err != nil {
				return err
			}
			if err := p.exporter.Export(f); err != nil {
				return fmt.Errorf("exporting frame %d: %w", f.Index, err)
			}
			last = f
			view.Update(f.Snapshot)
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)
		view.Draw(dst)
		renderer.DrawNozzle(dst, proj, last.Pose)

		stats := p.recorder.Last()
		y := hud.Draw(ui.HUDData{
			Frame:     d.Next(),
			Frames:    d.Frames(),
			Particles: cfg.Run.Particles,
			Workers:   d.Workers(),
			FPS:       rl.GetFPS(),
			Done:      d.Done(),
			Coverage:  stats.Coverage,
			Saturated: stats.Saturated,
			Mean:      stats.Mean,
			Max:       stats.Max,
			Deposited: stats.Deposited,
			Discarded: stats.Discarded,
		})

		perf := p.perf.Stats()
		perfPanel.SetPosition(panelX, y+15)
		perfPanel.Draw(ui.PerfPanelData{PhaseTimes: perf.PhaseAvg, Total: perf.AvgFrameDuration})

		rl.EndDrawing()
		p.perf.RecordDraw()
	}

	if !d.Done() {
		slog.Info("window closed before run finished", "frames_done", d.Next())
	}
	return p.finish(cfg)
}
