// Package sim drives the spray simulation frame by frame: one parallel
// dispatch of the spray kernel per frame, a barrier, a snapshot, and a
// hand-off to the exporter.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/spray/canvas"
	"github.com/pthm-cable/spray/config"
	"github.com/pthm-cable/spray/nozzle"
	"github.com/pthm-cable/spray/rng"
	"github.com/pthm-cable/spray/spray"
)

// ErrFinished is returned by Step once every frame has been produced.
var ErrFinished = errors.New("sim: all frames produced")

// Phase names reported to a PhaseTimer.
const (
	PhaseNozzle   = "nozzle"
	PhaseDispatch = "dispatch"
	PhaseSnapshot = "snapshot"
	PhaseExport   = "export"
)

// Frame is what the driver hands to an exporter after each dispatch.
type Frame struct {
	Index     int
	Pose      nozzle.Pose
	Snapshot  canvas.Snapshot
	Deposited int // samples that landed inside the canvas interior
	Discarded int // samples dropped by the edge margin
	Dispatch  time.Duration
}

// Exporter consumes frames in order.
type Exporter interface {
	Export(f Frame) error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(f Frame) error

// Export calls fn(f).
func (fn ExporterFunc) Export(f Frame) error { return fn(f) }

// PhaseTimer receives per-frame phase timing. telemetry.PerfCollector implements it.
type PhaseTimer interface {
	StartFrame()
	StartPhase(phase string)
	EndFrame()
}

// Options tune a Driver beyond what the config specifies.
type Options struct {
	// Emitter replaces the kernel built from config. Used by tests and tools
	// that need scripted samples.
	Emitter Emitter
	// Workers overrides run.workers when > 0.
	Workers int
	// Timer, when set, receives phase timings for every frame.
	Timer PhaseTimer
}

// Driver owns the per-slot random streams, the paint buffer and the worker
// pool for one simulation run.
type Driver struct {
	path    nozzle.Path
	frames  int
	streams *rng.Streams
	buffer  *canvas.Buffer
	disp    *dispatcher
	timer   PhaseTimer

	frame int // next frame to produce
}

// NewDriver validates cfg and prepares a run. No dispatch happens here.
func NewDriver(cfg *config.Config, opts Options) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	emitter := opts.Emitter
	if emitter == nil {
		k, err := spray.NewKernelFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		emitter = k
	}

	streams, err := rng.NewStreams(cfg.Run.Particles, cfg.Run.Seed)
	if err != nil {
		return nil, fmt.Errorf("seeding particle streams: %w", err)
	}

	workers := cfg.Run.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	buffer := canvas.NewBuffer(cfg.Canvas.Width, cfg.Canvas.Height)
	return &Driver{
		path:    nozzle.NewPath(cfg),
		frames:  cfg.Run.Frames,
		streams: streams,
		buffer:  buffer,
		disp:    newDispatcher(emitter, streams, buffer, workers),
		timer:   opts.Timer,
	}, nil
}

// Frames returns the total number of frames in the run.
func (d *Driver) Frames() int { return d.frames }

// Next returns the index of the next frame Step will produce.
func (d *Driver) Next() int { return d.frame }

// Done reports whether every frame has been produced.
func (d *Driver) Done() bool { return d.frame >= d.frames }

// Workers returns the dispatch worker count.
func (d *Driver) Workers() int { return d.disp.numWorkers }

// Buffer exposes the paint buffer for read-only viewers.
func (d *Driver) Buffer() *canvas.Buffer { return d.buffer }

// Path returns the nozzle path.
func (d *Driver) Path() nozzle.Path { return d.path }

// Step produces the next frame: pose, dispatch, barrier, snapshot.
func (d *Driver) Step() (Frame, error) {
	f, err := d.step()
	if err == nil && d.timer != nil {
		d.timer.EndFrame()
	}
	return f, err
}

func (d *Driver) step() (Frame, error) {
	if d.Done() {
		return Frame{}, ErrFinished
	}
	if d.timer != nil {
		d.timer.StartFrame()
		d.timer.StartPhase(PhaseNozzle)
	}
	pose := d.path.Pose(d.frame)

	if d.timer != nil {
		d.timer.StartPhase(PhaseDispatch)
	}
	start := time.Now()
	counts := d.disp.dispatch(pose)
	elapsed := time.Since(start)

	if d.timer != nil {
		d.timer.StartPhase(PhaseSnapshot)
	}
	snap := d.buffer.Snapshot()

	f := Frame{
		Index:     d.frame,
		Pose:      pose,
		Snapshot:  snap,
		Deposited: counts.deposited,
		Discarded: counts.discarded,
		Dispatch:  elapsed,
	}
	d.frame++
	return f, nil
}

// Run produces every remaining frame in order and hands each to exp before
// the next dispatch starts. It stops at the first export error.
func (d *Driver) Run(exp Exporter) error {
	slog.Info("spray run starting",
		"frames", d.frames,
		"particles", d.streams.Len(),
		"workers", d.disp.numWorkers,
		"canvas", fmt.Sprintf("%dx%d", d.buffer.Width(), d.buffer.Height()),
	)
	start := time.Now()

	for !d.Done() {
		f, err := d.step()
		if err != nil {
			return err
		}
		if d.timer != nil {
			d.timer.StartPhase(PhaseExport)
		}
		if exp != nil {
			if err := exp.Export(f); err != nil {
				return fmt.Errorf("exporting frame %d: %w", f.Index, err)
			}
		}
		if d.timer != nil {
			d.timer.EndFrame()
		}
	}

	slog.Info("spray run complete", "frames", d.frames, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Close stops the worker pool. The driver must not be stepped afterwards.
func (d *Driver) Close() {
	d.disp.stopWorkers()
}
