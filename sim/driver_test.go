package sim

import (
	"errors"
	"testing"

	"github.com/pthm-cable/spray/canvas"
	"github.com/pthm-cable/spray/config"
	"github.com/pthm-cable/spray/nozzle"
	"github.com/pthm-cable/spray/rng"
	"github.com/pthm-cable/spray/spray"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Canvas.Width = 96
	cfg.Canvas.Height = 96
	cfg.Run.Frames = 24
	cfg.Run.Particles = 3000
	cfg.Spray.Pressure = 0.4
	return cfg
}

// collect runs a driver to completion and keeps every snapshot.
func collect(t *testing.T, cfg *config.Config, opts Options) []Frame {
	t.Helper()
	d, err := NewDriver(cfg, opts)
	if err != nil {
		t.Fatalf("creating driver: %v", err)
	}
	defer d.Close()

	var frames []Frame
	err = d.Run(ExporterFunc(func(f Frame) error {
		frames = append(frames, f)
		return nil
	}))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return frames
}

func equalPix(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunDeterministic(t *testing.T) {
	cfg := smallConfig()
	a := collect(t, cfg, Options{Workers: 4})
	b := collect(t, cfg, Options{Workers: 4})

	if len(a) != cfg.Run.Frames || len(b) != cfg.Run.Frames {
		t.Fatalf("expected %d frames, got %d and %d", cfg.Run.Frames, len(a), len(b))
	}
	for i := range a {
		if !equalPix(a[i].Snapshot.Pix, b[i].Snapshot.Pix) {
			t.Fatalf("frame %d differs between identical runs", i)
		}
	}
}

func TestRunIndependentOfWorkerCount(t *testing.T) {
	cfg := smallConfig()
	base := collect(t, cfg, Options{Workers: 1})

	for _, workers := range []int{4, 64} {
		got := collect(t, cfg, Options{Workers: workers})
		for i := range base {
			if !equalPix(base[i].Snapshot.Pix, got[i].Snapshot.Pix) {
				t.Fatalf("workers=%d: frame %d differs from single-worker run", workers, i)
			}
			if base[i].Deposited != got[i].Deposited || base[i].Discarded != got[i].Discarded {
				t.Errorf("workers=%d: frame %d counters differ", workers, i)
			}
		}
	}
}

func TestRunMonotonicAndSaturated(t *testing.T) {
	cfg := smallConfig()
	frames := collect(t, cfg, Options{})

	var painted bool
	for i, f := range frames {
		for c, v := range f.Snapshot.Pix {
			if v < 0 || v > 1 {
				t.Fatalf("frame %d cell %d out of [0,1]: %v", i, c, v)
			}
			if i > 0 && v < frames[i-1].Snapshot.Pix[c] {
				t.Fatalf("cell %d decreased between frames %d and %d", c, i-1, i)
			}
			if v > 0 {
				painted = true
			}
		}
	}
	if !painted {
		t.Error("expected some paint after a full run")
	}
}

func TestRunFrameOrder(t *testing.T) {
	cfg := smallConfig()
	frames := collect(t, cfg, Options{})

	path := nozzle.NewPath(cfg)
	for i, f := range frames {
		if f.Index != i {
			t.Fatalf("expected frame %d, got %d", i, f.Index)
		}
		if f.Pose != path.Pose(i) {
			t.Errorf("frame %d: pose %+v does not match path %+v", i, f.Pose, path.Pose(i))
		}
		if f.Deposited+f.Discarded != cfg.Run.Particles {
			t.Errorf("frame %d: deposited %d + discarded %d != particles %d",
				i, f.Deposited, f.Discarded, cfg.Run.Particles)
		}
	}
}

// sameCellEmitter sends every slot's sample to one cell with an intensity
// derived from the slot's state.
type sameCellEmitter struct {
	index int
}

func (e sameCellEmitter) intensity(s rng.State) float64 {
	return float64(uint32(s)%50+1) / 100000
}

func (e sameCellEmitter) Emit(s rng.State, _ nozzle.Pose) (spray.Deposit, rng.State) {
	_, next := rng.Sample(s)
	return spray.Deposit{Index: e.index, Intensity: e.intensity(s), Hit: true}, next
}

func TestDispatchConservesSameCellWrites(t *testing.T) {
	const slots = 500
	emitter := sameCellEmitter{index: 10*32 + 10}

	for _, workers := range []int{1, 4, 64} {
		streams, _ := rng.NewStreams(slots, 0)
		buf := canvas.NewBuffer(32, 32)
		disp := newDispatcher(emitter, streams, buf, workers)

		// Expected post-dispatch value computed serially from the same seeds
		var sum uint32
		for i := 0; i < slots; i++ {
			sum += canvas.Quantize(emitter.intensity(rng.Seed(i, 0)))
		}
		want := canvas.Dequantize(min(sum, canvas.Quantize(1)))

		counts := disp.dispatch(nozzle.Pose{})
		disp.stopWorkers()

		if counts.deposited != slots {
			t.Errorf("workers=%d: expected %d deposits, got %d", workers, slots, counts.deposited)
		}
		if got := buf.At(emitter.index); got != want {
			t.Errorf("workers=%d: expected cell value %v, got %v", workers, want, got)
		}
	}
}

func TestDispatchSameCellSaturates(t *testing.T) {
	streams, _ := rng.NewStreams(8000, 0)
	buf := canvas.NewBuffer(8, 8)
	buf.Accumulate(9, 0.5)
	disp := newDispatcher(sameCellEmitter{index: 9}, streams, buf, 8)
	defer disp.stopWorkers()

	disp.dispatch(nozzle.Pose{})
	if got := buf.At(9); got != 1 {
		t.Errorf("expected saturated cell, got %v", got)
	}
}

// fixedEmitter deposits at angle 0 and distance 0 for every slot.
type fixedEmitter struct {
	k *spray.Kernel
}

func (e fixedEmitter) Emit(s rng.State, pose nozzle.Pose) (spray.Deposit, rng.State) {
	return e.k.Deposit(0, 0, pose), s
}

func TestSingleParticleAtCenter(t *testing.T) {
	cfg := config.Default()
	cfg.Run.Particles = 1
	cfg.Run.Frames = 1
	cfg.Nozzle.StartX = 0
	cfg.Nozzle.BaseY = 1.5

	k, err := spray.NewKernelFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	frames := collect(t, cfg, Options{Emitter: fixedEmitter{k: k}})
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}

	snap := frames[0].Snapshot
	target := 256*snap.Width + 256
	for i, v := range snap.Pix {
		if i == target {
			if float64(v) != cfg.Spray.Pressure {
				t.Errorf("expected %v at centre, got %v", cfg.Spray.Pressure, v)
			}
			continue
		}
		if v != 0 {
			t.Fatalf("cell %d changed to %v", i, v)
		}
	}
}

func TestStepAfterFinish(t *testing.T) {
	cfg := smallConfig()
	cfg.Run.Frames = 2
	d, err := NewDriver(cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	for i := 0; i < 2; i++ {
		if _, err := d.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if !d.Done() {
		t.Error("expected driver to be done")
	}
	if _, err := d.Step(); !errors.Is(err, ErrFinished) {
		t.Errorf("expected ErrFinished, got %v", err)
	}
}

func TestNewDriverRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Run.Particles = 0

	if _, err := NewDriver(cfg, Options{}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestRunStopsOnExportError(t *testing.T) {
	cfg := smallConfig()
	d, err := NewDriver(cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	boom := errors.New("disk full")
	calls := 0
	err = d.Run(ExporterFunc(func(f Frame) error {
		calls++
		if f.Index == 3 {
			return boom
		}
		return nil
	}))
	if !errors.Is(err, boom) {
		t.Errorf("expected export error to propagate, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 export calls, got %d", calls)
	}
	if d.Next() != 4 {
		t.Errorf("expected no dispatch after failed export, next frame is %d", d.Next())
	}
}

type recordingTimer struct {
	frames int
	phases []string
}

func (r *recordingTimer) StartFrame()             { r.frames++ }
func (r *recordingTimer) StartPhase(phase string) { r.phases = append(r.phases, phase) }
func (r *recordingTimer) EndFrame()               {}

func TestRunReportsPhases(t *testing.T) {
	cfg := smallConfig()
	cfg.Run.Frames = 3
	timer := &recordingTimer{}
	collect(t, cfg, Options{Timer: timer})

	if timer.frames != 3 {
		t.Errorf("expected 3 frames, got %d", timer.frames)
	}
	want := []string{PhaseNozzle, PhaseDispatch, PhaseSnapshot, PhaseExport}
	if len(timer.phases) != 3*len(want) {
		t.Fatalf("expected %d phases, got %d", 3*len(want), len(timer.phases))
	}
	for i, p := range timer.phases {
		if p != want[i%len(want)] {
			t.Errorf("phase %d: expected %s, got %s", i, want[i%len(want)], p)
		}
	}
}

func BenchmarkDispatch(b *testing.B) {
	cfg := config.Default()
	d, err := NewDriver(cfg, Options{})
	if err != nil {
		b.Fatal(err)
	}
	defer d.Close()
	pose := d.Path().Pose(cfg.Run.Frames / 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.disp.dispatch(pose)
	}
}
