package telemetry

import (
	"testing"
	"time"

	"github.com/pthm-cable/spray/sim"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartFrame()
		pc.StartPhase(sim.PhaseNozzle)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(sim.PhaseDispatch)
		time.Sleep(200 * time.Microsecond)
		pc.EndFrame()
	}

	stats := pc.Stats()

	if stats.AvgFrameDuration <= 0 {
		t.Error("expected positive average frame duration")
	}
	if _, ok := stats.PhaseAvg[sim.PhaseNozzle]; !ok {
		t.Error("expected nozzle phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[sim.PhaseDispatch]; !ok {
		t.Error("expected dispatch phase to be tracked")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartFrame()
		pc.StartPhase(sim.PhaseDispatch)
		pc.EndFrame()
	}

	stats := pc.Stats()
	if stats.AvgFrameDuration <= 0 {
		t.Error("expected positive average frame duration after window filled")
	}
	if stats.FramesPerSecond <= 0 {
		t.Error("expected positive frames per second")
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartFrame()
		pc.StartPhase(sim.PhaseSnapshot)
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase(sim.PhaseDispatch)
		time.Sleep(100 * time.Microsecond)
		pc.EndFrame()
	}

	stats := pc.Stats()
	if stats.PhasePct[sim.PhaseDispatch] <= stats.PhasePct[sim.PhaseSnapshot] {
		t.Errorf("expected dispatch (%v%%) > snapshot (%v%%)",
			stats.PhasePct[sim.PhaseDispatch], stats.PhasePct[sim.PhaseSnapshot])
	}

	row := stats.ToCSV(4)
	if row.Frame != 4 || row.DispatchPct != stats.PhasePct[sim.PhaseDispatch] {
		t.Errorf("unexpected csv row %+v", row)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	stats := NewPerfCollector(10).Stats()

	if stats.AvgFrameDuration != 0 {
		t.Error("expected zero avg frame duration for empty collector")
	}
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("expected non-nil phase maps")
	}
}

func TestPerfCollector_DrawTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	pc.RecordDraw()
	time.Sleep(16 * time.Millisecond)
	pc.RecordDraw()

	stats := pc.Stats()
	if stats.DrawDuration < 15*time.Millisecond {
		t.Errorf("expected draw duration >= 15ms, got %v", stats.DrawDuration)
	}
	if stats.FPS <= 0 {
		t.Error("expected positive FPS")
	}
}

func TestPerfCollector_DrivesSimTimer(t *testing.T) {
	var _ sim.PhaseTimer = NewPerfCollector(1)
}
