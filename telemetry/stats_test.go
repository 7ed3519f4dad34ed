package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/pthm-cable/spray/canvas"
	"github.com/pthm-cable/spray/nozzle"
	"github.com/pthm-cable/spray/sim"
)

func frameWith(pix []float32, w, h int) sim.Frame {
	return sim.Frame{
		Index:     7,
		Pose:      nozzle.Pose{X: 0.5, Y: 1.25},
		Snapshot:  canvas.Snapshot{Width: w, Height: h, Pix: pix},
		Deposited: 10,
		Discarded: 2,
		Dispatch:  1500 * time.Microsecond,
	}
}

func TestComputeFrameStats(t *testing.T) {
	pix := []float32{0, 0, 0.5, 1, 0, 0.25, 0, 1}
	s := ComputeFrameStats(frameWith(pix, 4, 2))

	if s.Frame != 7 || s.NozzleX != 0.5 || s.NozzleY != 1.25 {
		t.Errorf("frame metadata not carried: %+v", s)
	}
	if s.Deposited != 10 || s.Discarded != 2 || s.DispatchUS != 1500 {
		t.Errorf("dispatch counters not carried: %+v", s)
	}
	if s.Coverage != 0.5 {
		t.Errorf("expected coverage 0.5, got %v", s.Coverage)
	}
	if s.Saturated != 0.25 {
		t.Errorf("expected saturated 0.25, got %v", s.Saturated)
	}
	if math.Abs(s.Mean-2.75/8) > 1e-9 {
		t.Errorf("expected mean %v, got %v", 2.75/8, s.Mean)
	}
	if s.Total != 2.75 || s.Max != 1 {
		t.Errorf("expected total 2.75 max 1, got %v %v", s.Total, s.Max)
	}
	if s.PaintedP50 != 0.5 {
		t.Errorf("expected painted median 0.5, got %v", s.PaintedP50)
	}
	if s.PaintedP95 != 1 {
		t.Errorf("expected painted p95 1, got %v", s.PaintedP95)
	}
}

func TestComputeFrameStatsBlank(t *testing.T) {
	s := ComputeFrameStats(frameWith(make([]float32, 16), 4, 4))
	if s.Coverage != 0 || s.Mean != 0 || s.PaintedP50 != 0 {
		t.Errorf("expected zero stats for blank canvas, got %+v", s)
	}
}
