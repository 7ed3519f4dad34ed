package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/spray/sim"
)

// FrameStats summarizes the paint buffer after one frame's dispatch.
type FrameStats struct {
	Frame   int     `csv:"frame"`
	NozzleX float64 `csv:"nozzle_x"`
	NozzleY float64 `csv:"nozzle_y"`

	// Dispatch counters
	Deposited  int   `csv:"deposited"`
	Discarded  int   `csv:"discarded"`
	DispatchUS int64 `csv:"dispatch_us"`

	// Buffer distribution (cumulative over all frames so far)
	Coverage   float64 `csv:"coverage"`  // fraction of cells with any paint
	Saturated  float64 `csv:"saturated"` // fraction of cells at 1.0
	Mean       float64 `csv:"mean"`
	StdDev     float64 `csv:"std"`
	PaintedP50 float64 `csv:"painted_p50"` // median over painted cells only
	PaintedP95 float64 `csv:"painted_p95"`
	Max        float64 `csv:"max"`
	Total      float64 `csv:"total"` // sum of all cells
}

// ComputeFrameStats derives FrameStats from a driver frame.
func ComputeFrameStats(f sim.Frame) FrameStats {
	s := FrameStats{
		Frame:      f.Index,
		NozzleX:    f.Pose.X,
		NozzleY:    f.Pose.Y,
		Deposited:  f.Deposited,
		Discarded:  f.Discarded,
		DispatchUS: f.Dispatch.Microseconds(),
	}

	values := f.Snapshot.Float64s()
	if len(values) == 0 {
		return s
	}

	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	s.Max = floats.Max(values)
	s.Total = floats.Sum(values)

	painted := make([]float64, 0, len(values)/4)
	saturated := 0
	for _, v := range values {
		if v > 0 {
			painted = append(painted, v)
		}
		if v >= 1 {
			saturated++
		}
	}
	n := float64(len(values))
	s.Coverage = float64(len(painted)) / n
	s.Saturated = float64(saturated) / n

	if len(painted) > 0 {
		sort.Float64s(painted)
		s.PaintedP50 = stat.Quantile(0.5, stat.Empirical, painted, nil)
		s.PaintedP95 = stat.Quantile(0.95, stat.Empirical, painted, nil)
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("frame", s.Frame),
		slog.Float64("nozzle_x", s.NozzleX),
		slog.Float64("nozzle_y", s.NozzleY),
		slog.Int("deposited", s.Deposited),
		slog.Int("discarded", s.Discarded),
		slog.Int64("dispatch_us", s.DispatchUS),
		slog.Float64("coverage", s.Coverage),
		slog.Float64("saturated", s.Saturated),
		slog.Float64("mean", s.Mean),
		slog.Float64("std", s.StdDev),
		slog.Float64("painted_p50", s.PaintedP50),
		slog.Float64("painted_p95", s.PaintedP95),
		slog.Float64("max", s.Max),
	)
}

// LogStats logs the frame stats using slog.
func (s FrameStats) LogStats() {
	slog.Info("frame",
		"frame", s.Frame,
		"nozzle_x", s.NozzleX,
		"nozzle_y", s.NozzleY,
		"deposited", s.Deposited,
		"discarded", s.Discarded,
		"coverage", s.Coverage,
		"saturated", s.Saturated,
		"mean", s.Mean,
		"max", s.Max,
	)
}
