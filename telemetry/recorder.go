package telemetry

import (
	"github.com/pthm-cable/spray/sim"
)

// Recorder is a sim.Exporter that computes per-frame statistics, logs them
// and appends them to the run's CSV output.
type Recorder struct {
	out       *OutputManager
	perf      *PerfCollector
	logFrames bool

	last FrameStats
}

// NewRecorder creates a recorder. out and perf may be nil.
func NewRecorder(out *OutputManager, perf *PerfCollector, logFrames bool) *Recorder {
	return &Recorder{out: out, perf: perf, logFrames: logFrames}
}

// Export implements sim.Exporter.
func (r *Recorder) Export(f sim.Frame) error {
	stats := ComputeFrameStats(f)
	r.last = stats

	if r.logFrames {
		stats.LogStats()
	}
	if err := r.out.WriteFrame(stats); err != nil {
		return err
	}

	// Perf samples close at EndFrame, so the window written here covers
	// frames up to f.Index-1.
	if r.perf != nil && f.Index > 0 && f.Index%r.perf.windowSize == 0 {
		ps := r.perf.Stats()
		ps.LogStats()
		if err := r.out.WritePerf(ps, f.Index); err != nil {
			return err
		}
	}
	return nil
}

// Last returns the stats of the most recently exported frame.
func (r *Recorder) Last() FrameStats {
	return r.last
}
