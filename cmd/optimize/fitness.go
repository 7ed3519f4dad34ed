package main

import (
	"math"
	"sync"

	"github.com/pthm-cable/spray/config"
	"github.com/pthm-cable/spray/sim"
	"github.com/pthm-cable/spray/telemetry"
)

// Target is the final-frame buffer distribution the optimizer aims for.
type Target struct {
	Coverage float64 // fraction of cells with any paint
	Mean     float64 // mean cell intensity
}

// FitnessEvaluator runs headless simulations and scores their final frame.
type FitnessEvaluator struct {
	params     *ParamVector
	seeds      []uint32
	baseConfig *config.Config
	target     Target

	mu        sync.Mutex
	lastStats telemetry.FrameStats // averaged over seeds, most recent Evaluate
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, seeds []uint32, baseCfg *config.Config, target Target) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		seeds:      seeds,
		baseConfig: baseCfg,
		target:     target,
	}
}

// LastStats returns the seed-averaged coverage and mean of the most recent evaluation.
func (fe *FitnessEvaluator) LastStats() telemetry.FrameStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastStats
}

// Evaluate computes fitness for a raw parameter vector (lower = better):
// squared error of coverage and mean against the target, averaged over seeds.
// Invalid candidates score +Inf.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)
	if err := cfg.Revalidate(); err != nil {
		return math.Inf(1)
	}

	// Seeds run in parallel; each run also fans out across its own workers.
	results := make([]telemetry.FrameStats, len(fe.seeds))
	errs := make([]error, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s uint32) {
			defer wg.Done()
			results[idx], errs[idx] = runSimulation(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	var fitness float64
	var avg telemetry.FrameStats
	for i, r := range results {
		if errs[i] != nil {
			return math.Inf(1)
		}
		fitness += fe.score(r)
		avg.Coverage += r.Coverage
		avg.Mean += r.Mean
	}
	n := float64(len(fe.seeds))
	avg.Coverage /= n
	avg.Mean /= n

	fe.mu.Lock()
	fe.lastStats = avg
	fe.mu.Unlock()

	return fitness / n
}

func (fe *FitnessEvaluator) score(s telemetry.FrameStats) float64 {
	dc := s.Coverage - fe.target.Coverage
	dm := s.Mean - fe.target.Mean
	return dc*dc + dm*dm
}

// runSimulation runs every frame with the given seed offset and returns the
// stats of the final frame.
func runSimulation(base *config.Config, seed uint32) (telemetry.FrameStats, error) {
	cfg := base.Clone()
	cfg.Run.Seed = seed

	d, err := sim.NewDriver(cfg, sim.Options{})
	if err != nil {
		return telemetry.FrameStats{}, err
	}
	defer d.Close()

	rec := telemetry.NewRecorder(nil, nil, false)
	if err := d.Run(rec); err != nil {
		return telemetry.FrameStats{}, err
	}
	return rec.Last(), nil
}
