package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/spray/config"
)

func TestParamVectorRoundTrip(t *testing.T) {
	cfg := config.Default()
	pv := NewParamVector(cfg)

	raw := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-12 {
			t.Errorf("%s: expected %v, got %v", pv.Specs[i].Name, raw[i], back[i])
		}
	}

	got := pv.ExtractFromConfig(cfg)
	for i := range raw {
		if got[i] != raw[i] {
			t.Errorf("%s: defaults do not match config", pv.Specs[i].Name)
		}
	}
}

func TestApplyToConfigClamps(t *testing.T) {
	cfg := config.Default()
	pv := NewParamVector(cfg)

	pv.ApplyToConfig(cfg, []float64{-1, 0.3, 100})
	if cfg.Spray.Pressure != pv.Specs[0].Min {
		t.Errorf("expected pressure clamped to %v, got %v", pv.Specs[0].Min, cfg.Spray.Pressure)
	}
	if cfg.Spray.ConeHalfAngle != 0.3 {
		t.Errorf("expected cone 0.3, got %v", cfg.Spray.ConeHalfAngle)
	}
	if cfg.Spray.MaxDistance != pv.Specs[2].Max {
		t.Errorf("expected max distance clamped to %v, got %v", pv.Specs[2].Max, cfg.Spray.MaxDistance)
	}
}

func TestEvaluateScoresAgainstTarget(t *testing.T) {
	cfg := config.Default()
	cfg.Canvas.Width, cfg.Canvas.Height = 32, 32
	cfg.Run.Frames = 3
	cfg.Run.Particles = 200
	if err := cfg.Revalidate(); err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector(cfg)

	// A target equal to the achieved stats scores zero
	probe := NewFitnessEvaluator(pv, []uint32{42}, cfg, Target{})
	probe.Evaluate(pv.DefaultVector())
	last := probe.LastStats()
	if last.Coverage <= 0 {
		t.Fatalf("expected some coverage, got %v", last.Coverage)
	}

	exact := NewFitnessEvaluator(pv, []uint32{42}, cfg, Target{Coverage: last.Coverage, Mean: last.Mean})
	if f := exact.Evaluate(pv.DefaultVector()); f > 1e-12 {
		t.Errorf("expected zero fitness at target, got %v", f)
	}

	far := NewFitnessEvaluator(pv, []uint32{42}, cfg, Target{Coverage: 1, Mean: 1})
	if f := far.Evaluate(pv.DefaultVector()); f <= 0 {
		t.Errorf("expected positive fitness away from target, got %v", f)
	}
}
