package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/spray/config"
	"github.com/pthm-cable/spray/sim"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("expected nil manager for empty dir, got %v, %v", om, err)
	}
	// nil receiver is a no-op
	if err := om.WriteFrame(FrameStats{}); err != nil {
		t.Errorf("expected nil-safe WriteFrame, got %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("expected nil-safe Close, got %v", err)
	}
}

func TestRecorderWritesFramesCSV(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("creating output manager: %v", err)
	}

	cfg := config.Default()
	cfg.Canvas.Width = 64
	cfg.Canvas.Height = 64
	cfg.Run.Frames = 9
	cfg.Run.Particles = 400

	if err := om.WriteConfig(cfg); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	perf := NewPerfCollector(4)
	d, err := sim.NewDriver(cfg, sim.Options{Timer: perf})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	rec := NewRecorder(om, perf, false)
	if err := d.Run(rec); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("closing output: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "frames.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var rows []FrameStats
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		t.Fatalf("reading frames.csv: %v", err)
	}
	if len(rows) != cfg.Run.Frames {
		t.Fatalf("expected %d rows, got %d", cfg.Run.Frames, len(rows))
	}
	for i, row := range rows {
		if row.Frame != i {
			t.Errorf("row %d has frame %d", i, row.Frame)
		}
		if i > 0 && row.Total < rows[i-1].Total {
			t.Errorf("total paint decreased at frame %d", i)
		}
	}
	if rec.Last().Frame != cfg.Run.Frames-1 {
		t.Errorf("expected last frame %d, got %d", cfg.Run.Frames-1, rec.Last().Frame)
	}

	// Frames 4 and 8 close a perf window
	pf, err := os.Open(filepath.Join(dir, "perf.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer pf.Close()
	var perfRows []PerfStatsCSV
	if err := gocsv.UnmarshalFile(pf, &perfRows); err != nil {
		t.Fatalf("reading perf.csv: %v", err)
	}
	if len(perfRows) != 2 {
		t.Errorf("expected 2 perf rows, got %d", len(perfRows))
	}

	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config snapshot does not reload: %v", err)
	}
}
