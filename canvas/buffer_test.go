package canvas

import (
	"sync"
	"testing"
)

func TestAccumulateSaturates(t *testing.T) {
	b := NewBuffer(8, 8)
	idx := b.Index(3, 4)

	b.Accumulate(idx, 0.95)
	b.Accumulate(idx, 0.2)

	if got := b.At(idx); got != 1.0 {
		t.Errorf("expected clamped value 1.0, got %v", got)
	}
}

func TestAccumulateAdds(t *testing.T) {
	b := NewBuffer(4, 4)
	b.Accumulate(5, 0.25)
	b.Accumulate(5, 0.5)

	if got := b.At(5); got != 0.75 {
		t.Errorf("expected 0.75, got %v", got)
	}
	// Neighbours untouched
	if got := b.At(4); got != 0 {
		t.Errorf("expected untouched neighbour, got %v", got)
	}
}

func TestAccumulateIgnoresNonPositive(t *testing.T) {
	b := NewBuffer(2, 2)
	b.Accumulate(0, 0.5)
	b.Accumulate(0, 0)
	b.Accumulate(0, -0.3)

	if got := b.At(0); got != 0.5 {
		t.Errorf("expected non-positive intensities to be ignored, got %v", got)
	}
}

func TestAccumulateConcurrentSameCell(t *testing.T) {
	const (
		writers   = 64
		perWriter = 1000
		step      = 1.0 / 1048576 // 2^-20, exact in fixed point
	)
	b := NewBuffer(16, 16)
	idx := b.Index(8, 8)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Accumulate(idx, step)
			}
		}()
	}
	wg.Wait()

	want := Dequantize(Quantize(step) * writers * perWriter)
	if got := b.At(idx); got != want {
		t.Errorf("lost updates: expected %v, got %v", want, got)
	}
}

func TestAccumulateConcurrentSaturation(t *testing.T) {
	b := NewBuffer(4, 4)
	b.Accumulate(0, 0.5)

	var wg sync.WaitGroup
	for w := 0; w < 32; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Accumulate(0, 0.1)
		}()
	}
	wg.Wait()

	if got := b.At(0); got != 1 {
		t.Errorf("expected saturation at 1, got %v", got)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	b := NewBuffer(3, 2)
	b.Accumulate(b.Index(2, 1), 0.5)

	snap := b.Snapshot()
	if snap.Width != 3 || snap.Height != 2 || len(snap.Pix) != 6 {
		t.Fatalf("unexpected snapshot shape %dx%d len %d", snap.Width, snap.Height, len(snap.Pix))
	}
	if snap.At(2, 1) != 0.5 {
		t.Errorf("expected 0.5 at (2,1), got %v", snap.At(2, 1))
	}

	b.Accumulate(b.Index(2, 1), 0.25)
	if snap.At(2, 1) != 0.5 {
		t.Errorf("snapshot changed after later accumulate: %v", snap.At(2, 1))
	}
}

func TestQuantizeBounds(t *testing.T) {
	if Quantize(-1) != 0 || Quantize(0) != 0 {
		t.Error("expected non-positive to quantize to 0")
	}
	if Quantize(5) != Quantize(1) {
		t.Error("expected values above 1 to saturate")
	}
	if Dequantize(Quantize(0.25)) != 0.25 {
		t.Errorf("expected 0.25 to be exact, got %v", Dequantize(Quantize(0.25)))
	}
}

func TestSnapshotRows(t *testing.T) {
	b := NewBuffer(2, 3)
	b.Accumulate(b.Index(1, 2), 1)

	rows := b.Snapshot().Rows()
	if len(rows) != 3 || len(rows[0]) != 2 {
		t.Fatalf("unexpected rows shape %d x %d", len(rows), len(rows[0]))
	}
	if rows[2][1] != 1 {
		t.Errorf("expected row 2 col 1 to be 1, got %v", rows[2][1])
	}
}
