// Package canvas provides the shared paint accumulation buffer.
package canvas

import (
	"math"
	"sync/atomic"
)

// Cells hold intensity as fixed point with 24 fractional bits. Integer
// saturating addition is associative, so the value of a cell after a
// dispatch does not depend on the order its writers landed in.
const (
	fracBits = 24
	fullCell = uint32(1) << fracBits // 1.0
	scale    = float64(fullCell)
)

// Quantize converts an intensity to the buffer's fixed-point unit,
// rounding to nearest and saturating at 1.
func Quantize(intensity float64) uint32 {
	if !(intensity > 0) {
		return 0
	}
	if intensity >= 1 {
		return fullCell
	}
	return uint32(math.Round(intensity * scale))
}

// Dequantize converts a fixed-point cell value back to an intensity.
func Dequantize(q uint32) float32 {
	return float32(q) / float32(fullCell)
}

// Buffer is a fixed-size grid of intensities in [0, 1], row-major.
// Cells only change through Accumulate, so concurrent writers never lose
// updates and values never decrease.
type Buffer struct {
	width, height int
	cells         []atomic.Uint32
}

// NewBuffer creates a zeroed buffer.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		width:  width,
		height: height,
		cells:  make([]atomic.Uint32, width*height),
	}
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.height }

// Len returns the number of cells.
func (b *Buffer) Len() int { return len(b.cells) }

// Index returns the row-major cell index of pixel (x, y).
func (b *Buffer) Index(x, y int) int {
	return y*b.width + x
}

// Accumulate sets a cell to min(1, old + intensity). It is safe for
// concurrent use, including many writers on the same cell: the update is a
// compare-and-swap retry loop. Non-positive and NaN intensities are no-ops.
func (b *Buffer) Accumulate(idx int, intensity float64) {
	b.AccumulateFixed(idx, Quantize(intensity))
}

// AccumulateFixed is Accumulate for an already quantized intensity.
func (b *Buffer) AccumulateFixed(idx int, q uint32) {
	if q == 0 {
		return
	}
	cell := &b.cells[idx]
	for {
		old := cell.Load()
		if old >= fullCell {
			return
		}
		v := fullCell
		if q < fullCell-old {
			v = old + q
		}
		if cell.CompareAndSwap(old, v) {
			return
		}
	}
}

// At returns the current value of a cell.
func (b *Buffer) At(idx int) float32 {
	return Dequantize(b.cells[idx].Load())
}

// Snapshot copies the buffer. Call it only after every writer of the
// current dispatch has finished.
func (b *Buffer) Snapshot() Snapshot {
	pix := make([]float32, len(b.cells))
	for i := range b.cells {
		pix[i] = Dequantize(b.cells[i].Load())
	}
	return Snapshot{Width: b.width, Height: b.height, Pix: pix}
}
