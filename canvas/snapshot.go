package canvas

// Snapshot is a read-only copy of a Buffer taken after a dispatch barrier.
type Snapshot struct {
	Width, Height int
	Pix           []float32 // row-major, len Width*Height
}

// At returns the value at pixel (x, y).
func (s Snapshot) At(x, y int) float32 {
	return s.Pix[y*s.Width+x]
}

// Float64s returns the intensities widened to float64.
func (s Snapshot) Float64s() []float64 {
	out := make([]float64, len(s.Pix))
	for i, v := range s.Pix {
		out[i] = float64(v)
	}
	return out
}

// Rows returns the snapshot as a slice of row slices sharing Pix storage.
func (s Snapshot) Rows() [][]float32 {
	rows := make([][]float32, s.Height)
	for y := range rows {
		rows[y] = s.Pix[y*s.Width : (y+1)*s.Width : (y+1)*s.Width]
	}
	return rows
}
