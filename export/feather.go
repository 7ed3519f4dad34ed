package export

import "math"

// gaussianKernel returns a normalized 1D Gaussian with the given sigma in
// pixels, truncated at 3 sigma. A non-positive sigma yields the identity.
func gaussianKernel(sigma float64) []float32 {
	if sigma <= 0 {
		return []float32{1}
	}

	half := int(math.Ceil(sigma * 3))
	kernel := make([]float32, 2*half+1)

	twoSigmaSq := 2 * sigma * sigma
	var sum float64
	for i := range kernel {
		x := float64(i - half)
		v := math.Exp(-(x * x) / twoSigmaSq)
		kernel[i] = float32(v)
		sum += v
	}

	inv := float32(1 / sum)
	for i := range kernel {
		kernel[i] *= inv
	}
	return kernel
}

// Feather blurs a row-major w×h intensity grid with a separable Gaussian
// whose 3-sigma reach is radius pixels. Edges are extended. The input is
// not modified; results stay in [0, 1].
func Feather(pix []float32, w, h int, radius float64) []float32 {
	out := make([]float32, len(pix))
	if radius <= 0 {
		copy(out, pix)
		return out
	}

	kernel := gaussianKernel(radius / 3)
	half := len(kernel) / 2
	temp := make([]float32, len(pix))

	// Horizontal pass: pix -> temp
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			var acc float32
			for k, weight := range kernel {
				kx := min(max(x+k-half, 0), w-1)
				acc += pix[row+kx] * weight
			}
			temp[row+x] = acc
		}
	}

	// Vertical pass: temp -> out
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float32
			for k, weight := range kernel {
				ky := min(max(y+k-half, 0), h-1)
				acc += temp[ky*w+x] * weight
			}
			out[y*w+x] = min(max(acc, 0), 1)
		}
	}
	return out
}
