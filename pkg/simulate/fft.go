package simulate

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2D performs a 2D Fast Fourier Transform on a row-major plane.
// Rows are transformed first, then columns, both with gonum's complex FFT.
func fft2D(data []float64, width, height int) []complex128 {
	result := make([]complex128, width*height)
	for i, v := range data {
		result[i] = complex(v, 0)
	}
	transform2D(result, width, height, false)
	return result
}

// ifft2D inverts fft2D and returns the real part, normalised by the plane size
func ifft2D(coeff []complex128, width, height int) []float64 {
	work := make([]complex128, len(coeff))
	copy(work, coeff)
	transform2D(work, width, height, true)

	n := float64(width * height)
	out := make([]float64, len(work))
	for i, c := range work {
		out[i] = real(c) / n
	}
	return out
}

// transform2D runs the forward or unnormalised inverse transform in place
func transform2D(data []complex128, width, height int, inverse bool) {
	rowFFT := fourier.NewCmplxFFT(width)
	row := make([]complex128, width)
	for y := 0; y < height; y++ {
		copy(row, data[y*width:(y+1)*width])
		if inverse {
			rowFFT.Sequence(row, row)
		} else {
			rowFFT.Coefficients(row, row)
		}
		copy(data[y*width:(y+1)*width], row)
	}

	colFFT := fourier.NewCmplxFFT(height)
	col := make([]complex128, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*width+x]
		}
		if inverse {
			colFFT.Sequence(col, col)
		} else {
			colFFT.Coefficients(col, col)
		}
		for y := 0; y < height; y++ {
			data[y*width+x] = col[y]
		}
	}
}

// frequency returns the signed frequency of FFT bin k in cycles per sample
func frequency(k, n int) float64 {
	if k > n/2 {
		k -= n
	}
	return float64(k) / float64(n)
}

// GaussianBlur convolves a plane with a Gaussian PSF of the given sigma in
// pixels. The convolution is circular. A non-positive sigma returns a copy.
func GaussianBlur(data []float32, width, height int, sigma float64) []float32 {
	out := make([]float32, len(data))
	if sigma <= 0 {
		copy(out, data)
		return out
	}

	plane := make([]float64, len(data))
	for i, v := range data {
		plane[i] = float64(v)
	}
	coeff := fft2D(plane, width, height)

	// The Fourier transform of a unit-area Gaussian is exp(-2π²σ²f²)
	k := -2 * math.Pi * math.Pi * sigma * sigma
	for y := 0; y < height; y++ {
		fy := frequency(y, height)
		for x := 0; x < width; x++ {
			fx := frequency(x, width)
			coeff[y*width+x] *= complex(math.Exp(k*(fx*fx+fy*fy)), 0)
		}
	}

	for i, v := range ifft2D(coeff, width, height) {
		out[i] = float32(v)
	}
	return out
}
