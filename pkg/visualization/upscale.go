package visualization

import (
	"image"

	"golang.org/x/image/draw"
)

// Upscale resizes img to width×height with nearest-neighbour sampling so that
// no intermediate colours are introduced
func Upscale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// ScaleFactor is the smallest integer factor that brings the larger side of a
// w×h image up to minSize, or 1 if it is already large enough
func ScaleFactor(w, h, minSize int) int {
	side := w
	if h > side {
		side = h
	}
	if side <= 0 || side >= minSize {
		return 1
	}
	return (minSize + side - 1) / side
}

// FitForDisplay enlarges images smaller than minSize by a whole-number factor
// so that every source pixel becomes a uniform block
func FitForDisplay(img *image.RGBA, minSize int) *image.RGBA {
	b := img.Bounds()
	k := ScaleFactor(b.Dx(), b.Dy(), minSize)
	if k == 1 {
		return img
	}
	return Upscale(img, b.Dx()*k, b.Dy()*k)
}
