// Package transform turns one channel's raw samples into colourised RGB
// contributions using the channel's contrast window and LUT.
package transform

import (
	"math"

	"microsimview/internal/models"
)

// Epsilon is the minimum width of a contrast window
const Epsilon = 1e-6

// Mode selects how the contrast window is derived
type Mode int

const (
	// Global interpolates the percentage contrast against the channel stats
	Global Mode = iota

	// PerPlane remaps the observed min..max of the plane being drawn
	PerPlane
)

// ParseMode maps a config string onto a Mode, defaulting to Global
func ParseMode(s string) Mode {
	if s == "plane" {
		return PerPlane
	}
	return Global
}

// RGBPlane holds per-pixel RGB contributions in [0,1], interleaved R,G,B
type RGBPlane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewRGBPlane allocates a zero contribution plane
func NewRGBPlane(width, height int) RGBPlane {
	return RGBPlane{Width: width, Height: height, Pix: make([]float64, 3*width*height)}
}

// Window returns the absolute sample window [lo, hi] for a percentage contrast.
// hi is always strictly greater than lo. Non-finite stats give [0, 1].
func Window(stats models.ChannelStats, contrast models.Contrast) (lo, hi float64) {
	lo = lerp(stats.Min, stats.Max, contrast.Low/100)
	hi = lerp(stats.Min, stats.Max, contrast.High/100)
	if !finite(lo) || !finite(hi) {
		return 0, 1
	}
	return widen(lo, hi)
}

// lerp stays finite for any finite a and b
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PlaneWindow returns the observed min..max of finite samples in a plane
func PlaneWindow(data []float32) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	if lo > hi {
		return widen(0, 0)
	}
	return widen(lo, hi)
}

func widen(lo, hi float64) (float64, float64) {
	if !(hi > lo) {
		hi = lo + Epsilon
		// lo + Epsilon rounds back to lo for large magnitudes
		if !(hi > lo) {
			hi = math.Nextafter(lo, math.Inf(1))
		}
	}
	return lo, hi
}

// Normalize maps a sample into [0,1] for the window [lo, hi]
func Normalize(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	n := (v - lo) / (hi - lo)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// Apply computes the RGB contribution of one channel plane.
// A disabled or hidden channel contributes exactly zero everywhere.
func Apply(plane models.Plane, stats models.ChannelStats, settings models.ChannelSettings, mode Mode) RGBPlane {
	out := NewRGBPlane(plane.Width, plane.Height)
	if !settings.Shown() {
		return out
	}

	var lo, hi float64
	switch mode {
	case PerPlane:
		lo, hi = PlaneWindow(plane.Data)
	default:
		lo, hi = Window(stats, settings.Contrast)
	}

	r, g, b := models.LUTByIndex(settings.LUTIndex).Normalized()
	n := plane.Width * plane.Height
	if len(plane.Data) < n {
		n = len(plane.Data)
	}
	for i := 0; i < n; i++ {
		v := Normalize(float64(plane.Data[i]), lo, hi)
		out.Pix[3*i] = v * r
		out.Pix[3*i+1] = v * g
		out.Pix[3*i+2] = v * b
	}
	return out
}
