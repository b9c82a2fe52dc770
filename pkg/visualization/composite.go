// Package visualization composites per-channel contributions into displayable
// RGBA rasters and writes them out as image sequences.
package visualization

import (
	"image"
	"math"

	"microsimview/internal/models"
	"microsimview/pkg/logging"
	"microsimview/pkg/transform"
)

// toByte clamps a normalised component to [0,1] and converts it to 8 bits
func toByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}

// Composite sums the contribution planes componentwise and rasterises the
// result as an opaque RGBA image. With no contributions the image is black.
// Planes whose dimensions differ from width×height are skipped.
func Composite(contributions []transform.RGBPlane, width, height int) *image.RGBA {
	n := width * height
	sum := make([]float64, 3*n)
	for i, c := range contributions {
		if c.Width != width || c.Height != height || len(c.Pix) != 3*n {
			logging.Warningf("skipping contribution %d: %dx%d does not match %dx%d\n",
				i, c.Width, c.Height, width, height)
			continue
		}
		for j, v := range c.Pix {
			sum[j] += v
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < n; i++ {
		img.Pix[4*i] = toByte(sum[3*i])
		img.Pix[4*i+1] = toByte(sum[3*i+1])
		img.Pix[4*i+2] = toByte(sum[3*i+2])
		img.Pix[4*i+3] = 255
	}
	return img
}

// Compose runs the channel transform for every plane of one Z slice and
// composites the result. planes and state.Channels are indexed by channel;
// channels without settings contribute nothing, and channels without stats
// are normalised to their own plane range. The output depends only on the
// arguments.
func Compose(planes []models.Plane, stats []models.ChannelStats, state models.ViewState, mode transform.Mode, width, height int) *image.RGBA {
	contributions := make([]transform.RGBPlane, 0, len(planes))
	for c, p := range planes {
		if c >= len(state.Channels) {
			continue
		}
		settings := state.Channels[c]
		if !settings.Shown() {
			continue
		}
		if c >= len(stats) {
			contributions = append(contributions, transform.Apply(p, models.EmptyStats, settings, transform.PerPlane))
			continue
		}
		contributions = append(contributions, transform.Apply(p, stats[c], settings, mode))
	}
	return Composite(contributions, width, height)
}
