package volume

import "microsimview/internal/models"

// Filler builds the placeholder plane substituted for a failed fetch
type Filler func(c, z, width, height int) models.Plane

// ZeroFiller returns an all-zero plane
func ZeroFiller(c, z, width, height int) models.Plane {
	return models.NewZeroPlane(c, z, width, height)
}

// checkerSize is the side of one checkerboard square in pixels
const checkerSize = 8

// CheckerboardFiller returns a 0/1 checkerboard so a missing slice is visibly
// distinct from an empty one
func CheckerboardFiller(c, z, width, height int) models.Plane {
	p := models.NewZeroPlane(c, z, width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x/checkerSize+y/checkerSize)%2 == 0 {
				p.Data[y*width+x] = 1
			}
		}
	}
	return p
}

// FillerByName maps a config value to a Filler, defaulting to ZeroFiller
func FillerByName(name string) Filler {
	if name == "checkerboard" {
		return CheckerboardFiller
	}
	return ZeroFiller
}
