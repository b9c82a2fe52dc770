// Package volume provides uniform access to single (channel, z) planes of a
// simulation result, whether the samples are held in memory or fetched from
// the backend one slice at a time.
package volume

import (
	"context"

	"golang.org/x/sync/errgroup"

	"microsimview/internal/models"
	"microsimview/pkg/logging"
)

// Source returns the Y×X plane of raw samples for one (channel, z).
// Implementations never fail: out-of-range requests and transport errors are
// logged and resolved as filler planes of the declared dimensions.
type Source interface {
	Plane(ctx context.Context, c, z int) models.Plane
	Shape() models.Shape
}

// MemorySource serves planes from a volume that is fully resident (eager mode)
type MemorySource struct {
	vol *models.Volume
}

// NewMemorySource wraps a validated volume
func NewMemorySource(vol *models.Volume) (*MemorySource, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	return &MemorySource{vol: vol}, nil
}

// Shape returns the volume extents
func (m *MemorySource) Shape() models.Shape {
	return m.vol.Shape
}

// Plane returns a view of the (c, z) slice. The data must be treated as read-only.
func (m *MemorySource) Plane(ctx context.Context, c, z int) models.Plane {
	s := m.vol.Shape
	if !s.Contains(c, z) {
		logging.Warningf("plane request c=%d z=%d outside shape %v, returning zeroed plane\n", c, z, s.Slice())
		return models.NewZeroPlane(c, z, s.X, s.Y)
	}
	return models.Plane{
		Channel: c,
		Z:       z,
		Width:   s.X,
		Height:  s.Y,
		Data:    m.vol.PlaneView(c, z),
	}
}

// FetchSlice returns the planes of every channel at z, fetching them concurrently.
// The result is indexed by channel and always has shape.C entries.
func FetchSlice(ctx context.Context, src Source, z int) []models.Plane {
	shape := src.Shape()
	planes := make([]models.Plane, shape.C)
	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < shape.C; c++ {
		c := c
		g.Go(func() error {
			planes[c] = src.Plane(gctx, c, z)
			return nil
		})
	}
	// Sources do not return errors; failures are already filler planes.
	_ = g.Wait()
	return planes
}
