package models

import (
	"fmt"
	"time"
)

// SimulationResult is one completed simulation as seen by the viewer
type SimulationResult struct {
	// ID identifies the result on the backend; per-slice fetches are keyed by it
	ID string

	// Shape and Dims describe the volume even when Volume is nil (lazy mode)
	Shape Shape
	Dims  []string

	// Volume is set when the samples were shipped inline
	Volume *Volume

	// Stats has one entry per channel
	Stats []ChannelStats

	// Elapsed is the backend simulation time
	Elapsed time.Duration

	// PreviewZ is the slice used for the backend preview image
	PreviewZ int
}

// Validate checks the result's shape against its statistics and inline data.
// Responses are untrusted so this must pass before anything indexes into them.
func (r *SimulationResult) Validate() error {
	if r == nil {
		return fmt.Errorf("nil simulation result")
	}
	if r.Shape.C <= 0 || r.Shape.Z <= 0 || r.Shape.Y <= 0 || r.Shape.X <= 0 {
		return fmt.Errorf("invalid result shape %v", r.Shape.Slice())
	}
	if len(r.Stats) != r.Shape.C {
		return fmt.Errorf("result has %d channels but %d channel stats", r.Shape.C, len(r.Stats))
	}
	for c, s := range r.Stats {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("channel %d: %v", c, err)
		}
	}
	if r.Volume != nil {
		if r.Volume.Shape != r.Shape {
			return fmt.Errorf("inline volume shape %v does not match result shape %v",
				r.Volume.Shape.Slice(), r.Shape.Slice())
		}
		if err := r.Volume.Validate(); err != nil {
			return err
		}
	}
	return nil
}
