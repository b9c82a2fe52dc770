package models

import (
	"fmt"
)

// Shape holds the extents of a (channel, z, y, x) volume
type Shape struct {
	C, Z, Y, X int
}

// ShapeFromSlice builds a Shape from a [C, Z, Y, X] list as sent over the wire
func ShapeFromSlice(dims []int) (Shape, error) {
	if len(dims) != 4 {
		return Shape{}, fmt.Errorf("expected 4 dimensions (C, Z, Y, X), got %d", len(dims))
	}
	s := Shape{C: dims[0], Z: dims[1], Y: dims[2], X: dims[3]}
	if s.C <= 0 || s.Z <= 0 || s.Y <= 0 || s.X <= 0 {
		return Shape{}, fmt.Errorf("all dimensions must be positive, got %v", dims)
	}
	return s, nil
}

// Slice returns the shape as a [C, Z, Y, X] list
func (s Shape) Slice() []int {
	return []int{s.C, s.Z, s.Y, s.X}
}

// PlaneLen is the number of samples in a single Y×X plane
func (s Shape) PlaneLen() int {
	return s.Y * s.X
}

// Len is the total number of samples in the volume
func (s Shape) Len() int {
	return s.C * s.Z * s.Y * s.X
}

// Contains reports whether (c, z) addresses a plane inside the volume
func (s Shape) Contains(c, z int) bool {
	return c >= 0 && c < s.C && z >= 0 && z < s.Z
}

// DefaultDims are the dimension labels of every simulation result
var DefaultDims = []string{"C", "Z", "Y", "X"}

// Volume represents one simulation output held in memory
type Volume struct {
	// Shape gives the C, Z, Y, X extents
	Shape Shape

	// Dims are the dimension labels, normally DefaultDims
	Dims []string

	// Data holds the samples in C-order: c*Z*Y*X + z*Y*X + y*X + x
	Data []float32
}

// NewVolume allocates a zeroed volume of the given shape
func NewVolume(shape Shape) *Volume {
	return &Volume{
		Shape: shape,
		Dims:  append([]string(nil), DefaultDims...),
		Data:  make([]float32, shape.Len()),
	}
}

// Validate checks that the buffer length matches the declared shape
func (v *Volume) Validate() error {
	if v == nil {
		return fmt.Errorf("nil volume")
	}
	if v.Shape.C <= 0 || v.Shape.Z <= 0 || v.Shape.Y <= 0 || v.Shape.X <= 0 {
		return fmt.Errorf("invalid volume shape %v", v.Shape.Slice())
	}
	if len(v.Data) != v.Shape.Len() {
		return fmt.Errorf("volume data has %d samples, shape %v needs %d",
			len(v.Data), v.Shape.Slice(), v.Shape.Len())
	}
	return nil
}

// Index returns the flat offset of a sample
func (v *Volume) Index(c, z, y, x int) int {
	s := v.Shape
	return ((c*s.Z+z)*s.Y+y)*s.X + x
}

// At returns a single sample
func (v *Volume) At(c, z, y, x int) float32 {
	return v.Data[v.Index(c, z, y, x)]
}

// Set stores a single sample
func (v *Volume) Set(c, z, y, x int, value float32) {
	v.Data[v.Index(c, z, y, x)] = value
}

// PlaneView returns the samples of plane (c, z) without copying.
// Callers must not modify the returned slice.
func (v *Volume) PlaneView(c, z int) []float32 {
	start := v.Index(c, z, 0, 0)
	return v.Data[start : start+v.Shape.PlaneLen()]
}

// Channel returns all samples of channel c without copying
func (v *Volume) Channel(c int) []float32 {
	n := v.Shape.Z * v.Shape.PlaneLen()
	return v.Data[c*n : (c+1)*n]
}

// Plane is a single Y×X slice of raw samples for one channel
type Plane struct {
	// Channel and Z identify where the plane came from
	Channel int
	Z       int

	// Width and Height are the X and Y extents
	Width  int
	Height int

	// Data holds Width*Height raw samples in row-major order
	Data []float32

	// Filler is set when the samples are a placeholder rather than real data
	Filler bool
}

// NewZeroPlane returns a zeroed filler plane of the given dimensions
func NewZeroPlane(c, z, width, height int) Plane {
	return Plane{
		Channel: c,
		Z:       z,
		Width:   width,
		Height:  height,
		Data:    make([]float32, width*height),
		Filler:  true,
	}
}
