package models

import (
	"fmt"
	"time"
)

// DType is the sample type of every volume on the wire
const DType = "float32"

// ZarrMeta mirrors a zarr v2 .zarray document for a single-chunk array
type ZarrMeta struct {
	Shape              []int    `json:"shape"`
	Chunks             []int    `json:"chunks"`
	DType              string   `json:"dtype"`
	Order              string   `json:"order"`
	FillValue          float64  `json:"fill_value"`
	Filters            []string `json:"filters"`
	Compressor         *string  `json:"compressor"`
	DimensionSeparator string   `json:"dimension_separator"`
}

// NewZarrMeta describes an uncompressed C-order float32 array stored as one chunk
func NewZarrMeta(s Shape) *ZarrMeta {
	return &ZarrMeta{
		Shape:              s.Slice(),
		Chunks:             s.Slice(),
		DType:              DType,
		Order:              "C",
		DimensionSeparator: ".",
	}
}

// ZarrArray carries inline samples nested as [C][Z][Y][X]
type ZarrArray struct {
	Meta *ZarrMeta       `json:"zarray,omitempty"`
	Data [][][][]float32 `json:"data"`
}

// SimulateResponse is the backend's reply to a simulation request
type SimulateResponse struct {
	ResultID   string         `json:"result_id"`
	Shape      []int          `json:"shape"`
	Dims       []string       `json:"dims"`
	DType      string         `json:"dtype,omitempty"`
	Zarr       *ZarrArray     `json:"zarr,omitempty"`
	PreviewPNG string         `json:"preview_png_b64,omitempty"`
	Stats      []ChannelStats `json:"stats"`
	Elapsed    float64        `json:"elapsed_s"`
	ZSliceUsed int            `json:"z_slice_used"`
}

// DataInfo describes the volume currently served by the chunk endpoint
type DataInfo struct {
	ResultID string `json:"result_id"`
	Shape    []int  `json:"shape"`
	DType    string `json:"dtype"`
	Chunks   []int  `json:"chunks"`
}

// NestVolume converts a flat volume to [C][Z][Y][X] lists. Rows share
// storage with vol.
func NestVolume(vol *Volume) [][][][]float32 {
	s := vol.Shape
	out := make([][][][]float32, s.C)
	for c := range out {
		out[c] = make([][][]float32, s.Z)
		for z := range out[c] {
			plane := vol.PlaneView(c, z)
			out[c][z] = make([][]float32, s.Y)
			for y := range out[c][z] {
				out[c][z][y] = plane[y*s.X : (y+1)*s.X]
			}
		}
	}
	return out
}

// FlattenVolume is the inverse of NestVolume. Every level must match shape exactly.
func FlattenVolume(data [][][][]float32, s Shape) (*Volume, error) {
	if len(data) != s.C {
		return nil, fmt.Errorf("inline data has %d channels, shape says %d", len(data), s.C)
	}
	vol := NewVolume(s)
	i := 0
	for c, zs := range data {
		if len(zs) != s.Z {
			return nil, fmt.Errorf("channel %d has %d planes, shape says %d", c, len(zs), s.Z)
		}
		for z, rows := range zs {
			if len(rows) != s.Y {
				return nil, fmt.Errorf("plane c=%d z=%d has %d rows, shape says %d", c, z, len(rows), s.Y)
			}
			for y, row := range rows {
				if len(row) != s.X {
					return nil, fmt.Errorf("row c=%d z=%d y=%d has %d samples, shape says %d", c, z, y, len(row), s.X)
				}
				i += copy(vol.Data[i:], row)
			}
		}
	}
	return vol, nil
}

// Result converts a response into a validated SimulationResult. The inline
// volume is attached only when the response carries samples.
func (r *SimulateResponse) Result() (*SimulationResult, error) {
	shape, err := ShapeFromSlice(r.Shape)
	if err != nil {
		return nil, err
	}
	if r.DType != "" && r.DType != DType {
		return nil, fmt.Errorf("unsupported dtype %q", r.DType)
	}
	dims := r.Dims
	if len(dims) == 0 {
		dims = DefaultDims
	}
	if len(dims) != 4 {
		return nil, fmt.Errorf("expected 4 dimension labels, got %v", dims)
	}

	result := &SimulationResult{
		ID:       r.ResultID,
		Shape:    shape,
		Dims:     dims,
		Stats:    r.Stats,
		Elapsed:  time.Duration(r.Elapsed * float64(time.Second)),
		PreviewZ: r.ZSliceUsed,
	}
	if r.Zarr != nil && len(r.Zarr.Data) > 0 {
		vol, err := FlattenVolume(r.Zarr.Data, shape)
		if err != nil {
			return nil, err
		}
		vol.Dims = dims
		result.Volume = vol
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}
