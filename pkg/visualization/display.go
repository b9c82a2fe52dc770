package visualization

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"microsimview/internal/models"
	"microsimview/pkg/transform"
	"microsimview/pkg/volume"
)

// Frame is one composited slice ready for display
type Frame struct {
	Z          int
	Generation uint64
	Image      *image.RGBA
}

// EncodePNG encodes a raster as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveFrame writes an image as a PNG file
func SaveFrame(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// PNGDisplay is a display surface that writes every shown frame to Dir
type PNGDisplay struct {
	Dir     string
	MinSize int

	// Last is the most recently written file
	Last string
}

// Show upscales small frames and writes them as slice_z_NNN.png
func (d *PNGDisplay) Show(f Frame) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return err
	}
	filename := filepath.Join(d.Dir, fmt.Sprintf("slice_z_%03d.png", f.Z))
	if err := SaveFrame(FitForDisplay(f.Image, d.MinSize), filename); err != nil {
		return fmt.Errorf("failed to save frame z=%d: %w", f.Z, err)
	}
	d.Last = filename
	return nil
}

// SaveSliceSequence composites and saves every Z slice of src using the
// channel settings in state (state.Z is ignored)
func SaveSliceSequence(ctx context.Context, src volume.Source, stats []models.ChannelStats, state models.ViewState, mode transform.Mode, outputDir string, minSize int) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	shape := src.Shape()
	for z := 0; z < shape.Z; z++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		planes := volume.FetchSlice(ctx, src, z)
		img := Compose(planes, stats, state, mode, shape.X, shape.Y)

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		if err := SaveFrame(FitForDisplay(img, minSize), filename); err != nil {
			return err
		}
	}
	return nil
}
