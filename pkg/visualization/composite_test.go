package visualization

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"microsimview/internal/models"
	"microsimview/pkg/transform"
	"microsimview/pkg/volume"
)

// createTestPlane creates a plane with the specified dimensions and pattern
func createTestPlane(width, height int, pattern func(x, y int) float32) models.Plane {
	p := models.Plane{Width: width, Height: height, Data: make([]float32, width*height)}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p.Data[y*width+x] = pattern(x, y)
		}
	}
	return p
}

func shown(lut int) models.ChannelSettings {
	return models.ChannelSettings{Enabled: true, Visible: true, LUTIndex: lut, Contrast: models.FullContrast}
}

// TestSinglePixelRed composites one red channel holding a single maximum pixel
func TestSinglePixelRed(t *testing.T) {
	width, height := 6, 5
	hotX, hotY := 4, 2
	plane := createTestPlane(width, height, func(x, y int) float32 {
		if x == hotX && y == hotY {
			return 1000
		}
		return 0
	})
	stats := []models.ChannelStats{{Min: 0, Max: 1000}}
	state := models.ViewState{Channels: []models.ChannelSettings{shown(0)}}

	img := Compose([]models.Plane{plane}, stats, state, transform.Global, width, height)

	red := color.RGBA{255, 0, 0, 255}
	black := color.RGBA{0, 0, 0, 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			expected := black
			if x == hotX && y == hotY {
				expected = red
			}
			if got := img.RGBAAt(x, y); got != expected {
				t.Errorf("Pixel (%d,%d): expected %v, got %v", x, y, expected, got)
			}
		}
	}
}

func TestCompositeNoChannels(t *testing.T) {
	img := Composite(nil, 4, 3)
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("Expected 4x3 image, got %v", img.Bounds())
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			if got := img.RGBAAt(x, y); got != (color.RGBA{0, 0, 0, 255}) {
				t.Errorf("Pixel (%d,%d): expected opaque black, got %v", x, y, got)
			}
		}
	}

	// All channels disabled goes through the same path
	plane := createTestPlane(4, 3, func(x, y int) float32 { return 1 })
	off := models.ChannelSettings{Enabled: false, Visible: true, Contrast: models.FullContrast}
	img = Compose([]models.Plane{plane}, []models.ChannelStats{{Max: 1}},
		models.ViewState{Channels: []models.ChannelSettings{off}}, transform.Global, 4, 3)
	if got := img.RGBAAt(1, 1); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Expected black with channel disabled, got %v", got)
	}
}

// TestCompositeClamps stacks saturated channels so sums exceed 1
func TestCompositeClamps(t *testing.T) {
	width, height := 3, 3
	var planes []models.Plane
	var stats []models.ChannelStats
	var settings []models.ChannelSettings
	for c := 0; c < len(models.Palette); c++ {
		planes = append(planes, createTestPlane(width, height, func(x, y int) float32 { return float32(x + y) }))
		stats = append(stats, models.ChannelStats{Min: 0, Max: 2})
		settings = append(settings, shown(c))
	}

	img := Compose(planes, stats, models.ViewState{Channels: settings}, transform.Global, width, height)
	if got := img.RGBAAt(2, 2); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected saturated white, got %v", got)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Expected black at the zero pixel, got %v", got)
	}

	// Out-of-range contributions must clamp rather than wrap
	wild := transform.NewRGBPlane(1, 1)
	wild.Pix[0], wild.Pix[1], wild.Pix[2] = 7.5, -3, 0.5
	img = Composite([]transform.RGBPlane{wild}, 1, 1)
	if got := img.RGBAAt(0, 0); got != (color.RGBA{255, 0, 128, 255}) {
		t.Errorf("Expected (255,0,128,255), got %v", got)
	}
}

func TestCompositeSkipsMismatchedPlanes(t *testing.T) {
	good := transform.NewRGBPlane(2, 2)
	good.Pix[0] = 1
	bad := transform.NewRGBPlane(3, 3)
	for i := range bad.Pix {
		bad.Pix[i] = 1
	}
	img := Composite([]transform.RGBPlane{good, bad}, 2, 2)
	if got := img.RGBAAt(0, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("Expected only the matching plane to contribute, got %v", got)
	}
}

func TestComposeDeterministic(t *testing.T) {
	planes := []models.Plane{
		createTestPlane(8, 8, func(x, y int) float32 { return float32(x * y) }),
		createTestPlane(8, 8, func(x, y int) float32 { return float32(x + 2*y) }),
	}
	stats := []models.ChannelStats{{Min: 0, Max: 49}, {Min: 0, Max: 21}}
	state := models.ViewState{Channels: []models.ChannelSettings{shown(0), shown(5)}}

	a := Compose(planes, stats, state, transform.Global, 8, 8)
	b := Compose(planes, stats, state.Clone(), transform.Global, 8, 8)
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("Composite differs at byte %d: %d vs %d", i, a.Pix[i], b.Pix[i])
		}
	}
}

// TestComposeWithoutStats normalises a channel to its own range when no stats are given
func TestComposeWithoutStats(t *testing.T) {
	plane := createTestPlane(2, 1, func(x, y int) float32 { return float32(10 + 40*x) })
	state := models.ViewState{Channels: []models.ChannelSettings{shown(1)}}

	img := Compose([]models.Plane{plane}, nil, state, transform.Global, 2, 1)
	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Expected black at the plane minimum, got %v", got)
	}
	if got := img.RGBAAt(1, 0); got.G != 255 {
		t.Errorf("Expected full green at the plane maximum, got %v", got)
	}
}

// TestUpscaleBlocks checks that a 32x32 image becomes uniform 16x16 blocks at 512x512
func TestUpscaleBlocks(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			src.SetRGBA(x, y, color.RGBA{uint8(x * 8), uint8(y * 8), uint8((x ^ y) * 8), 255})
		}
	}

	dst := Upscale(src, 512, 512)
	if dst.Bounds().Dx() != 512 || dst.Bounds().Dy() != 512 {
		t.Fatalf("Expected 512x512, got %v", dst.Bounds())
	}
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			expected := src.RGBAAt(x/16, y/16)
			if got := dst.RGBAAt(x, y); got != expected {
				t.Fatalf("Pixel (%d,%d): expected %v from source (%d,%d), got %v",
					x, y, expected, x/16, y/16, got)
			}
		}
	}

	fitted := FitForDisplay(src, 512)
	if fitted.Bounds().Dx() != 512 || fitted.Bounds().Dy() != 512 {
		t.Errorf("Expected FitForDisplay to produce 512x512, got %v", fitted.Bounds())
	}
}

func TestScaleFactor(t *testing.T) {
	cases := []struct{ w, h, min, expected int }{
		{32, 32, 512, 16},
		{64, 100, 512, 6},
		{600, 20, 512, 1},
		{512, 512, 512, 1},
		{0, 0, 512, 1},
	}
	for _, c := range cases {
		if got := ScaleFactor(c.w, c.h, c.min); got != c.expected {
			t.Errorf("ScaleFactor(%d,%d,%d): expected %d, got %d", c.w, c.h, c.min, c.expected, got)
		}
	}

	large := image.NewRGBA(image.Rect(0, 0, 600, 600))
	if FitForDisplay(large, 512) != large {
		t.Error("Large images should be returned unchanged")
	}
}

// TestSaveSliceSequence verifies that every Z slice is written
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	shape := models.Shape{C: 2, Z: 3, Y: 4, X: 4}
	vol := models.NewVolume(shape)
	for i := range vol.Data {
		vol.Data[i] = float32(i % 7)
	}
	src, err := volume.NewMemorySource(vol)
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	stats := []models.ChannelStats{{Max: 6}, {Max: 6}}
	state := models.ViewState{Channels: []models.ChannelSettings{shown(0), shown(1)}}

	outputDir := filepath.Join(t.TempDir(), "slices")
	if err := SaveSliceSequence(context.Background(), src, stats, state, transform.Global, outputDir, 16); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for z := 0; z < shape.Z; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		f, err := os.Open(filename)
		if err != nil {
			t.Errorf("Expected slice file does not exist: %s", filename)
			continue
		}
		cfg, _, err := image.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Errorf("Failed to decode %s: %v", filename, err)
			continue
		}
		if cfg.Width != 16 || cfg.Height != 16 {
			t.Errorf("Expected 16x16 upscaled frame, got %dx%d", cfg.Width, cfg.Height)
		}
	}
}

func TestPNGDisplay(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	d := &PNGDisplay{Dir: t.TempDir(), MinSize: 8}
	frame := Frame{Z: 7, Image: image.NewRGBA(image.Rect(0, 0, 2, 2))}
	if err := d.Show(frame); err != nil {
		t.Fatalf("Failed to show frame: %v", err)
	}
	if filepath.Base(d.Last) != "slice_z_007.png" {
		t.Errorf("Unexpected frame filename %s", d.Last)
	}

	data, err := EncodePNG(frame.Image)
	if err != nil || len(data) == 0 {
		t.Errorf("Failed to encode PNG: %v", err)
	}
}
