// Package simulate produces (C, Z, Y, X) microscopy volumes for the backend.
//
// The physics of a real simulation engine is out of reach here; Synthetic
// generates deterministic test scenes (gradients, radial falloff and
// fluorescent beads), blurs them with a Gaussian PSF and optionally adds
// shot noise, which is enough to exercise the viewer end to end.
package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"microsimview/internal/models"
	"microsimview/pkg/logging"
)

// MaxSamples bounds the C*Z*Y*X size of a generated volume
const MaxSamples = 1 << 27

// ErrInvalidParams marks a simulation document that cannot be run as given
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Simulator turns a validated simulation document into a volume
type Simulator interface {
	// Schema returns the JSON schema the simulation document must satisfy
	Schema() string

	// Run executes the simulation
	Run(ctx context.Context, doc map[string]interface{}) (*models.Volume, error)
}

// Params are the knobs of the synthetic simulator
type Params struct {
	Channels int     `json:"channels"`
	Z        int     `json:"z"`
	Y        int     `json:"y"`
	X        int     `json:"x"`
	Beads    int     `json:"beads"`
	PSFSigma float64 `json:"psf_sigma"`
	Noise    float64 `json:"noise"`
	Seed     int64   `json:"seed"`
}

// DefaultParams returns the parameters used for fields missing from a document
func DefaultParams() Params {
	return Params{
		Channels: 2,
		Z:        16,
		Y:        64,
		X:        64,
		Beads:    20,
		PSFSigma: 1.5,
		Noise:    0,
		Seed:     1,
	}
}

// Validate checks the parameters independently of the JSON schema
func (p Params) Validate() error {
	if p.Channels <= 0 || p.Z <= 0 || p.Y <= 0 || p.X <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got channels=%d z=%d y=%d x=%d",
			ErrInvalidParams, p.Channels, p.Z, p.Y, p.X)
	}
	if p.Beads < 0 || p.PSFSigma < 0 || p.Noise < 0 {
		return fmt.Errorf("%w: beads, psf_sigma and noise must not be negative", ErrInvalidParams)
	}
	// Each factor is checked above, so the running product cannot overflow int64
	samples := int64(p.Channels)
	for _, n := range []int{p.Z, p.Y, p.X} {
		samples *= int64(n)
		if samples > MaxSamples {
			return fmt.Errorf("%w: channels*z*y*x exceeds %d samples", ErrInvalidParams, MaxSamples)
		}
	}
	return nil
}

// Shape returns the volume shape these parameters produce
func (p Params) Shape() models.Shape {
	return models.Shape{C: p.Channels, Z: p.Z, Y: p.Y, X: p.X}
}

// ParseParams overlays a simulation document on DefaultParams
func ParseParams(doc map[string]interface{}) (Params, error) {
	p := DefaultParams()
	raw, err := json.Marshal(doc)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: cannot decode simulation parameters: %v", ErrInvalidParams, err)
	}
	return p, p.Validate()
}

// Synthetic is the built-in simulator
type Synthetic struct{}

// Schema returns the simulation document schema
func (Synthetic) Schema() string {
	return Schema
}

// Run generates a volume. Channel c renders pattern c mod 3: a diagonal
// gradient, a radial falloff, or a bead field.
func (s Synthetic) Run(ctx context.Context, doc map[string]interface{}) (*models.Volume, error) {
	p, err := ParseParams(doc)
	if err != nil {
		return nil, err
	}
	return Generate(ctx, p)
}

// Generate renders the synthetic scene described by p
func Generate(ctx context.Context, p Params) (*models.Volume, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	tlog := logging.NewTimeLog()
	vol := models.NewVolume(p.Shape())
	rng := rand.New(rand.NewSource(p.Seed))

	for c := 0; c < p.Channels; c++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch c % 3 {
		case 0:
			gradient(vol, c)
		case 1:
			radial(vol, c)
		case 2:
			beads(vol, c, p.Beads, rng)
		}
		for z := 0; z < p.Z; z++ {
			plane := vol.PlaneView(c, z)
			if p.PSFSigma > 0 {
				copy(plane, GaussianBlur(plane, p.X, p.Y, p.PSFSigma))
			}
			if p.Noise > 0 {
				addShotNoise(plane, p.Noise, rng)
			}
		}
	}
	tlog.Infof("simulated volume %v", p.Shape().Slice())
	return vol, nil
}

func gradient(vol *models.Volume, c int) {
	s := vol.Shape
	norm := float32(s.X + s.Y + 10*s.Z)
	for z := 0; z < s.Z; z++ {
		for y := 0; y < s.Y; y++ {
			for x := 0; x < s.X; x++ {
				vol.Set(c, z, y, x, float32(x+y+10*z)/norm)
			}
		}
	}
}

func radial(vol *models.Volume, c int) {
	s := vol.Shape
	cy, cx := s.Y/2, s.X/2
	scale := math.Max(1, float64(minInt(s.X, s.Y))/6)
	for z := 0; z < s.Z; z++ {
		gain := 1 + 0.2*float64(z)
		for y := 0; y < s.Y; y++ {
			for x := 0; x < s.X; x++ {
				dist := math.Hypot(float64(y-cy), float64(x-cx))
				vol.Set(c, z, y, x, float32(math.Exp(-dist/scale)*gain))
			}
		}
	}
}

// beads scatters point emitters whose brightness falls off with Z distance
func beads(vol *models.Volume, c, n int, rng *rand.Rand) {
	s := vol.Shape
	for i := 0; i < n; i++ {
		bx, by := rng.Intn(s.X), rng.Intn(s.Y)
		bz := rng.Float64() * float64(s.Z-1)
		brightness := 0.5 + rng.Float64()
		for z := 0; z < s.Z; z++ {
			dz := float64(z) - bz
			idx := vol.Index(c, z, by, bx)
			vol.Data[idx] += float32(brightness * math.Exp(-dz*dz/2))
		}
	}
}

// addShotNoise approximates Poisson noise at the given photon scale with a
// Gaussian of matching variance. Results are clipped at zero.
func addShotNoise(plane []float32, scale float64, rng *rand.Rand) {
	for i, v := range plane {
		mean := math.Max(float64(v), 0)
		n := mean + math.Sqrt(mean/scale)*rng.NormFloat64()
		plane[i] = float32(math.Max(n, 0))
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// TestShape is the extent of the built-in test volume
var TestShape = models.Shape{C: 2, Z: 4, Y: 64, X: 64}

// TestVolume returns the volume served before any simulation has run.
// Channel 0 is the gradient (x+y+10z)/200, channel 1 a radial falloff
// exp(-d/10) brightening by 20% per slice.
func TestVolume() *models.Volume {
	s := TestShape
	vol := models.NewVolume(s)
	cy, cx := s.Y/2, s.X/2
	for z := 0; z < s.Z; z++ {
		for y := 0; y < s.Y; y++ {
			for x := 0; x < s.X; x++ {
				vol.Set(0, z, y, x, float32(x+y+z*10)/200)
				dist := math.Hypot(float64(y-cy), float64(x-cx))
				vol.Set(1, z, y, x, float32(math.Exp(-dist/10)*(1+float64(z)*0.2)))
			}
		}
	}
	return vol
}
