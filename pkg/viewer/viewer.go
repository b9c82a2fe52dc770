// Package viewer holds the interactive display state for one simulation
// result: the selected Z slice and each channel's enable, visibility, LUT and
// contrast settings. Every change bumps a generation counter and triggers a
// recomposition; composites computed for an older generation are discarded.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"microsimview/internal/models"
	"microsimview/pkg/logging"
	"microsimview/pkg/transform"
	"microsimview/pkg/visualization"
	"microsimview/pkg/volume"
)

// State is the viewer's lifecycle state
type State int

const (
	// Empty means no volume has been loaded
	Empty State = iota

	// Ready means a volume is loaded and composites can be produced
	Ready
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrEmpty is returned when rendering before any result was loaded
	ErrEmpty = errors.New("viewer: no volume loaded")

	// ErrStale is returned when the state changed while a composite was being built
	ErrStale = errors.New("viewer: composite superseded by a newer change")
)

// Display receives finished frames
type Display interface {
	Show(frame visualization.Frame) error
}

// Options configures a Viewer
type Options struct {
	// Display receives every non-stale frame. May be nil.
	Display Display

	// Mode selects global-stats or per-plane contrast normalisation
	Mode transform.Mode

	// Async renders in a background goroutine after each change instead of
	// blocking the caller. Use it with sources that fetch over the network.
	Async bool
}

// Viewer is safe for concurrent use
type Viewer struct {
	opts Options

	mu         sync.Mutex
	state      State
	result     *models.SimulationResult
	source     volume.Source
	view       models.ViewState
	generation uint64
	last       visualization.Frame

	// showMu orders Display.Show calls so an older frame never follows a newer one
	showMu sync.Mutex
	shown  uint64
}

// New returns a viewer in the Empty state
func New(opts Options) *Viewer {
	return &Viewer{opts: opts}
}

// DefaultChannelSettings returns the settings a channel gets when a result is
// loaded: enabled, visible, the c-th palette LUT, and a contrast window
// spanning the channel's 5th to 95th percentile. Channels whose percentiles
// do not give a usable window fall back to the full range.
func DefaultChannelSettings(c int, stats models.ChannelStats) models.ChannelSettings {
	s := models.ChannelSettings{
		Enabled:  true,
		Visible:  true,
		LUTIndex: c % len(models.Palette),
		Contrast: models.FullContrast,
	}
	span := stats.Max - stats.Min
	if span > 0 {
		window := models.Contrast{
			Low:  clampPercent(100 * (stats.P5 - stats.Min) / span),
			High: clampPercent(100 * (stats.P95 - stats.Min) / span),
		}
		if window.Valid() {
			s.Contrast = window
		}
	}
	return s
}

func clampPercent(p float64) float64 {
	if p < 0 || p != p {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// LoadResult replaces the current volume, resets Z to 0 and re-initialises
// all channel settings to their defaults
func (v *Viewer) LoadResult(result *models.SimulationResult, src volume.Source) error {
	if err := result.Validate(); err != nil {
		return fmt.Errorf("cannot load result: %w", err)
	}
	if src == nil {
		return fmt.Errorf("cannot load result %q: nil source", result.ID)
	}
	if src.Shape() != result.Shape {
		return fmt.Errorf("source shape %v does not match result shape %v",
			src.Shape().Slice(), result.Shape.Slice())
	}

	v.mu.Lock()
	v.state = Ready
	v.result = result
	v.source = src
	v.view = models.ViewState{Z: 0, Channels: make([]models.ChannelSettings, result.Shape.C)}
	for c := range v.view.Channels {
		v.view.Channels[c] = DefaultChannelSettings(c, result.Stats[c])
	}
	v.generation++
	v.mu.Unlock()

	logging.Infof("loaded result %q with shape %v\n", result.ID, result.Shape.Slice())
	v.changed()
	return nil
}

// State returns the lifecycle state
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Generation returns the current change counter
func (v *Viewer) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generation
}

// Z returns the selected slice index
func (v *Viewer) Z() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.view.Z
}

// View returns a copy of the current display state
func (v *Viewer) View() models.ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.view.Clone()
}

// Result returns the loaded result, or nil when Empty
func (v *Viewer) Result() *models.SimulationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result
}

// LastFrame returns the most recent non-stale composite
func (v *Viewer) LastFrame() (visualization.Frame, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last, v.last.Image != nil
}

// SetZ selects a slice, clamping out-of-range indices to [0, Z-1].
// It returns the index actually selected.
func (v *Viewer) SetZ(z int) int {
	v.mu.Lock()
	if v.state != Ready {
		v.mu.Unlock()
		return 0
	}
	maxZ := v.result.Shape.Z - 1
	if z < 0 {
		z = 0
	}
	if z > maxZ {
		z = maxZ
	}
	v.view.Z = z
	v.generation++
	v.mu.Unlock()

	v.changed()
	return z
}

// update applies fn to channel c. Out-of-range channels are ignored.
func (v *Viewer) update(c int, fn func(s *models.ChannelSettings) bool) bool {
	v.mu.Lock()
	if v.state != Ready || c < 0 || c >= len(v.view.Channels) {
		v.mu.Unlock()
		logging.Debugf("ignoring setting for channel %d\n", c)
		return false
	}
	if !fn(&v.view.Channels[c]) {
		v.mu.Unlock()
		return false
	}
	v.generation++
	v.mu.Unlock()

	v.changed()
	return true
}

// SetEnabled toggles whether channel c takes part in the composite
func (v *Viewer) SetEnabled(c int, enabled bool) bool {
	return v.update(c, func(s *models.ChannelSettings) bool {
		s.Enabled = enabled
		return true
	})
}

// SetVisible toggles channel c's visibility
func (v *Viewer) SetVisible(c int, visible bool) bool {
	return v.update(c, func(s *models.ChannelSettings) bool {
		s.Visible = visible
		return true
	})
}

// SetLUT assigns a palette entry to channel c, clamping the index to the palette
func (v *Viewer) SetLUT(c, lut int) bool {
	if lut < 0 {
		lut = 0
	}
	if lut >= len(models.Palette) {
		lut = len(models.Palette) - 1
	}
	return v.update(c, func(s *models.ChannelSettings) bool {
		s.LUTIndex = lut
		return true
	})
}

// SetContrast sets channel c's window in percent of its min..max range.
// Values are clamped to [0,100]; a window with low >= high is rejected.
func (v *Viewer) SetContrast(c int, low, high float64) bool {
	window := models.Contrast{Low: clampPercent(low), High: clampPercent(high)}
	if !window.Valid() {
		logging.Debugf("rejecting contrast [%g, %g] for channel %d\n", low, high, c)
		return false
	}
	return v.update(c, func(s *models.ChannelSettings) bool {
		s.Contrast = window
		return true
	})
}

// Field names a channel setting
type Field string

const (
	FieldEnabled  Field = "enabled"
	FieldVisible  Field = "visible"
	FieldLUT      Field = "lut"
	FieldContrast Field = "contrast"
)

// SetChannelSetting updates one named field of channel c. Enabled and visible
// take a bool, lut takes a palette index or LUT name, contrast takes a
// models.Contrast. Mismatched values are ignored and reported as false.
func (v *Viewer) SetChannelSetting(c int, field Field, value interface{}) bool {
	switch field {
	case FieldEnabled:
		if b, ok := value.(bool); ok {
			return v.SetEnabled(c, b)
		}
	case FieldVisible:
		if b, ok := value.(bool); ok {
			return v.SetVisible(c, b)
		}
	case FieldLUT:
		switch lut := value.(type) {
		case int:
			return v.SetLUT(c, lut)
		case string:
			if i, ok := models.LUTIndexByName(lut); ok {
				return v.SetLUT(c, i)
			}
		}
	case FieldContrast:
		if w, ok := value.(models.Contrast); ok {
			return v.SetContrast(c, w.Low, w.High)
		}
	}
	logging.Debugf("ignoring %s=%v for channel %d\n", field, value, c)
	return false
}

// changed recomposes after a state change
func (v *Viewer) changed() {
	if v.opts.Async {
		go v.renderLogged(context.Background())
		return
	}
	v.renderLogged(context.Background())
}

func (v *Viewer) renderLogged(ctx context.Context) {
	if _, err := v.Render(ctx); err != nil {
		if errors.Is(err, ErrStale) {
			logging.Debugf("%v\n", err)
			return
		}
		logging.Errorf("render failed: %v\n", err)
	}
}

// Render composites the currently selected slice. If the state changes while
// planes are being fetched, the frame is discarded and ErrStale returned.
func (v *Viewer) Render(ctx context.Context) (visualization.Frame, error) {
	v.mu.Lock()
	if v.state != Ready {
		v.mu.Unlock()
		return visualization.Frame{}, ErrEmpty
	}
	gen := v.generation
	view := v.view.Clone()
	src := v.source
	stats := v.result.Stats
	shape := v.result.Shape
	v.mu.Unlock()

	tlog := logging.NewTimeLog()
	planes := volume.FetchSlice(ctx, src, view.Z)
	img := visualization.Compose(planes, stats, view, v.opts.Mode, shape.X, shape.Y)
	frame := visualization.Frame{Z: view.Z, Generation: gen, Image: img}

	v.showMu.Lock()
	defer v.showMu.Unlock()

	v.mu.Lock()
	current := gen == v.generation
	if current {
		v.last = frame
	}
	v.mu.Unlock()
	if !current || gen < v.shown {
		return visualization.Frame{}, fmt.Errorf("%w: generation %d, z=%d", ErrStale, gen, view.Z)
	}
	v.shown = gen
	tlog.Debugf("composited z=%d generation %d", view.Z, gen)

	if v.opts.Display != nil {
		if err := v.opts.Display.Show(frame); err != nil {
			return frame, fmt.Errorf("display failed: %w", err)
		}
	}
	return frame, nil
}
