package models

import (
	"fmt"
	"math"
)

// ChannelStats is the per-channel summary computed once by the backend
type ChannelStats struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Mean float64 `json:"mean" yaml:"mean"`
	Std  float64 `json:"std" yaml:"std"`
	P1   float64 `json:"p1" yaml:"p1"`
	P5   float64 `json:"p5" yaml:"p5"`
	P95  float64 `json:"p95" yaml:"p95"`
	P99  float64 `json:"p99" yaml:"p99"`
}

// EmptyStats is reported for channels without any finite sample
var EmptyStats = ChannelStats{Min: 0, Max: 1, P95: 1, P99: 1}

// Validate rejects non-finite fields and an inverted min..max range
func (s ChannelStats) Validate() error {
	for _, v := range []float64{s.Min, s.Max, s.Mean, s.Std, s.P1, s.P5, s.P95, s.P99} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite channel stats %+v", s)
		}
	}
	if s.Min > s.Max {
		return fmt.Errorf("channel stats min %g above max %g", s.Min, s.Max)
	}
	return nil
}

// Contrast is a window expressed as percentages of a channel's min..max range.
// Low must stay strictly below High.
type Contrast struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// FullContrast maps the whole min..max range
var FullContrast = Contrast{Low: 0, High: 100}

// Valid reports whether the window is inside [0,100] with Low < High
func (c Contrast) Valid() bool {
	return c.Low >= 0 && c.High <= 100 && c.Low < c.High
}

// ChannelSettings holds the mutable display state of one channel
type ChannelSettings struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Visible  bool     `json:"visible" yaml:"visible"`
	LUTIndex int      `json:"lut" yaml:"lut"`
	Contrast Contrast `json:"contrast" yaml:"contrast"`
}

// Shown reports whether the channel contributes to the composite
func (s ChannelSettings) Shown() bool {
	return s.Enabled && s.Visible
}

// LUT is a named tint applied to a channel
type LUT struct {
	Name    string
	R, G, B uint8
}

// Normalized returns the colour components scaled to [0,1]
func (l LUT) Normalized() (r, g, b float64) {
	return float64(l.R) / 255, float64(l.G) / 255, float64(l.B) / 255
}

// Palette is the fixed set of lookup tables, assigned to channels in order
var Palette = []LUT{
	{Name: "red", R: 255, G: 0, B: 0},
	{Name: "green", R: 0, G: 255, B: 0},
	{Name: "blue", R: 0, G: 0, B: 255},
	{Name: "magenta", R: 255, G: 0, B: 255},
	{Name: "yellow", R: 255, G: 255, B: 0},
	{Name: "cyan", R: 0, G: 255, B: 255},
	{Name: "gray", R: 255, G: 255, B: 255},
}

// LUTByIndex returns the palette entry for i, clamping out-of-range indices
func LUTByIndex(i int) LUT {
	if i < 0 {
		i = 0
	}
	if i >= len(Palette) {
		i = len(Palette) - 1
	}
	return Palette[i]
}

// LUTIndexByName returns the palette index of a named LUT
func LUTIndexByName(name string) (int, bool) {
	for i, l := range Palette {
		if l.Name == name {
			return i, true
		}
	}
	return 0, false
}

// ViewState is the complete, serialisable display state handed to the compositor
type ViewState struct {
	Z        int               `json:"z" yaml:"z"`
	Channels []ChannelSettings `json:"channels" yaml:"channels"`
}

// Clone returns a deep copy so callers can hold a snapshot across mutations
func (s ViewState) Clone() ViewState {
	out := ViewState{Z: s.Z, Channels: make([]ChannelSettings, len(s.Channels))}
	copy(out.Channels, s.Channels)
	return out
}
