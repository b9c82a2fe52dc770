package stats

import (
	"math"
	"testing"

	"microsimview/internal/models"
)

func TestChannelRamp(t *testing.T) {
	data := make([]float32, 101)
	for i := range data {
		data[i] = float32(i)
	}
	s := Channel(data)

	if s.Min != 0 || s.Max != 100 {
		t.Errorf("Expected min 0 and max 100, got %g and %g", s.Min, s.Max)
	}
	if math.Abs(s.Mean-50) > 1e-9 {
		t.Errorf("Expected mean 50, got %g", s.Mean)
	}
	// Population std of 0..100
	expectedStd := math.Sqrt((101*101 - 1) / 12.0)
	if math.Abs(s.Std-expectedStd) > 1e-9 {
		t.Errorf("Expected std %g, got %g", expectedStd, s.Std)
	}
	if s.P5 < 4 || s.P5 > 6 {
		t.Errorf("Expected p5 near 5, got %g", s.P5)
	}
	if s.P95 < 94 || s.P95 > 96 {
		t.Errorf("Expected p95 near 95, got %g", s.P95)
	}
	if !(s.Min <= s.P1 && s.P1 <= s.P5 && s.P5 <= s.P95 && s.P95 <= s.P99 && s.P99 <= s.Max) {
		t.Errorf("Percentiles are not ordered: %+v", s)
	}
}

func TestChannelIgnoresNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	s := Channel([]float32{nan, 2, inf, 4, float32(math.Inf(-1))})
	if s.Min != 2 || s.Max != 4 || s.Mean != 3 {
		t.Errorf("Expected stats over {2, 4}, got %+v", s)
	}

	if got := Channel([]float32{nan, inf}); got != models.EmptyStats {
		t.Errorf("Expected EmptyStats for all non-finite data, got %+v", got)
	}
	if got := Channel(nil); got != models.EmptyStats {
		t.Errorf("Expected EmptyStats for empty data, got %+v", got)
	}
}

func TestChannelConstant(t *testing.T) {
	s := Channel([]float32{7, 7, 7, 7})
	if s.Min != 7 || s.Max != 7 || s.P5 != 7 || s.P95 != 7 || s.Std != 0 {
		t.Errorf("Expected all stats equal to 7 with zero std, got %+v", s)
	}
}

func TestComputePerChannel(t *testing.T) {
	vol := models.NewVolume(models.Shape{C: 3, Z: 2, Y: 2, X: 2})
	for c := 0; c < 3; c++ {
		for i := range vol.Channel(c) {
			vol.Channel(c)[i] = float32(c*10 + i)
		}
	}
	got := Compute(vol)
	if len(got) != 3 {
		t.Fatalf("Expected 3 channel stats, got %d", len(got))
	}
	for c, s := range got {
		if s.Min != float64(c*10) || s.Max != float64(c*10+7) {
			t.Errorf("Channel %d: expected range [%d, %d], got [%g, %g]", c, c*10, c*10+7, s.Min, s.Max)
		}
	}
}
