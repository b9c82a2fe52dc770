// Package stats computes per-channel summary statistics of a volume.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"microsimview/internal/models"
)

// Channel summarises a set of samples. NaN and infinite values are ignored;
// if nothing finite remains the result is models.EmptyStats.
func Channel(data []float32) models.ChannelStats {
	values := make([]float64, 0, len(data))
	for _, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return models.EmptyStats
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	sort.Float64s(values)
	return models.ChannelStats{
		Min:  floats.Min(values),
		Max:  floats.Max(values),
		Mean: mean,
		Std:  std,
		P1:   quantile(0.01, values),
		P5:   quantile(0.05, values),
		P95:  quantile(0.95, values),
		P99:  quantile(0.99, values),
	}
}

// quantile uses linear interpolation between closest ranks. sorted must be ascending.
func quantile(p float64, sorted []float64) float64 {
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// Compute returns one ChannelStats per channel of vol
func Compute(vol *models.Volume) []models.ChannelStats {
	out := make([]models.ChannelStats, vol.Shape.C)
	for c := range out {
		out[c] = Channel(vol.Channel(c))
	}
	return out
}
