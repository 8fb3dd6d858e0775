package scoring

import (
	"fmt"
)

// RankWeights gives the weight of each ranking position, first position
// first. Weights must be non-negative and strictly decreasing.
type RankWeights []float64

// DefaultRankWeights returns the calibrated 1.0/0.5/0.15/0 weighting.
func DefaultRankWeights() RankWeights {
	return RankWeights{1.0, 0.5, 0.15, 0.0}
}

// Sum returns the total of all weights.
func (w RankWeights) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// Validate checks that weights are non-negative, strictly decreasing and
// sum to a positive value.
func (w RankWeights) Validate() error {
	if len(w) < 2 {
		return fmt.Errorf("need at least 2 rank weights, got %d", len(w))
	}
	for i, v := range w {
		if v < 0 {
			return fmt.Errorf("negative rank weight at position %d: %f", i+1, v)
		}
		if i > 0 && v >= w[i-1] {
			return fmt.Errorf("rank weights must be strictly decreasing: position %d (%f) >= position %d (%f)", i+1, v, i, w[i-1])
		}
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("rank weights sum to %.4f, must be positive", w.Sum())
	}
	return nil
}

// mean returns the arithmetic mean of the weights.
func (w RankWeights) mean() float64 {
	return w.Sum() / float64(len(w))
}

// sumSquaredDeviations returns Σ(w - mean)².
func (w RankWeights) sumSquaredDeviations() float64 {
	m := w.mean()
	var ss float64
	for _, v := range w {
		ss += (v - m) * (v - m)
	}
	return ss
}

// variance returns the population variance of the weights.
func (w RankWeights) variance() float64 {
	return w.sumSquaredDeviations() / float64(len(w))
}
