package detect

import (
	"slices"
)

const (
	// noiseAlpha is the exponential smoothing weight for new noise samples.
	noiseAlpha = 0.1

	// trimFraction keeps the lowest 80% of samples as noise candidates,
	// excluding strong signals from the estimate.
	trimFraction = 0.8

	// trimMinSamples disables trimming for very small frames.
	trimMinSamples = 10
)

// NoiseFloor maintains a smoothed estimate of the background power level.
// The zero value is ready to use; the first update initializes the estimate.
type NoiseFloor struct {
	value float64
	valid bool
}

// Update folds one frame of calibrated powers into the estimate and returns
// the updated floor. The per-frame sample is the median of the lowest 80% of
// readings (all of them for frames of 10 bins or fewer); the running estimate
// is an EMA over those medians.
func (n *NoiseFloor) Update(powers []float64) float64 {
	median := trimmedMedian(powers)

	if !n.valid {
		n.value = median
		n.valid = true
	} else {
		n.value = (1-noiseAlpha)*n.value + noiseAlpha*median
	}

	return n.value
}

// Value returns the current estimate and whether any frame has been seen yet.
func (n *NoiseFloor) Value() (float64, bool) {
	return n.value, n.valid
}

func trimmedMedian(powers []float64) float64 {
	sorted := slices.Clone(powers)
	slices.Sort(sorted)

	candidates := sorted
	if len(sorted) > trimMinSamples {
		candidates = sorted[:int(float64(len(sorted))*trimFraction)]
	}

	mid := len(candidates) / 2
	if len(candidates)%2 == 0 {
		return (candidates[mid-1] + candidates[mid]) / 2
	}
	return candidates[mid]
}
