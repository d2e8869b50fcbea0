package app

import "math"

const (
	defaultMinPower = -120.0 // dB
	defaultMaxPower = -20.0  // dB

	// Below this count the percentiles are meaningless; fall back to the
	// default bounds instead.
	minimumSampleCount = 20

	minBoundsRangeDb = 30
)

// PowerBounds represents the calculated power boundaries used for color
// mapping.
type PowerBounds struct {
	Min  float64 // 5th percentile power level in dB
	Max  float64 // 95th percentile power level in dB
	Mean float64 // Mean power level in dB
}

func defaultPowerBounds() PowerBounds {
	return PowerBounds{
		Min:  defaultMinPower,
		Max:  defaultMaxPower,
		Mean: (defaultMinPower + defaultMaxPower) / 2,
	}
}

// powerHistogram counts power readings in 1 dB bins to derive percentile
// bounds without keeping every sample.
type powerHistogram struct {
	bins       map[int]uint64
	totalCount uint64
	minBin     int
	maxBin     int
}

func newPowerHistogram() *powerHistogram {
	return &powerHistogram{
		bins:   make(map[int]uint64),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

func (h *powerHistogram) Update(power float64) {
	bin := int(math.Floor(power))

	h.bins[bin]++
	h.totalCount++

	if bin < h.minBin {
		h.minBin = bin
	}
	if bin > h.maxBin {
		h.maxBin = bin
	}
}

// PercentileBounds returns the 5th/95th percentile power bounds, widened to
// at least minBoundsRangeDb plus a 10% margin.
func (h *powerHistogram) PercentileBounds() PowerBounds {
	if h.totalCount < minimumSampleCount {
		return defaultPowerBounds()
	}

	target := h.totalCount * 5 / 100

	var count uint64
	var min5th, max95th int

	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += h.bins[bin]
		if count >= target {
			min5th = bin
			break
		}
	}

	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += h.bins[bin]
		if count >= target {
			max95th = bin
			break
		}
	}

	var sumProduct float64
	for bin, n := range h.bins {
		sumProduct += float64(bin) * float64(n)
	}
	mean := sumProduct / float64(h.totalCount)

	if max95th-min5th < minBoundsRangeDb {
		center := (max95th + min5th) / 2
		min5th = center - minBoundsRangeDb/2
		max95th = center + minBoundsRangeDb/2
	}

	margin := (max95th - min5th) / 10
	return PowerBounds{
		Min:  float64(min5th - margin),
		Max:  float64(max95th + margin),
		Mean: mean,
	}
}

// SmoothBounds folds percentile bounds through exponential smoothing so the
// color scale does not jump between renders of growing data sets.
type SmoothBounds struct {
	hist    *powerHistogram
	alpha   float64
	current PowerBounds
}

func NewSmoothBounds(alpha float64) *SmoothBounds {
	return &SmoothBounds{
		hist:    newPowerHistogram(),
		alpha:   alpha,
		current: defaultPowerBounds(),
	}
}

// Update adds a power reading and returns the smoothed bounds. Nil readings
// (gap padding) are ignored.
func (s *SmoothBounds) Update(power *float64) PowerBounds {
	if power == nil {
		return s.current
	}

	s.hist.Update(*power)
	bounds := s.hist.PercentileBounds()

	s.current.Min = s.current.Min*(1-s.alpha) + bounds.Min*s.alpha
	s.current.Max = s.current.Max*(1-s.alpha) + bounds.Max*s.alpha
	s.current.Mean = bounds.Mean

	return s.current
}

// Current returns the current smoothed power bounds.
func (s *SmoothBounds) Current() PowerBounds {
	return s.current
}
