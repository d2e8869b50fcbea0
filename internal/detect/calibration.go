package detect

import (
	"errors"

	"github.com/rfwatch/rfwatch/internal/sweep"
)

var (
	// ErrNoBins is returned for a frame without any power readings.
	ErrNoBins = errors.New("frame has no bins")

	// ErrInvalidBinWidth is returned for a frame with a zero or negative bin width.
	ErrInvalidBinWidth = errors.New("frame has invalid bin width")
)

// CalibrationConfig holds the front-end corrections applied uniformly to
// every bin of a frame before thresholding.
type CalibrationConfig struct {
	GainDb  float64 `yaml:"gainDb"`  // External gain, e.g. an LNA in front of the radio
	LossDb  float64 `yaml:"lossDb"`  // External loss, e.g. cable and connector loss
	FreqPpm float64 `yaml:"freqPpm"` // Oscillator drift correction in parts per million
}

// OffsetDb returns the net power offset in dB.
func (c CalibrationConfig) OffsetDb() float64 {
	return c.GainDb - c.LossDb
}

// FreqFactor returns the frequency scale correction factor.
func (c CalibrationConfig) FreqFactor() float64 {
	return 1 + c.FreqPpm/1e6
}

// Calibrate applies the power offset to every bin of the frame and returns
// the calibrated powers together with a bin index to calibrated center
// frequency mapping. The frame itself is left untouched.
func Calibrate(frame *sweep.Frame, config CalibrationConfig) ([]float64, func(idx int) float64, error) {
	if frame.BinWidthHz <= 0 {
		return nil, nil, ErrInvalidBinWidth
	}
	if len(frame.Powers) == 0 {
		return nil, nil, ErrNoBins
	}

	offset := config.OffsetDb()
	powers := make([]float64, len(frame.Powers))
	for i, p := range frame.Powers {
		powers[i] = p + offset
	}

	factor := config.FreqFactor()
	freqHz := func(idx int) float64 {
		return frame.BinCenterHz(idx) * factor
	}

	return powers, freqHz, nil
}
