package sweep

import (
	"fmt"
	"time"
)

// Frame represents a single spectrum snapshot produced by the sweep tool:
// the lower edge of the swept span, the bin width and one power reading
// per bin in ascending frequency order.
type Frame struct {
	Timestamp  time.Time // Timestamp reported by the sweep tool
	LowHz      float64   // Lower edge of the swept span in Hz
	HighHz     float64   // Upper edge of the swept span in Hz
	BinWidthHz float64   // Hz per bin
	Powers     []float64 // Power readings in dB, one per bin
}

// BinCenterHz returns the center frequency of the given bin.
// The center frequency is calculated as the span's lower edge plus
// half a bin width past the bin's left edge. For example, bin 0 of
// a span starting at 900 MHz with 1 MHz bins is centered at 900.5 MHz.
func (f *Frame) BinCenterHz(idx int) float64 {
	return f.LowHz + (float64(idx)+0.5)*f.BinWidthHz
}

// Band describes one frequency span to watch.
type Band struct {
	Name     string  `yaml:"name"`
	Enabled  bool    `yaml:"enabled"`
	StartMHz float64 `yaml:"startMHz"`
	StopMHz  float64 `yaml:"stopMHz"`
}

// StartHz returns the band start frequency in Hz.
func (b Band) StartHz() float64 { return b.StartMHz * 1e6 }

// StopHz returns the band stop frequency in Hz.
func (b Band) StopHz() float64 { return b.StopMHz * 1e6 }

// Label returns a human-readable span description, e.g. "900.000-930.000 MHz".
func (b Band) Label() string {
	return fmt.Sprintf("%.3f-%.3f MHz", b.StartMHz, b.StopMHz)
}
