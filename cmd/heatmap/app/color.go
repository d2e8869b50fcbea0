package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorTheme selects a power-to-color gradient.
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white

	colorMapSize = 256
)

// noDataColor marks gap-padded bins with no reading.
var noDataColor = color.Black

var colorThemes = map[ColorTheme]func(float64) color.Color{
	ClassicTheme:   classicColor,
	GrayscaleTheme: grayscaleColor,
	ThermalTheme:   thermalColor,
}

const (
	hueStart = 236.0
	hueEnd   = 0.0
)

func classicColor(t float64) color.Color {
	return colorful.Hsv(hueStart-t*(hueStart-hueEnd), 1, 0.90)
}

func grayscaleColor(t float64) color.Color {
	v := math.Pow(t, 0.7)
	return colorful.Color{R: v, G: v, B: v}
}

var thermalStops = []colorful.Color{
	{R: 0, G: 0, B: 0},
	{R: 0.8, G: 0, B: 0},
	{R: 1, G: 0.9, B: 0},
	{R: 1, G: 1, B: 1},
}

func thermalColor(t float64) color.Color {
	segments := float64(len(thermalStops) - 1)
	idx := min(int(t*segments), len(thermalStops)-2)

	local := t*segments - float64(idx)
	return thermalStops[idx].BlendLuv(thermalStops[idx+1], local).Clamped()
}

// ColorMapper provides power-to-color mapping via a pre-computed gradient
// lookup table over the given power bounds.
type ColorMapper struct {
	colorMap      []color.Color
	theme         func(float64) color.Color
	boundsMin     float64
	powerPerIndex float64
}

// NewColorMapper creates a color mapper for the theme and bounds. Unknown
// themes fall back to classic.
func NewColorMapper(theme ColorTheme, bounds PowerBounds) *ColorMapper {
	fn, ok := colorThemes[theme]
	if !ok {
		fn = classicColor
	}

	cm := &ColorMapper{
		colorMap: make([]color.Color, colorMapSize),
		theme:    fn,
	}
	cm.UpdateBounds(bounds)
	return cm
}

// UpdateBounds updates the power bounds and recomputes the lookup table.
func (cm *ColorMapper) UpdateBounds(bounds PowerBounds) {
	cm.boundsMin = bounds.Min
	cm.powerPerIndex = (bounds.Max - bounds.Min) / float64(len(cm.colorMap)-1)

	for i := range cm.colorMap {
		cm.colorMap[i] = cm.theme(float64(i) / float64(len(cm.colorMap)-1))
	}
}

// GetColor returns the color for a power reading; nil readings get the
// no-data color.
func (cm *ColorMapper) GetColor(power *float64) color.Color {
	if power == nil {
		return noDataColor
	}

	index := int((*power - cm.boundsMin) / cm.powerPerIndex)
	if index < 0 {
		index = 0
	} else if index >= len(cm.colorMap) {
		index = len(cm.colorMap) - 1
	}
	return cm.colorMap[index]
}
