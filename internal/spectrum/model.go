package spectrum

import (
	"time"
)

// ScanSession represents a single watchdog run against a specific device.
// Each session captures metadata about when and how the scanning was performed.
type ScanSession struct {
	ID         int64     `json:"ID"`                      // Unique identifier for the session
	StartTime  time.Time `json:"startTime"`               // When the scanning session began
	DeviceType string    `json:"deviceType"`              // Type of SDR device used (e.g., "hackrf")
	DeviceID   string    `json:"deviceID"`                // Unique identifier of the specific device (e.g., serial number)
	Config     *string   `json:"config,string,omitempty"` // Optional device configuration in JSON format
}

// SpectralPoint represents a single calibrated measurement at a specific frequency.
type SpectralPoint struct {
	Frequency float64  `json:"frequency"`       // Calibrated center frequency in Hz
	Power     *float64 `json:"power,omitempty"` // Calibrated power level in dB (nil if measurement invalid)
	BinWidth  float64  `json:"binWidth"`        // Frequency bin width in Hz
}

// SpectralSpan represents a complete spectrum measurement at a point in time:
// an ordered sequence of measurements across a frequency range.
type SpectralSpan struct {
	Timestamp      time.Time       `json:"timestamp"`         // When this span of measurements was taken
	FrequencyStart float64         `json:"frequencyStart"`    // Start frequency of the span in Hz
	FrequencyEnd   float64         `json:"frequencyEnd"`      // End frequency of the span in Hz
	Samples        []SpectralPoint `json:"samples,omitempty"` // Ordered sequence of measurements in this span
}
