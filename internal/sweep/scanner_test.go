package sweep

import (
	"math"
	"testing"
	"time"
)

func TestParseFrame(t *testing.T) {
	line := "2026-08-24, 10:15:30.123456, 900000000, 905000000, 1000000.00, 8192, -78.5, -90.1, -20.3, -88.0, -91.2"

	frame, err := ParseFrame(line)
	if err != nil {
		t.Fatalf("Failed to parse frame: %v", err)
	}

	want := time.Date(2026, 8, 24, 10, 15, 30, 123456000, time.UTC)
	if !frame.Timestamp.Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, frame.Timestamp)
	}
	if frame.LowHz != 900e6 {
		t.Errorf("Expected low frequency 900 MHz, got %.1f Hz", frame.LowHz)
	}
	if frame.HighHz != 905e6 {
		t.Errorf("Expected high frequency 905 MHz, got %.1f Hz", frame.HighHz)
	}
	if frame.BinWidthHz != 1e6 {
		t.Errorf("Expected bin width 1 MHz, got %.1f Hz", frame.BinWidthHz)
	}

	powers := []float64{-78.5, -90.1, -20.3, -88.0, -91.2}
	if len(frame.Powers) != len(powers) {
		t.Fatalf("Expected %d powers, got %d", len(powers), len(frame.Powers))
	}
	for i, p := range powers {
		if frame.Powers[i] != p {
			t.Errorf("Power %d: expected %.1f, got %.1f", i, p, frame.Powers[i])
		}
	}
}

func TestParseFrame_NoFractionalSeconds(t *testing.T) {
	frame, err := ParseFrame("2026-08-24, 10:15:30, 900000000, 901000000, 1000000.00, 8192, -78.5")
	if err != nil {
		t.Fatalf("Failed to parse frame: %v", err)
	}

	want := time.Date(2026, 8, 24, 10, 15, 30, 0, time.UTC)
	if !frame.Timestamp.Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, frame.Timestamp)
	}
}

func TestParseFrame_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		line string
	}{
		{"empty line", ""},
		{"not enough fields", "2026-08-24, 10:15:30, 900000000, 905000000, 1000000.00, 8192"},
		{"bad timestamp", "yesterday, teatime, 900000000, 905000000, 1000000.00, 8192, -78.5"},
		{"bad frequency", "2026-08-24, 10:15:30, nine hundred, 905000000, 1000000.00, 8192, -78.5"},
		{"bad bin width", "2026-08-24, 10:15:30, 900000000, 905000000, wide, 8192, -78.5"},
		{"bad power", "2026-08-24, 10:15:30, 900000000, 905000000, 1000000.00, 8192, -78.5, loud"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseFrame(tc.line); err == nil {
				t.Error("Expected parse error")
			}
		})
	}
}

func TestFrame_BinCenterHz(t *testing.T) {
	frame := Frame{LowHz: 900e6, BinWidthHz: 1e6}

	if got := frame.BinCenterHz(0); got != 900.5e6 {
		t.Errorf("Bin 0: expected 900.5 MHz, got %.1f Hz", got)
	}
	if got := frame.BinCenterHz(10); got != 910.5e6 {
		t.Errorf("Bin 10: expected 910.5 MHz, got %.1f Hz", got)
	}
}

func TestBand(t *testing.T) {
	band := Band{Name: "ISM 900", StartMHz: 902, StopMHz: 928}

	if got := band.StartHz(); got != 902e6 {
		t.Errorf("Expected 902 MHz start, got %.1f Hz", got)
	}
	if got := band.StopHz(); got != 928e6 {
		t.Errorf("Expected 928 MHz stop, got %.1f Hz", got)
	}
	if got := band.Label(); got != "902.000-928.000 MHz" {
		t.Errorf("Unexpected label: %s", got)
	}
}

func TestScannerConfig_Validate(t *testing.T) {
	config := ScannerConfig{BinWidthHz: 1_000_000}
	if err := config.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	config.BinWidthHz = 0
	if err := config.Validate(); err == nil {
		t.Error("Expected error for zero bin width")
	}

	config.BinWidthHz = int64(math.MinInt64)
	if err := config.Validate(); err == nil {
		t.Error("Expected error for negative bin width")
	}
}
