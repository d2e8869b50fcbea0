package storage

import (
	"testing"
	"time"
)

func TestSqliteDatetime_Scan(t *testing.T) {
	want := time.Date(2026, 8, 24, 10, 15, 30, 0, time.UTC)

	testCases := []struct {
		name  string
		value any
	}{
		{"time.Time", want},
		{"string", "2026-08-24 10:15:30"},
		{"bytes", []byte("2026-08-24T10:15:30")},
		{"fractional string", "2026-08-24 10:15:30.000000000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var d sqliteDatetime
			if err := d.Scan(tc.value); err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if !d.Time.Equal(want) {
				t.Errorf("Expected %v, got %v", want, d.Time)
			}
		})
	}
}

func TestSqliteDatetime_ScanInvalid(t *testing.T) {
	var d sqliteDatetime
	if err := d.Scan("last tuesday"); err == nil {
		t.Error("Expected error for unparseable datetime")
	}
	if err := d.Scan(42); err == nil {
		t.Error("Expected error for unsupported type")
	}
}

func TestFreqCompare(t *testing.T) {
	binWidth := 1e6

	// Within 1% of the bin width counts as equal.
	if !freqLess(900e6, 901e6, binWidth) {
		t.Error("900 MHz should be less than 901 MHz")
	}
	if !freqGreater(901e6, 900e6, binWidth) {
		t.Error("901 MHz should be greater than 900 MHz")
	}
	if freqLess(900e6, 900e6+5e3, binWidth) || freqGreater(900e6+5e3, 900e6, binWidth) {
		t.Error("Frequencies within tolerance should compare equal")
	}
}
