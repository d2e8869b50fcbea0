package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
scanner:
  serialNumber: 436c63dc2d7d7563
  binWidthHz: 500000
bands:
  - name: ISM 900
    enabled: true
    startMHz: 902
    stopMHz: 928
  - name: ISM 2400
    enabled: false
    startMHz: 2400
    stopMHz: 2483.5
detection:
  thresholdDb: 15
  useNoiseFloor: true
  holdTimeSec: 2.5
  cycleIntervalMs: 500
calibration:
  gainDb: 20
  lossDb: 3.5
  freqPpm: -2
cot:
  enabled: true
  host: 239.2.3.1
  port: 6969
storage:
  dataDirectory: /var/lib/rfwatch
  storeSweeps: true
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Settings.SlogLevel() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", config.Settings.SlogLevel())
	}
	if config.Scanner.SerialNumber != "436c63dc2d7d7563" || config.Scanner.BinWidthHz != 500000 {
		t.Errorf("Unexpected scanner config: %+v", config.Scanner)
	}

	bands := config.EnabledBands()
	if len(bands) != 1 || bands[0].Name != "ISM 900" {
		t.Fatalf("Expected single enabled band ISM 900, got %+v", bands)
	}

	if config.Detection.ThresholdDb != 15 || config.Detection.HoldTimeSec != 2.5 {
		t.Errorf("Unexpected detection config: %+v", config.Detection)
	}
	if config.Calibration.OffsetDb() != 16.5 {
		t.Errorf("Expected offset 16.5 dB, got %.2f", config.Calibration.OffsetDb())
	}
	if !config.Storage.StoreSweeps || config.Storage.DataDirectory != "/var/lib/rfwatch" {
		t.Errorf("Unexpected storage config: %+v", config.Storage)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
bands:
  - name: test
    enabled: true
    startMHz: 100
    stopMHz: 200
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Scanner.BinWidthHz != 1000000 {
		t.Errorf("Expected default bin width, got %d", config.Scanner.BinWidthHz)
	}
	if config.Detection.ThresholdDb != 12 || !config.Detection.UseNoiseFloor {
		t.Errorf("Unexpected detection defaults: %+v", config.Detection)
	}
	if config.Cot.Host != "239.2.3.1" || config.Cot.Port != 6969 {
		t.Errorf("Unexpected cot defaults: %+v", config.Cot)
	}
	if config.Cot.Enabled {
		t.Error("CoT must be disabled by default")
	}
	if config.Settings.SlogLevel() != slog.LevelInfo {
		t.Errorf("Expected info level default, got %v", config.Settings.SlogLevel())
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{
			"no enabled bands",
			`
bands:
  - name: test
    enabled: false
    startMHz: 100
    stopMHz: 200
`,
		},
		{
			"inverted band span",
			`
bands:
  - name: test
    enabled: true
    startMHz: 200
    stopMHz: 100
`,
		},
		{
			"negative hold time",
			`
bands:
  - name: test
    enabled: true
    startMHz: 100
    stopMHz: 200
detection:
  holdTimeSec: -1
`,
		},
		{
			"invalid cot port",
			`
bands:
  - name: test
    enabled: true
    startMHz: 100
    stopMHz: 200
cot:
  enabled: true
  host: 239.2.3.1
  port: 100000
`,
		},
		{
			"invalid bin width",
			`
scanner:
  binWidthHz: -1
bands:
  - name: test
    enabled: true
    startMHz: 100
    stopMHz: 200
`,
		},
		{"not yaml", "{{{"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.content)); err == nil {
				t.Error("Expected configuration error")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
