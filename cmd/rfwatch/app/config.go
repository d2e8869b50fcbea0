package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rfwatch/rfwatch/internal/cot"
	"github.com/rfwatch/rfwatch/internal/detect"
	"github.com/rfwatch/rfwatch/internal/sweep"
)

// Config represents the main application configuration
type Config struct {
	Settings    Settings                  `yaml:"settings"`
	Scanner     sweep.ScannerConfig       `yaml:"scanner"`
	Bands       []sweep.Band              `yaml:"bands"`
	Detection   DetectionConfig           `yaml:"detection"`
	Calibration detect.CalibrationConfig  `yaml:"calibration"`
	Cot         cot.Config                `yaml:"cot"`
	Storage     StorageConfig             `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// SlogLevel maps the configured log level onto slog. Unknown values fall
// back to info.
func (s Settings) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DetectionConfig represents the detection policy settings
type DetectionConfig struct {
	// ThresholdDb is dB above the noise floor when useNoiseFloor is set,
	// an absolute level in dB otherwise.
	ThresholdDb   float64 `yaml:"thresholdDb"`
	UseNoiseFloor bool    `yaml:"useNoiseFloor"`

	// HoldTimeSec is the minimum continuous above-threshold dwell, in
	// seconds, before a frequency qualifies as a detection.
	HoldTimeSec float64 `yaml:"holdTimeSec"`

	// CycleIntervalMs is the pause between scan cycles over all bands.
	CycleIntervalMs int `yaml:"cycleIntervalMs"`

	// OnlyAboveThreshold suppresses per-frame summary reports for frames
	// whose strongest bin stayed below the effective threshold.
	OnlyAboveThreshold bool `yaml:"onlyAboveThreshold"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`

	// StoreSweeps persists every calibrated frame, not just detections.
	// Required for heatmap rendering; costs database size.
	StoreSweeps bool `yaml:"storeSweeps"`
}

// LoadConfig reads, parses and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	config := defaultConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	if err = config.validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel: "info",
		},
		Scanner: sweep.ScannerConfig{
			BinWidthHz: 1000000,
		},
		Detection: DetectionConfig{
			ThresholdDb:     12,
			UseNoiseFloor:   true,
			CycleIntervalMs: 1000,
		},
		Cot: cot.Config{
			Host:               "239.2.3.1",
			Port:               6969,
			MulticastTTL:       1,
			Type:               "a-u-G",
			StaleSeconds:       60,
			UsePerFrequencyUID: true,
			CallsignPrefix:     "RF-",
			StaticCallsign:     "RF-Watchdog",
		},
	}
}

func (c *Config) validate() error {
	if err := c.Scanner.Validate(); err != nil {
		return err
	}

	var enabled int
	for i, band := range c.Bands {
		if band.StartMHz <= 0 || band.StopMHz <= band.StartMHz {
			return fmt.Errorf("band %d (%s): invalid frequency span %s", i, band.Name, band.Label())
		}
		if band.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no enabled bands configured")
	}

	if c.Detection.HoldTimeSec < 0 {
		return fmt.Errorf("detection hold time must not be negative: %f given", c.Detection.HoldTimeSec)
	}
	if c.Detection.CycleIntervalMs < 0 {
		return fmt.Errorf("cycle interval must not be negative: %d given", c.Detection.CycleIntervalMs)
	}

	if c.Cot.Enabled {
		if c.Cot.Host == "" {
			return fmt.Errorf("cot host is required")
		}
		if c.Cot.Port <= 0 || c.Cot.Port > 65535 {
			return fmt.Errorf("invalid cot port: %d given", c.Cot.Port)
		}
	}

	return nil
}

// EnabledBands returns the bands to include in the scan cycle.
func (c *Config) EnabledBands() []sweep.Band {
	bands := make([]sweep.Band, 0, len(c.Bands))
	for _, band := range c.Bands {
		if band.Enabled {
			bands = append(bands, band)
		}
	}
	return bands
}
