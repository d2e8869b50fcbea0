package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rfwatch/rfwatch/internal/cot"
	"github.com/rfwatch/rfwatch/internal/detect"
	"github.com/rfwatch/rfwatch/internal/storage"
	"github.com/rfwatch/rfwatch/internal/sweep"
)

const (
	storageDir  = "data"
	storageFile = "rfwatch.sqlite"

	deviceType = "hackrf"

	staticUIDKey    = "staticUID"
	staticUIDPrefix = "WD-"
)

// Run starts the watchdog: one session, one scanner, a detection engine and
// a CoT sender wired into the scan/detect/alert loop. Returns when the
// context is canceled or on a fatal setup error.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	if err = ensureStaticUID(ctx, store, &config.Cot); err != nil {
		return fmt.Errorf("resolving static UID: %w", err)
	}

	scanner, err := sweep.NewHackRFScanner(config.Scanner, sweep.WithScannerLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	deviceID := config.Scanner.SerialNumber
	if deviceID == "" {
		deviceID = "default"
	}

	sessionID, err := store.CreateSession(ctx, deviceType, deviceID, config)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	engine := detect.New(detect.Config{
		ThresholdDb:   config.Detection.ThresholdDb,
		UseNoiseFloor: config.Detection.UseNoiseFloor,
		HoldTime:      time.Duration(config.Detection.HoldTimeSec * float64(time.Second)),
		Calibration:   config.Calibration,
	})

	sender := cot.NewSender(config.Cot, cot.WithSenderLogger(logger))
	defer sender.Close()

	if config.Cot.Enabled {
		logger.Info(fmt.Sprintf("CoT reporting to %s:%d", config.Cot.Host, config.Cot.Port),
			slog.String("localIP", sender.ResolveLocalIP()))
	}

	w := newWorker(config, scanner, engine, sender, store, sessionID, logger)
	return w.run(ctx)
}

// TestSend delivers a single CoT marker with the station identity so the
// operator can verify transport settings end to end.
func TestSend(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	if err = ensureStaticUID(ctx, store, &config.Cot); err != nil {
		return fmt.Errorf("resolving static UID: %w", err)
	}

	config.Cot.Enabled = true

	sender := cot.NewSender(config.Cot,
		cot.WithSenderLogger(logger),
		cot.WithStatusFunc(func(status string) {
			fmt.Println(status)
		}))
	defer sender.Close()

	sender.SendTest()
	return nil
}

// ensureStaticUID fills in the static marker UID: configuration wins, then a
// persisted value, then a freshly generated one saved for future runs.
func ensureStaticUID(ctx context.Context, store *storage.Store, config *cot.Config) error {
	if config.StaticUID != "" {
		return nil
	}

	value, err := store.Setting(ctx, staticUIDKey)
	if err == nil {
		config.StaticUID = value
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	config.StaticUID = staticUIDPrefix + uuid.NewString()
	return store.SetSetting(ctx, staticUIDKey, config.StaticUID)
}

func createStorage(config *StorageConfig) (*storage.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := filepath.Join(wd, storageDir)
	if config.DataDirectory != "" {
		dbPath = config.DataDirectory
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(wd, dbPath)
		}
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	// One database for all runs: each run opens a new session, and persisted
	// settings such as the static UID survive restarts.
	return storage.New(filepath.Join(dbPath, storageFile)), nil
}
