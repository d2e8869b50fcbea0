package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/rfwatch/rfwatch/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.New(config.DBPath)
	defer store.Close()

	return renderSpectrum(ctx, store, config, logger)
}

func renderSpectrum(ctx context.Context, store *storage.Store, config *Config, logger *slog.Logger) error {
	var opts []storage.ReaderOption
	var filters []any

	if config.Band != "" {
		opts = append(opts, storage.WithBand(config.Band))
		filters = append(filters, slog.String("band", config.Band))
	}

	switch {
	case config.MinFreqMHz != nil && config.MaxFreqMHz != nil:
		opts = append(opts, storage.WithFreqRange(*config.MinFreqMHz*1e6, *config.MaxFreqMHz*1e6))

		filters = append(filters,
			slog.String("minFreq", fmt.Sprintf("%0.3fMHz", *config.MinFreqMHz)),
			slog.String("maxFreq", fmt.Sprintf("%0.3fMHz", *config.MaxFreqMHz)))

	case config.MinFreqMHz != nil:
		opts = append(opts, storage.WithMinFreq(*config.MinFreqMHz*1e6))
		filters = append(filters, slog.String("minFreq", fmt.Sprintf("%0.3fMHz", *config.MinFreqMHz)))

	case config.MaxFreqMHz != nil:
		opts = append(opts, storage.WithMaxFreq(*config.MaxFreqMHz*1e6))
		filters = append(filters, slog.String("maxFreq", fmt.Sprintf("%0.3fMHz", *config.MaxFreqMHz)))
	}

	logger.Info("reader configuration", filters...)

	iter, err := store.Spans(ctx, config.SessionID, opts...)
	if err != nil {
		return err
	}
	defer iter.Close()

	logger.Info("reading data points, hold on tight, it will take a while")

	spec := NewSpectrumData(NewSmoothBounds(0.3))
	for iter.Next(ctx) {
		spec.Update(iter.Current())
	}
	if err = iter.Error(); err != nil {
		return err
	}
	if spec.Height == 0 {
		return fmt.Errorf("session %d has no stored sweep data", config.SessionID)
	}

	bounds := spec.BoundsTracker.Current()

	logger.Info("finished reading data points",
		slog.Group("stats",
			slog.String("minTimestamp", spec.TimestampStart.Local().Format(time.DateTime)),
			slog.String("maxTimestamp", spec.TimestampEnd.Local().Format(time.DateTime)),
			slog.String("minFreq", fmt.Sprintf("%0.2fHz", spec.FrequencyMin)),
			slog.String("maxFreq", fmt.Sprintf("%0.2fHz", spec.FrequencyMax)),
			slog.String("minPower", fmt.Sprintf("%0.2fdB", bounds.Min)),
			slog.String("maxPower", fmt.Sprintf("%0.2fdB", bounds.Max)),
		))

	renderer, err := NewSpectrumRenderer(RenderConfig{
		ColorTheme: config.Theme,
		FontPath:   config.FontPath,
	})
	if err != nil {
		return fmt.Errorf("creating spectrum renderer: %w", err)
	}

	logger.Info("rendering spectrum",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", spec.Width),
			slog.Int("height", spec.Height),
		))

	img, err := renderer.Render(spec)
	if err != nil {
		return fmt.Errorf("rendering spectrum: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})

	default:
		err = png.Encode(out, img)
	}
	return err
}
