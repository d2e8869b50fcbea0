package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rfwatch/rfwatch/internal/cot"
	"github.com/rfwatch/rfwatch/internal/detect"
	"github.com/rfwatch/rfwatch/internal/storage"
	"github.com/rfwatch/rfwatch/internal/sweep"
)

// scanBackoff is the pause after a failed scan before the next band is tried.
const scanBackoff = time.Second

// frameResult carries everything the consumer needs for one processed frame.
type frameResult struct {
	band       sweep.Band
	frame      *sweep.Frame
	detections []detect.Detection
	summary    detect.FrameSummary
	noiseFloor *float64
}

// worker drives the scan cycle: for each enabled band, one single-shot scan
// through the detection engine, with results fanned out over a channel so
// storage and transport never block frame processing.
type worker struct {
	config    *Config
	scanner   sweep.Scanner
	engine    *detect.Engine
	sender    *cot.Sender
	store     *storage.Store
	sessionID int64
	logger    *slog.Logger

	wg sync.WaitGroup
}

func newWorker(config *Config, scanner sweep.Scanner, engine *detect.Engine, sender *cot.Sender,
	store *storage.Store, sessionID int64, logger *slog.Logger) *worker {
	return &worker{
		config:    config,
		scanner:   scanner,
		engine:    engine,
		sender:    sender,
		store:     store,
		sessionID: sessionID,
		logger:    logger,
	}
}

func (w *worker) run(ctx context.Context) error {
	bands := w.config.EnabledBands()
	cycleInterval := time.Duration(w.config.Detection.CycleIntervalMs) * time.Millisecond

	results := make(chan frameResult, len(bands))

	w.wg.Add(1)
	go w.consume(results)

	defer func() {
		close(results)
		w.wg.Wait()
	}()

	for {
		for _, band := range bands {
			if ctx.Err() != nil {
				return nil
			}

			frame, err := w.scanner.Scan(ctx, band)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}

				w.logger.Warn(fmt.Sprintf("scan failed: %s", err.Error()), slog.String("band", band.Name))
				if !sleepContext(ctx, scanBackoff) {
					return nil
				}
				continue
			}

			detections, summary, err := w.engine.Process(band, frame)
			if err != nil {
				w.logger.Warn(fmt.Sprintf("skipping frame: %s", err.Error()), slog.String("band", band.Name))
				continue
			}

			r := frameResult{
				band:       band,
				frame:      frame,
				detections: detections,
				summary:    summary,
			}
			if floor, ok := w.engine.NoiseFloor(); ok {
				r.noiseFloor = &floor
			}

			select {
			case results <- r:
			case <-ctx.Done():
				return nil
			}
		}

		if !sleepContext(ctx, cycleInterval) {
			return nil
		}
	}
}

// consume stores and reports processed frames. Runs on its own goroutine;
// failures are logged and never propagate back into the scan loop.
func (w *worker) consume(results <-chan frameResult) {
	defer w.wg.Done()

	// Storage and CoT work continues after the scan loop stops, so it runs
	// under its own context rather than the canceled one.
	ctx := context.Background()

	for r := range results {
		w.report(r)

		if w.config.Storage.StoreSweeps {
			if powers, freqHz, err := detect.Calibrate(r.frame, w.config.Calibration); err == nil {
				if err = w.store.StoreSweep(ctx, w.sessionID, r.band.Name, r.frame, powers, freqHz); err != nil {
					w.logger.Error(fmt.Sprintf("storing sweep: %s", err.Error()))
				}
			}
		}

		if len(r.detections) == 0 {
			continue
		}

		if err := w.store.StoreDetections(ctx, w.sessionID, r.detections, r.noiseFloor); err != nil {
			w.logger.Error(fmt.Sprintf("storing detections: %s", err.Error()))
		}

		for _, d := range r.detections {
			w.logger.Info(fmt.Sprintf("detection at %.3f MHz: %.1f dB", d.FreqMHz, d.PowerDb),
				slog.String("band", d.Band))

			w.sender.SendDetection(cot.Detection{
				FreqMHz:      d.FreqMHz,
				PowerDb:      d.PowerDb,
				PowerDbRaw:   d.PowerDbRaw,
				CalOffsetDb:  d.CalOffsetDb,
				FreqPpm:      d.FreqPpm,
				NoiseFloorDb: r.noiseFloor,
				Band:         d.Band,
			}, d.Timestamp)
		}
	}
}

func (w *worker) report(r frameResult) {
	if w.config.Detection.OnlyAboveThreshold && r.summary.MaxPowerDb < r.summary.EffectiveThresholdDb {
		return
	}

	w.logger.Info(fmt.Sprintf("Max: %.1f dB at %s (span %s)",
		r.summary.MaxPowerDb,
		humanize.SIWithDigits(r.summary.MaxFreqMHz*1e6, 3, "Hz"),
		r.band.Label()),
		slog.String("band", r.band.Name),
		slog.Int("bins", r.summary.Bins),
		slog.Float64("noiseFloor", r.summary.NoiseFloorDb),
		slog.Float64("threshold", r.summary.EffectiveThresholdDb))
}

// sleepContext pauses for the given duration, returning false if the context
// was canceled first. Zero and negative durations return immediately.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
