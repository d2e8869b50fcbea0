package detect

import (
	"math"
	"time"

	"github.com/rfwatch/rfwatch/internal/sweep"
)

// minCleanupHorizon is the lower bound on how long inactive per-bin hold
// state is retained before eviction.
const minCleanupHorizon = 10 * time.Second

// Config holds the detection policy.
type Config struct {
	// ThresholdDb is either dB above the noise floor (UseNoiseFloor true)
	// or an absolute level in dB (UseNoiseFloor false).
	ThresholdDb   float64
	UseNoiseFloor bool

	// HoldTime is the minimum continuous above-threshold dwell before a bin
	// qualifies as a detection. Zero means every above-threshold sample
	// qualifies immediately.
	HoldTime time.Duration

	Calibration CalibrationConfig
}

// Detection is a single qualifying bin in a single frame. Immutable once
// produced; carries both calibrated and raw readings for reporting.
type Detection struct {
	Band        string
	FreqMHz     float64 // Calibrated center frequency
	FreqMHzRaw  float64
	PowerDb     float64 // Calibrated power
	PowerDbRaw  float64
	CalOffsetDb float64
	FreqPpm     float64
	Timestamp   time.Time
}

// FrameSummary reports per-frame figures regardless of whether anything
// qualified as a detection.
type FrameSummary struct {
	Band                 string
	Bins                 int
	NoiseFloorDb         float64
	EffectiveThresholdDb float64
	MaxPowerDb           float64 // Strongest calibrated bin in the frame
	MaxFreqMHz           float64
}

// binState tracks the hold-time state machine for one quantized frequency.
// A bin with no entry, or with above == false, is below threshold.
type binState struct {
	firstSeen    time.Time
	hasFirstSeen bool
	lastSeen     time.Time
	above        bool
}

// WithClock overrides the engine's time source, for tests.
func WithClock(now func() time.Time) func(*Engine) {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine turns calibrated sweep frames into discrete detections using a
// per-frequency hysteresis/hold-time state machine. All state is owned by
// the caller's processing goroutine; Engine itself does no locking.
type Engine struct {
	config Config

	noise     NoiseFloor
	holdState map[float64]*binState

	now func() time.Time
}

// New creates a detection engine.
func New(config Config, options ...func(*Engine)) *Engine {
	e := Engine{
		config:    config,
		holdState: make(map[float64]*binState),
		now:       time.Now,
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

// NoiseFloor returns the current smoothed noise floor estimate.
func (e *Engine) NoiseFloor() (float64, bool) {
	return e.noise.Value()
}

// SetConfig replaces the detection policy. Hold state and the noise floor
// estimate survive the change.
func (e *Engine) SetConfig(config Config) {
	e.config = config
}

// Process runs one frame through calibration, noise floor estimation and the
// hold-time state machine, then evicts stale per-bin state. Returns the
// detections that qualified this frame and a summary of the frame.
//
// Malformed frames (no bins, non-positive bin width) return ErrNoBins or
// ErrInvalidBinWidth without mutating any state.
func (e *Engine) Process(band sweep.Band, frame *sweep.Frame) ([]Detection, FrameSummary, error) {
	powers, freqHz, err := Calibrate(frame, e.config.Calibration)
	if err != nil {
		return nil, FrameSummary{}, err
	}

	floor := e.noise.Update(powers)

	threshold := e.config.ThresholdDb
	if e.config.UseNoiseFloor {
		threshold = floor + e.config.ThresholdDb
	}

	now := e.now()
	hold := e.config.HoldTime
	offset := e.config.Calibration.OffsetDb()

	summary := FrameSummary{
		Band:                 band.Name,
		Bins:                 len(powers),
		NoiseFloorDb:         floor,
		EffectiveThresholdDb: threshold,
		MaxPowerDb:           math.Inf(-1),
	}

	var detections []Detection
	for i, p := range powers {
		freqMHz := freqHz(i) / 1e6
		key := quantizeMHz(freqMHz)

		st := e.holdState[key]

		if p >= threshold {
			if st == nil || !st.above {
				st = &binState{firstSeen: now, hasFirstSeen: true, lastSeen: now, above: true}
				e.holdState[key] = st
			} else {
				st.lastSeen = now
			}

			var dwell time.Duration
			if st.hasFirstSeen {
				dwell = now.Sub(st.firstSeen)
			}

			if hold <= 0 || dwell >= hold {
				detections = append(detections, Detection{
					Band:        band.Name,
					FreqMHz:     freqMHz,
					FreqMHzRaw:  frame.BinCenterHz(i) / 1e6,
					PowerDb:     p,
					PowerDbRaw:  frame.Powers[i],
					CalOffsetDb: offset,
					FreqPpm:     e.config.Calibration.FreqPpm,
					Timestamp:   now,
				})
			}
		} else if st != nil && st.above {
			// Dropped below threshold: reset the dwell clock but keep the
			// entry around for eviction bookkeeping.
			st.above = false
			st.hasFirstSeen = false
			st.lastSeen = now
		}

		if p > summary.MaxPowerDb {
			summary.MaxPowerDb = p
			summary.MaxFreqMHz = freqMHz
		}
	}

	e.evictStale(now)

	return detections, summary, nil
}

// evictStale removes hold-state entries not touched within the cleanup
// horizon, bounding memory across wide, slowly-retuned spans.
func (e *Engine) evictStale(now time.Time) {
	horizon := max(2*e.config.HoldTime, minCleanupHorizon)

	for key, st := range e.holdState {
		if now.Sub(st.lastSeen) > horizon {
			delete(e.holdState, key)
		}
	}
}

// quantizeMHz rounds a frequency in MHz to 6 decimal digits (1 Hz), keying
// hold state on frequency rather than bin index so state survives differing
// bin widths between sweeps.
func quantizeMHz(freqMHz float64) float64 {
	return math.Round(freqMHz*1e6) / 1e6
}
