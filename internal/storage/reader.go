package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rfwatch/rfwatch/internal/spectrum"
)

// ErrNoData indicates that all available spectrum data has been read.
var ErrNoData = errors.New("no data available")

const selectFilterValuesSQL = `
SELECT
    MIN(frequency),
    MAX(frequency),
    MIN(timestamp),
    MAX(timestamp)
FROM samples
WHERE
    session_id = ?
    AND (? = '' OR band = ?)`

const selectSamplesSQL = `
SELECT
    timestamp,
    frequency,
    power,
    bin_width
FROM samples
WHERE
    session_id = ?
    AND (? = '' OR band = ?)
    AND timestamp BETWEEN ? AND ?
    AND frequency BETWEEN ? AND ?
ORDER BY timestamp, frequency`

// ReaderOption configures a SpanReader with filtering criteria.
type ReaderOption func(*SpanReader)

// WithMinFreq excludes samples below the given frequency in Hz.
func WithMinFreq(f float64) ReaderOption {
	return func(r *SpanReader) {
		r.minFreq = &f
	}
}

// WithMaxFreq excludes samples above the given frequency in Hz.
func WithMaxFreq(f float64) ReaderOption {
	return func(r *SpanReader) {
		r.maxFreq = &f
	}
}

// WithFreqRange sets both minimum and maximum frequency filters.
func WithFreqRange(minFreq, maxFreq float64) ReaderOption {
	return func(r *SpanReader) {
		r.minFreq = &minFreq
		r.maxFreq = &maxFreq
	}
}

// WithStartTime excludes samples taken before the given time.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SpanReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes samples taken after the given time.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SpanReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SpanReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithBand limits reading to samples recorded for the named band.
func WithBand(band string) ReaderOption {
	return func(r *SpanReader) {
		r.band = band
	}
}

// Spans returns an iterator over the frequency spans recorded for a session,
// ordered by time. Each span is one complete pass over the filtered
// frequency range.
func (s *Store) Spans(ctx context.Context, sessionID int64, options ...ReaderOption) (*SpanReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	sr := &SpanReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, option := range options {
		option(sr)
	}

	if err := sr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return sr, nil
}

// SpanReader provides an iterator interface for reading recorded spectrum
// data with optional band, time and frequency filtering. Frequency rollover
// delimits spans; gaps within a span are filled with invalid (nil power)
// points so every span covers the full filtered range.
type SpanReader struct {
	db *sql.DB

	sessionID int64
	session   *spectrum.ScanSession
	band      string
	numPoints int

	startTime *time.Time
	endTime   *time.Time
	minFreq   *float64
	maxFreq   *float64

	currentSpan      *spectrum.SpectralSpan
	nextSample       spectrum.SpectralPoint
	nextSampleExists bool
	nextSpanStart    time.Time
	rows             *sql.Rows
	err              error
}

func (sr *SpanReader) init(ctx context.Context) error {
	if sr.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: sr.loadSession},
		{msg: "initializing filters", fn: sr.initFilters},
		{msg: "initializing query", fn: sr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (sr *SpanReader) loadSession(ctx context.Context) (err error) {
	stmt, err := sr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var sess spectrum.ScanSession
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, sr.sessionID).Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &config); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("querying session: %w", err)
	}
	if config.Valid {
		sess.Config = &config.String
	}

	sr.session = &sess
	return
}

func (sr *SpanReader) initFilters(ctx context.Context) (err error) {
	timeFiltersSet := sr.startTime != nil && sr.endTime != nil
	freqFiltersSet := sr.minFreq != nil && sr.maxFreq != nil

	if timeFiltersSet && sr.startTime.After(*sr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", sr.startTime, sr.endTime)
	}
	if freqFiltersSet && *sr.minFreq > *sr.maxFreq {
		return fmt.Errorf("min frequency %f is greater than max frequency %f", *sr.minFreq, *sr.maxFreq)
	}
	if timeFiltersSet && freqFiltersSet {
		return nil
	}

	stmt, err := sr.db.PrepareContext(ctx, selectFilterValuesSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var minFreq, maxFreq sql.NullFloat64
	var startTime, endTime sqliteDatetime
	if err = stmt.QueryRowContext(ctx, sr.sessionID, sr.band, sr.band).Scan(&minFreq, &maxFreq, &startTime, &endTime); err != nil {
		return fmt.Errorf("scanning filters data: %w", err)
	}
	if !minFreq.Valid {
		return ErrNoData
	}

	if sr.minFreq == nil {
		sr.minFreq = &minFreq.Float64
	}
	if sr.maxFreq == nil {
		sr.maxFreq = &maxFreq.Float64
	}
	if sr.startTime == nil {
		sr.startTime = &startTime.Time
	}
	if sr.endTime == nil {
		sr.endTime = &endTime.Time
	}

	return nil
}

func (sr *SpanReader) initQuery(ctx context.Context) (err error) {
	stmt, err := sr.db.PrepareContext(ctx, selectSamplesSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if sr.rows, err = stmt.QueryContext(ctx, sr.sessionID, sr.band, sr.band, sr.startTime, sr.endTime, sr.minFreq, sr.maxFreq); err != nil {
		return err
	}
	return nil
}

func (sr *SpanReader) scanSample() (time.Time, spectrum.SpectralPoint, error) {
	var timestamp time.Time
	var freq, binWidth float64
	var power sql.NullFloat64

	if err := sr.rows.Scan(&timestamp, &freq, &power, &binWidth); err != nil {
		return time.Time{}, spectrum.SpectralPoint{}, fmt.Errorf("scanning sample: %w", err)
	}

	point := spectrum.SpectralPoint{
		Frequency: freq,
		BinWidth:  binWidth,
	}
	if power.Valid {
		point.Power = &power.Float64
	}

	return timestamp, point, nil
}

// fillFrequencyRange generates invalid (nil power) points for frequency gaps.
// Readings can be dropped or misaligned and a pass can start or end in the
// middle of the spectrum; padding the gaps keeps every span the same width,
// which the renderer relies on.
func (sr *SpanReader) fillFrequencyRange(start, end, binWidth float64) ([]spectrum.SpectralPoint, error) {
	if binWidth <= 0 {
		return nil, fmt.Errorf("invalid bin width: %f", binWidth)
	}

	numPoints := int(math.Floor((end-start)/binWidth)) + 1
	if numPoints <= 0 {
		return nil, nil
	}

	points := make([]spectrum.SpectralPoint, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		freq := start + float64(i)*binWidth
		if freq > end {
			break
		}
		points = append(points, spectrum.SpectralPoint{
			Frequency: freq,
			BinWidth:  binWidth,
		})
	}
	return points, nil
}

func (sr *SpanReader) startSpan(timestamp time.Time, sample spectrum.SpectralPoint) error {
	if sr.numPoints == 0 {
		n := (*sr.maxFreq - *sr.minFreq) / sample.BinWidth
		sr.numPoints = int(n * 1.1) // headroom for rounding and bin width variation
	}

	sr.currentSpan = &spectrum.SpectralSpan{
		Timestamp:      timestamp,
		FrequencyStart: sample.Frequency,
		Samples:        make([]spectrum.SpectralPoint, 0, sr.numPoints),
	}
	sr.currentSpan.Samples = append(sr.currentSpan.Samples, sample)

	if freqGreater(sample.Frequency, *sr.minFreq, sample.BinWidth) {
		gapPoints, err := sr.fillFrequencyRange(*sr.minFreq, sample.Frequency, sample.BinWidth)
		if err != nil {
			return fmt.Errorf("filling min frequency gap: %w", err)
		}
		sr.currentSpan.Samples = append(gapPoints, sr.currentSpan.Samples...)
		sr.currentSpan.FrequencyStart = *sr.minFreq
	}
	return nil
}

func (sr *SpanReader) finishSpan() error {
	lastSample := sr.currentSpan.Samples[len(sr.currentSpan.Samples)-1]
	sr.currentSpan.FrequencyEnd = lastSample.Frequency

	if freqLess(lastSample.Frequency, *sr.maxFreq, lastSample.BinWidth) {
		gapPoints, err := sr.fillFrequencyRange(lastSample.Frequency+lastSample.BinWidth, *sr.maxFreq, lastSample.BinWidth)
		if err != nil {
			return fmt.Errorf("filling max frequency gap: %w", err)
		}
		sr.currentSpan.Samples = append(sr.currentSpan.Samples, gapPoints...)
		sr.currentSpan.FrequencyEnd = *sr.maxFreq
	}
	return nil
}

// Session returns metadata about the session this reader is accessing.
func (sr *SpanReader) Session() *spectrum.ScanSession {
	return sr.session
}

// Next advances the iterator and returns true if there is another span to
// read, false when the iteration is complete or an error occurred.
func (sr *SpanReader) Next(ctx context.Context) bool {
	if sr.err != nil || sr.rows == nil {
		return false
	}

	if sr.nextSampleExists {
		sr.nextSampleExists = false
		if sr.err = sr.startSpan(sr.nextSpanStart, sr.nextSample); sr.err != nil {
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			sr.err = ctx.Err()
			return false
		default:
		}

		if !sr.rows.Next() {
			if sr.currentSpan != nil && len(sr.currentSpan.Samples) > 0 {
				if sr.err = sr.finishSpan(); sr.err != nil {
					return false
				}
				sr.err = ErrNoData
				return true
			}
			return false
		}

		timestamp, sample, err := sr.scanSample()
		if err != nil {
			sr.err = err
			return false
		}

		if sr.currentSpan == nil {
			if sr.err = sr.startSpan(timestamp, sample); sr.err != nil {
				return false
			}
			continue
		}

		// Frequency rollover completes the current span.
		lastSample := sr.currentSpan.Samples[len(sr.currentSpan.Samples)-1]
		if sample.Frequency < lastSample.Frequency {
			if sr.err = sr.finishSpan(); sr.err != nil {
				return false
			}

			sr.nextSample = sample
			sr.nextSampleExists = true
			sr.nextSpanStart = timestamp
			return true
		}

		if freqLess(lastSample.Frequency+lastSample.BinWidth, sample.Frequency, lastSample.BinWidth) {
			gapPoints, err := sr.fillFrequencyRange(lastSample.Frequency+lastSample.BinWidth, sample.Frequency, lastSample.BinWidth)
			if err != nil {
				sr.err = fmt.Errorf("filling frequency gap between data points: %w", err)
				return false
			}
			sr.currentSpan.Samples = append(sr.currentSpan.Samples, gapPoints...)
		}

		sr.currentSpan.Samples = append(sr.currentSpan.Samples, sample)
	}
}

// Current returns the current span in the iteration. Undefined after Next
// returns false.
func (sr *SpanReader) Current() *spectrum.SpectralSpan {
	return sr.currentSpan
}

// Error returns any error that occurred during iteration.
func (sr *SpanReader) Error() error {
	if sr.err != nil && !errors.Is(sr.err, ErrNoData) {
		return sr.err
	}
	if sr.rows != nil {
		return sr.rows.Err()
	}
	return nil
}

// Close releases the resources associated with the reader.
func (sr *SpanReader) Close() error {
	if sr.rows != nil {
		err := sr.rows.Close()
		sr.currentSpan = nil
		sr.nextSampleExists = false
		sr.rows = nil
		return err
	}
	return nil
}
