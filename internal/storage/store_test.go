package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rfwatch/rfwatch/internal/detect"
	"github.com/rfwatch/rfwatch/internal/sweep"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	s := New(filepath.Join(t.TempDir(), "test.sqlite"))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.CreateSession(ctx, "hackrf", "436c63dc2d7d7563", map[string]any{"binWidthHz": 1000000})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("Expected positive session ID, got %d", id)
	}

	session, err := s.Session(ctx, id)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if session.DeviceType != "hackrf" || session.DeviceID != "436c63dc2d7d7563" {
		t.Errorf("Unexpected session: %+v", session)
	}
	if session.Config == nil || *session.Config != `{"binWidthHz":1000000}` {
		t.Errorf("Unexpected session config: %v", session.Config)
	}

	if _, err = s.Session(ctx, id+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != id {
		t.Errorf("Unexpected sessions: %+v", sessions)
	}
}

func TestStore_Settings(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if _, err := s.Setting(ctx, "staticUID"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing setting, got %v", err)
	}

	if err := s.SetSetting(ctx, "staticUID", "WD-1"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	value, err := s.Setting(ctx, "staticUID")
	if err != nil || value != "WD-1" {
		t.Fatalf("Expected WD-1, got %q (%v)", value, err)
	}

	// Upsert replaces the previous value.
	if err = s.SetSetting(ctx, "staticUID", "WD-2"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if value, _ = s.Setting(ctx, "staticUID"); value != "WD-2" {
		t.Errorf("Expected WD-2 after upsert, got %q", value)
	}
}

func TestStore_SweepRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.CreateSession(ctx, "hackrf", "default", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for pass := 0; pass < 3; pass++ {
		frame := &sweep.Frame{
			Timestamp:  base.Add(time.Duration(pass) * time.Second),
			LowHz:      900e6,
			HighHz:     905e6,
			BinWidthHz: 1e6,
			Powers:     []float64{-90, -91, -20, -89, -92},
		}

		powers, freqHz, err := detect.Calibrate(frame, detect.CalibrationConfig{})
		if err != nil {
			t.Fatalf("Calibrate failed: %v", err)
		}
		if err = s.StoreSweep(ctx, id, "ISM 900", frame, powers, freqHz); err != nil {
			t.Fatalf("StoreSweep failed: %v", err)
		}
	}

	iter, err := s.Spans(ctx, id, WithBand("ISM 900"))
	if err != nil {
		t.Fatalf("Spans failed: %v", err)
	}
	defer iter.Close()

	var spans int
	for iter.Next(ctx) {
		span := iter.Current()
		if len(span.Samples) != 5 {
			t.Errorf("Span %d: expected 5 samples, got %d", spans, len(span.Samples))
		}
		if span.Samples[0].Frequency != 900.5e6 {
			t.Errorf("Span %d: expected first bin at 900.5 MHz, got %.1f Hz", spans, span.Samples[0].Frequency)
		}
		if span.Samples[2].Power == nil || *span.Samples[2].Power != -20 {
			t.Errorf("Span %d: expected carrier bin at -20 dB, got %v", spans, span.Samples[2].Power)
		}
		spans++
	}
	if err = iter.Error(); err != nil {
		t.Fatalf("Iteration failed: %v", err)
	}
	if spans != 3 {
		t.Errorf("Expected 3 spans, got %d", spans)
	}
}

func TestStore_StoreDetections(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.CreateSession(ctx, "hackrf", "default", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	floor := -90.0
	detections := []detect.Detection{
		{
			Band:       "ISM 900",
			FreqMHz:    902.5,
			FreqMHzRaw: 902.5,
			PowerDb:    -42.5,
			PowerDbRaw: -42.5,
			Timestamp:  time.Now(),
		},
	}

	if err = s.StoreDetections(ctx, id, detections, &floor); err != nil {
		t.Fatalf("StoreDetections failed: %v", err)
	}

	// Empty batches are a no-op, not an error.
	if err = s.StoreDetections(ctx, id, nil, nil); err != nil {
		t.Fatalf("Empty StoreDetections failed: %v", err)
	}
}

func TestSpanReader_NoData(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.CreateSession(ctx, "hackrf", "default", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err = s.Spans(ctx, id); err == nil {
		t.Error("Expected error for session without samples")
	}
}
