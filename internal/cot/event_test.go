package cot

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"
)

func TestConfig_Identity(t *testing.T) {
	config := Config{
		UsePerFrequencyUID: true,
		CallsignPrefix:     "RF-",
		StaticCallsign:     "Watchdog",
		StaticUID:          "WD-1234",
	}

	callsign, uid := config.Identity(915.0)
	if callsign != "RF-915.000MHz" || uid != "RF-915.000MHz" {
		t.Errorf("Unexpected per-frequency identity: %s / %s", callsign, uid)
	}

	// Distinct frequencies get distinct identities.
	_, uid2 := config.Identity(915.001)
	if uid2 == uid {
		t.Error("Expected distinct UIDs for distinct frequencies")
	}

	// Per-frequency mode without a usable frequency falls back to static.
	callsign, uid = config.Identity(0)
	if callsign != "Watchdog" || uid != "WD-1234" {
		t.Errorf("Unexpected static fallback identity: %s / %s", callsign, uid)
	}

	config.UsePerFrequencyUID = false
	callsign, uid = config.Identity(915.0)
	if callsign != "Watchdog" || uid != "WD-1234" {
		t.Errorf("Unexpected static identity: %s / %s", callsign, uid)
	}
}

func TestDetection_Remarks(t *testing.T) {
	floor := -90.0
	d := Detection{
		FreqMHz:      915.0,
		PowerDb:      -42.5,
		PowerDbRaw:   -42.5,
		NoiseFloorDb: &floor,
		Band:         "ISM 900",
	}

	remarks := d.Remarks()

	for _, want := range []string{
		"Freq: 915.000 MHz",
		"Power: -42.5 dB",
		"Noise floor: -90.0 dB",
		"Above noise: 47.5 dB",
		"Band: ISM 900",
	} {
		if !strings.Contains(remarks, want) {
			t.Errorf("Expected remarks to contain %q, got: %s", want, remarks)
		}
	}

	// Raw equals calibrated and no offset/ppm: those fields are omitted.
	for _, unwanted := range []string{"Raw:", "Cal offset:", "PPM:"} {
		if strings.Contains(remarks, unwanted) {
			t.Errorf("Expected remarks to omit %q, got: %s", unwanted, remarks)
		}
	}
}

func TestDetection_RemarksSignificantFields(t *testing.T) {
	d := Detection{
		FreqMHz:     915.0,
		PowerDb:     -42.5,
		PowerDbRaw:  -42.6,
		CalOffsetDb: 0.1,
		FreqPpm:     -2.5,
	}

	remarks := d.Remarks()

	for _, want := range []string{"Cal offset: +0.1 dB", "Raw: -42.6 dB", "PPM: -2.5"} {
		if !strings.Contains(remarks, want) {
			t.Errorf("Expected remarks to contain %q, got: %s", want, remarks)
		}
	}
	if strings.Contains(remarks, "Noise floor") {
		t.Errorf("Expected no noise floor without an estimate, got: %s", remarks)
	}
}

func TestBuildEvent(t *testing.T) {
	config := Config{
		Lat:          -33.865143,
		Lon:          151.2099,
		Type:         "a-u-G",
		StaleSeconds: 60,
		GroupName:    "Cyan",
		GroupRole:    "Team Member",
	}

	now := time.Date(2026, 8, 24, 10, 15, 30, 500e6, time.UTC)
	payload, err := BuildEvent(config, "WD-1", "Watchdog", "Power: -42.5 dB", now)
	if err != nil {
		t.Fatalf("BuildEvent failed: %v", err)
	}

	var event Event
	if err = xml.Unmarshal(payload, &event); err != nil {
		t.Fatalf("Event is not well-formed XML: %v", err)
	}

	if event.Version != "2.0" || event.UID != "WD-1" || event.Type != "a-u-G" || event.How != "m-g" {
		t.Errorf("Unexpected event attributes: %+v", event)
	}
	if event.Time != "2026-08-24T10:15:30.500Z" {
		t.Errorf("Unexpected time format: %s", event.Time)
	}
	if event.Start != event.Time {
		t.Errorf("Expected start == time, got %s", event.Start)
	}
	if event.Stale != "2026-08-24T10:16:30.500Z" {
		t.Errorf("Unexpected stale: %s", event.Stale)
	}
	if event.Point.Lat != "-33.865143" || event.Point.Lon != "151.209900" {
		t.Errorf("Unexpected point: %+v", event.Point)
	}
	if event.Detail.Contact.Callsign != "Watchdog" {
		t.Errorf("Unexpected callsign: %s", event.Detail.Contact.Callsign)
	}
	if event.Detail.Group.Name != "Cyan" || event.Detail.Group.Role != "Team Member" {
		t.Errorf("Unexpected group: %+v", event.Detail.Group)
	}
}

func TestBuildEvent_StaleClamp(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	payload, err := BuildEvent(Config{StaleSeconds: 1}, "u", "c", "", now)
	if err != nil {
		t.Fatalf("BuildEvent failed: %v", err)
	}

	var event Event
	if err = xml.Unmarshal(payload, &event); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if event.Stale != "2026-08-24T10:00:05.000Z" {
		t.Errorf("Expected stale clamped to +5s, got %s", event.Stale)
	}
}

func TestBuildEvent_EscapesMarkup(t *testing.T) {
	payload, err := BuildEvent(Config{}, "u", `callsign "<&>"`, "<remarks>", time.Now())
	if err != nil {
		t.Fatalf("BuildEvent failed: %v", err)
	}

	var event Event
	if err = xml.Unmarshal(payload, &event); err != nil {
		t.Fatalf("Escaped payload is not well-formed: %v", err)
	}
	if event.Detail.Contact.Callsign != `callsign "<&>"` {
		t.Errorf("Callsign round-trip failed: %s", event.Detail.Contact.Callsign)
	}
	if event.Detail.Remarks != "<remarks>" {
		t.Errorf("Remarks round-trip failed: %s", event.Detail.Remarks)
	}
}
