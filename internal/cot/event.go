package cot

import (
	"encoding/xml"
	"fmt"
	"math"
	"strings"
	"time"
)

// cotTimeLayout renders ISO-8601 UTC with millisecond precision and a
// literal Z offset, as consumers expect.
const cotTimeLayout = "2006-01-02T15:04:05.000Z"

// minStaleSeconds is the floor on marker lifetime.
const minStaleSeconds = 5

// significanceDb is the magnitude below which optional remarks fields are
// omitted entirely rather than rendered as zero.
const significanceDb = 0.05

// Event is a Cursor-on-Target event document.
type Event struct {
	XMLName xml.Name `xml:"event"`
	Version string   `xml:"version,attr"`
	UID     string   `xml:"uid,attr"`
	Type    string   `xml:"type,attr"`
	How     string   `xml:"how,attr"`
	Time    string   `xml:"time,attr"`
	Start   string   `xml:"start,attr"`
	Stale   string   `xml:"stale,attr"`
	Point   Point    `xml:"point"`
	Detail  Detail   `xml:"detail"`
}

// Point is the marker position. Accuracy figures are fixed placeholders:
// the station location is configured, not measured.
type Point struct {
	Lat string `xml:"lat,attr"`
	Lon string `xml:"lon,attr"`
	Hae string `xml:"hae,attr"`
	Ce  string `xml:"ce,attr"`
	Le  string `xml:"le,attr"`
}

// Detail carries the contact callsign, team assignment and free-text remarks.
type Detail struct {
	Contact Contact `xml:"contact"`
	Group   Group   `xml:"__group"`
	Remarks string  `xml:"remarks"`
}

type Contact struct {
	Callsign string `xml:"callsign,attr"`
}

type Group struct {
	Name string `xml:"name,attr"`
	Role string `xml:"role,attr"`
}

// BuildEvent serializes one marker. All free-text fields are escaped by the
// XML encoder. stale is clamped to at least minStaleSeconds past now.
func BuildEvent(config Config, uid, callsign, remarks string, now time.Time) ([]byte, error) {
	staleSeconds := max(config.StaleSeconds, minStaleSeconds)

	t := now.UTC().Format(cotTimeLayout)
	stale := now.UTC().Add(time.Duration(staleSeconds) * time.Second).Format(cotTimeLayout)

	event := Event{
		Version: "2.0",
		UID:     uid,
		Type:    config.Type,
		How:     "m-g",
		Time:    t,
		Start:   t,
		Stale:   stale,
		Point: Point{
			Lat: fmt.Sprintf("%.6f", config.Lat),
			Lon: fmt.Sprintf("%.6f", config.Lon),
			Hae: "0",
			Ce:  "9999999",
			Le:  "9999999",
		},
		Detail: Detail{
			Contact: Contact{Callsign: callsign},
			Group:   Group{Name: config.GroupName, Role: config.GroupRole},
			Remarks: remarks,
		},
	}

	return xml.Marshal(&event)
}

// Detection carries the numeric fields of one detection for marker rendering.
type Detection struct {
	FreqMHz      float64
	PowerDb      float64
	PowerDbRaw   float64
	CalOffsetDb  float64
	FreqPpm      float64
	NoiseFloorDb *float64 // nil when no estimate exists yet
	Band         string
}

// Remarks composes the pipe-delimited marker text. Fields whose magnitude is
// below significanceDb are omitted, keeping remarks concise.
func (d Detection) Remarks() string {
	var parts []string

	if d.FreqMHz > 0 {
		parts = append(parts, fmt.Sprintf("Freq: %.3f MHz", d.FreqMHz))
	}

	parts = append(parts, fmt.Sprintf("Power: %.1f dB", d.PowerDb))

	if math.Abs(d.CalOffsetDb) >= significanceDb {
		parts = append(parts, fmt.Sprintf("Cal offset: %+.1f dB", d.CalOffsetDb))
	}

	if math.Abs(d.PowerDbRaw-d.PowerDb) >= significanceDb {
		parts = append(parts, fmt.Sprintf("Raw: %.1f dB", d.PowerDbRaw))
	}

	if math.Abs(d.FreqPpm) >= significanceDb {
		parts = append(parts, fmt.Sprintf("PPM: %+.1f", d.FreqPpm))
	}

	if d.NoiseFloorDb != nil {
		parts = append(parts, fmt.Sprintf("Noise floor: %.1f dB", *d.NoiseFloorDb))
		parts = append(parts, fmt.Sprintf("Above noise: %.1f dB", d.PowerDb-*d.NoiseFloorDb))
	}

	if d.Band != "" {
		parts = append(parts, fmt.Sprintf("Band: %s", d.Band))
	}

	return strings.Join(parts, " | ")
}
