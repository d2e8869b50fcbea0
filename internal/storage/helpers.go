package storage

import (
	"fmt"
	"math"
	"time"
)

// sqliteDatetime scans datetime values coming out of aggregate expressions.
// MIN/MAX strip the column's type affinity, so the driver hands back a raw
// string instead of time.Time.
type sqliteDatetime struct {
	Time time.Time
}

var sqliteDatetimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (d *sqliteDatetime) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		d.Time = v
		return nil

	case string:
		return d.parse(v)

	case []byte:
		return d.parse(string(v))
	}

	return fmt.Errorf("unsupported datetime value of type %T", value)
}

func (d *sqliteDatetime) parse(s string) error {
	for _, layout := range sqliteDatetimeLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unsupported datetime value %q", s)
}

// freqCompare helps compare frequencies using bin width-based tolerance.
// Returns:
//
//	-1 if a < b
//	 0 if a ≈ b (within tolerance)
//	+1 if a > b
func freqCompare(a, b, binWidth float64) int {
	tolerance := binWidth * 0.01 // 1% of bin width

	diff := a - b
	if math.Abs(diff) <= tolerance {
		return 0
	}
	if diff < 0 {
		return -1
	}
	return 1
}

// freqLess returns true if a is less than b with bin width-based tolerance
func freqLess(a, b, binWidth float64) bool {
	return freqCompare(a, b, binWidth) < 0
}

// freqGreater returns true if a is greater than b with bin width-based tolerance
func freqGreater(a, b, binWidth float64) bool {
	return freqCompare(a, b, binWidth) > 0
}
