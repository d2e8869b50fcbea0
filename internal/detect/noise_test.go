package detect

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNoiseFloor_FirstFrameIsMedian(t *testing.T) {
	var n NoiseFloor

	if _, ok := n.Value(); ok {
		t.Error("Fresh estimator should report no value")
	}

	// 5 samples, no trimming: median is the middle element.
	floor := n.Update([]float64{-80, -95, -90, -85, -100})
	if floor != -90 {
		t.Errorf("Expected first estimate -90, got %.2f", floor)
	}

	value, ok := n.Value()
	if !ok || value != -90 {
		t.Errorf("Expected stored estimate -90, got %.2f (valid=%v)", value, ok)
	}
}

func TestNoiseFloor_EMA(t *testing.T) {
	var n NoiseFloor

	n.Update([]float64{-90, -90, -90})
	floor := n.Update([]float64{-80, -80, -80})

	// value = 0.9*(-90) + 0.1*(-80)
	if !almostEqual(floor, -89) {
		t.Errorf("Expected smoothed floor -89, got %.4f", floor)
	}
}

func TestNoiseFloor_TrimExcludesStrongSignals(t *testing.T) {
	var n NoiseFloor

	// 11 samples: trimming keeps the lowest 8, so the single strong
	// carrier must not drag the floor up.
	powers := []float64{-90, -90, -90, -90, -90, -90, -90, -90, -90, -90, -20}
	floor := n.Update(powers)
	if floor != -90 {
		t.Errorf("Expected floor -90 with carrier excluded, got %.2f", floor)
	}
}

func TestNoiseFloor_NoTrimForSmallFrames(t *testing.T) {
	var n NoiseFloor

	// 10 samples or fewer are used as-is; even count averages the middle two.
	floor := n.Update([]float64{-90, -90, -90, -90, -90, -90, -90, -90, -90, -20})
	if !almostEqual(floor, -90) {
		t.Errorf("Expected floor -90, got %.2f", floor)
	}

	var n2 NoiseFloor
	floor = n2.Update([]float64{-100, -90})
	if !almostEqual(floor, -95) {
		t.Errorf("Expected floor -95 from even-count median, got %.2f", floor)
	}
}

func TestNoiseFloor_InputNotMutated(t *testing.T) {
	var n NoiseFloor

	powers := []float64{-20, -90, -100}
	n.Update(powers)

	if powers[0] != -20 || powers[1] != -90 || powers[2] != -100 {
		t.Error("Update must not reorder the caller's slice")
	}
}

func TestTrimmedMedian_TrimCount(t *testing.T) {
	// 20 samples: int(0.8*20) = 16 candidates, median averages the
	// 8th and 9th smallest.
	powers := make([]float64, 20)
	for i := range powers {
		powers[i] = float64(-100 + i) // -100 .. -81
	}

	got := trimmedMedian(powers)
	want := (-93.0 + -92.0) / 2
	if !almostEqual(got, want) {
		t.Errorf("Expected trimmed median %.2f, got %.2f", want, got)
	}
}
