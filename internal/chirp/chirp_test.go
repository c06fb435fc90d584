package chirp

import (
	"math"
	"testing"

	"watvision-service/internal/models"
)

func TestFrequency_CloserIsHigher(t *testing.T) {
	m := NewMapper(DefaultParams())

	if m.Frequency(0) <= m.Frequency(200) {
		t.Errorf("expected freq(0) > freq(200), got %v <= %v", m.Frequency(0), m.Frequency(200))
	}
}

func TestFrequency_AtZeroIsMaxFreq(t *testing.T) {
	m := NewMapper(DefaultParams())

	if got := m.Frequency(0); got != 2000 {
		t.Errorf("expected 2000 at distance 0, got %v", got)
	}
}

func TestFrequency_NonIncreasing(t *testing.T) {
	m := NewMapper(DefaultParams())

	prev := m.Frequency(0)
	for d := 1.0; d <= 200; d++ {
		f := m.Frequency(d)
		if f > prev {
			t.Fatalf("frequency increased at distance %v: %v > %v", d, f, prev)
		}
		prev = f
	}
}

func TestFrequency_Continuous(t *testing.T) {
	m := NewMapper(DefaultParams())

	// Adjacent evaluations should never jump by more than a small step.
	for d := 0.0; d < 200; d += 0.5 {
		delta := math.Abs(m.Frequency(d) - m.Frequency(d+0.5))
		if delta > 20 {
			t.Fatalf("discontinuity at distance %v: delta %v", d, delta)
		}
	}
}

func TestFrequency_ClampsBeyondMaxDistance(t *testing.T) {
	m := NewMapper(DefaultParams())

	if m.Frequency(200) != m.Frequency(5000) {
		t.Errorf("expected saturation beyond max distance, got %v vs %v",
			m.Frequency(200), m.Frequency(5000))
	}
	if m.Frequency(-10) != m.Frequency(0) {
		t.Errorf("expected clamp at 0, got %v vs %v", m.Frequency(-10), m.Frequency(0))
	}
}

func TestCue_QuadrantMotifs(t *testing.T) {
	m := NewMapper(DefaultParams())
	finger := models.Point{X: 100, Y: 100}

	tests := []struct {
		name      string
		target    models.Point
		direction string
	}{
		{"target down-right", models.Point{X: 150, Y: 150}, "top-right"},
		{"target down-left", models.Point{X: 50, Y: 150}, "top-left"},
		{"target up-left", models.Point{X: 50, Y: 50}, "bottom-left"},
		{"target up-right", models.Point{X: 150, Y: 50}, "bottom-right"},
	}

	seen := map[string]int{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cue := m.Cue(finger, tt.target)
			if cue == nil {
				t.Fatal("expected cue, got nil")
			}
			if cue.Direction != tt.direction {
				t.Errorf("expected direction %s, got %s", tt.direction, cue.Direction)
			}
			if len(cue.Tones) == 0 {
				t.Fatal("expected at least one tone")
			}
			seen[cue.Direction] = len(cue.Tones)
		})
	}

	// Motifs must be distinguishable: not all quadrants share a tone count
	// and waveform.
	if len(seen) != 4 {
		t.Errorf("expected 4 distinct directions, got %d", len(seen))
	}
}

func TestCue_InvalidDistanceSuppressed(t *testing.T) {
	m := NewMapper(DefaultParams())

	cue := m.Cue(models.Point{X: math.NaN(), Y: 0}, models.Point{X: 10, Y: 10})
	if cue != nil {
		t.Errorf("expected nil cue for NaN input, got %+v", cue)
	}
}

func TestCue_SameLocationStillCues(t *testing.T) {
	m := NewMapper(DefaultParams())

	p := models.Point{X: 10, Y: 10}
	cue := m.Cue(p, p)
	if cue == nil {
		t.Fatal("expected cue at zero distance")
	}
	if cue.Tones[0].Frequency < 2000 {
		t.Errorf("expected peak pitch at zero distance, got %v", cue.Tones[0].Frequency)
	}
}
