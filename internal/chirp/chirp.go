// Package chirp maps fingertip-to-target geometry onto audio cue
// parameters. Pitch encodes distance through an inverse Gaussian, and each
// quadrant of the direction vector selects a distinct tone motif so the
// user can learn direction by ear.
package chirp

import (
	"math"

	"watvision-service/internal/models"
)

// Params holds the tuning constants of the distance-to-frequency mapping.
type Params struct {
	MinFreq     float64
	MaxFreq     float64
	Sigma       float64
	MaxDistance float64
}

// DefaultParams returns the stock tuning: 200-2000 Hz over 200 px with
// sigma 60.
func DefaultParams() Params {
	return Params{
		MinFreq:     200,
		MaxFreq:     2000,
		Sigma:       60,
		MaxDistance: 200,
	}
}

// Mapper converts distances and direction vectors into chirp cues.
type Mapper struct {
	params Params
}

// NewMapper creates a Mapper with the given tuning parameters.
func NewMapper(params Params) *Mapper {
	return &Mapper{params: params}
}

// Frequency returns the base frequency for a distance in pixels. The
// distance is clamped to [0, MaxDistance] before evaluation, so the
// mapping is continuous and non-increasing over that range.
func (m *Mapper) Frequency(distance float64) float64 {
	d := math.Min(math.Max(distance, 0), m.params.MaxDistance)
	gaussian := math.Exp(-(d * d) / (2 * m.params.Sigma * m.params.Sigma))
	return m.params.MinFreq + (m.params.MaxFreq-m.params.MinFreq)*gaussian
}

// Cue builds the full audio cue for a fingertip and target position in the
// same coordinate space. Returns nil when the distance is not a usable
// number, suppressing the cue rather than guessing.
func (m *Mapper) Cue(finger, target models.Point) *models.ChirpCue {
	dx := target.X - finger.X
	dy := target.Y - finger.Y
	distance := math.Sqrt(dx*dx + dy*dy)

	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return nil
	}

	base := m.Frequency(distance)
	direction := quadrant(dx, dy)

	return &models.ChirpCue{
		Direction: direction,
		Tones:     motif(direction, base),
	}
}

// quadrant names the quadrant of the vector from fingertip to target.
// Axis-aligned vectors fall into the dx >= 0 / dy >= 0 buckets.
func quadrant(dx, dy float64) string {
	switch {
	case dx >= 0 && dy >= 0:
		return "top-right"
	case dx < 0 && dy >= 0:
		return "top-left"
	case dx < 0 && dy < 0:
		return "bottom-left"
	default:
		return "bottom-right"
	}
}

// motif returns the tone sequence for a direction. Each quadrant has a
// fixed, distinguishable pattern; frequencies scale with the base pitch.
func motif(direction string, base float64) []models.ChirpTone {
	switch direction {
	case "top-right":
		// Two quick ascending sine beeps.
		return []models.ChirpTone{
			{Frequency: base * 1.5, Duration: 0.08, Gain: 0.2, Waveform: "sine", Gap: 0.02},
			{Frequency: base * 2.0, Duration: 0.08, Gain: 0.15, Waveform: "sine"},
		}
	case "top-left":
		// Three quick descending triangle chirps.
		return []models.ChirpTone{
			{Frequency: base * 1.4, Duration: 0.06, Gain: 0.18, Waveform: "triangle", Gap: 0.01},
			{Frequency: base * 1.1, Duration: 0.06, Gain: 0.15, Waveform: "triangle", Gap: 0.01},
			{Frequency: base * 0.8, Duration: 0.06, Gain: 0.12, Waveform: "triangle"},
		}
	case "bottom-left":
		// Single long low sawtooth warble.
		return []models.ChirpTone{
			{Frequency: base * 0.6, Duration: 0.15, Gain: 0.25, Waveform: "sawtooth"},
		}
	case "bottom-right":
		// Two-tone ascending square-wave pattern.
		return []models.ChirpTone{
			{Frequency: base * 0.5, Duration: 0.12, Gain: 0.15, Waveform: "square", Gap: 0.03},
			{Frequency: base * 1.0, Duration: 0.12, Gain: 0.15, Waveform: "square"},
		}
	default:
		return []models.ChirpTone{
			{Frequency: base, Duration: 0.1, Gain: 0.15, Waveform: "sine"},
		}
	}
}
