// Package models defines the data structures shared across the tracking
// pipeline and the wire protocol.
package models

// Point is a pixel coordinate. Which image plane it belongs to (source or
// live frame) is determined by context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is a quadrilateral given by four corner points in order.
type Quad [4]Point

// TextElement is one detected text region on the source image. Coordinates
// are in the pixel space of the source image the element was extracted from
// and become invalid when a new source image is captured.
type TextElement struct {
	ID                 int     `json:"id"`
	Text               string  `json:"text"`
	Confidence         float64 `json:"confidence"`
	BoundingBox        Quad    `json:"bounding_box"`
	NormalizedPosition Point   `json:"normalized_position"`
}

// Homography is a row-major 3x3 projective transform. Throughout the
// service it maps source-image coordinates to live-frame coordinates;
// the inverse direction is always obtained by explicit inversion.
type Homography [9]float64

// AlignmentResult is the output of one alignment computation by the vision
// collaborator.
type AlignmentResult struct {
	Homography Homography `json:"homography"`
	Inliers    int        `json:"inliers"`
	Confidence float64    `json:"confidence"`
	Valid      bool       `json:"valid"`
}

// ChirpTone is a single tone of a proximity chirp motif.
type ChirpTone struct {
	Frequency float64 `json:"frequency"`
	Duration  float64 `json:"duration"`
	Gain      float64 `json:"gain"`
	Waveform  string  `json:"waveform"`
	Gap       float64 `json:"gap"`
}

// ChirpCue is the audio cue for one step when an element is tracked.
type ChirpCue struct {
	Direction string      `json:"direction"`
	Tones     []ChirpTone `json:"tones"`
}

// StepResult is the per-frame output sent to the client.
type StepResult struct {
	// Base64 PNG of the live frame with overlay annotations.
	RenderedLiveFrame string `json:"rendered_live_frame"`
	// Base64 PNG of the source image with the projected fingertip.
	RenderedSourceFrame string `json:"rendered_source_frame"`

	AlignmentValid bool `json:"alignment_valid"`

	FingerLive   *Point `json:"finger_live,omitempty"`
	FingerSource *Point `json:"finger_source,omitempty"`

	TextUnderFinger *TextElement `json:"text_under_finger,omitempty"`

	// SpeakText is set only when TextUnderFinger changed since the last
	// announcement for this session.
	SpeakText string `json:"speak_text,omitempty"`

	TrackedElementIndex      *int      `json:"tracked_element_index,omitempty"`
	TrackedElementCenter     *Point    `json:"tracked_element_center,omitempty"`
	DistanceToTrackedElement *float64  `json:"distance_to_tracked_element,omitempty"`
	Chirp                    *ChirpCue `json:"chirp,omitempty"`
}

// ScreenInfo is the response payload for a screen description request.
type ScreenInfo struct {
	Description  string        `json:"description"`
	TextElements []TextElement `json:"text_elements"`
}

// StepEvent is published to Kafka for every completed step.
type StepEvent struct {
	EventType       string  `json:"eventType"`
	SessionID       string  `json:"sessionId"`
	Timestamp       int64   `json:"timestamp"`
	AlignmentValid  bool    `json:"alignmentValid"`
	FingerDetected  bool    `json:"fingerDetected"`
	TextUnderFinger string  `json:"textUnderFinger,omitempty"`
	Distance        float64 `json:"distance,omitempty"`
	DurationMs      int64   `json:"durationMs"`
}

// SpeechEvent is published to Kafka whenever text is spoken to the user.
type SpeechEvent struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
	Source    string `json:"source"` // "text_under_finger" or "voice_command"
}
