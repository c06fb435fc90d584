// Package speech defines the interface for speech recognition bridges and
// maps final transcripts onto the small voice-command grammar the assist
// loop understands.
package speech

import (
	"context"
	"strings"
)

// Callback receives transcript results from the speech provider.
type Callback interface {
	// OnPartial is called when an interim/partial transcript is received.
	OnPartial(text string)

	// OnFinal is called when a final transcript is received.
	OnFinal(text string, confidence float64)

	// OnAudio is called with a chunk of synthesized response audio (PCM16)
	// when the provider speaks back. Recognition-only providers never call it.
	OnAudio(chunk []byte)

	// OnError is called when an error occurs during recognition.
	OnError(err error)
}

// Bridge defines the interface for speech providers (Google, mock, etc.).
type Bridge interface {
	// Start begins a streaming recognition session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}

// Intent is a recognized voice command.
type Intent string

const (
	IntentStartTracking  Intent = "start_tracking"
	IntentStopTracking   Intent = "stop_tracking"
	IntentDescribeScreen Intent = "describe_screen"
)

// ParseIntent maps a final transcript onto a voice command. The grammar is
// deliberately loose: matching is case-insensitive substring search so
// "please start tracking now" still triggers. Returns false for anything
// outside the grammar; such transcripts are forwarded but not acted on.
func ParseIntent(transcript string) (Intent, bool) {
	text := strings.ToLower(transcript)
	switch {
	case strings.Contains(text, "stop tracking"):
		return IntentStopTracking, true
	case strings.Contains(text, "start tracking"):
		return IntentStartTracking, true
	case strings.Contains(text, "describe"), strings.Contains(text, "what is on the screen"), strings.Contains(text, "what's on the screen"):
		return IntentDescribeScreen, true
	default:
		return "", false
	}
}
