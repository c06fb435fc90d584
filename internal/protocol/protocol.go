// Package protocol defines the typed message protocol spoken over the
// client websocket. Message kinds form a closed enum so the dispatcher can
// switch over every kind instead of consulting a string-keyed handler map.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies a protocol message type.
type Kind int

const (
	KindUnknown Kind = iota

	// Client to server.
	KindStartSession
	KindStopSession
	KindSetSourceImage
	KindStep
	KindRequestScreenInfo
	KindTrackElement
	KindClearTrackedElement
	KindAudioChunk
	KindDebugStartTracking

	// Server to client.
	KindConnected
	KindError
	KindSessionStarted
	KindSessionStopped
	KindSourceImageSet
	KindStepResponse
	KindScreenInfoResponse
	KindStartTrackingTouchscreen
	KindStopTrackingTouchscreen
	KindTranscriptDelta
	KindAudioDelta
	KindSpeakText
	KindProximityChirp
)

var kindNames = map[Kind]string{
	KindStartSession:             "start_session",
	KindStopSession:              "stop_session",
	KindSetSourceImage:           "set_source_image",
	KindStep:                     "step",
	KindRequestScreenInfo:        "request_screen_info",
	KindTrackElement:             "track_element",
	KindClearTrackedElement:      "clear_tracked_element",
	KindAudioChunk:               "audio_chunk",
	KindDebugStartTracking:       "debug_request_start_tracking_touchscreen",
	KindConnected:                "connected",
	KindError:                    "error",
	KindSessionStarted:           "session_started",
	KindSessionStopped:           "session_stopped",
	KindSourceImageSet:           "source_image_set",
	KindStepResponse:             "step_response",
	KindScreenInfoResponse:       "screen_info_response",
	KindStartTrackingTouchscreen: "start_tracking_touchscreen",
	KindStopTrackingTouchscreen:  "stop_tracking_touchscreen",
	KindTranscriptDelta:          "transcript_delta",
	KindAudioDelta:               "audio_delta",
	KindSpeakText:                "speak_text",
	KindProximityChirp:           "proximity_chirp",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// String returns the wire name of the kind.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// ParseKind resolves a wire name to a Kind.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindByName[name]
	return k, ok
}

// Decode errors.
var (
	ErrUnknownKind      = errors.New("unknown message type")
	ErrMissingSessionID = errors.New("session_id is required")
	ErrMissingImage     = errors.New("image payload is required")
	ErrMissingAudio     = errors.New("audio payload is required")
	ErrMissingIndex     = errors.New("element_index is required")
)

// ClientMessage is a decoded client-to-server message.
type ClientMessage struct {
	Kind         Kind
	SessionID    string
	Image        string // base64 image for set_source_image / step
	Audio        string // base64 PCM16 for audio_chunk
	ElementIndex int    // for track_element
}

type clientEnvelope struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	Image        string `json:"image,omitempty"`
	Audio        string `json:"audio,omitempty"`
	ElementIndex *int   `json:"element_index,omitempty"`
}

// DecodeClient parses and validates a raw client message. Every client
// message must carry a session_id; kind-specific payload fields are
// validated here so handlers receive complete messages only.
func DecodeClient(raw []byte) (ClientMessage, error) {
	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientMessage{}, fmt.Errorf("malformed message: %w", err)
	}

	kind, ok := ParseKind(env.Type)
	if !ok {
		return ClientMessage{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}

	msg := ClientMessage{
		Kind:      kind,
		SessionID: env.SessionID,
		Image:     env.Image,
		Audio:     env.Audio,
	}
	if env.ElementIndex != nil {
		msg.ElementIndex = *env.ElementIndex
	}

	if env.SessionID == "" {
		return ClientMessage{}, ErrMissingSessionID
	}

	switch kind {
	case KindSetSourceImage, KindStep:
		if env.Image == "" {
			return ClientMessage{}, ErrMissingImage
		}
	case KindAudioChunk:
		if env.Audio == "" {
			return ClientMessage{}, ErrMissingAudio
		}
	case KindTrackElement:
		if env.ElementIndex == nil {
			return ClientMessage{}, ErrMissingIndex
		}
	case KindStartSession, KindStopSession, KindRequestScreenInfo,
		KindClearTrackedElement, KindDebugStartTracking:
		// No extra payload.
	default:
		// Server-to-client kinds are not valid from a client.
		return ClientMessage{}, fmt.Errorf("%w: %q is not a client message", ErrUnknownKind, env.Type)
	}

	return msg, nil
}

// ServerMessage is an outbound server-to-client message.
type ServerMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Text      string `json:"text,omitempty"`
	Audio     string `json:"audio,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Encode serializes a server message for the wire.
func (m ServerMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Connected builds the handshake message carrying the allocated session id.
func Connected(sessionID string) ServerMessage {
	return ServerMessage{Type: KindConnected.String(), SessionID: sessionID}
}

// Error builds a protocol-level error event.
func Error(message string) ServerMessage {
	return ServerMessage{Type: KindError.String(), Message: message}
}

// Event builds a payload-free server event of the given kind.
func Event(kind Kind) ServerMessage {
	return ServerMessage{Type: kind.String()}
}

// DataEvent builds a server event carrying a data payload.
func DataEvent(kind Kind, data any) ServerMessage {
	return ServerMessage{Type: kind.String(), Data: data}
}

// Speak builds a speak-text event.
func Speak(text string) ServerMessage {
	return ServerMessage{Type: KindSpeakText.String(), Text: text}
}

// TranscriptDelta builds a transcript delta event from the speech bridge.
func TranscriptDelta(text string) ServerMessage {
	return ServerMessage{Type: KindTranscriptDelta.String(), Text: text}
}

// AudioDelta builds a synthesized-audio delta event (base64 PCM16).
func AudioDelta(audio string) ServerMessage {
	return ServerMessage{Type: KindAudioDelta.String(), Audio: audio}
}
