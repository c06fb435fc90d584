package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeClient_ValidMessages(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ClientMessage
	}{
		{
			"start session",
			`{"type":"start_session","session_id":"abc"}`,
			ClientMessage{Kind: KindStartSession, SessionID: "abc"},
		},
		{
			"set source image",
			`{"type":"set_source_image","session_id":"abc","image":"aGVsbG8="}`,
			ClientMessage{Kind: KindSetSourceImage, SessionID: "abc", Image: "aGVsbG8="},
		},
		{
			"step",
			`{"type":"step","session_id":"abc","image":"ZnJhbWU="}`,
			ClientMessage{Kind: KindStep, SessionID: "abc", Image: "ZnJhbWU="},
		},
		{
			"track element",
			`{"type":"track_element","session_id":"abc","element_index":2}`,
			ClientMessage{Kind: KindTrackElement, SessionID: "abc", ElementIndex: 2},
		},
		{
			"track element zero index",
			`{"type":"track_element","session_id":"abc","element_index":0}`,
			ClientMessage{Kind: KindTrackElement, SessionID: "abc", ElementIndex: 0},
		},
		{
			"audio chunk",
			`{"type":"audio_chunk","session_id":"abc","audio":"cGNt"}`,
			ClientMessage{Kind: KindAudioChunk, SessionID: "abc", Audio: "cGNt"},
		},
		{
			"debug start tracking",
			`{"type":"debug_request_start_tracking_touchscreen","session_id":"abc"}`,
			ClientMessage{Kind: KindDebugStartTracking, SessionID: "abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClient([]byte(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"unknown type", `{"type":"bogus","session_id":"abc"}`, ErrUnknownKind},
		{"missing session id", `{"type":"step","image":"eA=="}`, ErrMissingSessionID},
		{"step without image", `{"type":"step","session_id":"abc"}`, ErrMissingImage},
		{"source without image", `{"type":"set_source_image","session_id":"abc"}`, ErrMissingImage},
		{"audio chunk without audio", `{"type":"audio_chunk","session_id":"abc"}`, ErrMissingAudio},
		{"track element without index", `{"type":"track_element","session_id":"abc"}`, ErrMissingIndex},
		{"server kind from client", `{"type":"step_response","session_id":"abc"}`, ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClient([]byte(tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecodeClient_MalformedJSON(t *testing.T) {
	if _, err := DecodeClient([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestKind_RoundTrip(t *testing.T) {
	for kind, name := range map[Kind]string{
		KindStartSession:             "start_session",
		KindStepResponse:             "step_response",
		KindStartTrackingTouchscreen: "start_tracking_touchscreen",
		KindProximityChirp:           "proximity_chirp",
	} {
		if kind.String() != name {
			t.Errorf("expected %s, got %s", name, kind.String())
		}
		parsed, ok := ParseKind(name)
		if !ok || parsed != kind {
			t.Errorf("ParseKind(%s) = %v, %v", name, parsed, ok)
		}
	}
}

func TestServerMessage_Encode(t *testing.T) {
	msg := Connected("session-1")
	raw, err := msg.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("emitted invalid JSON: %v", err)
	}
	if decoded["type"] != "connected" {
		t.Errorf("expected type 'connected', got %v", decoded["type"])
	}
	if decoded["session_id"] != "session-1" {
		t.Errorf("expected session id 'session-1', got %v", decoded["session_id"])
	}
}

func TestServerMessage_OmitsEmptyFields(t *testing.T) {
	raw, err := Event(KindSessionStopped).Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("emitted invalid JSON: %v", err)
	}
	if len(decoded) != 1 {
		t.Errorf("expected only the type field, got %v", decoded)
	}
}
