package speech

import "testing"

func TestParseIntent(t *testing.T) {
	tests := []struct {
		transcript string
		intent     Intent
		ok         bool
	}{
		{"start tracking", IntentStartTracking, true},
		{"please Start Tracking now", IntentStartTracking, true},
		{"stop tracking", IntentStopTracking, true},
		{"can you stop tracking the screen", IntentStopTracking, true},
		{"describe the screen", IntentDescribeScreen, true},
		{"what is on the screen", IntentDescribeScreen, true},
		{"what's on the screen right now", IntentDescribeScreen, true},
		{"order a large coffee", "", false},
		{"", "", false},
		// "stop tracking" wins over "start tracking" when both appear,
		// since stopping is the safer interpretation.
		{"start tracking no wait stop tracking", IntentStopTracking, true},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			intent, ok := ParseIntent(tt.transcript)
			if ok != tt.ok || intent != tt.intent {
				t.Errorf("ParseIntent(%q) = (%q, %v), want (%q, %v)", tt.transcript, intent, ok, tt.intent, tt.ok)
			}
		})
	}
}
