package session

import (
	"errors"
	"image"
	"testing"

	"watvision-service/internal/models"
)

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func testElements() []models.TextElement {
	return []models.TextElement{
		{Text: "Start Order", BoundingBox: models.Quad{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}, {X: 10, Y: 50}}},
		{Text: "Menu", BoundingBox: models.Quad{{X: 60, Y: 10}, {X: 100, Y: 10}, {X: 100, Y: 50}, {X: 60, Y: 50}}},
	}
}

func TestLifecycleTransitions(t *testing.T) {
	s := New("sess-1")

	if s.State() != StateIdle {
		t.Fatalf("expected IDLE, got %s", s.State())
	}
	if err := s.StartTracking(); !errors.Is(err, ErrNoSourceImage) {
		t.Fatalf("expected ErrNoSourceImage, got %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("failed StartTracking must not change state, got %s", s.State())
	}

	s.SetSourceImage(testImage())
	if s.State() != StateSourceCaptured {
		t.Fatalf("expected SOURCE_CAPTURED, got %s", s.State())
	}

	if err := s.StartTracking(); err != nil {
		t.Fatalf("StartTracking failed: %v", err)
	}
	if s.State() != StateTracking {
		t.Fatalf("expected TRACKING, got %s", s.State())
	}

	s.StopTracking()
	if s.State() != StateSourceCaptured {
		t.Fatalf("expected SOURCE_CAPTURED after stop, got %s", s.State())
	}
	if s.SourceImage() == nil {
		t.Error("StopTracking must preserve the source image")
	}

	// Tracking can resume without recapture.
	if err := s.StartTracking(); err != nil {
		t.Fatalf("restart tracking failed: %v", err)
	}
}

func TestSetSourceImageInvalidatesDerivedState(t *testing.T) {
	s := New("sess-1")
	epoch := s.SetSourceImage(testImage())
	s.SetTextElementsIfFresh(epoch, testElements())
	if err := s.TrackElement(1); err != nil {
		t.Fatalf("TrackElement failed: %v", err)
	}
	if err := s.StartTracking(); err != nil {
		t.Fatalf("StartTracking failed: %v", err)
	}

	s.SetSourceImage(testImage())

	if s.State() != StateSourceCaptured {
		t.Errorf("recapture while tracking must stop tracking, got %s", s.State())
	}
	if got := s.TextElements(); len(got) != 0 {
		t.Errorf("recapture must clear text elements, got %d", len(got))
	}
	if _, ok := s.TrackedElementIndex(); ok {
		t.Error("recapture must clear the tracked element")
	}
}

func TestStaleElementBatchDiscardedAfterRecapture(t *testing.T) {
	s := New("sess-1")

	// Extraction runs outside the lock, so a recapture can land between
	// reading the source and attaching its element batch. The batch from
	// the first source must not attach to the second.
	epochA := s.SetSourceImage(testImage())
	elemsA := []models.TextElement{
		{Text: "A-only", BoundingBox: models.Quad{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}, {X: 10, Y: 50}}},
	}

	s.SetSourceImage(testImage())

	if s.SetTextElementsIfFresh(epochA, elemsA) {
		t.Fatal("batch from the previous source must be rejected")
	}
	if got := s.TextElements(); len(got) != 0 {
		t.Fatalf("stale elements attached to the new source: %+v", got)
	}

	// A batch extracted from the current source still attaches.
	_, epochB := s.SourceSnapshot()
	if !s.SetTextElementsIfFresh(epochB, testElements()) {
		t.Fatal("fresh batch must attach")
	}
	if got := s.TextElements(); len(got) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(got))
	}
}

func TestTrackElementValidation(t *testing.T) {
	s := New("sess-1")
	epoch := s.SetSourceImage(testImage())

	if err := s.TrackElement(0); !errors.Is(err, ErrNoTextElements) {
		t.Fatalf("expected ErrNoTextElements, got %v", err)
	}

	s.SetTextElementsIfFresh(epoch, testElements())
	if err := s.TrackElement(2); !errors.Is(err, ErrElementIndexOutOfRange) {
		t.Fatalf("expected ErrElementIndexOutOfRange, got %v", err)
	}
	if err := s.TrackElement(-1); !errors.Is(err, ErrElementIndexOutOfRange) {
		t.Fatalf("expected ErrElementIndexOutOfRange for negative index, got %v", err)
	}

	if err := s.TrackElement(0); err != nil {
		t.Fatalf("TrackElement(0) failed: %v", err)
	}
	// A second lock overwrites the first.
	if err := s.TrackElement(1); err != nil {
		t.Fatalf("TrackElement(1) failed: %v", err)
	}
	idx, ok := s.TrackedElementIndex()
	if !ok || idx != 1 {
		t.Fatalf("expected tracked index 1, got %d ok=%v", idx, ok)
	}

	s.ClearTrackedElement()
	s.ClearTrackedElement() // idempotent
	if _, ok := s.TrackedElementIndex(); ok {
		t.Error("expected no tracked element after clear")
	}
}

func TestBeginStepInFlightGuard(t *testing.T) {
	s := New("sess-1")
	epoch := s.SetSourceImage(testImage())
	s.SetTextElementsIfFresh(epoch, testElements())
	if err := s.StartTracking(); err != nil {
		t.Fatalf("StartTracking failed: %v", err)
	}

	in, ok, err := s.BeginStep()
	if err != nil || !ok {
		t.Fatalf("BeginStep failed: ok=%v err=%v", ok, err)
	}
	if in.Source == nil || len(in.TextElements) != 2 || in.TrackedIndex != -1 {
		t.Fatalf("unexpected step input: %+v", in)
	}

	// Frames arriving while a step is outstanding are dropped, not queued.
	if _, ok, err := s.BeginStep(); err != nil || ok {
		t.Fatalf("expected in-flight drop, got ok=%v err=%v", ok, err)
	}

	if !s.CompleteStep(in.Epoch) {
		t.Fatal("expected fresh result")
	}

	if _, ok, err := s.BeginStep(); err != nil || !ok {
		t.Fatalf("slot must free after completion, got ok=%v err=%v", ok, err)
	}
}

func TestBeginStepRequiresTracking(t *testing.T) {
	s := New("sess-1")
	if _, _, err := s.BeginStep(); !errors.Is(err, ErrNotTracking) {
		t.Fatalf("expected ErrNotTracking in IDLE, got %v", err)
	}
	s.SetSourceImage(testImage())
	if _, _, err := s.BeginStep(); !errors.Is(err, ErrNotTracking) {
		t.Fatalf("expected ErrNotTracking in SOURCE_CAPTURED, got %v", err)
	}
}

func TestStaleStepDiscardedAfterReset(t *testing.T) {
	cases := []struct {
		name       string
		invalidate func(s *Session)
	}{
		{"reset", func(s *Session) { s.Reset() }},
		{"stop tracking", func(s *Session) { s.StopTracking() }},
		{"recapture", func(s *Session) { s.SetSourceImage(testImage()) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New("sess-1")
			s.SetSourceImage(testImage())
			if err := s.StartTracking(); err != nil {
				t.Fatalf("StartTracking failed: %v", err)
			}

			in, ok, err := s.BeginStep()
			if err != nil || !ok {
				t.Fatalf("BeginStep failed: ok=%v err=%v", ok, err)
			}

			tc.invalidate(s)

			if s.CompleteStep(in.Epoch) {
				t.Error("result from before invalidation must be discarded")
			}
		})
	}
}

func TestSpeechDedup(t *testing.T) {
	s := New("sess-1")

	if !s.UpdateSpokenText("Start Order", true) {
		t.Error("first announcement should speak")
	}
	if s.UpdateSpokenText("Start Order", true) {
		t.Error("repeat under the same element should not speak")
	}
	if !s.UpdateSpokenText("Menu", true) {
		t.Error("different text should speak")
	}

	// Finger lifts: dedup memory clears.
	if s.UpdateSpokenText("", false) {
		t.Error("no element under finger never speaks")
	}
	if !s.UpdateSpokenText("Menu", true) {
		t.Error("returning to the same element after leaving should speak again")
	}
}

func TestResetIdempotent(t *testing.T) {
	s := New("sess-1")
	epoch := s.SetSourceImage(testImage())
	s.SetTextElementsIfFresh(epoch, testElements())
	if err := s.StartTracking(); err != nil {
		t.Fatalf("StartTracking failed: %v", err)
	}

	s.Reset()
	s.Reset()

	if s.State() != StateIdle {
		t.Errorf("expected IDLE after reset, got %s", s.State())
	}
	if s.SourceImage() != nil {
		t.Error("reset must drop the source image")
	}
	if s.ID() != "sess-1" {
		t.Error("reset must preserve identity")
	}
}

func TestStateString(t *testing.T) {
	if StateIdle.String() != "IDLE" || StateTracking.String() != "TRACKING" {
		t.Error("unexpected state names")
	}
	if State(42).String() != "UNKNOWN(42)" {
		t.Errorf("unexpected unknown rendering: %s", State(42))
	}
}
