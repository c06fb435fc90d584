// Package session owns all mutable per-connection state: the captured
// source image, the extracted text elements, the tracking flags, and the
// guards that keep frame processing strictly serial.
package session

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"watvision-service/internal/models"
)

// State is the lifecycle state of a session.
type State int

const (
	// StateIdle - connected, no source image captured yet.
	StateIdle State = iota
	// StateSourceCaptured - a source image exists, tracking is off.
	StateSourceCaptured
	// StateTracking - frames are being aligned against the source image.
	StateTracking
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSourceCaptured:
		return "SOURCE_CAPTURED"
	case StateTracking:
		return "TRACKING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for invalid transitions and requests.
var (
	ErrNoSourceImage          = errors.New("no source image captured")
	ErrNotTracking            = errors.New("session is not tracking")
	ErrNoTextElements         = errors.New("no text elements extracted")
	ErrElementIndexOutOfRange = errors.New("element index out of range")
	ErrSourceChanged          = errors.New("source image changed during extraction")
)

// Session is the per-connection state machine. Thread-safe; the transport
// may deliver control messages while a step computation is outstanding.
//
// State transitions:
//
//	IDLE → SOURCE_CAPTURED → TRACKING
//	            ↑    │            │
//	            │    └────────────┘ StartTracking / StopTracking
//	            └── SetSourceImage (from any state)
//
// Stopping tracking preserves the source image so tracking can restart
// without recapture; only Reset and SetSourceImage replace it.
type Session struct {
	mu sync.Mutex

	id    string
	state State

	sourceImage  image.Image
	textElements []models.TextElement
	trackedIndex int // -1 when no element is tracked

	lastSpokenText string

	// stepInFlight enforces at-most-one outstanding alignment per session.
	// epoch increments on every reset/recapture/stop so results of steps
	// started before the change are discarded instead of applied.
	stepInFlight bool
	epoch        uint64
}

// New creates a session in the idle state.
func New(id string) *Session {
	return &Session{
		id:           id,
		state:        StateIdle,
		trackedIndex: -1,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetSourceImage stores a new source image and invalidates everything
// derived from the previous one: text elements, the tracked element, and
// the speech dedup state. Tracking, if active, is implicitly stopped since
// it must be re-validated against the new source. Returns the new epoch;
// pass it to SetTextElementsIfFresh so a batch extracted from this image
// cannot attach to a later one.
func (s *Session) SetSourceImage(img image.Image) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sourceImage = img
	s.textElements = nil
	s.trackedIndex = -1
	s.lastSpokenText = ""
	s.state = StateSourceCaptured
	s.invalidateInFlightLocked()
	return s.epoch
}

// SourceImage returns the captured source image, or nil.
func (s *Session) SourceImage() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceImage
}

// SourceSnapshot returns the captured source image together with the
// epoch it belongs to. Callers running extraction outside the lock hand
// the epoch back via SetTextElementsIfFresh.
func (s *Session) SourceSnapshot() (image.Image, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceImage, s.epoch
}

// StartTracking transitions to TRACKING. Fails with ErrNoSourceImage when
// no source image has been captured; the state is left unchanged.
func (s *Session) StartTracking() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sourceImage == nil {
		return ErrNoSourceImage
	}
	s.state = StateTracking
	return nil
}

// StopTracking transitions back to SOURCE_CAPTURED, preserving the source
// image. Any in-flight step result is discarded when it arrives.
// Idempotent; a no-op in IDLE.
func (s *Session) StopTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTracking {
		s.state = StateSourceCaptured
	}
	s.invalidateInFlightLocked()
}

// SetTextElementsIfFresh replaces the extraction batch wholesale, but only
// when the source image the batch was extracted from is still current.
// Extraction runs outside the session lock, so a recapture can land in the
// middle; attaching the old batch to the new source would hand the user
// elements that no longer exist. Returns false when the batch is stale.
func (s *Session) SetTextElementsIfFresh(epoch uint64, elements []models.TextElement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return false
	}
	s.textElements = elements
	return true
}

// TextElements returns a copy of the current extraction batch.
func (s *Session) TextElements() []models.TextElement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TextElement, len(s.textElements))
	copy(out, s.textElements)
	return out
}

// TrackElement locks feedback onto one element of the current batch. A
// second call overwrites the previous target.
func (s *Session) TrackElement(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.textElements) == 0 {
		return ErrNoTextElements
	}
	if index < 0 || index >= len(s.textElements) {
		return fmt.Errorf("%w: %d (have %d elements)", ErrElementIndexOutOfRange, index, len(s.textElements))
	}
	s.trackedIndex = index
	return nil
}

// ClearTrackedElement clears the element lock. Idempotent.
func (s *Session) ClearTrackedElement() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackedIndex = -1
}

// TrackedElementIndex returns the locked element index and whether one is set.
func (s *Session) TrackedElementIndex() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trackedIndex < 0 {
		return 0, false
	}
	return s.trackedIndex, true
}

// StepInput is the consistent snapshot a step computation works from.
type StepInput struct {
	SessionID    string
	Source       image.Image
	TextElements []models.TextElement
	TrackedIndex int // -1 when no element is tracked
	Epoch        uint64
}

// BeginStep claims the step slot. Returns ErrNotTracking outside TRACKING.
// When a previous step is still in flight the frame is dropped, not
// queued: ok is false and no state changes.
func (s *Session) BeginStep() (StepInput, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateTracking {
		return StepInput{}, false, ErrNotTracking
	}
	if s.stepInFlight {
		return StepInput{}, false, nil
	}

	s.stepInFlight = true
	elements := make([]models.TextElement, len(s.textElements))
	copy(elements, s.textElements)

	return StepInput{
		SessionID:    s.id,
		Source:       s.sourceImage,
		TextElements: elements,
		TrackedIndex: s.trackedIndex,
		Epoch:        s.epoch,
	}, true, nil
}

// CompleteStep releases the step slot. Returns true when the result is
// still fresh; false when the session was reset, recaptured, or stopped
// while the step was in flight, in which case the caller must discard it.
func (s *Session) CompleteStep(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		// invalidateInFlightLocked already released the slot.
		return false
	}
	s.stepInFlight = false
	return true
}

// UpdateSpokenText applies the speech dedup policy and reports whether the
// text should be spoken. The remembered text clears when no element is
// under the finger so the same text re-announces after the finger leaves
// and returns.
func (s *Session) UpdateSpokenText(text string, present bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !present {
		s.lastSpokenText = ""
		return false
	}
	if text == s.lastSpokenText {
		return false
	}
	s.lastSpokenText = text
	return true
}

// Reset clears all per-session state except identity. Idempotent; used on
// error and explicit session stop.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateIdle
	s.sourceImage = nil
	s.textElements = nil
	s.trackedIndex = -1
	s.lastSpokenText = ""
	s.invalidateInFlightLocked()
}

func (s *Session) invalidateInFlightLocked() {
	s.epoch++
	s.stepInFlight = false
}
