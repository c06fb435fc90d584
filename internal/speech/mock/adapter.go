// Package mock provides a mock speech bridge for testing without cloud
// credentials. It simulates progressive partial transcripts and exactly one
// final transcript per utterance.
package mock

import (
	"context"
	"sync"
	"time"

	"watvision-service/internal/speech"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
// Audio chunks, when scripted, play back as synthesized response audio after
// the final transcript.
type SimulatedUtterance struct {
	Partials   []string
	Final      string
	Confidence float64
	Audio      [][]byte
}

// DefaultUtterances provides sample utterances for simulation, covering the
// voice-command grammar plus out-of-grammar speech.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"start", "start track"},
		Final:      "start tracking",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"what is", "what is on the"},
		Final:      "what is on the screen",
		Confidence: 0.92,
	},
	{
		Partials:   []string{"stop"},
		Final:      "stop tracking",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"where is", "where is the start"},
		Final:      "where is the start order button",
		Confidence: 0.88,
	},
}

// Bridge implements speech.Bridge with mock responses. One partial is
// emitted per audio chunk; once partials are exhausted the final transcript
// fires, mimicking silence detection.
type Bridge struct {
	mu           sync.Mutex
	cb           speech.Callback
	utterance    SimulatedUtterance
	partialIndex int
	finalSent    bool
	closed       bool

	// Delay before each callback fires; shorten in tests.
	Latency time.Duration
}

var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a mock bridge, cycling through DefaultUtterances.
func New() *Bridge {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	return &Bridge{
		utterance: DefaultUtterances[idx],
		Latency:   50 * time.Millisecond,
	}
}

// NewWithUtterance creates a mock bridge with a fixed script.
func NewWithUtterance(u SimulatedUtterance) *Bridge {
	return &Bridge{utterance: u, Latency: time.Millisecond}
}

// Start begins a mock recognition session.
func (b *Bridge) Start(ctx context.Context, cb speech.Callback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cb = cb
	return nil
}

// SendAudio simulates receiving audio and triggers progressive partials.
func (b *Bridge) SendAudio(ctx context.Context, audio []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.cb == nil {
		return nil
	}

	if b.partialIndex < len(b.utterance.Partials) {
		partial := b.utterance.Partials[b.partialIndex]
		b.partialIndex++

		go func(text string) {
			time.Sleep(b.Latency)
			b.mu.Lock()
			cb, closed := b.cb, b.closed
			b.mu.Unlock()
			if !closed && cb != nil {
				cb.OnPartial(text)
			}
		}(partial)
	} else if !b.finalSent {
		b.finalSent = true

		go func() {
			time.Sleep(b.Latency)
			b.mu.Lock()
			cb, closed, utt := b.cb, b.closed, b.utterance
			b.mu.Unlock()
			if !closed && cb != nil {
				deliverFinal(cb, utt)
			}
		}()
	}

	return nil
}

// deliverFinal fires the final transcript followed by any scripted
// synthesized-audio chunks.
func deliverFinal(cb speech.Callback, utt SimulatedUtterance) {
	cb.OnFinal(utt.Final, utt.Confidence)
	for _, chunk := range utt.Audio {
		cb.OnAudio(chunk)
	}
}

// Close ends the mock session. If the final transcript has not fired yet
// (stream ended early), it fires now.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if !b.finalSent && b.cb != nil {
		b.finalSent = true
		cb, utt := b.cb, b.utterance
		go func() {
			time.Sleep(b.Latency)
			deliverFinal(cb, utt)
		}()
	}

	return nil
}
