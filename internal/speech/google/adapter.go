// Package google provides a Google Cloud Speech-to-Text bridge.
package google

import (
	"context"
	"errors"
	"io"

	gspeech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"watvision-service/internal/speech"
)

// Config holds recognition parameters for the streaming session.
type Config struct {
	LanguageCode string
	SampleRateHz int
}

// DefaultConfig returns recognition defaults for the assist audio format:
// PCM16 mono at 24kHz.
func DefaultConfig() Config {
	return Config{
		LanguageCode: "en-US",
		SampleRateHz: 24000,
	}
}

// Bridge implements speech.Bridge using Google Cloud Speech-to-Text.
type Bridge struct {
	client *gspeech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	cb     speech.Callback
	cfg    Config
}

// New creates a new Google speech bridge.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Bridge, error) {
	c, err := gspeech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Bridge{client: c, cfg: cfg}, nil
}

// Start begins a streaming recognition session, sends the initial config,
// and spawns the receive loop that feeds transcripts to the callback.
func (b *Bridge) Start(ctx context.Context, cb speech.Callback) error {
	stream, err := b.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}
	b.stream = stream
	b.cb = cb

	// Send streaming config as the first message
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(b.cfg.SampleRateHz),
					LanguageCode:    b.cfg.LanguageCode,
				},
				InterimResults: true,
			},
		},
	}); err != nil {
		return err
	}

	go b.listen()
	return nil
}

// SendAudio sends PCM16 audio bytes to Google Speech-to-Text.
func (b *Bridge) SendAudio(ctx context.Context, audio []byte) error {
	return b.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close ends the streaming session.
func (b *Bridge) Close() error {
	if b.stream != nil {
		return b.stream.CloseSend()
	}
	return nil
}

// listen receives transcript responses from Google and invokes callbacks
// until the stream ends. Recv returns io.EOF after a clean CloseSend; only
// real transport errors are surfaced.
func (b *Bridge) listen() {
	for {
		resp, err := b.stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				b.cb.OnError(err)
			}
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				b.cb.OnFinal(alt.Transcript, float64(alt.Confidence))
			} else {
				b.cb.OnPartial(alt.Transcript)
			}
		}
	}
}
