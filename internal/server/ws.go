// Package server exposes the service over a duplex websocket plus a small
// HTTP fallback surface. The websocket carries the full protocol; the
// multipart HTTP endpoints address sessions in the same registry for
// callers that cannot hold a socket open.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"watvision-service/internal/config"
	"watvision-service/internal/engine"
	"watvision-service/internal/events"
	"watvision-service/internal/models"
	"watvision-service/internal/observability/metrics"
	"watvision-service/internal/protocol"
	"watvision-service/internal/render"
	"watvision-service/internal/session"
	"watvision-service/internal/speech"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 16,
	// Clients are mobile apps and test harnesses, not browsers with
	// credentials; origin checks add nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// BridgeFactory creates a speech bridge for one session.
type BridgeFactory func(ctx context.Context) (speech.Bridge, error)

// Handler owns the protocol dispatch for all sessions. Sessions are kept
// in a registry so the HTTP fallback endpoints can address them by id.
type Handler struct {
	cfg       *config.Configuration
	engine    *engine.Engine
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	newBridge BridgeFactory

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewHandler wires the protocol handler.
func NewHandler(cfg *config.Configuration, eng *engine.Engine, pub *events.Publisher, m *metrics.Metrics, logger zerolog.Logger, newBridge BridgeFactory) *Handler {
	return &Handler{
		cfg:       cfg,
		engine:    eng,
		publisher: pub,
		metrics:   m,
		logger:    logger,
		newBridge: newBridge,
		sessions:  make(map[string]*session.Session),
	}
}

func (h *Handler) registerSession(s *session.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID()] = s
}

func (h *Handler) unregisterSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

func (h *Handler) getSession(id string) (*session.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

// getOrCreateSession supports the HTTP fallback, where the client chooses
// its own session id instead of receiving one in a handshake.
func (h *Handler) getOrCreateSession(id string) *session.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		return s
	}
	s := session.New(id)
	h.sessions[id] = s
	h.metrics.RecordSessionStart()
	return s
}

// proximityPayload is the data body of a proximity_chirp event.
type proximityPayload struct {
	Finger   models.Point    `json:"finger"`
	Target   models.Point    `json:"target"`
	Distance float64         `json:"distance"`
	Cue      models.ChirpCue `json:"cue"`
}

// conn is the per-connection state: the session, the outbound queue, and
// the optional speech bridge.
type conn struct {
	h      *Handler
	ws     *websocket.Conn
	sess   *session.Session
	out    chan protocol.ServerMessage
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	bridge speech.Bridge
}

// ServeWS upgrades the request and runs the session until the client
// disconnects.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sessionID := uuid.NewString()
	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{
		h:      h,
		ws:     ws,
		sess:   session.New(sessionID),
		out:    make(chan protocol.ServerMessage, 64),
		logger: h.logger.With().Str("session_id", sessionID).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}

	h.registerSession(c.sess)
	h.metrics.RecordSessionStart()
	c.logger.Info().Msg("session connected")

	go c.writeLoop()
	c.send(protocol.Connected(sessionID))
	c.readLoop()

	cancel()
	c.closeBridge()
	_ = ws.Close()
	h.unregisterSession(sessionID)
	h.metrics.RecordSessionEnd()
	c.logger.Info().Msg("session disconnected")
}

// writeLoop is the only goroutine writing to the socket. Step workers and
// speech callbacks hand their messages over the channel. The channel is
// never closed; the loop exits when the connection context is canceled,
// so late callbacks can still enqueue without panicking.
func (c *conn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.out:
			data, err := msg.Encode()
			if err != nil {
				c.logger.Error().Err(err).Str("type", msg.Type).Msg("encode outbound message")
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}
		}
	}
}

// send queues an outbound message; drops it when the client cannot keep
// up rather than stalling the read loop.
func (c *conn) send(msg protocol.ServerMessage) {
	select {
	case c.out <- msg:
	case <-c.ctx.Done():
	default:
		c.logger.Warn().Str("type", msg.Type).Msg("outbound queue full, dropping message")
	}
}

func (c *conn) sendError(err error) {
	c.send(protocol.Error(err.Error()))
}

func (c *conn) readLoop() {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("read failed")
			}
			return
		}

		msg, err := protocol.DecodeClient(raw)
		if err != nil {
			c.sendError(err)
			continue
		}
		if msg.SessionID != c.sess.ID() {
			c.sendError(fmt.Errorf("unknown session %q", msg.SessionID))
			continue
		}

		c.dispatch(msg)
	}
}

func (c *conn) dispatch(msg protocol.ClientMessage) {
	switch msg.Kind {
	case protocol.KindStartSession:
		c.handleStartSession()
	case protocol.KindStopSession:
		c.handleStopSession()
	case protocol.KindSetSourceImage:
		c.handleSetSourceImage(msg.Image)
	case protocol.KindStep:
		c.handleStep(msg.Image)
	case protocol.KindRequestScreenInfo:
		c.handleScreenInfo(false)
	case protocol.KindTrackElement:
		if err := c.sess.TrackElement(msg.ElementIndex); err != nil {
			c.sendError(err)
		}
	case protocol.KindClearTrackedElement:
		c.sess.ClearTrackedElement()
	case protocol.KindAudioChunk:
		c.handleAudioChunk(msg.Audio)
	case protocol.KindDebugStartTracking:
		c.startTracking()
	default:
		c.sendError(fmt.Errorf("unhandled message type %q", msg.Kind))
	}
}

func (c *conn) handleStartSession() {
	if c.h.newBridge != nil && c.bridge == nil {
		bridge, err := c.h.newBridge(c.ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("speech bridge unavailable")
		} else if err := bridge.Start(c.ctx, c); err != nil {
			c.logger.Error().Err(err).Msg("speech bridge start failed")
		} else {
			c.bridge = bridge
		}
	}
	c.send(protocol.Event(protocol.KindSessionStarted))
}

func (c *conn) handleStopSession() {
	c.sess.Reset()
	c.closeBridge()
	c.send(protocol.Event(protocol.KindSessionStopped))
}

func (c *conn) handleSetSourceImage(data string) {
	img, err := c.decodeImage(data)
	if err != nil {
		c.sendError(err)
		return
	}

	elements, err := c.h.engine.ExtractElements(c.ctx, img)
	if err != nil {
		c.sendError(err)
		return
	}

	epoch := c.sess.SetSourceImage(img)
	c.sess.SetTextElementsIfFresh(epoch, elements)
	c.logger.Info().Int("elements", len(elements)).Msg("source image captured")
	c.send(protocol.Event(protocol.KindSourceImageSet))
}

func (c *conn) handleStep(data string) {
	in, ok, err := c.sess.BeginStep()
	if err != nil {
		c.sendError(err)
		return
	}
	if !ok {
		// A step is already in flight; this frame is dropped, not queued.
		c.h.metrics.RecordStepSkipped()
		return
	}

	live, err := c.decodeImage(data)
	if err != nil {
		c.sess.CompleteStep(in.Epoch)
		c.sendError(err)
		return
	}

	go c.runStep(live, in)
}

// runStep executes the vision pipeline off the read loop so control
// messages stay responsive while a frame is being processed.
func (c *conn) runStep(live image.Image, in session.StepInput) {
	start := time.Now()
	res, err := c.h.engine.ComputeStep(c.ctx, live, in)

	fresh := c.sess.CompleteStep(in.Epoch)
	if !fresh {
		// State changed while the step ran; applying the result would
		// leak feedback from a world that no longer exists.
		c.h.metrics.RecordStepStale()
		return
	}

	duration := time.Since(start)
	if err != nil {
		c.h.metrics.RecordStep(err, duration.Seconds(), false)
		c.logger.Warn().Err(err).Msg("step failed")
		c.sendError(err)
		return
	}

	// Speech dedup is applied here, after freshness is known, so stale
	// results never touch the dedup memory.
	text := ""
	present := res.TextUnderFinger != nil
	if present {
		text = res.TextUnderFinger.Text
	}
	if c.sess.UpdateSpokenText(text, present) {
		res.SpeakText = text
	}

	c.h.metrics.RecordStep(nil, duration.Seconds(), present)
	c.send(protocol.DataEvent(protocol.KindStepResponse, res))

	if res.SpeakText != "" {
		c.speak(res.SpeakText, "text_under_finger")
	}
	if res.Chirp != nil && res.FingerSource != nil && res.TrackedElementCenter != nil && res.DistanceToTrackedElement != nil {
		c.send(protocol.DataEvent(protocol.KindProximityChirp, proximityPayload{
			Finger:   *res.FingerSource,
			Target:   *res.TrackedElementCenter,
			Distance: *res.DistanceToTrackedElement,
			Cue:      *res.Chirp,
		}))
	}

	event := models.StepEvent{
		EventType:      "step",
		SessionID:      c.sess.ID(),
		Timestamp:      time.Now().UnixMilli(),
		AlignmentValid: res.AlignmentValid,
		FingerDetected: res.FingerLive != nil,
		DurationMs:     duration.Milliseconds(),
	}
	if present {
		event.TextUnderFinger = text
	}
	if res.DistanceToTrackedElement != nil {
		event.Distance = *res.DistanceToTrackedElement
	}
	_ = c.h.publisher.PublishStep(c.ctx, c.sess.ID(), event)
}

func (c *conn) handleAudioChunk(data string) {
	audio, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		c.sendError(fmt.Errorf("malformed audio payload: %w", err))
		return
	}
	c.h.metrics.RecordAudioReceived(len(audio))

	if c.bridge == nil {
		c.sendError(errors.New("no active speech session, send start_session first"))
		return
	}
	if err := c.bridge.SendAudio(c.ctx, audio); err != nil {
		c.logger.Warn().Err(err).Msg("speech bridge rejected audio")
	}
}

// handleScreenInfo re-queries the vision collaborator: extraction replaces
// the session's element batch wholesale, then the description is built
// from the fresh batch.
func (c *conn) handleScreenInfo(speak bool) {
	source, epoch := c.sess.SourceSnapshot()
	if source == nil {
		c.sendError(session.ErrNoSourceImage)
		return
	}

	elements, err := c.h.engine.ExtractElements(c.ctx, source)
	if err != nil {
		c.sendError(err)
		return
	}
	if !c.sess.SetTextElementsIfFresh(epoch, elements) {
		// A recapture landed while extraction ran; the batch and the
		// description below would both refer to the old source.
		c.sendError(session.ErrSourceChanged)
		return
	}

	info, err := c.h.engine.DescribeScreen(c.ctx, source, elements)
	if err != nil {
		c.sendError(err)
		return
	}
	c.send(protocol.DataEvent(protocol.KindScreenInfoResponse, info))
	if speak && info.Description != "" {
		c.speak(info.Description, "voice_command")
	}
}

func (c *conn) startTracking() {
	if err := c.sess.StartTracking(); err != nil {
		c.sendError(err)
		return
	}
	c.send(protocol.Event(protocol.KindStartTrackingTouchscreen))
}

func (c *conn) stopTracking() {
	c.sess.StopTracking()
	c.send(protocol.Event(protocol.KindStopTrackingTouchscreen))
}

func (c *conn) speak(text, source string) {
	c.h.metrics.RecordSpeak()
	c.send(protocol.Speak(text))
	_ = c.h.publisher.PublishSpeech(c.ctx, c.sess.ID(), models.SpeechEvent{
		EventType: "speech",
		SessionID: c.sess.ID(),
		Timestamp: time.Now().UnixMilli(),
		Text:      text,
		Source:    source,
	})
}

func (c *conn) closeBridge() {
	if c.bridge != nil {
		_ = c.bridge.Close()
		c.bridge = nil
	}
}

// decodeImage decodes a base64 image payload, bounding its size before
// decompression.
func (c *conn) decodeImage(data string) (image.Image, error) {
	maxEncoded := (c.h.cfg.Service.MaxImageBytes * 4) / 3
	if int64(len(data)) > maxEncoded+4 {
		return nil, fmt.Errorf("image exceeds %d byte limit", c.h.cfg.Service.MaxImageBytes)
	}
	return render.DecodeBase64Image(data)
}

// OnPartial implements speech.Callback.
func (c *conn) OnPartial(text string) {
	c.send(protocol.TranscriptDelta(text))
}

// OnFinal implements speech.Callback. Final transcripts are forwarded and
// matched against the voice-command grammar.
func (c *conn) OnFinal(text string, confidence float64) {
	c.send(protocol.TranscriptDelta(text))

	intent, ok := speech.ParseIntent(text)
	if !ok {
		return
	}
	c.h.metrics.RecordVoiceCommand(string(intent))
	c.logger.Info().Str("intent", string(intent)).Float64("confidence", confidence).Msg("voice command")

	switch intent {
	case speech.IntentStartTracking:
		c.startTracking()
	case speech.IntentStopTracking:
		c.stopTracking()
	case speech.IntentDescribeScreen:
		c.handleScreenInfo(true)
	}
}

// OnAudio implements speech.Callback. Synthesized response audio is
// relayed to the client as base64 deltas for local playback.
func (c *conn) OnAudio(chunk []byte) {
	c.send(protocol.AudioDelta(base64.StdEncoding.EncodeToString(chunk)))
}

// OnError implements speech.Callback.
func (c *conn) OnError(err error) {
	c.logger.Warn().Err(err).Msg("speech bridge error")
}
