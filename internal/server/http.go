package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"watvision-service/internal/render"
	"watvision-service/internal/session"
)

// apiResponse is the envelope for every HTTP fallback response.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewRouter constructs the HTTP router: the websocket mount plus multipart
// fallback endpoints for callers that cannot hold a socket open. Fallback
// sessions live in the same registry as websocket sessions, so the same
// state machine and guards apply.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get("/ws", h.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/set_source_image", h.handleSetSourceImageHTTP)
		r.Post("/step", h.handleStepHTTP)
		r.Post("/explain_screen", h.handleExplainScreenHTTP)
	})

	return r
}

// parseImageForm extracts the session_id field and the optional image file
// from a multipart form, bounding the upload size.
func (h *Handler) parseImageForm(r *http.Request) (sessionID string, img image.Image, err error) {
	if err := r.ParseMultipartForm(h.cfg.Service.MaxImageBytes); err != nil {
		return "", nil, fmt.Errorf("malformed multipart form: %w", err)
	}

	sessionID = r.FormValue("session_id")
	if sessionID == "" {
		return "", nil, errors.New("session_id is required")
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return sessionID, nil, nil
		}
		return "", nil, fmt.Errorf("image field: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, h.cfg.Service.MaxImageBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(raw)) > h.cfg.Service.MaxImageBytes {
		return "", nil, fmt.Errorf("image exceeds %d byte limit", h.cfg.Service.MaxImageBytes)
	}

	img, err = render.DecodeImageBytes(raw)
	if err != nil {
		return "", nil, err
	}
	return sessionID, img, nil
}

// handleSetSourceImageHTTP captures a source image for the given session,
// creating the session if the caller has not used it before.
func (h *Handler) handleSetSourceImageHTTP(w http.ResponseWriter, r *http.Request) {
	sid, img, err := h.parseImageForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: err.Error()})
		return
	}
	if img == nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "image file is required"})
		return
	}

	elements, err := h.engine.ExtractElements(r.Context(), img)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, apiResponse{Error: err.Error()})
		return
	}

	sess := h.getOrCreateSession(sid)
	epoch := sess.SetSourceImage(img)
	sess.SetTextElementsIfFresh(epoch, elements)

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{
		"text_elements": elements,
	}})
}

// handleStepHTTP runs one tracking step for a fallback session. Tracking
// is started implicitly since these callers have no voice channel to do it.
func (h *Handler) handleStepHTTP(w http.ResponseWriter, r *http.Request) {
	sid, live, err := h.parseImageForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: err.Error()})
		return
	}
	if live == nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "image file is required"})
		return
	}

	sess, ok := h.getSession(sid)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiResponse{Error: "unknown session, send set_source_image first"})
		return
	}

	if sess.State() != session.StateTracking {
		if err := sess.StartTracking(); err != nil {
			writeJSON(w, http.StatusConflict, apiResponse{Error: err.Error()})
			return
		}
	}

	in, ok, err := sess.BeginStep()
	if err != nil {
		writeJSON(w, http.StatusConflict, apiResponse{Error: err.Error()})
		return
	}
	if !ok {
		h.metrics.RecordStepSkipped()
		writeJSON(w, http.StatusTooManyRequests, apiResponse{Error: "a step is already in flight"})
		return
	}

	res, err := h.engine.ComputeStep(r.Context(), live, in)
	fresh := sess.CompleteStep(in.Epoch)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, apiResponse{Error: err.Error()})
		return
	}
	if !fresh {
		h.metrics.RecordStepStale()
		writeJSON(w, http.StatusConflict, apiResponse{Error: "session state changed during the step"})
		return
	}

	text := ""
	present := res.TextUnderFinger != nil
	if present {
		text = res.TextUnderFinger.Text
	}
	if sess.UpdateSpokenText(text, present) {
		res.SpeakText = text
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: res})
}

// handleExplainScreenHTTP describes either the uploaded image or, when no
// file is attached, the session's captured source image.
func (h *Handler) handleExplainScreenHTTP(w http.ResponseWriter, r *http.Request) {
	sid, img, err := h.parseImageForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: err.Error()})
		return
	}

	if img != nil {
		elements, err := h.engine.ExtractElements(r.Context(), img)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, apiResponse{Error: err.Error()})
			return
		}
		info, err := h.engine.DescribeScreen(r.Context(), img, elements)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, apiResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: info})
		return
	}

	sess, ok := h.getSession(sid)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiResponse{Error: "unknown session and no image attached"})
		return
	}
	source, epoch := sess.SourceSnapshot()
	if source == nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: session.ErrNoSourceImage.Error()})
		return
	}

	elements, err := h.engine.ExtractElements(r.Context(), source)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, apiResponse{Error: err.Error()})
		return
	}
	if !sess.SetTextElementsIfFresh(epoch, elements) {
		writeJSON(w, http.StatusConflict, apiResponse{Error: session.ErrSourceChanged.Error()})
		return
	}

	info, err := h.engine.DescribeScreen(r.Context(), source, elements)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, apiResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: info})
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
