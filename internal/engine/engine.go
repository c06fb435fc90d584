// Package engine runs the per-frame tracking pipeline: alignment, gating,
// fingertip projection, text hit-testing, proximity cues, and overlay
// rendering. It is stateless; all per-session state comes in through
// session.StepInput and goes back out through the result.
package engine

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"watvision-service/internal/chirp"
	"watvision-service/internal/geometry"
	"watvision-service/internal/models"
	"watvision-service/internal/observability/metrics"
	"watvision-service/internal/render"
	"watvision-service/internal/session"
	"watvision-service/internal/vision"
)

// Config holds the alignment acceptance thresholds. An alignment below
// either threshold is treated as "screen not found" rather than trusted.
type Config struct {
	MinInliers    int
	MinConfidence float64
}

// Engine orchestrates vision calls into step results.
type Engine struct {
	vision  vision.Client
	chirper *chirp.Mapper
	metrics *metrics.Metrics
	logger  zerolog.Logger
	cfg     Config
}

// New creates an engine around the given vision collaborator.
func New(client vision.Client, chirper *chirp.Mapper, m *metrics.Metrics, logger zerolog.Logger, cfg Config) *Engine {
	return &Engine{
		vision:  client,
		chirper: chirper,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
	}
}

// ExtractElements runs OCR over a freshly captured source image and
// normalizes the result: sequential IDs and center positions scaled to
// [0,1] so clients can place audio cues without knowing image dimensions.
func (e *Engine) ExtractElements(ctx context.Context, img image.Image) ([]models.TextElement, error) {
	start := time.Now()
	elements, err := e.vision.ExtractText(ctx, img)
	e.metrics.RecordVisionCall("extract_text", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	bounds := img.Bounds()
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	for i := range elements {
		elements[i].ID = i
		center := geometry.QuadCenter(elements[i].BoundingBox)
		if w > 0 && h > 0 {
			elements[i].NormalizedPosition = models.Point{X: center.X / w, Y: center.Y / h}
		}
	}
	return elements, nil
}

// DescribeScreen asks the vision collaborator for a natural-language
// description and pairs it with the element batch already extracted for
// the session.
func (e *Engine) DescribeScreen(ctx context.Context, img image.Image, elements []models.TextElement) (models.ScreenInfo, error) {
	start := time.Now()
	desc, err := e.vision.DescribeScreen(ctx, img)
	e.metrics.RecordVisionCall("describe", err, time.Since(start).Seconds())
	if err != nil {
		return models.ScreenInfo{}, fmt.Errorf("describe screen: %w", err)
	}
	return models.ScreenInfo{Description: desc, TextElements: elements}, nil
}

// ComputeStep processes one live frame against the session snapshot.
//
// The pipeline degrades instead of failing: a rejected alignment still
// yields a result with the fingertip marked on the live frame, and a frame
// with no visible hand yields a result without finger fields. Only a
// failed alignment call is an error. Speech dedup is NOT applied here; the
// caller decides whether the result is fresh before touching session
// state, so SpeakText is left empty and TextUnderFinger carries the
// candidate.
func (e *Engine) ComputeStep(ctx context.Context, live image.Image, in session.StepInput) (models.StepResult, error) {
	log := e.logger.With().Str("session_id", in.SessionID).Uint64("epoch", in.Epoch).Logger()

	start := time.Now()
	align, err := e.vision.EstimateAlignment(ctx, live, in.Source)
	e.metrics.RecordVisionCall("align", err, time.Since(start).Seconds())
	if err != nil {
		return models.StepResult{}, fmt.Errorf("estimate alignment: %w", err)
	}

	valid := align.Valid && align.Inliers >= e.cfg.MinInliers && align.Confidence >= e.cfg.MinConfidence
	if align.Valid && !valid {
		e.metrics.RecordAlignmentRejected()
		log.Debug().
			Int("inliers", align.Inliers).
			Float64("confidence", align.Confidence).
			Msg("alignment below thresholds, rejected")
	}

	var inverse models.Homography
	if valid {
		inverse, err = geometry.Invert(align.Homography)
		if err != nil {
			// Degenerate homography; treat as no alignment, not a failure.
			e.metrics.RecordAlignmentRejected()
			log.Debug().Err(err).Msg("homography not invertible, alignment rejected")
			valid = false
		}
	}

	start = time.Now()
	fingerLive, err := e.vision.DetectFingertip(ctx, live)
	e.metrics.RecordVisionCall("fingertip", err, time.Since(start).Seconds())
	if err != nil {
		// A missed detection only costs this frame's finger feedback.
		log.Warn().Err(err).Msg("fingertip detection failed, continuing without finger")
		fingerLive = nil
	}
	if fingerLive != nil {
		e.metrics.RecordFingertip()
	}

	result := models.StepResult{AlignmentValid: valid}
	result.FingerLive = fingerLive

	hitIndex := -1
	if valid && fingerLive != nil {
		p := geometry.Apply(inverse, *fingerLive)
		result.FingerSource = &p

		for i, el := range in.TextElements {
			if geometry.PointInQuad(p, el.BoundingBox) {
				hitIndex = i
				el := el
				result.TextUnderFinger = &el
				break
			}
		}
	}

	if in.TrackedIndex >= 0 && in.TrackedIndex < len(in.TextElements) {
		idx := in.TrackedIndex
		center := geometry.QuadCenter(in.TextElements[idx].BoundingBox)
		result.TrackedElementIndex = &idx
		result.TrackedElementCenter = &center

		if result.FingerSource != nil {
			d := geometry.Distance(*result.FingerSource, center)
			result.DistanceToTrackedElement = &d
			result.Chirp = e.chirper.Cue(*result.FingerSource, center)
		}
	}

	liveOut, sourceOut := render.Annotate(live, in.Source, render.Overlay{
		Homography:    align.Homography,
		Valid:         valid,
		SourceBounds:  in.Source.Bounds(),
		TextElements:  in.TextElements,
		HitIndex:      hitIndex,
		FingerLive:    result.FingerLive,
		FingerSource:  result.FingerSource,
		TrackedCenter: result.TrackedElementCenter,
	})

	// Rendering is feedback, not the feedback itself: an encode failure
	// costs the annotated frame, never the step.
	if result.RenderedLiveFrame, err = render.EncodePNGBase64(liveOut); err != nil {
		log.Warn().Err(err).Msg("encode live frame failed, returning step without it")
		result.RenderedLiveFrame = ""
	}
	if result.RenderedSourceFrame, err = render.EncodePNGBase64(sourceOut); err != nil {
		log.Warn().Err(err).Msg("encode source frame failed, returning step without it")
		result.RenderedSourceFrame = ""
	}

	return result, nil
}
