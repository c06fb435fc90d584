// Package vision defines the interface to the external computer-vision
// collaborator. The service never computes alignments, fingertips, or OCR
// itself; it orchestrates calls against this interface.
package vision

import (
	"context"
	"image"

	"watvision-service/internal/models"
)

// Client is the vision collaborator. Implementations must be safe for
// concurrent use across sessions; within one session the engine issues at
// most one alignment call at a time.
type Client interface {
	// EstimateAlignment computes the homography mapping sourceImage
	// coordinates to live-frame coordinates. A low-confidence result is
	// reported through AlignmentResult.Valid, not through the error.
	EstimateAlignment(ctx context.Context, live, source image.Image) (models.AlignmentResult, error)

	// DetectFingertip locates the index fingertip in the frame, or returns
	// nil when no hand is visible.
	DetectFingertip(ctx context.Context, frame image.Image) (*models.Point, error)

	// ExtractText runs OCR over the image and returns the detected text
	// elements in extraction order.
	ExtractText(ctx context.Context, img image.Image) ([]models.TextElement, error)

	// DescribeScreen produces a short natural-language description of the
	// screen for a blind or visually impaired user.
	DescribeScreen(ctx context.Context, img image.Image) (string, error)
}
