// Package mock provides a scripted vision collaborator for tests and for
// running the service without a real inference backend. It returns an
// identity alignment, a fingertip tracing a fixed path, and a canned set
// of text elements.
package mock

import (
	"context"
	"image"
	"sync"

	"watvision-service/internal/geometry"
	"watvision-service/internal/models"
)

// DefaultElements is the canned OCR result for a simulated touchscreen.
var DefaultElements = []models.TextElement{
	{
		ID:                 0,
		Text:               "Start Order",
		Confidence:         0.97,
		BoundingBox:        geometry.RectQuad(40, 60, 220, 110),
		NormalizedPosition: models.Point{X: 0.5, Y: 0.5},
	},
	{
		ID:                 1,
		Text:               "Menu",
		Confidence:         0.95,
		BoundingBox:        geometry.RectQuad(40, 140, 160, 180),
		NormalizedPosition: models.Point{X: 0.5, Y: 0.5},
	},
	{
		ID:                 2,
		Text:               "Help",
		Confidence:         0.92,
		BoundingBox:        geometry.RectQuad(40, 210, 150, 250),
		NormalizedPosition: models.Point{X: 0.5, Y: 0.5},
	},
}

// Client implements vision.Client with scripted responses.
type Client struct {
	mu sync.Mutex

	// Alignment returned by EstimateAlignment; identity and valid unless
	// overridden.
	Alignment models.AlignmentResult

	// FingerPath is cycled through by successive DetectFingertip calls.
	// A nil entry simulates a frame without a visible hand.
	FingerPath []*models.Point
	pathIndex  int

	// Elements returned by ExtractText.
	Elements []models.TextElement

	// Description returned by DescribeScreen.
	Description string

	// Optional error injected into every call.
	Err error

	AlignCalls     int
	FingertipCalls int
	ExtractCalls   int
	DescribeCalls  int
}

// New creates a mock client with the default script.
func New() *Client {
	return &Client{
		Alignment: models.AlignmentResult{
			Homography: geometry.Identity(),
			Inliers:    64,
			Confidence: 0.9,
			Valid:      true,
		},
		FingerPath:  []*models.Point{{X: 120, Y: 85}},
		Elements:    DefaultElements,
		Description: "A payment touchscreen with Start Order, Menu and Help buttons.",
	}
}

// EstimateAlignment implements vision.Client.
func (c *Client) EstimateAlignment(ctx context.Context, live, source image.Image) (models.AlignmentResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AlignCalls++
	if c.Err != nil {
		return models.AlignmentResult{}, c.Err
	}
	return c.Alignment, nil
}

// DetectFingertip implements vision.Client.
func (c *Client) DetectFingertip(ctx context.Context, frame image.Image) (*models.Point, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FingertipCalls++
	if c.Err != nil {
		return nil, c.Err
	}
	if len(c.FingerPath) == 0 {
		return nil, nil
	}
	p := c.FingerPath[c.pathIndex%len(c.FingerPath)]
	c.pathIndex++
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// ExtractText implements vision.Client.
func (c *Client) ExtractText(ctx context.Context, img image.Image) ([]models.TextElement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ExtractCalls++
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]models.TextElement, len(c.Elements))
	copy(out, c.Elements)
	return out, nil
}

// DescribeScreen implements vision.Client.
func (c *Client) DescribeScreen(ctx context.Context, img image.Image) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DescribeCalls++
	if c.Err != nil {
		return "", c.Err
	}
	return c.Description, nil
}
