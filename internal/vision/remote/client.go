// Package remote implements the vision collaborator against an HTTP JSON
// inference service. Images travel as base64 PNG payloads.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"watvision-service/internal/models"
	"watvision-service/internal/render"
)

// Config holds remote vision service settings.
type Config struct {
	Endpoint       string
	AuthToken      string
	RequestTimeout time.Duration
}

// Client calls the remote vision inference service.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a remote vision client with a connection-pooled transport.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     8,
		MaxIdleConnsPerHost: 8,
		MaxIdleConns:        32,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Transport: transport},
	}
}

type alignRequest struct {
	LiveB64   string `json:"live_image_base64"`
	SourceB64 string `json:"source_image_base64"`
}

type fingertipRequest struct {
	ImageB64 string `json:"image_base64"`
}

type fingertipResponse struct {
	Found bool         `json:"found"`
	Point models.Point `json:"point"`
}

type extractTextResponse struct {
	Elements []models.TextElement `json:"elements"`
}

type describeRequest struct {
	ImageB64 string `json:"image_base64"`
}

type describeResponse struct {
	Description string `json:"description"`
}

// EstimateAlignment implements vision.Client.
func (c *Client) EstimateAlignment(ctx context.Context, live, source image.Image) (models.AlignmentResult, error) {
	liveB64, err := render.EncodePNGBase64(live)
	if err != nil {
		return models.AlignmentResult{}, err
	}
	sourceB64, err := render.EncodePNGBase64(source)
	if err != nil {
		return models.AlignmentResult{}, err
	}

	var result models.AlignmentResult
	if err := c.post(ctx, "/v1/align", alignRequest{LiveB64: liveB64, SourceB64: sourceB64}, &result); err != nil {
		return models.AlignmentResult{}, err
	}
	return result, nil
}

// DetectFingertip implements vision.Client.
func (c *Client) DetectFingertip(ctx context.Context, frame image.Image) (*models.Point, error) {
	frameB64, err := render.EncodePNGBase64(frame)
	if err != nil {
		return nil, err
	}

	var resp fingertipResponse
	if err := c.post(ctx, "/v1/fingertip", fingertipRequest{ImageB64: frameB64}, &resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	p := resp.Point
	return &p, nil
}

// ExtractText implements vision.Client.
func (c *Client) ExtractText(ctx context.Context, img image.Image) ([]models.TextElement, error) {
	imgB64, err := render.EncodePNGBase64(img)
	if err != nil {
		return nil, err
	}

	var resp extractTextResponse
	if err := c.post(ctx, "/v1/extract_text", fingertipRequest{ImageB64: imgB64}, &resp); err != nil {
		return nil, err
	}
	return resp.Elements, nil
}

// DescribeScreen implements vision.Client.
func (c *Client) DescribeScreen(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := render.EncodePNGBase64(img)
	if err != nil {
		return "", err
	}

	var resp describeResponse
	if err := c.post(ctx, "/v1/describe", describeRequest{ImageB64: imgB64}, &resp); err != nil {
		return "", err
	}
	return resp.Description, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("X-Internal-Token", c.cfg.AuthToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vision call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("vision call %s: status %d: %s", path, resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("vision call %s: decode response: %w", path, err)
	}
	return nil
}
