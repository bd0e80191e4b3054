// Package ocr talks to the image recognition service that reads odometer photos.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/vehicle-dashboard/internal/logger"
)

// ErrNoReading is returned when the service could not find a reading in the image.
var ErrNoReading = errors.New("no odometer reading recognized")

// ErrNotImage is returned when the upload is not an image.
var ErrNotImage = errors.New("upload is not an image")

const (
	defaultTimeout = 30 * time.Second

	// sniffLen is how many bytes http.DetectContentType considers
	sniffLen = 512

	formField = "image"
)

// recognizeResponse is the JSON body returned by the service.
type recognizeResponse struct {
	Success bool    `json:"success"`
	Reading float64 `json:"reading"`
}

// Client posts images to the recognition endpoint.
type Client struct {
	httpClient *http.Client
	url        string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

// NewClient creates a client for the recognition endpoint at url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the recognition endpoint.
func (c *Client) URL() string {
	return c.url
}

// RecognizeOdometer uploads an odometer photo and returns the recognized value.
func (c *Client) RecognizeOdometer(ctx context.Context, filename string, image io.Reader) (float64, error) {
	data, err := io.ReadAll(image)
	if err != nil {
		return 0, fmt.Errorf("failed to read image: %w", err)
	}

	contentType := http.DetectContentType(data[:min(len(data), sniffLen)])
	if !strings.HasPrefix(contentType, "image/") {
		return 0, fmt.Errorf("%w: detected %s", ErrNotImage, contentType)
	}

	body, formContentType, err := buildForm(filename, contentType, data)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create recognition request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("recognition request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read recognition response: %w", err)
	}

	logger.Debug("Recognition request completed",
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("recognition request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result recognizeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("failed to parse recognition response: %w", err)
	}

	if !result.Success {
		return 0, ErrNoReading
	}

	return result.Reading, nil
}

// buildForm encodes data as a multipart form with a single image part.
func buildForm(filename, contentType string, data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := filepath.Base(filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "odometer"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, formField, name))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
