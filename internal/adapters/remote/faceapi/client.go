package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"gymdesk/internal/domain/enrollment"
)

const maxErrorBody = 64 << 10

// Client is the HTTP implementation of Store. It also hands its base URL
// and HTTP client to the camera adapter, which shares the service.
type Client struct {
	baseURL string
	http    *http.Client
}

// Compile-time check that *Client satisfies Store.
var _ Store = (*Client)(nil)

// NewClient returns a client for the face service at baseURL.
// PRE: baseURL is an absolute URL
// POST: nil httpClient falls back to http.DefaultClient
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the client used for calls to the service.
func (c *Client) HTTPClient() *http.Client { return c.http }

// AddFaces uploads images for subject in a single multipart call.
// PRE: subject non-empty; images pass enrollment.ValidateBatch
// POST: returns the service summary; any non-2xx response is an *APIError
// INVARIANT: images are sent in the order given
func (c *Client) AddFaces(ctx context.Context, subject string, images []enrollment.Image) (Result, error) {
	if err := enrollment.ValidateBatch(subject, images); err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("subject", strings.TrimSpace(subject)); err != nil {
		return Result{}, fmt.Errorf("failed to write subject: %w", err)
	}
	for _, img := range images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, img.Filename))
		h.Set("Content-Type", img.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return Result{}, fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return Result{}, fmt.Errorf("failed to write image part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/add_faces/", &buf)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("face service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Result{}, decodeError(resp.StatusCode, raw)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("failed to decode face service response: %w", err)
	}
	if out.Failed > 0 {
		slog.Warn("enrollment_partial", "subject", out.Subject, "successful", out.Successful, "failed", out.Failed)
	}
	return out, nil
}

// Health calls GET /health.
// POST: a non-2xx response or unreadable body is an error
func (c *Client) Health(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("face service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("face service health returned status: %d", resp.StatusCode)
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("failed to decode health response: %w", err)
	}
	return h, nil
}
