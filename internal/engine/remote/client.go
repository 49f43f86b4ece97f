// Package remote talks to a biometric bridge service over HTTP.
//
// The service wraps the vendor SDK and exposes:
//
//	POST   /v1/session    obtain licenses and configure the engine
//	DELETE /v1/session    release licenses
//	POST   /v1/templates  multipart "image" -> raw template bytes
//	POST   /v1/verify     multipart "probe" + "gallery" -> {"status","score"}
package remote

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
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/iris-batch/internal/engine"
)

const defaultTimeout = 30 * time.Second

// APIVersion is the bridge API path prefix this client speaks.
const APIVersion = "v1"

// Client implements engine.Engine and engine.Session.
type Client struct {
	baseURL string
	client  *http.Client
}

var (
	_ engine.Engine  = (*Client)(nil)
	_ engine.Session = (*Client)(nil)
)

// New creates a client for the bridge at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("engine URL is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type verifyResponse struct {
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

type sessionResponse struct {
	Obtained []string `json:"obtained"`
	Failed   []string `json:"failed"`
}

type filePart struct {
	field    string
	filename string
	data     []byte
	mimeType string
}

// postMultipart posts the parts to endpoint and returns the status code and body.
func (c *Client) postMultipart(ctx context.Context, endpoint string, parts ...filePart) (int, []byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.field, p.filename))
		h.Set("Content-Type", p.mimeType)
		part, err := writer.CreatePart(h)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(p.data); err != nil {
			return 0, nil, fmt.Errorf("failed to write %s: %w", p.field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return 0, nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// statusError turns a 422 body into an engine.StatusError.
func statusError(op string, body []byte) error {
	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err != nil || sr.Status == "" {
		return &engine.StatusError{Op: op, Status: "Unknown", Message: strings.TrimSpace(string(body))}
	}
	return &engine.StatusError{Op: op, Status: sr.Status, Message: sr.Message}
}

// CreateTemplate uploads the image and returns the extracted template.
func (c *Client) CreateTemplate(ctx context.Context, imagePath string) ([]byte, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	code, body, err := c.postMultipart(ctx, "/"+APIVersion+"/templates", filePart{
		field:    "image",
		filename: filepath.Base(imagePath),
		data:     imageData,
		mimeType: detectMIMEType(imageData),
	})
	if err != nil {
		return nil, err
	}

	switch code {
	case http.StatusOK:
		if len(body) == 0 {
			return nil, errors.New("empty template returned")
		}
		return body, nil
	case http.StatusUnprocessableEntity:
		return nil, statusError("create template", body)
	default:
		return nil, fmt.Errorf("API error (status %d): %s", code, string(body))
	}
}

// Verify compares probe against gallery.
func (c *Client) Verify(ctx context.Context, probe, gallery []byte) (float64, error) {
	code, body, err := c.postMultipart(ctx, "/"+APIVersion+"/verify",
		filePart{field: "probe", filename: "probe.dat", data: probe, mimeType: "application/octet-stream"},
		filePart{field: "gallery", filename: "gallery.dat", data: gallery, mimeType: "application/octet-stream"},
	)
	if err != nil {
		return 0, err
	}

	switch code {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		return 0, statusError("verify", body)
	default:
		return 0, fmt.Errorf("API error (status %d): %s", code, string(body))
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	// Below-threshold comparisons still carry a score; only a missing status is unusable.
	if vr.Status == "" {
		return 0, errors.New("verify response without status")
	}
	return vr.Score, nil
}

// Obtain acquires all licenses and applies the engine settings. A partial
// grant is a failure.
func (c *Client) Obtain(ctx context.Context, cfg engine.SessionConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+APIVersion+"/session", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	code, body, err := c.do(req)
	if err != nil {
		return err
	}
	if code != http.StatusOK && code != http.StatusForbidden {
		return fmt.Errorf("API error (status %d): %s", code, string(body))
	}

	var sr sessionResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	failed := sr.Failed
	granted := make(map[string]bool, len(sr.Obtained))
	for _, l := range sr.Obtained {
		granted[l] = true
	}
	for _, l := range cfg.Licenses {
		if !granted[l] && !slices.Contains(failed, l) {
			failed = append(failed, l)
		}
	}
	if len(failed) > 0 {
		return &engine.LicenseError{Failed: failed}
	}
	return nil
}

// Release returns the licenses to the license server.
func (c *Client) Release(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/"+APIVersion+"/session", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	code, body, err := c.do(req)
	if err != nil {
		return err
	}
	if code != http.StatusOK && code != http.StatusNoContent {
		return fmt.Errorf("API error (status %d): %s", code, string(body))
	}
	return nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	// TIFF: 49 49 2A 00 or 4D 4D 00 2A
	if (data[0] == 0x49 && data[1] == 0x49 && data[2] == 0x2A && data[3] == 0x00) ||
		(data[0] == 0x4D && data[1] == 0x4D && data[2] == 0x00 && data[3] == 0x2A) {
		return "image/tiff"
	}
	return "application/octet-stream"
}
