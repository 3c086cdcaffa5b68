package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"fieldsync/internal/config"
)

const userAgent = "fieldsync/0.1"

// HTTPClient talks to the inspections backend over its REST surface.
type HTTPClient struct {
	baseURL        string
	authToken      string
	deviceProfile  string
	client         *http.Client
	requestTimeout time.Duration
	uploadTimeout  time.Duration
}

// NewHTTPClient builds a backend client from configuration.
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	requestTimeout := time.Duration(cfg.Backend.RequestTimeout) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	uploadTimeout := time.Duration(cfg.Backend.UploadTimeout) * time.Second
	if uploadTimeout <= 0 {
		uploadTimeout = 120 * time.Second
	}
	return &HTTPClient{
		baseURL:        strings.TrimRight(cfg.Backend.BaseURL, "/"),
		authToken:      cfg.Backend.AuthToken,
		deviceProfile:  cfg.Backend.DeviceProfile,
		client:         &http.Client{},
		requestTimeout: requestTimeout,
		uploadTimeout:  uploadTimeout,
	}
}

// FetchAssignments pulls the current assignment set and referenced templates.
func (c *HTTPClient) FetchAssignments(ctx context.Context) (*AssignmentBatch, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, http.MethodGet, "/assignments", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ClassifyTransport("fetch assignments", err)
	}
	defer drainAndClose(resp.Body)

	if err := Classify(resp.StatusCode, "fetch assignments"); err != nil {
		return nil, err
	}

	var batch AssignmentBatch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("%w: fetch assignments: decode response: %w", ErrTransient, err)
	}
	return &batch, nil
}

// UploadMedia sends one media item as a multipart request. The locally
// generated item id rides along as an idempotency key so retries after an
// ambiguous outcome never duplicate the artifact server-side.
func (c *HTTPClient) UploadMedia(ctx context.Context, upload MediaUpload) (*MediaRef, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := map[string]string{
		"assignmentId": upload.AssignmentID,
		"slotId":       upload.SlotID,
		"caption":      upload.Caption,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write multipart field: %w", err)
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="content"; filename="`+upload.ItemID+`"`)
	header.Set("Content-Type", upload.MimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, fmt.Errorf("write multipart content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := c.newRequest(reqCtx, http.MethodPost, "/assignments/"+upload.AssignmentID+"/media", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Idempotency-Key", upload.ItemID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ClassifyTransport("upload media", err)
	}
	defer drainAndClose(resp.Body)

	if err := Classify(resp.StatusCode, "upload media"); err != nil {
		return nil, err
	}

	var ref MediaRef
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return nil, fmt.Errorf("%w: upload media: decode response: %w", ErrTransient, err)
	}
	if ref.Ref == "" {
		ref.Ref = upload.ItemID
	}
	return &ref, nil
}

// SubmitInspection sends a finalized inspection payload.
func (c *HTTPClient) SubmitInspection(ctx context.Context, assignmentID string, payload json.RawMessage) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, http.MethodPost, "/assignments/"+assignmentID+"/submission", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", assignmentID)

	resp, err := c.client.Do(req)
	if err != nil {
		return ClassifyTransport("submit inspection", err)
	}
	defer drainAndClose(resp.Body)

	if err := Classify(resp.StatusCode, "submit inspection"); err != nil {
		return err
	}

	var ack struct {
		Acknowledged bool `json:"acknowledged"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("%w: submit inspection: decode response: %w", ErrTransient, err)
	}
	if !ack.Acknowledged {
		return fmt.Errorf("%w: submit inspection: server did not acknowledge", ErrTransient)
	}
	return nil
}

// Ping probes backend reachability.
func (c *HTTPClient) Ping(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ClassifyTransport("ping", err)
	}
	defer drainAndClose(resp.Body)
	return Classify(resp.StatusCode, "ping")
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if c.deviceProfile != "" {
		req.Header.Set("X-Device-Profile", c.deviceProfile)
	}
	return req, nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
