// Package transcriber wraps the OpenAI-style audio transcription API.
package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"revoice/internal/services"
)

const defaultHTTPTimeout = 600 * time.Second

// stageLabel is the error stage recorded against transcription failures.
const stageLabel = "transcription"

// decodingTemperature pins the service to deterministic decoding.
const decodingTemperature = "0"

// Config captures the runtime settings required to talk to the transcription service.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Language       string
	TimeoutSeconds int
}

// Result is the outcome of a transcription request.
type Result struct {
	Text           string  `json:"text"`
	Duration       float64 `json:"duration"`
	ProcessingTime float64 `json:"processing_time"`
}

// Client uploads media files to an OpenAI-compatible transcription endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a transcriber client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Model:          strings.TrimSpace(cfg.Model),
			Language:       strings.TrimSpace(cfg.Language),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Transcribe uploads the media file and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, sourcePath string) (Result, error) {
	var empty Result
	if strings.TrimSpace(sourcePath) == "" {
		return empty, services.Wrap(services.ErrValidation, stageLabel, "transcribe", "source path required", nil)
	}
	if c.cfg.BaseURL == "" {
		return empty, services.Wrap(services.ErrConfiguration, stageLabel, "transcribe",
			"transcription service URL not configured; set transcriber.base_url", nil)
	}

	file, err := os.Open(sourcePath)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, stageLabel, "transcribe",
			fmt.Sprintf("open source file %s", sourcePath), err)
	}
	defer file.Close()

	pipeReader, pipeWriter := io.Pipe()
	form := multipart.NewWriter(pipeWriter)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(sourcePath))
		if err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		if c.cfg.Model != "" {
			if err := form.WriteField("model", c.cfg.Model); err != nil {
				pipeWriter.CloseWithError(err)
				return
			}
		}
		if c.cfg.Language != "" {
			if err := form.WriteField("language", c.cfg.Language); err != nil {
				pipeWriter.CloseWithError(err)
				return
			}
		}
		if err := form.WriteField("temperature", decodingTemperature); err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		pipeWriter.CloseWithError(form.Close())
	}()

	endpoint := c.cfg.BaseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pipeReader)
	if err != nil {
		return empty, fmt.Errorf("transcribe request: new request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, stageLabel, "transcribe",
			fmt.Sprintf("transcription service unreachable at %s", c.cfg.BaseURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("transcribe request: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, services.Wrap(services.ErrTransient, stageLabel, "transcribe",
			fmt.Sprintf("transcription service returned http %d: %s", resp.StatusCode, summarizeBody(body)), nil)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return empty, fmt.Errorf("transcribe request: decode response: %w", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return empty, services.Wrap(services.ErrValidation, stageLabel, "transcribe",
			"transcription service returned no text", nil)
	}
	return result, nil
}

// HealthCheck verifies the service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("transcriber health: base URL required")
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("transcriber health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcriber health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("transcriber health: http %d", resp.StatusCode)
	}
	return nil
}

func summarizeBody(body []byte) string {
	clean := strings.Join(strings.Fields(string(body)), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}
