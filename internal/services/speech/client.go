// Package speech wraps the OpenAI-style text-to-speech API.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"revoice/internal/services"
)

const defaultHTTPTimeout = 600 * time.Second

// stageLabel is the error stage recorded against synthesis failures.
const stageLabel = "speech_generation"

// fallbackVoices is returned when the service does not expose a voice catalog.
var fallbackVoices = []string{
	"af_heart",
	"af_bella",
	"af_nicole",
	"am_adam",
	"am_michael",
	"bf_emma",
	"bm_george",
}

// Config captures the runtime settings required to talk to the synthesis service.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Format         string
	TimeoutSeconds int
}

// Request describes a single synthesis call.
type Request struct {
	Text  string
	Voice string
	Speed float64
}

// Result reports where the synthesized audio was written.
type Result struct {
	Path   string
	Format string
	Bytes  int64
}

// Client talks to an OpenAI-compatible audio/speech endpoint.
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

// NewClient constructs a speech client using the supplied configuration.
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
			Format:         strings.ToLower(strings.TrimSpace(cfg.Format)),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.Format == "" {
		client.cfg.Format = "mp3"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Format returns the configured output audio format.
func (c *Client) Format() string {
	return c.cfg.Format
}

type synthesisRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
	Stream         bool    `json:"stream"`
}

// Synthesize generates audio for the text and streams it to destPath.
func (c *Client) Synthesize(ctx context.Context, req Request, destPath string) (Result, error) {
	var empty Result
	if strings.TrimSpace(req.Text) == "" {
		return empty, services.Wrap(services.ErrValidation, stageLabel, "synthesize", "text required", nil)
	}
	if strings.TrimSpace(req.Voice) == "" {
		return empty, services.Wrap(services.ErrValidation, stageLabel, "synthesize", "voice required", nil)
	}
	if c.cfg.BaseURL == "" {
		return empty, services.Wrap(services.ErrConfiguration, stageLabel, "synthesize",
			"speech service URL not configured; set speech.base_url", nil)
	}

	payload := synthesisRequest{
		Model:          c.cfg.Model,
		Input:          req.Text,
		Voice:          req.Voice,
		ResponseFormat: c.cfg.Format,
		Speed:          req.Speed,
		Stream:         false,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, fmt.Errorf("synthesize request: encode body: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/v1/audio/speech"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("synthesize request: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, stageLabel, "synthesize",
			fmt.Sprintf("speech service unreachable at %s", c.cfg.BaseURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return empty, services.Wrap(services.ErrTransient, stageLabel, "synthesize",
			fmt.Sprintf("speech service returned http %d: %s", resp.StatusCode, summarizeBody(body)), nil)
	}

	if dir := filepath.Dir(destPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return empty, fmt.Errorf("synthesize request: create audio directory: %w", err)
		}
	}
	out, err := os.Create(destPath)
	if err != nil {
		return empty, fmt.Errorf("synthesize request: create output: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		_ = os.Remove(destPath)
		return empty, fmt.Errorf("synthesize request: write audio: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(destPath)
		return empty, fmt.Errorf("synthesize request: close output: %w", closeErr)
	}
	if written == 0 {
		_ = os.Remove(destPath)
		return empty, services.Wrap(services.ErrValidation, stageLabel, "synthesize",
			"speech service returned empty audio", nil)
	}

	return Result{Path: destPath, Format: c.cfg.Format, Bytes: written}, nil
}

// Voices returns the catalog of available voices, falling back to a built-in
// list when the service does not expose one.
func (c *Client) Voices(ctx context.Context) ([]string, error) {
	if c.cfg.BaseURL == "" {
		return append([]string{}, fallbackVoices...), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/audio/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("voices request: new request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return append([]string{}, fallbackVoices...), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return append([]string{}, fallbackVoices...), nil
	}
	var parsed struct {
		Voices []string `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Voices) == 0 {
		return append([]string{}, fallbackVoices...), nil
	}
	return parsed.Voices, nil
}

// HealthCheck verifies the service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("speech health: base URL required")
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("speech health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("speech health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("speech health: http %d", resp.StatusCode)
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
