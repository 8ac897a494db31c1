package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/crateguard/crateguard/internal/domain/ai"
	"github.com/crateguard/crateguard/internal/infra/ai/parse"
)

const (
	defaultEndpoint    = "https://generativelanguage.googleapis.com"
	defaultModel       = "gemini-2.5-flash"
	defaultMinInterval = 2 * time.Second
	defaultMaxRetries  = 2
	defaultTemperature = 0.3
	defaultMaxTokens   = 4096

	callTimeout     = 30 * time.Second
	maxBackoff      = 60 * time.Second
	truncatePreview = 200
)

// Config for the Gemini client. Zero fields fall back to the documented
// defaults; only APIKey is required.
type Config struct {
	APIKey          string
	Endpoint        string
	Model           string
	MinInterval     time.Duration
	MaxRetries      int
	Temperature     float64
	MaxOutputTokens int
}

// Client calls the Gemini generateContent endpoint with per-instance rate
// limiting, retries with exponential backoff, and defensive response
// parsing. Safe to invoke repeatedly in a loop; its only side effects are
// network I/O and the limiter's pacing state.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaultMinInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = defaultMaxTokens
	}
	return &Client{
		http:    &http.Client{Timeout: callTimeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		log:     slog.Default().With("component", "gemini"),
	}
}

func (c *Client) ModelID() string { return c.cfg.Model }

// AnalyzeCode performs the deep-analysis call with up to 1+MaxRetries
// attempts. Quota and invalid-request errors fail immediately; everything
// else is retried with doubling delay capped at 60 seconds.
func (c *Client) AnalyzeCode(ctx context.Context, req ai.Request) (*ai.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			c.log.Warn("retrying analysis call", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.try(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !ai.IsRetryable(err) {
			c.log.Warn("non-retryable analysis error", "err", err)
			return nil, err
		}
		c.log.Warn("analysis attempt failed", "attempt", attempt+1, "err", err)
	}
	return nil, fmt.Errorf("analysis failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	CandidateCount  int     `json:"candidateCount"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

var safetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

// try performs one rate-limited request. The limiter enforces the minimum
// interval since the previous dispatch from this instance.
func (c *Client) try(ctx context.Context, req ai.Request) (*ai.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": req.Prompt}}},
		},
		"generationConfig": generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
			CandidateCount:  1,
		},
		"safetySettings": safetySettings,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/models/%s:generateContent?key=%s",
		c.cfg.Endpoint, c.cfg.Model, c.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, ai.Transient(fmt.Errorf("request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, ai.Transient(fmt.Errorf("reading response: %w", err))
	}

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status 429: %s", ai.ErrQuotaExceeded, preview(respBody))
	case httpResp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: status 400: %s", ai.ErrInvalidRequest, preview(respBody))
	case httpResp.StatusCode < 200 || httpResp.StatusCode > 299:
		return nil, ai.Transient(fmt.Errorf("status %d: %s", httpResp.StatusCode, preview(respBody)))
	}

	var payload any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, ai.Transient(fmt.Errorf("decoding response: %w", err))
	}

	text, err := extractText(payload)
	if err != nil {
		return nil, err
	}

	analysisText, patterns := parse.Response(text)
	return &ai.Response{Analysis: analysisText, FlaggedPatterns: patterns}, nil
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > truncatePreview {
		return s[:truncatePreview]
	}
	return s
}
