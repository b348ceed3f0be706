package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cardsum/cardsum_service/internal/telemetry"
)

var (
	ErrEmptyInput          = errors.New("article content is empty")
	ErrUpstreamUnavailable = errors.New("summarization API key not configured")
)

// UpstreamError is a non-success response from the chat-completion endpoint.
// Message comes from the provider's error envelope when one can be parsed.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("summarization upstream http %d: %s", e.Status, e.Message)
}

// Client calls an OpenAI-compatible chat-completions endpoint and returns
// the generated HTML fragment. One shot per call: a failed request is
// surfaced immediately, retry policy belongs to the caller.
type Client struct {
	Key, Model, BaseURL string
	Temperature         float64
	MaxTokens           int
	HTTPClient          *http.Client
	Limiter             *rate.Limiter
	DryRun              bool
}

func NewClient(key, model, baseURL string, temperature float64, maxTokens, rps, burst int) *Client {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 2
	}
	return &Client{
		Key:         key,
		Model:       model,
		BaseURL:     baseURL,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		HTTPClient:  http.DefaultClient,
		Limiter:     rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *Client) Summarize(ctx context.Context, article, prompt string) (string, error) {
	if strings.TrimSpace(article) == "" {
		return "", ErrEmptyInput
	}
	if c.DryRun {
		log := telemetry.L().With().Str("provider", "llm").Logger()
		log.Info().Msg("summarize_dry_run_enabled")
		return "<h1>Simulated summary</h1><p>dry run</p>", nil
	}
	if c.Key == "" {
		return "", ErrUpstreamUnavailable
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body := map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "system", "content": prompt},
			{"role": "user", "content": article},
		},
		"temperature": c.Temperature,
		"max_tokens":  c.MaxTokens,
	}
	b, _ := json.Marshal(body)

	log := telemetry.L().With().Str("provider", "llm").Int("body_len", len(b)).Logger()

	req, _ := http.NewRequestWithContext(ctx, "POST", c.BaseURL, bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+c.Key)
	req.Header.Set("Content-Type", "application/json")

	t0 := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("llm_request_failed")
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	log.Debug().Int("status_code", resp.StatusCode).Int("body_len", len(raw)).Msg("llm_response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Str("status", resp.Status).RawJSON("body", raw).Msg("llm_http_error")
		return "", &UpstreamError{Status: resp.StatusCode, Message: extractErrorMessage(raw, resp.Status)}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	_ = json.Unmarshal(raw, &out)
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("llm empty choices")
	}

	html := stripCodeFence(out.Choices[0].Message.Content)
	log.Info().Int("latency_ms", int(time.Since(t0)/time.Millisecond)).Int("chars", len(html)).Msg("summarize_done")
	return html, nil
}

// extractErrorMessage pulls the provider error envelope; envelopes differ
// across providers, so fall back to the HTTP status text.
func extractErrorMessage(raw []byte, status string) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return status
}

// some models wrap HTML output in a markdown fence despite instructions
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
