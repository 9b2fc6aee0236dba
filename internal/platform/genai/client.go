package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when the client has no API key configured.
var ErrUnavailable = errors.New("text generation service is not configured")

// ClientConfig holds connection settings for the generation API.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls a Gemini-style generateContent endpoint. Retries are bounded:
// three attempts with exponential backoff starting at 2s, capped at 10s, on
// top of a hard per-call timeout, so a trigger evaluation can never hang.
type Client struct {
	http   *resty.Client
	cfg    ClientConfig
	logger zerolog.Logger
}

func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2). // two retries after the first attempt: three attempts total
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// resty only retries transport errors on its own; transient
			// upstream failures and rate limits need an explicit condition.
			return err != nil || r.StatusCode() >= 500 || r.StatusCode() == 429
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, cfg: cfg, logger: logger}
}

// IsAvailable reports whether the client can reach the API at all.
func (c *Client) IsAvailable() bool {
	return c.cfg.APIKey != ""
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Generator.
func (c *Client) Generate(ctx context.Context, prompt, schemaHint string) (string, error) {
	if !c.IsAvailable() {
		return "", ErrUnavailable
	}

	start := time.Now()
	body := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt + "\n\nRespond with JSON of this exact shape:\n" + schemaHint}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxTokens,
		},
	}

	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.cfg.APIKey).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", c.cfg.Model))

	duration := time.Since(start)
	if err != nil {
		c.logger.Error().Err(err).Dur("duration", duration).Msg("generate_request_failed")
		return "", fmt.Errorf("generate request: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if out.Error != nil {
			msg = out.Error.Message
		}
		c.logger.Error().Int("status", resp.StatusCode()).Str("error", msg).Dur("duration", duration).
			Msg("generate_request_rejected")
		return "", fmt.Errorf("generate request rejected: %s", msg)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate response contained no candidates")
	}

	text := out.Candidates[0].Content.Parts[0].Text
	c.logger.Info().
		Int("prompt_length", len(prompt)).
		Int("response_length", len(text)).
		Str("finish_reason", out.Candidates[0].FinishReason).
		Dur("duration", duration).
		Msg("generate_success")

	return text, nil
}
