package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/genai"
)

const (
	defaultModel = "gemini-2.5-flash"
	retryDelay   = 250 * time.Millisecond
)

// ErrEmptyResponse is returned when the model answers with no text
var ErrEmptyResponse = errors.New("gemini returned an empty response")

// Config configures a Client
type Config struct {
	APIKey      string
	Model       string
	Timeout     time.Duration // Per attempt. Zero means no deadline beyond ctx.
	MaxAttempts int           // Total tries, including the first
	BaseURL     string        // Overrides the API endpoint (tests, proxies)
}

// Client generates text with the Gemini API
type Client struct {
	client      *genai.Client
	model       string
	timeout     time.Duration
	maxAttempts int
}

// NewClient creates a Gemini text client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Client{
		client:      client,
		model:       model,
		timeout:     cfg.Timeout,
		maxAttempts: attempts,
	}, nil
}

// Generate sends a single-turn prompt and returns the model's text. When schema
// is non-nil the model is asked for JSON matching it.
//
// Each attempt runs under its own timeout; failed attempts are retried until the
// attempt budget is spent or ctx is done.
func (c *Client) Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	config := &genai.GenerateContentConfig{}
	if schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
		config.Temperature = genai.Ptr[float32](0.1)
	}

	attempt := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		text, err := c.generateOnce(ctx, prompt, config)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		if attempt < c.maxAttempts {
			log.Printf("⚠️ Gemini attempt %d/%d failed, retrying: %v", attempt, c.maxAttempts, err)
		}
		return "", err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(retryDelay)),
		backoff.WithMaxTries(uint(c.maxAttempts)),
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate (%d attempts): %w", attempt, err)
	}
	return text, nil
}

func (c *Client) generateOnce(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	log.Printf("📥 Received from Gemini: %d chars", len(text))
	return text, nil
}

// Model returns the model name requests are sent to
func (c *Client) Model() string {
	return c.model
}
