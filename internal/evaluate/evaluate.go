// Package evaluate calls the external text-generation collaborator that
// judges whether a user's free-text description matches inserted code.
//
// The contract is deliberately narrow: exactly one bounded-timeout request
// per submission, no retry, no caching of the response. Callers resubmit if
// they want another attempt; a rate limiter keeps resubmissions from
// hammering the API.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

var (
	// ErrNoAPIKey is returned when no API key is configured or present in
	// the environment.
	ErrNoAPIKey = errors.New("evaluate: no API key configured")

	// ErrRateLimited is returned when submissions arrive faster than the
	// configured rate. The caller may resubmit later.
	ErrRateLimited = errors.New("evaluate: submission rate exceeded")

	// ErrEmptyVerdict is returned when the evaluator responds without any
	// text content.
	ErrEmptyVerdict = errors.New("evaluate: empty verdict from evaluator")
)

// Config configures the evaluator client.
type Config struct {
	// APIKey for the Anthropic API. Falls back to ANTHROPIC_API_KEY.
	APIKey string

	// Model to use for verdicts.
	Model string

	// MaxTokens bounds the verdict length.
	MaxTokens int64

	// Timeout bounds each request.
	Timeout time.Duration

	// MaxCodeBytes caps the forwarded code payload.
	MaxCodeBytes int

	// SubmissionsPerMinute limits how often summaries may be submitted.
	// Zero disables the limiter.
	SubmissionsPerMinute int
}

// DefaultConfig returns the standard evaluator configuration.
func DefaultConfig() Config {
	return Config{
		Model:                "claude-3-5-haiku-20241022",
		MaxTokens:            1024,
		Timeout:              20 * time.Second,
		MaxCodeBytes:         2 << 20, // 2 MiB
		SubmissionsPerMinute: 6,
	}
}

// Evaluator is a client for the external verdict service.
type Evaluator struct {
	client  *anthropic.Client
	config  Config
	limiter *rate.Limiter
}

// New creates an evaluator client.
func New(cfg Config) (*Evaluator, error) {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = def.MaxCodeBytes
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, ErrNoAPIKey
		}
	}

	var limiter *rate.Limiter
	if cfg.SubmissionsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.SubmissionsPerMinute)), 1)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Evaluator{
		client:  &client,
		config:  cfg,
		limiter: limiter,
	}, nil
}

// Evaluate forwards one (code, summary) pair and returns the verdict text.
// One request under a bounded timeout; failures surface as a single error.
func (e *Evaluator) Evaluate(ctx context.Context, code, summary string) (string, error) {
	if e.limiter != nil && !e.limiter.Allow() {
		return "", ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	prompt := buildPrompt(truncateBytes(code, e.config.MaxCodeBytes), summary)

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.config.Model),
		MaxTokens: e.config.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("evaluator request failed: %w", err)
	}

	var verdict string
	for _, block := range resp.Content {
		if block.Type == "text" {
			verdict += block.Text
		}
	}
	if verdict == "" {
		return "", ErrEmptyVerdict
	}
	return verdict, nil
}

// buildPrompt formats the verdict request.
func buildPrompt(code, summary string) string {
	return fmt.Sprintf(`You are reviewing whether a developer actually read and understood code that was bulk-inserted into their document.

The inserted code:
---
%s
---

The developer's description of what this code does:
---
%s
---

Judge whether the description accurately reflects what the code does. Reply with a short plain-text verdict: start with either "MATCH" or "MISMATCH", then one or two sentences explaining the most important reason. Mention anything significant the description missed or got wrong.`, code, summary)
}

// truncateBytes caps s at n bytes without splitting a UTF-8 sequence.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	// Trim a trailing partial rune.
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
