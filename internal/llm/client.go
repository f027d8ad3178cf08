// internal/llm/client.go
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fileagent/internal/config"
	"fileagent/internal/util"

	openai "github.com/sashabaranov/go-openai"
)

// Summary is the schema the summarizer must return. Anything outside it is
// treated as a failed call, never silently accepted.
type Summary struct {
	Bullets []string `json:"bullets"`
	Tags    []string `json:"tags"`
}

// Classifier labels a file preview with exactly one category.
type Classifier interface {
	Classify(ctx context.Context, filename, preview string, categories []string) (string, error)
}

// Summarizer condenses a file preview into bullets and tags.
type Summarizer interface {
	Summarize(ctx context.Context, filename, preview string) (*Summary, error)
}

// OpenAIClient calls the OpenAI chat API for both tasks.
type OpenAIClient struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIClient builds a client from configuration. Classify performs a
// single attempt per call (the decision engine owns that retry budget);
// Summarize retries internally.
func NewOpenAIClient(cfg config.OpenAIConfig, maxRetries int) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: maxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

const classifySystemPrompt = `You are a file organizer. Choose exactly ONE folder for the file from the allowed list.

Rules:
- Return ONLY the folder name, no extra words, no punctuation.
- Never invent a folder that is not in the list.`

// Classify asks the model for one label. The caller validates the label
// against its closed category set.
func (c *OpenAIClient) Classify(ctx context.Context, filename, preview string, categories []string) (string, error) {
	userPrompt := fmt.Sprintf("Allowed folders: %s\n\nFilename: %s\n\nText:\n%s",
		strings.Join(categories, ", "), filename, preview)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("classify call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("classify call: no completion choices returned")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

const summarizeSystemPrompt = `You are a file summarizer. Summarize the text in:
- 3 concise bullet points
- 3 short tags (single words or short phrases)

Return ONLY a JSON object: {"bullets": [...], "tags": [...]}. No additional text.`

// Summarize asks the model for bullets and tags, retrying with backoff on
// transport errors and schema violations.
func (c *OpenAIClient) Summarize(ctx context.Context, filename, preview string) (*Summary, error) {
	userPrompt := fmt.Sprintf("Filename: %s\n\nText:\n%s", filename, preview)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(util.Backoff(c.retryDelay, attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: summarizeSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: 0.2,
		})
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
			continue
		}

		summary, err := ParseSummary(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		return summary, nil
	}

	return nil, fmt.Errorf("summarize failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// ParseSummary validates a raw model response against the Summary schema.
func ParseSummary(raw string) (*Summary, error) {
	raw = strings.TrimSpace(raw)
	// models occasionally fence the JSON despite instructions
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var s Summary
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &s); err != nil {
		return nil, fmt.Errorf("malformed summary response: %w", err)
	}
	if len(s.Bullets) == 0 {
		return nil, fmt.Errorf("summary response has no bullets")
	}
	return &s, nil
}
