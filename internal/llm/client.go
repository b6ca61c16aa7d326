package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/edvin/warroom/internal/fault"
)

// Classifier turns free text into structured JSON according to a system prompt.
type Classifier interface {
	Classify(ctx context.Context, system, text string) Result[json.RawMessage]
}

// Client is an OpenAI-compatible chat completions client (Groq by default).
type Client struct {
	api         *openai.Client
	model       string
	timeout     time.Duration
	temperature float32
}

// NewClient creates a new LLM client for an OpenAI-compatible API.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		timeout:     timeout,
		temperature: 0.1,
	}
}

// Classify sends one system+user exchange and extracts the JSON object from
// the reply. Timeouts, transport failures, empty replies and non-JSON output
// all come back as fault.ErrProvider.
func (c *Client) Classify(ctx context.Context, system, text string) Result[json.RawMessage] {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return Err[json.RawMessage](fault.Wrap(fault.ErrProvider, "chat completion", err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Err[json.RawMessage](fault.Wrap(fault.ErrProvider, "chat completion", errors.New("empty response")))
	}

	raw, err := ExtractJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return Err[json.RawMessage](fault.Wrap(fault.ErrProvider, "extract json", err))
	}
	return Ok(raw)
}

// ExtractJSON pulls the JSON object out of a model reply. Markdown code
// fences and prose around the object are tolerated.
func ExtractJSON(content string) (json.RawMessage, error) {
	if i := strings.Index(content, "```json"); i >= 0 {
		content = content[i+len("```json"):]
		if j := strings.Index(content, "```"); j >= 0 {
			content = content[:j]
		}
	} else if i := strings.Index(content, "```"); i >= 0 {
		content = content[i+3:]
		if j := strings.Index(content, "```"); j >= 0 {
			content = content[:j]
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	candidate := []byte(content[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("malformed JSON in reply")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, candidate); err != nil {
		return nil, fmt.Errorf("compact reply: %w", err)
	}
	return buf.Bytes(), nil
}
