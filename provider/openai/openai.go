package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quibble-ai/quibble/internal/intent"
)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

const classifyPrompt = `You classify a buyer's purchase request for a shopping broker.
Respond with ONLY a JSON object, no prose, with these fields:
  category: one of cycling, electronics, fashion, home, outdoors, general
  item: the core item phrase
  query: a cleaned catalog search query
  required_terms: keywords that MUST appear in a matching product title
  preferred_terms: nice-to-have keywords
  excluded_terms: keywords that disqualify a product
  summary: one sentence describing what the buyer wants`

// client implements intent classification using OpenAI's chat completions API.
type client struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new OpenAI classification client
func NewClient(apiKey, model string, temperature float64, maxTokens int, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &client{
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// ClassifyIntent asks the model for a structured plan for the buyer's text.
func (c *client) ClassifyIntent(ctx context.Context, text string) (intent.Plan, error) {
	body := request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: classifyPrompt},
			{Role: "user", Content: text},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return intent.Plan{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openaiAPIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return intent.Plan{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return intent.Plan{}, fmt.Errorf("classification request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return intent.Plan{}, fmt.Errorf("classification request returned %s", resp.Status)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return intent.Plan{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return intent.Plan{}, fmt.Errorf("no choices in response")
	}
	return ParsePlan(parsed.Choices[0].Message.Content)
}

// ParsePlan extracts the JSON plan from a model reply, tolerating code fences
// and surrounding prose.
func ParsePlan(content string) (intent.Plan, error) {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "{"); i >= 0 {
		if j := strings.LastIndex(content, "}"); j > i {
			content = content[i : j+1]
		}
	}
	var plan intent.Plan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return intent.Plan{}, fmt.Errorf("model reply is not a valid plan: %w", err)
	}
	if plan.Item == "" && plan.Query == "" {
		return intent.Plan{}, fmt.Errorf("model reply has neither item nor query")
	}
	return plan, nil
}
