package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const anthropicAPI = "https://api.anthropic.com/v1/messages"

// AnthropicClient calls the Anthropic messages API for summaries,
// sentiment and topic classification.
type AnthropicClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *AnthropicClient) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize this Canvas LMS update in 2-3 plain sentences for an instructor audience. Return only the summary.\n\n" + text
	return c.call(ctx, prompt)
}

func (c *AnthropicClient) Sentiment(ctx context.Context, text string) (string, error) {
	prompt := "Classify the sentiment of this post as exactly one word: positive, negative, or neutral. Return only the word.\n\n" + text

	resp, err := c.call(ctx, prompt)
	if err != nil {
		return "", err
	}

	sentiment := strings.ToLower(strings.TrimSpace(resp))
	switch sentiment {
	case "positive", "negative", "neutral":
		return sentiment, nil
	default:
		return "", fmt.Errorf("unexpected sentiment %q", sentiment)
	}
}

func (c *AnthropicClient) ClassifyTopic(ctx context.Context, text string) (string, []string, error) {
	prompt := `Classify this Canvas LMS post. Return JSON only, with this structure:
{"primary": "topic-name", "secondary": ["topic", "topic"]}

Use short topic names (e.g. "Gradebook", "Quizzes", "Accessibility"). At most 2 secondary topics.

` + text

	resp, err := c.call(ctx, prompt)
	if err != nil {
		return "", nil, err
	}

	var parsed struct {
		Primary   string   `json:"primary"`
		Secondary []string `json:"secondary"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp)), &parsed); err != nil {
		return "", nil, fmt.Errorf("failed to parse topic response: %w", err)
	}
	if parsed.Primary == "" {
		return "", nil, fmt.Errorf("empty primary topic in response")
	}
	if len(parsed.Secondary) > 2 {
		parsed.Secondary = parsed.Secondary[:2]
	}

	return parsed.Primary, parsed.Secondary, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *AnthropicClient) call(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", anthropicAPI, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("enrichment api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("enrichment api error: %s", msg)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("empty response content")
	}

	return strings.TrimSpace(parsed.Content[0].Text), nil
}

// extractJSON pulls the first JSON object out of a response that may be
// wrapped in prose or a code fence.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
