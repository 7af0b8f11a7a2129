package openai

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

	"skinscan-backend/internal/shared/telemetry"
	"skinscan-backend/internal/vision"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxTokens      = 1200
	temperature    = float32(0.3)
	imageDetail    = "high"
)

// Client implements vision.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client. An empty baseURL uses the public API.
func NewClient(apiKey, model, baseURL string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	Temperature         *float32       `json:"temperature,omitempty"`
	MaxTokens           int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	ResponseFormat      responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
			Refusal *string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// CompleteVision sends the image with the instructions in one request.
// Empty content and refusals are returned as a Reply, not an error.
func (c *Client) CompleteVision(ctx context.Context, in vision.Input) (vision.Reply, error) {
	payload, err := json.Marshal(c.buildRequest(in))
	if err != nil {
		return vision.Reply{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return vision.Reply{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return vision.Reply{}, fmt.Errorf("openai request timeout: %w", err)
		}
		return vision.Reply{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return vision.Reply{}, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return vision.Reply{}, fmt.Errorf("openai response parse (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return vision.Reply{}, fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return vision.Reply{}, fmt.Errorf("openai status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return vision.Reply{}, fmt.Errorf("openai response missing choices")
	}

	choice := parsed.Choices[0]
	reply := vision.Reply{
		FinishReason: vision.FinishReason(choice.FinishReason),
		Model:        parsed.Model,
	}
	if choice.Message.Content != nil {
		reply.Content = *choice.Message.Content
	}
	if choice.Message.Refusal != nil {
		reply.Refusal = *choice.Message.Refusal
	}

	fields := map[string]any{
		"model":         parsed.Model,
		"finish_reason": choice.FinishReason,
		"has_content":   choice.Message.Content != nil,
		"has_refusal":   reply.Refusal != "",
	}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.PromptTokens
		fields["completion_tokens"] = parsed.Usage.CompletionTokens
		fields["total_tokens"] = parsed.Usage.TotalTokens
	}
	telemetry.Info("vision.response", fields)
	return reply, nil
}

func (c *Client) buildRequest(in vision.Input) chatRequest {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: in.System},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: in.User},
				{Type: "image_url", ImageURL: &imageURL{URL: in.ImageRef, Detail: imageDetail}},
			}},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	if isGPT5(c.model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		temp := temperature
		req.Temperature = &temp
		req.MaxTokens = maxTokens
	}
	return req
}

// gpt-5 models reject max_tokens and custom temperatures.
func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ vision.Client = (*Client)(nil)
