package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"skinscan-backend/internal/shared/telemetry"
	"skinscan-backend/internal/shared/util"
	"skinscan-backend/internal/vision"
)

const defaultModel = "gemini-1.5-flash"

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements vision.Client on the Gemini API.
type Client struct {
	client *genai.Client
	name   string
	newGen func(system string) generator
}

// NewClient dials Gemini with an API key. Call Close when done.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	c := &Client{client: cl, name: model}
	c.newGen = c.generativeModel
	return c, nil
}

// generativeModel builds a per-request model so concurrent calls never share
// a mutable system instruction.
func (c *Client) generativeModel(system string) generator {
	m := c.client.GenerativeModel(c.name)
	m.SetTemperature(0.3)
	m.SetMaxOutputTokens(1200)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	return m
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// CompleteVision sends the instructions and the decoded image inline.
func (c *Client) CompleteVision(ctx context.Context, in vision.Input) (vision.Reply, error) {
	data, mime, err := util.DecodeDataURL(in.ImageRef)
	if err != nil {
		return vision.Reply{}, fmt.Errorf("gemini: decode image: %w", err)
	}
	resp, err := c.newGen(in.System).GenerateContent(ctx,
		genai.Text(in.User),
		genai.Blob{MIMEType: mime, Data: data},
	)
	reply, err := replyFromResponse(resp, err)
	if err != nil {
		return vision.Reply{}, err
	}
	reply.Model = c.name

	telemetry.Info("vision.response", map[string]any{
		"model":         c.name,
		"finish_reason": string(reply.FinishReason),
		"has_content":   reply.Content != "",
		"has_refusal":   reply.Refusal != "",
	})
	return reply, nil
}

// replyFromResponse maps a Gemini result onto the chat-completions vocabulary.
// Safety blocks become content_filter replies rather than errors.
func replyFromResponse(resp *genai.GenerateContentResponse, err error) (vision.Reply, error) {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return vision.Reply{
			Refusal:      blocked.Error(),
			FinishReason: vision.FinishContentFilter,
		}, nil
	}
	if err != nil {
		return vision.Reply{}, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return vision.Reply{FinishReason: vision.FinishStop}, nil
	}

	cand := resp.Candidates[0]
	reply := vision.Reply{FinishReason: finishReason(cand.FinishReason)}
	if cand.Content != nil {
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		reply.Content = b.String()
	}
	return reply, nil
}

func finishReason(r genai.FinishReason) vision.FinishReason {
	switch r {
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return vision.FinishContentFilter
	case genai.FinishReasonMaxTokens:
		return vision.FinishLength
	case genai.FinishReasonStop, genai.FinishReasonUnspecified:
		return vision.FinishStop
	default:
		return vision.FinishReason(strings.ToLower(r.String()))
	}
}

var _ vision.Client = (*Client)(nil)
