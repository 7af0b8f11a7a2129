package vision

import (
	"context"
	"errors"
)

// FinishReason is the provider's stop signal, normalized to the chat
// completions vocabulary. Unknown values pass through unchanged.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
)

// Reply is the raw completion returned by a vision model. Either field may
// be empty; the scans classifier decides what the reply means.
type Reply struct {
	Content      string
	Refusal      string
	FinishReason FinishReason
	Model        string
}

// Input is a single image plus instructions.
type Input struct {
	System   string
	User     string
	ImageRef string
}

// Client submits one vision request. Implementations make a single attempt
// and return an error only for transport-level failures.
type Client interface {
	CompleteVision(ctx context.Context, in Input) (Reply, error)
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("vision model not configured")

// PlaceholderClient stands in when no provider key is configured.
type PlaceholderClient struct{}

// CompleteVision returns ErrNotConfigured.
func (PlaceholderClient) CompleteVision(context.Context, Input) (Reply, error) {
	return Reply{}, ErrNotConfigured
}
