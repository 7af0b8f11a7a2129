package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"skinscan-backend/internal/vision"
)

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	system string
	parts  []genai.Part
}

func newFakeClient(gen *fakeGenerator) *Client {
	return &Client{name: "gemini-test", newGen: func(system string) generator {
		gen.system = system
		return gen
	}}
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func textResponse(reason genai.FinishReason, texts ...string) *genai.GenerateContentResponse {
	parts := make([]genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, genai.Text(t))
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: parts},
			FinishReason: reason,
		}},
	}
}

func TestCompleteVisionSendsInlineBlob(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(genai.FinishReasonStop, `{"issues":`, `[]}`)}
	client := newFakeClient(gen)

	img := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	reply, err := client.CompleteVision(context.Background(), vision.Input{
		System:   "sys",
		User:     "usr",
		ImageRef: "data:image/jpeg;base64," + img,
	})
	if err != nil {
		t.Fatalf("CompleteVision: %v", err)
	}
	if reply.Content != `{"issues":[]}` {
		t.Fatalf("expected concatenated text, got %q", reply.Content)
	}
	if reply.FinishReason != vision.FinishStop || reply.Model != "gemini-test" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if gen.system != "sys" {
		t.Fatalf("expected system instruction, got %q", gen.system)
	}
	if len(gen.parts) != 2 {
		t.Fatalf("expected text + blob parts, got %d", len(gen.parts))
	}
	blob, ok := gen.parts[1].(genai.Blob)
	if !ok || blob.MIMEType != "image/jpeg" || len(blob.Data) != 4 {
		t.Fatalf("unexpected blob part %#v", gen.parts[1])
	}
}

func TestCompleteVisionRejectsUndecodableImage(t *testing.T) {
	client := newFakeClient(&fakeGenerator{})
	if _, err := client.CompleteVision(context.Background(), vision.Input{ImageRef: "data:image/jpeg;base64,%%%"}); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestReplyFromResponse(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		err     error
		want    vision.FinishReason
		refusal bool
		content string
		wantErr bool
	}{
		{
			name:    "blocked prompt",
			err:     &genai.BlockedError{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}},
			want:    vision.FinishContentFilter,
			refusal: true,
		},
		{
			name:    "blocked candidate",
			err:     &genai.BlockedError{Candidate: &genai.Candidate{FinishReason: genai.FinishReasonSafety}},
			want:    vision.FinishContentFilter,
			refusal: true,
		},
		{
			name:    "max tokens",
			resp:    textResponse(genai.FinishReasonMaxTokens, `{"iss`),
			want:    vision.FinishLength,
			content: `{"iss`,
		},
		{
			name: "no candidates",
			resp: &genai.GenerateContentResponse{},
			want: vision.FinishStop,
		},
		{
			name:    "transport error",
			err:     errors.New("connection reset"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := replyFromResponse(tt.resp, tt.err)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if reply.FinishReason != tt.want {
				t.Fatalf("expected finish %q, got %q", tt.want, reply.FinishReason)
			}
			if (reply.Refusal != "") != tt.refusal {
				t.Fatalf("unexpected refusal %q", reply.Refusal)
			}
			if reply.Content != tt.content {
				t.Fatalf("expected content %q, got %q", tt.content, reply.Content)
			}
		})
	}
}
