package main

// Run one photo through the vision model and classifier without the API:
//   go run ./cmd/scantest -image face.jpg

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"skinscan-backend/internal/bootstrap"
	"skinscan-backend/internal/scans"
	"skinscan-backend/internal/shared/config"
	"skinscan-backend/internal/vision"
)

type output struct {
	Status       scans.OutcomeState `json:"status"`
	Reason       string             `json:"reason,omitempty"`
	Marker       string             `json:"marker,omitempty"`
	FinishReason string             `json:"finishReason,omitempty"`
	Model        string             `json:"model,omitempty"`
	Analysis     scans.Report       `json:"analysis"`
	RawReply     string             `json:"rawReply,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		exitErr(err.Error())
	}

	imagePath := flag.String("image", "", "Path to a face photo (jpg, png or webp)")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	provider := flag.String("provider", cfg.LLMProvider, "Vision provider (openai or gemini)")
	model := flag.String("model", cfg.LLMModel, "Vision model")
	showRaw := flag.Bool("raw", false, "Include the unparsed model reply")
	flag.Parse()

	if strings.TrimSpace(*imagePath) == "" {
		exitErr("image path is required")
	}

	imageRef, err := dataURLFromFile(*imagePath)
	if err != nil {
		exitErr(err.Error())
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(*provider))
	cfg.LLMModel = *model
	ctx := context.Background()

	client, err := bootstrap.NewVisionClient(ctx, cfg)
	if err != nil {
		exitErr(err.Error())
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	reply, err := client.CompleteVision(ctx, vision.SkinScanInput(imageRef))
	if err != nil {
		exitErr(fmt.Sprintf("vision request: %v", err))
	}

	outcome := scans.NewClassifier(cfg.RefusalMarkersExtra...).Evaluate(reply)
	result := output{
		Status:       outcome.State,
		Reason:       outcome.Reason,
		Marker:       outcome.Marker,
		FinishReason: string(reply.FinishReason),
		Model:        reply.Model,
		Analysis:     outcome.Report,
	}
	if *showRaw {
		result.RawReply = reply.Content
	}

	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	pretty = append(pretty, '\n')

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func dataURLFromFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := mime.TypeByExtension(ext)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("unsupported image file type: %s", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
