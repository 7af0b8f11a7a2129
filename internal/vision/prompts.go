package vision

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/system_v1.txt
	systemPromptV1 string
	//go:embed prompts/user_v1.txt
	userPromptV1 string
)

// SkinScanInput builds the model input for one face photo.
func SkinScanInput(imageRef string) Input {
	return Input{
		System:   strings.TrimSpace(systemPromptV1),
		User:     strings.TrimSpace(userPromptV1),
		ImageRef: imageRef,
	}
}
