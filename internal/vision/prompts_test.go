package vision

import (
	"strings"
	"testing"
)

func TestSkinScanInputCarriesPromptsAndImage(t *testing.T) {
	in := SkinScanInput("data:image/jpeg;base64,AAAA")
	if in.ImageRef != "data:image/jpeg;base64,AAAA" {
		t.Fatalf("unexpected image ref %q", in.ImageRef)
	}
	if !strings.Contains(in.System, "non-medical") {
		t.Fatalf("system prompt missing cosmetic framing: %q", in.System)
	}
	if !strings.Contains(in.User, `"concerns"`) || !strings.Contains(in.User, `"overallSummary"`) {
		t.Fatalf("user prompt missing routine shape: %q", in.User)
	}
	if strings.HasSuffix(in.User, "\n") {
		t.Fatalf("expected trimmed user prompt")
	}
}
