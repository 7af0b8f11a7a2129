package metrics

import (
	"strings"
	"testing"
)

func TestRenderIncludesOutcomeLabels(t *testing.T) {
	IncScanOutcome("completed")
	IncScanOutcome("fallback")
	IncScanOutcome("completed")

	out := Render()
	if !strings.Contains(out, `scan_outcome_total{status="completed"}`) {
		t.Fatalf("expected completed label in output:\n%s", out)
	}
	if !strings.Contains(out, `scan_outcome_total{status="fallback"}`) {
		t.Fatalf("expected fallback label in output:\n%s", out)
	}
	if strings.Index(out, `status="completed"`) > strings.Index(out, `status="fallback"`) {
		t.Fatalf("expected labels in sorted order")
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 {
		t.Fatalf("expected count 3, got %d", snap.count)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("expected one observation per bucket, got %v", snap.counts)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 250, want: "250"},
		{in: 0.5, want: "0.5"},
		{in: 1234.25, want: "1234.25"},
	}
	for _, tt := range tests {
		if got := formatFloat(tt.in); got != tt.want {
			t.Fatalf("formatFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
