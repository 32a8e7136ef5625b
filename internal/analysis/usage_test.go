package analysis

import (
	"math"
	"testing"
)

// TestEstimatedUsage verifies the estimate formula: frames times the
// provider's per-image constant for the prompt, response length over 4
// for the completion, flagged as estimated.
func TestEstimatedUsage(t *testing.T) {
	p := &mockProvider{name: "mock"}
	desc := Description{Text: "a delivery van reverses into the driveway"} // 41 chars

	prompt, completion, cost, estimated := accountUsage(p, desc, 3)

	if !estimated {
		t.Error("missing usage block must flag the result as estimated")
	}
	if want := 3 * 765; prompt != want {
		t.Errorf("prompt tokens = %d, want %d", prompt, want)
	}
	if want := len(desc.Text) / 4; completion != want {
		t.Errorf("completion tokens = %d, want %d", completion, want)
	}

	wantCost := float64(prompt)/1000*0.15 + float64(completion)/1000*0.60
	if math.Abs(cost-wantCost) > 1e-9 {
		t.Errorf("cost = %f, want %f", cost, wantCost)
	}
}

// TestReportedUsage verifies vendor-reported counts are used verbatim
// and priced with the same formula as estimates.
func TestReportedUsage(t *testing.T) {
	p := &mockProvider{name: "mock"}
	desc := Description{
		Text:  "nothing of note",
		Usage: Usage{PromptTokens: 1200, CompletionTokens: 80, Reported: true},
	}

	prompt, completion, cost, estimated := accountUsage(p, desc, 3)

	if estimated {
		t.Error("reported usage must not be flagged estimated")
	}
	if prompt != 1200 || completion != 80 {
		t.Errorf("tokens = (%d, %d), want (1200, 80)", prompt, completion)
	}

	wantCost := 1200.0/1000*0.15 + 80.0/1000*0.60
	if math.Abs(cost-wantCost) > 1e-9 {
		t.Errorf("cost = %f, want %f", cost, wantCost)
	}
}
