package observer

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestCalculateKnownModel(t *testing.T) {
	c := NewCostCalculator(nil)
	// gpt-4o-mini: $0.15 / $0.60 per million.
	got := c.Calculate("gpt-4o-mini", 1_000_000, 1_000_000)
	if !almostEqual(got, 0.75) {
		t.Errorf("got %v, want 0.75", got)
	}
}

func TestCalculateFractionalTokens(t *testing.T) {
	c := NewCostCalculator(nil)
	got := c.Calculate("gpt-4o", 500, 200)
	want := 500.0/1_000_000*2.50 + 200.0/1_000_000*10.00
	if !almostEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCalculateUnknownModel(t *testing.T) {
	c := NewCostCalculator(nil)
	if got := c.Calculate("mystery-model", 1000, 1000); got != 0 {
		t.Errorf("got %v, want 0 for unknown model", got)
	}
}

func TestCalculateZeroTokens(t *testing.T) {
	c := NewCostCalculator(nil)
	if got := c.Calculate("gpt-4o", 0, 0); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestOverridesMergeWithDefaults(t *testing.T) {
	c := NewCostCalculator(map[string]ModelPricing{
		"gpt-4o":       {5.00, 20.00}, // override
		"local-llama3": {0.01, 0.02},  // new entry
	})

	got := c.Calculate("gpt-4o", 1_000_000, 1_000_000)
	if !almostEqual(got, 25.00) {
		t.Errorf("override not applied: got %v, want 25.00", got)
	}

	got = c.Calculate("local-llama3", 1_000_000, 0)
	if !almostEqual(got, 0.01) {
		t.Errorf("custom model: got %v, want 0.01", got)
	}

	// Untouched defaults survive the merge.
	if got := c.Calculate("gpt-4o-mini", 1_000_000, 0); !almostEqual(got, 0.15) {
		t.Errorf("default lost after merge: got %v", got)
	}
}
