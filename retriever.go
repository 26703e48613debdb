package switchboard

import (
	"context"
	"strings"
)

// RetrievalResult is one piece of retrieved context. Score is in [0, 1];
// higher means more relevant.
type RetrievalResult struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Retriever augments an agent's prompt with retrieved context. Agents
// consult their retriever before composing the final prompt; the
// orchestrator is unaware of it. The knowledge package provides a keyword
// index implementation with document loaders.
type Retriever interface {
	Retrieve(ctx context.Context, text string) ([]RetrievalResult, error)
}

// Generator is an optional Retriever capability that produces a generated
// answer from the retrieved context directly. Callers discover it via type
// assertion.
type Generator interface {
	RetrieveAndGenerate(ctx context.Context, text string) (string, error)
}

// CombineRetrievalResults joins the non-empty result texts with newlines.
func CombineRetrievalResults(results []RetrievalResult) string {
	var parts []string
	for _, r := range results {
		if r.Text != "" {
			parts = append(parts, r.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// RetrieveAndCombineResults retrieves context for text and joins the
// non-empty results with newlines.
func RetrieveAndCombineResults(ctx context.Context, r Retriever, text string) (string, error) {
	results, err := r.Retrieve(ctx, text)
	if err != nil {
		return "", err
	}
	return CombineRetrievalResults(results), nil
}
