// Package knowledge provides a lightweight in-process retriever over loaded
// documents. Documents come from markdown, PDF, or web pages via the loaders
// in this package; retrieval is keyword-based with TF scoring, which is
// enough to ground agent prompts without an embedding service.
package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/switchboardhq/switchboard"
)

// Document is one retrievable unit of text.
type Document struct {
	ID       string
	Source   string
	Text     string
	Metadata map[string]any
}

// Index is a keyword index over documents. It implements
// switchboard.Retriever.
type Index struct {
	mu       sync.RWMutex
	docs     []Document
	inverted map[string][]int // term -> doc positions
	topK     int
	minScore float64
}

var _ switchboard.Retriever = (*Index)(nil)

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithTopK sets the number of results returned per query. Default is 5.
func WithTopK(n int) IndexOption {
	return func(ix *Index) { ix.topK = n }
}

// WithMinScore drops results scoring below the threshold. Default is 0.
func WithMinScore(s float64) IndexOption {
	return func(ix *Index) { ix.minScore = s }
}

// NewIndex creates an empty index.
func NewIndex(opts ...IndexOption) *Index {
	ix := &Index{
		inverted: make(map[string][]int),
		topK:     5,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// Add indexes one document. Documents with no extractable terms are dropped.
func (ix *Index) Add(docs ...Document) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, doc := range docs {
		terms := tokenize(doc.Text)
		if len(terms) == 0 {
			continue
		}
		pos := len(ix.docs)
		ix.docs = append(ix.docs, doc)
		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			if seen[term] {
				continue
			}
			seen[term] = true
			ix.inverted[term] = append(ix.inverted[term], pos)
		}
	}
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Retrieve implements switchboard.Retriever. Documents are scored by the
// fraction of query terms they contain; ties break toward insertion order.
func (ix *Index) Retrieve(_ context.Context, text string) ([]switchboard.RetrievalResult, error) {
	queryTerms := uniqueTerms(tokenize(text))
	if len(queryTerms) == 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make(map[int]int)
	for _, term := range queryTerms {
		for _, pos := range ix.inverted[term] {
			hits[pos]++
		}
	}

	type scored struct {
		pos   int
		score float64
	}
	ranked := make([]scored, 0, len(hits))
	for pos, n := range hits {
		score := float64(n) / float64(len(queryTerms))
		if score >= ix.minScore {
			ranked = append(ranked, scored{pos: pos, score: score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].pos < ranked[j].pos
	})
	if len(ranked) > ix.topK {
		ranked = ranked[:ix.topK]
	}

	results := make([]switchboard.RetrievalResult, 0, len(ranked))
	for _, r := range ranked {
		doc := ix.docs[r.pos]
		meta := map[string]any{"id": doc.ID, "source": doc.Source}
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		results = append(results, switchboard.RetrievalResult{
			Text:     doc.Text,
			Score:    r.score,
			Metadata: meta,
		})
	}
	return results, nil
}

// tokenize lowercases and splits text into alphanumeric terms.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
