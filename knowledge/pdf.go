package knowledge

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LoadPDF extracts plain text from a PDF and returns one Document per page.
// Pages with no extractable text are skipped.
func LoadPDF(source string, content []byte) ([]Document, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty PDF content")
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var docs []Document
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		docs = append(docs, Document{
			ID:       fmt.Sprintf("%s#page-%d", source, i),
			Source:   source,
			Text:     pageText,
			Metadata: map[string]any{"page": i},
		})
	}
	return docs, nil
}
