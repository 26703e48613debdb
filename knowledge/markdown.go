package knowledge

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// LoadMarkdown parses markdown and returns one Document per top-level
// section, split at heading boundaries. Content before the first heading
// becomes its own document. Heading text is kept in the section body and
// recorded in metadata.
func LoadMarkdown(source string, content []byte) []Document {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(content))

	type section struct {
		heading string
		body    strings.Builder
	}
	sections := []*section{{}}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok && h.Level <= 2 {
			sections = append(sections, &section{heading: nodeText(h, content)})
		}
		cur := sections[len(sections)-1]
		chunk := nodeText(node, content)
		if chunk == "" {
			continue
		}
		if cur.body.Len() > 0 {
			cur.body.WriteString("\n\n")
		}
		cur.body.WriteString(chunk)
	}

	var docs []Document
	for i, sec := range sections {
		body := strings.TrimSpace(sec.body.String())
		if body == "" {
			continue
		}
		meta := map[string]any{}
		if sec.heading != "" {
			meta["heading"] = sec.heading
		}
		docs = append(docs, Document{
			ID:       fmt.Sprintf("%s#%d", source, i),
			Source:   source,
			Text:     body,
			Metadata: meta,
		})
	}
	return docs
}

// nodeText extracts the plain text under a markdown AST node.
func nodeText(node ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			lines := t.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
