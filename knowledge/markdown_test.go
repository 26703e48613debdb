package knowledge

import (
	"strings"
	"testing"
)

func TestLoadMarkdownSplitsAtHeadings(t *testing.T) {
	src := []byte(`Intro paragraph before any heading.

# Billing

Invoices go out on the first of the month.

# Support

Email support is available around the clock.
`)

	docs := LoadMarkdown("handbook.md", src)
	if len(docs) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(docs))
	}
	if !strings.Contains(docs[0].Text, "Intro paragraph") {
		t.Errorf("first section should hold the preamble, got %q", docs[0].Text)
	}
	if docs[1].Metadata["heading"] != "Billing" {
		t.Errorf("expected Billing heading, got %v", docs[1].Metadata["heading"])
	}
	if !strings.Contains(docs[2].Text, "around the clock") {
		t.Errorf("support section missing body, got %q", docs[2].Text)
	}
}

func TestLoadMarkdownCodeBlocks(t *testing.T) {
	src := []byte("# Setup\n\n```\ngo install example.com/tool\n```\n")

	docs := LoadMarkdown("setup.md", src)
	if len(docs) != 1 {
		t.Fatalf("expected 1 section, got %d", len(docs))
	}
	if !strings.Contains(docs[0].Text, "go install") {
		t.Errorf("code block text missing, got %q", docs[0].Text)
	}
}

func TestLoadMarkdownEmpty(t *testing.T) {
	if docs := LoadMarkdown("empty.md", nil); len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}
