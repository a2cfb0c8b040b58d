package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Expected write to succeed, got %v", err)
	}
	return path
}

func TestLoadRegistry_Valid(t *testing.T) {
	dir := t.TempDir()
	registry := writeFile(t, dir, "sources.yaml", `
version: 1
sources:
  - id: rev-001
    type: review_article
    title: A Review
    authors: [A. Author, B. Author]
    url: https://example.org/rev-001
    file: docs/rev-001.txt
  - id: grant-002
    type: grant_report
    title: A Grant Report
    file: docs/grant-002.txt
`)

	reg, err := LoadRegistry(registry)
	if err != nil {
		t.Fatalf("Expected registry to load, got %v", err)
	}
	if len(reg.Sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(reg.Sources))
	}
	if reg.Sources[0].ID != "rev-001" || len(reg.Sources[0].Authors) != 2 {
		t.Errorf("Unexpected first entry: %+v", reg.Sources[0])
	}
}

func TestLoadRegistry_Invalid(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{"missing id", "sources:\n  - type: review_article\n    file: a.txt\n"},
		{"missing file", "sources:\n  - id: rev-001\n    type: review_article\n"},
		{"duplicate id", "sources:\n  - id: rev-001\n    file: a.txt\n  - id: rev-001\n    file: b.txt\n"},
		{"bad yaml", "sources: [unclosed\n"},
	}
	for _, c := range cases {
		path := writeFile(t, dir, strings.ReplaceAll(c.name, " ", "_")+".yaml", c.content)
		if _, err := LoadRegistry(path); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestLoadFromRegistry_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "docs"), "rev-001.txt", "Document body text.")
	registry := writeFile(t, dir, "sources.yaml", `
sources:
  - id: rev-001
    title: A Review
    file: docs/rev-001.txt
`)

	reg, err := LoadRegistry(registry)
	if err != nil {
		t.Fatalf("Expected registry to load, got %v", err)
	}
	sources, err := LoadFromRegistry(registry, reg)
	if err != nil {
		t.Fatalf("Expected sources to load, got %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("Expected 1 source, got %d", len(sources))
	}
	if sources[0].FullText != "Document body text." {
		t.Errorf("Unexpected text: %q", sources[0].FullText)
	}
	// Untyped entries default to review_article.
	if sources[0].SourceType != "review_article" {
		t.Errorf("Expected default source type, got %s", sources[0].SourceType)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b-doc.txt", "Second document.")
	writeFile(t, dir, "a-doc.md", "First document.")
	writeFile(t, dir, "ignored.pdf", "binary")

	sources, err := LoadDirectory(dir, "workshop_report")
	if err != nil {
		t.Fatalf("Expected directory to load, got %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	// Sorted by file name; id is the name without extension.
	if sources[0].SourceID != "a-doc" || sources[1].SourceID != "b-doc" {
		t.Errorf("Unexpected ids: %s, %s", sources[0].SourceID, sources[1].SourceID)
	}
	if sources[0].SourceType != "workshop_report" {
		t.Errorf("Expected workshop_report, got %s", sources[0].SourceType)
	}
}

func TestHTMLToText(t *testing.T) {
	html := `<html><head><script>var x = "skip me";</script><style>.a{}</style></head>
<body><h1>Title</h1><p>First paragraph text.</p><p>Second paragraph text.</p></body></html>`

	text, err := htmlToText(html)
	if err != nil {
		t.Fatalf("Expected parse to succeed, got %v", err)
	}
	if strings.Contains(text, "skip me") {
		t.Error("Expected script content stripped")
	}
	if !strings.Contains(text, "First paragraph text.") || !strings.Contains(text, "Second paragraph text.") {
		t.Errorf("Expected body text preserved, got %q", text)
	}
	// Block boundaries become blank lines so paragraph splitting works.
	if !strings.Contains(text, "\n\n") {
		t.Error("Expected blank-line separators at block boundaries")
	}
}
