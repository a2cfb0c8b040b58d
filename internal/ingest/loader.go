package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/mkrasilnikov/gapminer/internal/model"
)

// LoadFromRegistry reads the document text for every registry entry. File
// paths are resolved relative to the registry file's directory.
func LoadFromRegistry(registryPath string, reg *Registry) ([]model.Source, error) {
	baseDir := filepath.Dir(registryPath)

	sources := make([]model.Source, 0, len(reg.Sources))
	for _, e := range reg.Sources {
		path := e.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		text, err := loadDocumentText(path)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", e.ID, err)
		}

		sourceType := e.Type
		if sourceType == "" {
			sourceType = "review_article"
		}
		sources = append(sources, model.Source{
			SourceID:      e.ID,
			SourceType:    sourceType,
			Title:         e.Title,
			Authors:       e.Authors,
			Organization:  e.Organization,
			DatePublished: e.DatePublished,
			URL:           e.URL,
			FullText:      text,
		})
	}
	return sources, nil
}

// LoadDirectory scans a directory for .txt/.md/.html documents and turns each
// into a source. The source id is the file name without its extension.
func LoadDirectory(dir, sourceType string) ([]model.Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	if sourceType == "" {
		sourceType = "review_article"
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".md", ".html", ".htm":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	sources := make([]model.Source, 0, len(names))
	for _, name := range names {
		text, err := loadDocumentText(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", name, err)
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		sources = append(sources, model.Source{
			SourceID:   id,
			SourceType: sourceType,
			Title:      id,
			FullText:   text,
		})
	}
	return sources, nil
}

func loadDocumentText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return htmlToText(string(data))
	default:
		return string(data), nil
	}
}

// blockTags are HTML elements whose close marks a paragraph boundary, so the
// signal filter's blank-line splitting still works on stripped HTML.
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "tr": true,
}

// htmlToText extracts visible text from HTML, skipping scripts/styles and
// inserting blank lines at block boundaries.
func htmlToText(content string) (string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockTags[n.Data] {
			buf.WriteString("\n\n")
		}
	}

	walk(doc)
	return buf.String(), nil
}
