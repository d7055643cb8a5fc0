package markdown

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/inkfeed/inkfeed/internal/domain"
)

func sampleEdition() *domain.Edition {
	published := time.Date(2026, 8, 25, 18, 30, 0, 0, time.UTC)
	return &domain.Edition{
		Timestamp: time.Date(2026, 8, 26, 6, 0, 0, 0, time.UTC),
		Sources: []domain.SourceEdition{{
			Name:        "kagi",
			DisplayName: "Kagi News",
			Groups: []domain.Group{
				{
					DisplayName: "World",
					Slug:        "world",
					Items: []domain.Item{{
						ID:        "kagi/s1",
						Title:     "Summit concludes",
						URL:       "https://example.com/summit",
						Author:    "Kagi News",
						Published: &published,
						Summary:   "Leaders met.",
						Content:   "The accord was signed at dawn.\n\nMarkets reacted within the hour.",
						Comments: []domain.Comment{
							{Author: "alice", Text: "good summary", Children: []domain.Comment{
								{Author: "bob", Text: "agreed"},
							}},
						},
						Images: []domain.ImageRef{{Alt: "photo", LocalPath: "images/ff.jpg"}},
					}},
				},
				{
					DisplayName: "Tech",
					Slug:        "tech",
					Items:       []domain.Item{{ID: "kagi/s2", Title: "Chip release"}},
				},
			},
		}},
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	if err := New().Render(context.Background(), sampleEdition(), runDir); err != nil {
		t.Fatalf("Render: %v", err)
	}

	index, err := os.ReadFile(filepath.Join(runDir, "markdown", "index.md"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	idx := string(index)
	if !strings.Contains(idx, "# Edition 2026-08-26") {
		t.Error("index heading missing")
	}
	if !strings.Contains(idx, "## Kagi News") {
		t.Error("source heading missing")
	}
	if !strings.Contains(idx, "### World") || !strings.Contains(idx, "### Tech") {
		t.Error("category headings missing")
	}
	if !strings.Contains(idx, "1. [Summit concludes](001-summit-concludes.md)") {
		t.Errorf("numbered link missing:\n%s", idx)
	}
	if !strings.Contains(idx, "2. [Chip release](002-chip-release.md)") {
		t.Error("numbering should continue across groups")
	}

	page, err := os.ReadFile(filepath.Join(runDir, "markdown", "001-summit-concludes.md"))
	if err != nil {
		t.Fatalf("read item: %v", err)
	}
	p := string(page)
	if !strings.Contains(p, "# Summit concludes") {
		t.Error("item heading missing")
	}
	if !strings.Contains(p, "![photo](../images/ff.jpg)") {
		t.Error("image reference missing")
	}
	if !strings.Contains(p, "[original](https://example.com/summit)") {
		t.Error("original link missing")
	}
}

func TestRenderMarkdownEmptyEdition(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	ed := &domain.Edition{Timestamp: time.Now().UTC()}
	if err := New().Render(context.Background(), ed, runDir); err != nil {
		t.Fatalf("Render: %v", err)
	}
	index, err := os.ReadFile(filepath.Join(runDir, "markdown", "index.md"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if !strings.Contains(string(index), "No items in this edition.") {
		t.Error("empty edition note missing")
	}
}

func TestRenderMarkdownArticleAndComments(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	if err := New().Render(context.Background(), sampleEdition(), runDir); err != nil {
		t.Fatalf("Render: %v", err)
	}

	page, err := os.ReadFile(filepath.Join(runDir, "markdown", "001-summit-concludes.md"))
	if err != nil {
		t.Fatalf("read item: %v", err)
	}
	p := string(page)
	if !strings.Contains(p, "## Article\n\nThe accord was signed at dawn.") {
		t.Error("article section missing")
	}
	if !strings.Contains(p, "## Comments\n\n- **alice**: good summary\n  - **bob**: agreed\n") {
		t.Errorf("comment list wrong:\n%s", p)
	}

	second, err := os.ReadFile(filepath.Join(runDir, "markdown", "002-chip-release.md"))
	if err != nil {
		t.Fatalf("read second item: %v", err)
	}
	if strings.Contains(string(second), "## Article") || strings.Contains(string(second), "## Comments") {
		t.Error("items without article or comments should not grow empty sections")
	}
}

func TestRenderMarkdownDeterministic(t *testing.T) {
	t.Parallel()

	first, second := t.TempDir(), t.TempDir()
	if err := New().Render(context.Background(), sampleEdition(), first); err != nil {
		t.Fatalf("first render: %v", err)
	}
	if err := New().Render(context.Background(), sampleEdition(), second); err != nil {
		t.Fatalf("second render: %v", err)
	}
	a, b := readTree(t, first), readTree(t, second)
	if len(a) == 0 {
		t.Fatal("no files rendered")
	}
	if len(a) != len(b) {
		t.Fatalf("file counts differ: %d vs %d", len(a), len(b))
	}
	for name, body := range a {
		if !bytes.Equal(body, b[name]) {
			t.Errorf("%s differs between renders", name)
		}
	}
}

func readTree(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	files := map[string][]byte{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = body
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return files
}
