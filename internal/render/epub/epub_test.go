package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
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
		Sources: []domain.SourceEdition{
			{
				Name:        "hn",
				DisplayName: "Hacker News",
				Groups: []domain.Group{{
					DisplayName: "Hacker News",
					Slug:        "hn",
					Items: []domain.Item{
						{
							ID:        "hn/1",
							Title:     "Story <one>",
							Author:    "alice",
							Published: &published,
							Summary:   "Body text.",
							Content:   "Full article text recovered from the link.",
							Comments: []domain.Comment{
								{Author: "carol", Text: "good <point>", Children: []domain.Comment{
									{Author: "dave", Text: "indeed"},
								}},
							},
							Images: []domain.ImageRef{{Alt: "pic", LocalPath: "images/aa.png"}},
						},
						{ID: "hn/2", Title: "Story two", Author: "bob"},
					},
				}},
			},
			{
				Name:        "blog",
				DisplayName: "Example Blog",
				Groups: []domain.Group{{
					DisplayName: "Example Blog",
					Slug:        "blog",
					Items:       []domain.Item{{ID: "blog/1", Title: "Post", Author: "jane"}},
				}},
			},
		},
	}
}

func readZipEntry(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func openBook(t *testing.T, path string) *zip.Reader {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	return zr
}

func TestRenderProducesOneBookPerSource(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	// Put the localized image on disk where the renderer expects it.
	imgDir := filepath.Join(runDir, "images")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(imgDir, "aa.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := New().Render(context.Background(), sampleEdition(), runDir); err != nil {
		t.Fatalf("Render: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(runDir, "epub"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) != 2 {
		t.Fatalf("books = %v, want one per source", names)
	}
	if names[0] != "blog-2026-08-26.epub" || names[1] != "hn-2026-08-26.epub" {
		t.Errorf("book names = %v", names)
	}
}

func TestBookStructure(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	os.MkdirAll(filepath.Join(runDir, "images"), 0o755)
	os.WriteFile(filepath.Join(runDir, "images", "aa.png"), []byte("png-bytes"), 0o644)

	if err := New().Render(context.Background(), sampleEdition(), runDir); err != nil {
		t.Fatalf("Render: %v", err)
	}

	zr := openBook(t, filepath.Join(runDir, "epub", "hn-2026-08-26.epub"))

	// mimetype must be the first entry and stored uncompressed.
	first := zr.File[0]
	if first.Name != "mimetype" || first.Method != zip.Store {
		t.Errorf("first entry = %s (method %d)", first.Name, first.Method)
	}
	if got := readZipEntry(t, zr, "mimetype"); got != "application/epub+zip" {
		t.Errorf("mimetype = %q", got)
	}

	container := readZipEntry(t, zr, "META-INF/container.xml")
	if !strings.Contains(container, `full-path="OEBPS/content.opf"`) {
		t.Error("container should point at the package document")
	}

	opf := readZipEntry(t, zr, "OEBPS/content.opf")
	if !strings.Contains(opf, "<dc:title>Hacker News 2026-08-26</dc:title>") {
		t.Errorf("opf title missing:\n%s", opf)
	}
	if !strings.Contains(opf, `href="chap-001.xhtml"`) || !strings.Contains(opf, `href="chap-002.xhtml"`) {
		t.Error("chapter manifest entries missing")
	}
	if !strings.Contains(opf, `href="images/aa.png" media-type="image/png"`) {
		t.Error("image manifest entry missing")
	}
	if !strings.Contains(opf, `<itemref idref="chap-001"/>`) {
		t.Error("spine entry missing")
	}

	nav := readZipEntry(t, zr, "OEBPS/nav.xhtml")
	if !strings.Contains(nav, `epub:type="toc"`) {
		t.Error("nav should be marked as the toc")
	}
	if !strings.Contains(nav, "Story &lt;one&gt;") {
		t.Error("nav entries should be escaped")
	}

	chap := readZipEntry(t, zr, "OEBPS/chap-001.xhtml")
	if !strings.Contains(chap, "<h1>Story &lt;one&gt;</h1>") {
		t.Error("chapter heading missing or unescaped")
	}
	if !strings.Contains(chap, `<img src="images/aa.png"`) {
		t.Error("chapter image missing")
	}
	if got := readZipEntry(t, zr, "OEBPS/images/aa.png"); got != "png-bytes" {
		t.Errorf("embedded image = %q", got)
	}
}

func TestBookSkipsMissingImageFiles(t *testing.T) {
	t.Parallel()

	// No image file on disk; the book still builds without the picture.
	runDir := t.TempDir()
	if err := New().Render(context.Background(), sampleEdition(), runDir); err != nil {
		t.Fatalf("Render: %v", err)
	}
	zr := openBook(t, filepath.Join(runDir, "epub", "hn-2026-08-26.epub"))
	for _, f := range zr.File {
		if f.Name == "OEBPS/images/aa.png" {
			t.Error("missing source file should not produce a zip entry")
		}
	}
}

func TestRenderEmptyEdition(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	ed := &domain.Edition{Timestamp: time.Now().UTC()}
	if err := New().Render(context.Background(), ed, runDir); err != nil {
		t.Fatalf("Render: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(runDir, "epub"))
	if err != nil {
		t.Fatalf("output dir should exist even with no books: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want none", entries)
	}
}

func TestChapterArticleAndComments(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	if err := New().Render(context.Background(), sampleEdition(), runDir); err != nil {
		t.Fatalf("Render: %v", err)
	}
	zr := openBook(t, filepath.Join(runDir, "epub", "hn-2026-08-26.epub"))

	chap := readZipEntry(t, zr, "OEBPS/chap-001.xhtml")
	if !strings.Contains(chap, "<h2>Article</h2>") ||
		!strings.Contains(chap, "<p>Full article text recovered from the link.</p>") {
		t.Error("article section missing")
	}
	if !strings.Contains(chap, "<h2>Comments</h2>") {
		t.Error("comments section missing")
	}
	if !strings.Contains(chap, "<b>carol</b>: good &lt;point&gt;") {
		t.Error("comment text missing or unescaped")
	}
	if !strings.Contains(chap, "<b>dave</b>: indeed") {
		t.Error("nested reply missing")
	}

	plain := readZipEntry(t, zr, "OEBPS/chap-002.xhtml")
	if strings.Contains(plain, "<h2>Article</h2>") || strings.Contains(plain, "<h2>Comments</h2>") {
		t.Error("items without article or comments should not grow empty sections")
	}
}

func TestRenderDeterministic(t *testing.T) {
	t.Parallel()

	first, second := t.TempDir(), t.TempDir()
	for _, dir := range []string{first, second} {
		os.MkdirAll(filepath.Join(dir, "images"), 0o755)
		os.WriteFile(filepath.Join(dir, "images", "aa.png"), []byte("png-bytes"), 0o644)
		if err := New().Render(context.Background(), sampleEdition(), dir); err != nil {
			t.Fatalf("Render: %v", err)
		}
	}
	for _, name := range []string{"hn-2026-08-26.epub", "blog-2026-08-26.epub"} {
		a, err := os.ReadFile(filepath.Join(first, "epub", name))
		if err != nil {
			t.Fatalf("read first %s: %v", name, err)
		}
		b, err := os.ReadFile(filepath.Join(second, "epub", name))
		if err != nil {
			t.Fatalf("read second %s: %v", name, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs between renders", name)
		}
	}
}
