// Package epub renders each source of an edition as a standalone EPUB 3
// book. A book gets one chapter per item, with localized images embedded.
package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/ports"
	"github.com/inkfeed/inkfeed/internal/render"
)

const FormatName = "epub"

var mediaTypeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
}

type Renderer struct{}

var _ ports.Renderer = (*Renderer)(nil)

func New() *Renderer { return &Renderer{} }

func (r *Renderer) Format() string { return FormatName }

func (r *Renderer) Render(ctx context.Context, ed *domain.Edition, runDir string) error {
	_, err := render.BuildDir(runDir, FormatName, func(dir string) error {
		for _, src := range ed.Sources {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := fmt.Sprintf("%s-%s.epub", render.Slug(src.Name), ed.Timestamp.Format("2006-01-02"))
			if err := writeBook(filepath.Join(dir, name), ed, src, runDir); err != nil {
				return fmt.Errorf("book %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return &domain.RenderError{Format: FormatName, Err: err}
	}
	return nil
}

type chapter struct {
	file  string
	title string
}

func writeBook(epubPath string, ed *domain.Edition, src domain.SourceEdition, runDir string) error {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	// The mimetype entry must come first and stay uncompressed.
	mt, err := w.CreateHeader(&zip.FileHeader{
		Name:     "mimetype",
		Method:   zip.Store,
		Modified: ed.Timestamp,
	})
	if err != nil {
		return err
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		return err
	}

	add := func(name string, data []byte) error {
		f, err := w.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: ed.Timestamp,
		})
		if err != nil {
			return err
		}
		_, err = f.Write(data)
		return err
	}

	if err := add("META-INF/container.xml", []byte(containerXML)); err != nil {
		return err
	}

	var chapters []chapter
	images := map[string]string{} // local path -> media type
	n := 0
	for _, grp := range src.Groups {
		for _, item := range grp.Items {
			n++
			file := fmt.Sprintf("chap-%03d.xhtml", n)
			if err := add("OEBPS/"+file, chapterXHTML(item)); err != nil {
				return err
			}
			chapters = append(chapters, chapter{file: file, title: item.Title})
			for _, img := range item.Images {
				if img.LocalPath == "" {
					continue
				}
				if _, ok := images[img.LocalPath]; ok {
					continue
				}
				mediaType, ok := mediaTypeByExt[strings.ToLower(path.Ext(img.LocalPath))]
				if !ok {
					continue
				}
				data, err := readImage(runDir, img.LocalPath)
				if err != nil {
					// Missing file on disk just drops the picture from the book.
					continue
				}
				if err := add("OEBPS/"+img.LocalPath, data); err != nil {
					return err
				}
				images[img.LocalPath] = mediaType
			}
		}
	}

	if err := add("OEBPS/nav.xhtml", navXHTML(src.DisplayName, chapters)); err != nil {
		return err
	}
	if err := add("OEBPS/content.opf", contentOPF(ed, src, chapters, images)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return render.WriteFileAtomic(epubPath, buf.Bytes())
}

func readImage(runDir, localPath string) ([]byte, error) {
	f, err := os.Open(filepath.Join(runDir, filepath.FromSlash(localPath)))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

func contentOPF(ed *domain.Edition, src domain.SourceEdition, chapters []chapter, images map[string]string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">` + "\n")
	b.WriteString("  <metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\">\n")
	fmt.Fprintf(&b, "    <dc:identifier id=\"pub-id\">urn:inkfeed:%s:%s</dc:identifier>\n",
		render.Slug(src.Name), ed.Timestamp.Format("2006-01-02"))
	fmt.Fprintf(&b, "    <dc:title>%s %s</dc:title>\n",
		html.EscapeString(src.DisplayName), ed.Timestamp.Format("2006-01-02"))
	b.WriteString("    <dc:language>en</dc:language>\n")
	fmt.Fprintf(&b, "    <meta property=\"dcterms:modified\">%s</meta>\n",
		ed.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	b.WriteString("  </metadata>\n")

	b.WriteString("  <manifest>\n")
	b.WriteString(`    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
	for i, ch := range chapters {
		fmt.Fprintf(&b, "    <item id=\"chap-%03d\" href=\"%s\" media-type=\"application/xhtml+xml\"/>\n", i+1, ch.file)
	}
	paths := make([]string, 0, len(images))
	for localPath := range images {
		paths = append(paths, localPath)
	}
	sort.Strings(paths)
	for i, localPath := range paths {
		fmt.Fprintf(&b, "    <item id=\"img-%03d\" href=\"%s\" media-type=\"%s\"/>\n", i+1, localPath, images[localPath])
	}
	b.WriteString("  </manifest>\n")

	b.WriteString("  <spine>\n")
	b.WriteString(`    <itemref idref="nav"/>` + "\n")
	for i := range chapters {
		fmt.Fprintf(&b, "    <itemref idref=\"chap-%03d\"/>\n", i+1)
	}
	b.WriteString("  </spine>\n")
	b.WriteString("</package>\n")
	return []byte(b.String())
}

func navXHTML(title string, chapters []chapter) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	fmt.Fprintf(&b, "<head><title>%s</title></head>\n", html.EscapeString(title))
	b.WriteString("<body>\n<nav epub:type=\"toc\">\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n<ol>\n", html.EscapeString(title))
	for _, ch := range chapters {
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", ch.file, html.EscapeString(ch.title))
	}
	b.WriteString("</ol>\n</nav>\n</body>\n</html>\n")
	return []byte(b.String())
}

func chapterXHTML(item domain.Item) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml">` + "\n")
	fmt.Fprintf(&b, "<head><title>%s</title></head>\n<body>\n", html.EscapeString(item.Title))
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(item.Title))
	fmt.Fprintf(&b, "<p>%s, %s</p>\n", html.EscapeString(item.Author), render.FormatDate(item.Published))
	for _, img := range item.Images {
		if img.LocalPath == "" {
			continue
		}
		fmt.Fprintf(&b, "<p><img src=\"%s\" alt=\"%s\"/></p>\n", img.LocalPath, html.EscapeString(img.Alt))
	}
	for _, para := range strings.Split(item.Summary, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(para))
		}
	}
	if item.Content != "" {
		b.WriteString("<h2>Article</h2>\n")
		for _, para := range strings.Split(item.Content, "\n\n") {
			if para = strings.TrimSpace(para); para != "" {
				fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(para))
			}
		}
	}
	if len(item.Comments) > 0 {
		b.WriteString("<h2>Comments</h2>\n")
		writeCommentList(&b, item.Comments)
	}
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

func writeCommentList(b *strings.Builder, comments []domain.Comment) {
	b.WriteString("<ul>\n")
	for _, c := range comments {
		fmt.Fprintf(b, "<li><p><b>%s</b>: %s</p>\n",
			html.EscapeString(c.Author), html.EscapeString(strings.ReplaceAll(c.Text, "\n", " ")))
		if len(c.Children) > 0 {
			writeCommentList(b, c.Children)
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>\n")
}
