// Package gemtext renders an edition in the Gemini text format: an
// index.gmi with links plus one .gmi page per item.
package gemtext

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/ports"
	"github.com/inkfeed/inkfeed/internal/render"
)

const FormatName = "gemtext"

type Renderer struct{}

var _ ports.Renderer = (*Renderer)(nil)

func New() *Renderer { return &Renderer{} }

func (r *Renderer) Format() string { return FormatName }

func (r *Renderer) Render(ctx context.Context, ed *domain.Edition, runDir string) error {
	_, err := render.BuildDir(runDir, FormatName, func(dir string) error {
		return writeAll(ctx, ed, dir)
	})
	if err != nil {
		return &domain.RenderError{Format: FormatName, Err: err}
	}
	return nil
}

func writeAll(ctx context.Context, ed *domain.Edition, dir string) error {
	var index strings.Builder
	fmt.Fprintf(&index, "# Edition %s\n\n", ed.Timestamp.Format("2006-01-02"))
	fmt.Fprintf(&index, "%s\n\n", ed.Timestamp.Format("2006-01-02 15:04 MST"))

	if len(ed.Sources) == 0 {
		index.WriteString("No items in this edition.\n")
	}

	n := 0
	for _, src := range ed.Sources {
		fmt.Fprintf(&index, "## %s\n\n", src.DisplayName)
		for _, grp := range src.Groups {
			if grp.DisplayName != src.DisplayName {
				fmt.Fprintf(&index, "### %s\n\n", grp.DisplayName)
			}
			for _, item := range grp.Items {
				if err := ctx.Err(); err != nil {
					return err
				}
				n++
				file := render.ItemFileName(n, item.Title, ".gmi")
				if err := writeItem(dir, file, item); err != nil {
					return err
				}
				fmt.Fprintf(&index, "=> %s %s\n", file, item.Title)
			}
			index.WriteString("\n")
		}
	}

	return render.WriteFileAtomic(filepath.Join(dir, "index.gmi"), []byte(index.String()))
}

func writeItem(dir, file string, item domain.Item) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	fmt.Fprintf(&b, "%s, %s\n\n", item.Author, render.FormatDate(item.Published))
	if item.URL != "" {
		fmt.Fprintf(&b, "=> %s original\n\n", item.URL)
	}
	for _, img := range item.Images {
		if img.LocalPath == "" {
			continue
		}
		label := img.Alt
		if label == "" {
			label = "image"
		}
		fmt.Fprintf(&b, "=> ../%s %s\n", img.LocalPath, label)
	}
	if hasLocalImage(item) {
		b.WriteString("\n")
	}
	for _, para := range strings.Split(item.Summary, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			// Gemtext lines must not contain raw newlines inside a paragraph.
			fmt.Fprintf(&b, "%s\n\n", strings.ReplaceAll(para, "\n", " "))
		}
	}
	if item.Content != "" {
		b.WriteString("## Article\n\n")
		for _, para := range strings.Split(item.Content, "\n\n") {
			if para = strings.TrimSpace(para); para != "" {
				fmt.Fprintf(&b, "%s\n\n", strings.ReplaceAll(para, "\n", " "))
			}
		}
	}
	if len(item.Comments) > 0 {
		b.WriteString("## Comments\n\n")
		writeComments(&b, item.Comments, 0)
		b.WriteString("\n")
	}
	b.WriteString("=> index.gmi back to index\n")

	return render.WriteFileAtomic(filepath.Join(dir, file), []byte(b.String()))
}

// writeComments flattens the discussion tree into list lines; replies carry
// a depth marker since gemtext lists do not nest.
func writeComments(b *strings.Builder, comments []domain.Comment, depth int) {
	marker := strings.Repeat("· ", depth)
	for _, c := range comments {
		text := strings.ReplaceAll(c.Text, "\n\n", " ")
		text = strings.ReplaceAll(text, "\n", " ")
		fmt.Fprintf(b, "* %s%s: %s\n", marker, c.Author, text)
		writeComments(b, c.Children, depth+1)
	}
}

func hasLocalImage(item domain.Item) bool {
	for _, img := range item.Images {
		if img.LocalPath != "" {
			return true
		}
	}
	return false
}
