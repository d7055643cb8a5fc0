// Package markdown renders an edition as an index.md plus one Markdown file
// per item.
package markdown

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/ports"
	"github.com/inkfeed/inkfeed/internal/render"
)

const FormatName = "markdown"

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
				file := render.ItemFileName(n, item.Title, ".md")
				if err := writeItem(dir, file, item); err != nil {
					return err
				}
				fmt.Fprintf(&index, "%d. [%s](%s)\n", n, item.Title, file)
			}
			index.WriteString("\n")
		}
	}

	return render.WriteFileAtomic(filepath.Join(dir, "index.md"), []byte(index.String()))
}

func writeItem(dir, file string, item domain.Item) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	fmt.Fprintf(&b, "*%s · %s*\n\n", item.Author, render.FormatDate(item.Published))
	if score, ok := item.Meta["score"]; ok {
		line := score + " points"
		if comments, ok := item.Meta["comments"]; ok {
			line += " · " + comments + " comments"
		}
		fmt.Fprintf(&b, "*%s*\n\n", line)
	}
	if item.URL != "" {
		fmt.Fprintf(&b, "[original](%s)\n\n", item.URL)
	}
	for _, img := range item.Images {
		if img.LocalPath == "" {
			continue
		}
		fmt.Fprintf(&b, "![%s](../%s)\n\n", img.Alt, img.LocalPath)
	}
	for _, para := range strings.Split(item.Summary, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			fmt.Fprintf(&b, "%s\n\n", para)
		}
	}
	if item.Content != "" {
		b.WriteString("## Article\n\n")
		for _, para := range strings.Split(item.Content, "\n\n") {
			if para = strings.TrimSpace(para); para != "" {
				fmt.Fprintf(&b, "%s\n\n", para)
			}
		}
	}
	if len(item.Comments) > 0 {
		b.WriteString("## Comments\n\n")
		writeComments(&b, item.Comments, 0)
		b.WriteString("\n")
	}
	b.WriteString("[back to index](index.md)\n")

	return render.WriteFileAtomic(filepath.Join(dir, file), []byte(b.String()))
}

// writeComments renders the discussion tree as a nested bullet list, one
// bullet per comment with paragraph breaks flattened.
func writeComments(b *strings.Builder, comments []domain.Comment, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, c := range comments {
		text := strings.ReplaceAll(c.Text, "\n\n", " ")
		text = strings.ReplaceAll(text, "\n", " ")
		fmt.Fprintf(b, "%s- **%s**: %s\n", indent, c.Author, text)
		writeComments(b, c.Children, depth+1)
	}
}
