// Package html renders an edition as a directory of static pages: an index
// with a table of contents plus one page per item.
package html

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/ports"
	"github.com/inkfeed/inkfeed/internal/render"
)

const FormatName = "html"

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Date}}</p>
{{if .Sources}}{{range .Sources}}<h2>{{.DisplayName}}</h2>
{{range .Groups}}{{if .ShowName}}<h3>{{.DisplayName}}</h3>
{{end}}<ol>
{{range .Items}}<li><a href="{{.File}}">{{.Title}}</a></li>
{{end}}</ol>
{{end}}{{end}}{{else}}<p>No items in this edition.</p>
{{end}}</body>
</html>
`))

var itemTmpl = template.Must(template.New("item").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Author}} &middot; {{.Date}}{{if .URL}} &middot; <a href="{{.URL}}">original</a>{{end}}</p>
{{range .Images}}<p><img src="{{.Src}}" alt="{{.Alt}}"></p>
{{end}}{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Article}}<h2>Article</h2>
{{range .Article}}<p>{{.}}</p>
{{end}}{{end}}{{if .Comments}}<h2>Comments</h2>
{{template "comments" .Comments}}{{end}}<p><a href="index.html">back to index</a></p>
</body>
</html>
{{define "comments"}}<ul class="comments">
{{range .}}<li><p><b>{{.Author}}</b></p>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Children}}{{template "comments" .Children}}{{end}}</li>
{{end}}</ul>
{{end}}`))

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

type indexSource struct {
	DisplayName string
	Groups      []indexGroup
}

type indexGroup struct {
	DisplayName string
	ShowName    bool
	Items       []indexItem
}

type indexItem struct {
	Title string
	File  string
}

func writeAll(ctx context.Context, ed *domain.Edition, dir string) error {
	index := struct {
		Title   string
		Date    string
		Sources []indexSource
	}{
		Title: "Edition " + ed.Timestamp.Format("2006-01-02"),
		Date:  ed.Timestamp.Format("2006-01-02 15:04 MST"),
	}

	n := 0
	for _, src := range ed.Sources {
		is := indexSource{DisplayName: src.DisplayName}
		for _, grp := range src.Groups {
			ig := indexGroup{
				DisplayName: grp.DisplayName,
				ShowName:    grp.DisplayName != src.DisplayName,
			}
			for _, item := range grp.Items {
				if err := ctx.Err(); err != nil {
					return err
				}
				n++
				file := render.ItemFileName(n, item.Title, ".html")
				if err := writeItem(dir, file, item); err != nil {
					return err
				}
				ig.Items = append(ig.Items, indexItem{Title: item.Title, File: file})
			}
			is.Groups = append(is.Groups, ig)
		}
		index.Sources = append(index.Sources, is)
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, index); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	return render.WriteFileAtomic(filepath.Join(dir, "index.html"), buf.Bytes())
}

type itemImage struct {
	Src string
	Alt string
}

type commentView struct {
	Author     string
	Paragraphs []string
	Children   []commentView
}

func commentViews(comments []domain.Comment) []commentView {
	var out []commentView
	for _, c := range comments {
		out = append(out, commentView{
			Author:     c.Author,
			Paragraphs: paragraphs(c.Text),
			Children:   commentViews(c.Children),
		})
	}
	return out
}

func paragraphs(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			out = append(out, para)
		}
	}
	return out
}

func writeItem(dir, file string, item domain.Item) error {
	data := struct {
		Title      string
		Author     string
		Date       string
		URL        string
		Images     []itemImage
		Paragraphs []string
		Article    []string
		Comments   []commentView
	}{
		Title:      item.Title,
		Author:     item.Author,
		Date:       render.FormatDate(item.Published),
		URL:        item.URL,
		Paragraphs: paragraphs(item.Summary),
		Article:    paragraphs(item.Content),
		Comments:   commentViews(item.Comments),
	}
	for _, img := range item.Images {
		if img.LocalPath == "" {
			continue
		}
		data.Images = append(data.Images, itemImage{Src: "../" + img.LocalPath, Alt: img.Alt})
	}

	var buf bytes.Buffer
	if err := itemTmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render item %s: %w", item.ID, err)
	}
	return render.WriteFileAtomic(filepath.Join(dir, file), buf.Bytes())
}
