// Package sleepscreen renders a single fixed-size grayscale image of the
// edition, sized for e-ink standby displays. The layout is composed as HTML
// and rasterized by an external render engine.
package sleepscreen

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"image"
	"image/draw"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/inkfeed/inkfeed/internal/config"
	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/ports"
	"github.com/inkfeed/inkfeed/internal/render"
	"github.com/inkfeed/inkfeed/internal/source"
)

const FormatName = "sleepscreen"

type Renderer struct {
	engine ports.RenderEngine
	cfg    config.SleepscreenConfig
}

var _ ports.Renderer = (*Renderer)(nil)

func New(engine ports.RenderEngine, cfg config.SleepscreenConfig) *Renderer {
	return &Renderer{engine: engine, cfg: cfg}
}

func (r *Renderer) Format() string { return FormatName }

func (r *Renderer) Render(ctx context.Context, ed *domain.Edition, runDir string) error {
	if r.engine == nil {
		return &domain.RenderError{Format: FormatName, Err: fmt.Errorf("no render engine available")}
	}

	shot, err := r.engine.Capture(ctx, compose(ed, r.cfg), r.cfg.Width, r.cfg.Height)
	if err != nil {
		return &domain.RenderError{Format: FormatName, Err: fmt.Errorf("capture: %w", err)}
	}

	gray, err := toGrayPNG(shot)
	if err != nil {
		return &domain.RenderError{Format: FormatName, Err: err}
	}

	_, err = render.BuildDir(runDir, FormatName, func(dir string) error {
		return render.WriteFileAtomic(filepath.Join(dir, "sleepscreen.png"), gray)
	})
	if err != nil {
		return &domain.RenderError{Format: FormatName, Err: err}
	}
	return nil
}

// toGrayPNG re-encodes a screenshot as an 8-bit grayscale PNG.
func toGrayPNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode grayscale: %w", err)
	}
	return buf.Bytes(), nil
}

// compose lays out a handful of spotlight stories with excerpts followed by
// a plain headline list, capped to keep the fixed canvas readable.
func compose(ed *domain.Edition, cfg config.SleepscreenConfig) string {
	type entry struct {
		title   string
		excerpt string
		source  string
	}
	var entries []entry
	for _, src := range ed.Sources {
		for _, grp := range src.Groups {
			for _, item := range grp.Items {
				entries = append(entries, entry{
					title:   item.Title,
					excerpt: source.Truncate(firstParagraph(item.Summary), cfg.MaxExcerptChars),
					source:  src.DisplayName,
				})
			}
		}
	}

	spotlight := cfg.SpotlightCount
	if spotlight > len(entries) {
		spotlight = len(entries)
	}
	rest := entries[spotlight:]
	if len(rest) > cfg.MaxHeadlines {
		rest = rest[:cfg.MaxHeadlines]
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
html,body{margin:0;padding:0;width:%dpx;height:%dpx;background:#fff;color:#000;
font-family:Georgia,serif;overflow:hidden}
.wrap{padding:16px}
.stamp{font-size:13px;color:#444;margin-bottom:12px}
.card{border-bottom:1px solid #000;padding-bottom:10px;margin-bottom:10px}
.card h2{font-size:20px;margin:0 0 4px 0}
.card .src{font-size:12px;color:#555}
.card p{font-size:14px;margin:4px 0 0 0}
ul{list-style:none;padding:0;margin:0}
li{font-size:14px;padding:4px 0;border-bottom:1px dotted #888}
.empty{font-size:18px;margin-top:40px;text-align:center}
</style></head><body><div class="wrap">
`, cfg.Width, cfg.Height)
	fmt.Fprintf(&b, "<div class=\"stamp\">as of %s</div>\n", ed.Timestamp.Format("2006-01-02 15:04 MST"))

	if len(entries) == 0 {
		b.WriteString("<div class=\"empty\">No news in this edition.</div>\n")
	}

	for _, e := range entries[:spotlight] {
		b.WriteString("<div class=\"card\">\n")
		fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(e.title))
		fmt.Fprintf(&b, "<div class=\"src\">%s</div>\n", html.EscapeString(e.source))
		if e.excerpt != "" {
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(e.excerpt))
		}
		b.WriteString("</div>\n")
	}

	if len(rest) > 0 {
		b.WriteString("<ul>\n")
		for _, e := range rest {
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(e.title))
		}
		b.WriteString("</ul>\n")
	}

	b.WriteString("</div></body></html>\n")
	return b.String()
}

func firstParagraph(summary string) string {
	for _, para := range strings.Split(summary, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			return para
		}
	}
	return ""
}
