package source

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/inkfeed/inkfeed/internal/domain"
)

// ExtractText converts an HTML fragment into a plain-text summary plus the
// ordered list of image references it embeds. Script, style and noscript
// content is dropped entirely; block elements become paragraphs.
func ExtractText(html string) (string, []domain.ImageRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, svg").Remove()
	text, images := extractFrom(doc.Selection)
	return text, images, nil
}

// extractFrom turns a cleaned selection into paragraphs and image refs.
func extractFrom(sel *goquery.Selection) (string, []domain.ImageRef) {
	var images []domain.ImageRef
	seen := map[string]struct{}{}
	sel.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if _, ok := seen[src]; ok {
			return
		}
		seen[src] = struct{}{}
		images = append(images, domain.ImageRef{
			URL: src,
			Alt: strings.TrimSpace(s.AttrOr("alt", "")),
		})
	})

	var parts []string
	blocks := sel.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre, figcaption")
	blocks.Each(func(_ int, s *goquery.Selection) {
		// Containers whose text is covered by a nested block would duplicate.
		if s.Find("p, li, blockquote, pre").Length() > 0 {
			return
		}
		if t := collapse(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		if t := collapse(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	}

	return strings.Join(parts, "\n\n"), images
}

// Truncate cuts text to at most max runes at a word boundary, appending an
// ellipsis when anything was removed.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \t\n") + "…"
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
