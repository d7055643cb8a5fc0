package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/inkfeed/inkfeed/internal/domain"
)

// minArticleRunes guards against extractions that hit boilerplate instead of
// the article body.
const minArticleRunes = 50

// candidateSelectors are tried in order of specificity when hunting for the
// main content node of an arbitrary page.
var candidateSelectors = []string{
	"article",
	"main",
	"[role=main]",
	"#content",
	".post-content",
	".entry-content",
	".article-body",
}

// FetchArticle downloads the page behind url and extracts its readable text
// and images. Non-HTML responses and pages with too little extractable text
// yield empty results rather than an error; only the fetch itself can fail.
func FetchArticle(ctx context.Context, client *http.Client, url string) (string, []domain.ImageRef, error) {
	body, contentType, err := GetBody(ctx, client, url)
	if err != nil {
		return "", nil, err
	}
	if !strings.Contains(contentType, "text/html") {
		return "", nil, nil
	}
	return ExtractArticle(string(body))
}

// ExtractArticle pulls the readable body text out of a full HTML page:
// navigation and other chrome are stripped, then the densest content
// candidate wins. Pages that yield almost no text come back empty.
func ExtractArticle(html string) (string, []domain.ImageRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, fmt.Errorf("parse article: %w", err)
	}

	doc.Find("script, style, noscript, svg, nav, header, footer, aside, form, iframe").Remove()

	sel := doc.Selection
	if body := doc.Find("body"); body.Length() > 0 {
		sel = body
	}
	best := sel
	bestLen := 0
	for _, candidate := range candidateSelectors {
		doc.Find(candidate).Each(func(_ int, s *goquery.Selection) {
			if l := len(collapse(s.Text())); l > bestLen {
				best = s
				bestLen = l
			}
		})
		if bestLen > 0 {
			break
		}
	}

	text, images := extractFrom(best)
	if len([]rune(text)) < minArticleRunes {
		return "", nil, nil
	}
	return text, images, nil
}
