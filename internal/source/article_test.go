package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>Post</title><style>p{color:red}</style></head>
<body>
<nav><a href="/">Home</a><a href="/about">About</a></nav>
<header>Site header with a tagline nobody reads</header>
<article>
<h1>The actual headline</h1>
<p>First paragraph of the article body, long enough to count as content.</p>
<p>Second paragraph, with an illustration below.</p>
<img src="https://example.com/figure.png" alt="figure">
</article>
<footer>Copyright and links</footer>
</body></html>`

func TestExtractArticlePicksContentNode(t *testing.T) {
	t.Parallel()

	text, images, err := ExtractArticle(samplePage)
	if err != nil {
		t.Fatalf("ExtractArticle: %v", err)
	}
	if !strings.Contains(text, "First paragraph of the article body") {
		t.Errorf("text = %q, want article body", text)
	}
	if !strings.Contains(text, "The actual headline") {
		t.Errorf("text = %q, want headline kept", text)
	}
	for _, chrome := range []string{"Home", "tagline", "Copyright"} {
		if strings.Contains(text, chrome) {
			t.Errorf("text contains page chrome %q", chrome)
		}
	}
	if len(images) != 1 || images[0].URL != "https://example.com/figure.png" {
		t.Errorf("images = %+v", images)
	}
}

func TestExtractArticleBodyFallback(t *testing.T) {
	t.Parallel()

	page := `<html><body><p>` + strings.Repeat("plain body text ", 10) + `</p></body></html>`
	text, _, err := ExtractArticle(page)
	if err != nil {
		t.Fatalf("ExtractArticle: %v", err)
	}
	if !strings.Contains(text, "plain body text") {
		t.Errorf("text = %q, want body fallback", text)
	}
}

func TestExtractArticleRejectsThinPages(t *testing.T) {
	t.Parallel()

	text, images, err := ExtractArticle(`<html><body><article><p>Too short.</p></article></body></html>`)
	if err != nil {
		t.Fatalf("ExtractArticle: %v", err)
	}
	if text != "" || images != nil {
		t.Errorf("text = %q, images = %+v, want empty for a thin page", text, images)
	}
}

func TestFetchArticleSkipsNonHTML(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	}))
	t.Cleanup(srv.Close)

	text, images, err := FetchArticle(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("FetchArticle: %v", err)
	}
	if text != "" || images != nil {
		t.Errorf("text = %q, images = %+v, want empty for a non-HTML response", text, images)
	}
}

func TestFetchArticleReturnsFetchErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	if _, _, err := FetchArticle(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatal("FetchArticle should surface the HTTP failure")
	}
}
