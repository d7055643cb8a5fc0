package kaginews

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inkfeed/inkfeed/internal/config"
	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/ports"
	"github.com/inkfeed/inkfeed/internal/source"
)

const (
	kagiAPI = "https://news.kagi.com"

	defaultLanguage   = "en"
	defaultMaxStories = 50
)

// citationExpr matches the [domain#N] markers Kagi embeds in summaries.
var citationExpr = regexp.MustCompile(` ?\[[a-zA-Z0-9._-]+\.[a-zA-Z]{2,}#\d+\]`)

// Adapter fetches the latest Kagi News batch and produces one group per
// configured category, in configuration order.
type Adapter struct {
	client  *http.Client
	baseURL string
	workers int
	logger  *slog.Logger
}

var _ ports.SourceAdapter = (*Adapter)(nil)

// New wires an HTTP client; workers bounds the per-category fan-out.
func New(client *http.Client, workers int, logger *slog.Logger) *Adapter {
	if client == nil {
		client = source.NewHTTPClient()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Adapter{
		client:  client,
		baseURL: kagiAPI,
		workers: workers,
		logger:  logger,
	}
}

// Kind identifies the adapter inside the registry.
func (a *Adapter) Kind() string {
	return string(domain.KindKagiNews)
}

// Fetch resolves the newest batch, maps configured category slugs to their
// batch UUIDs, and fetches every category's stories in parallel. Unknown
// slugs are skipped with a warning; a category whose request fails is
// recorded as empty rather than failing the source.
func (a *Adapter) Fetch(ctx context.Context, src config.SourceConfig) ([]domain.Group, error) {
	if len(src.Categories) == 0 {
		return nil, fmt.Errorf("source %s: no categories configured", src.Name)
	}

	lang := src.Language
	if lang == "" {
		lang = defaultLanguage
	}

	batchID, err := a.latestBatchID(ctx, lang)
	if err != nil {
		return nil, fmt.Errorf("latest batch: %w", err)
	}

	categories, err := a.fetchCategories(ctx, batchID, lang)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}

	limit := src.MaxStories
	if limit <= 0 {
		limit = defaultMaxStories
	}

	// Indexed results keep configuration order independent of completion
	// order.
	groups := make([]*domain.Group, len(src.Categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, slug := range src.Categories {
		cat, ok := categories[slug]
		if !ok {
			a.warn("unknown category", "source", src.Name, "category", slug)
			continue
		}
		g.Go(func() error {
			stories, err := a.fetchStories(gctx, batchID, cat.ID, lang, limit)
			if err != nil {
				a.warn("category failed", "source", src.Name, "category", slug, "error", err)
				return nil
			}
			group := &domain.Group{
				DisplayName: cat.Name,
				Slug:        slug,
			}
			for _, story := range stories {
				item, err := mapStory(src.Name, slug, story)
				if err != nil {
					a.debug("skip story", "category", slug, "error", err)
					continue
				}
				group.Items = append(group.Items, *item)
			}
			groups[i] = group
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var result []domain.Group
	for _, group := range groups {
		if group != nil && len(group.Items) > 0 {
			result = append(result, *group)
		}
	}
	return result, nil
}

type kagiCategory struct {
	ID   string
	Name string
}

func (a *Adapter) latestBatchID(ctx context.Context, lang string) (string, error) {
	var resp struct {
		Batches []struct {
			ID string `json:"id"`
		} `json:"batches"`
	}
	u := fmt.Sprintf("%s/api/batches?lang=%s", a.baseURL, url.QueryEscape(lang))
	if err := source.GetJSON(ctx, a.client, u, &resp); err != nil {
		return "", err
	}
	if len(resp.Batches) == 0 {
		return "", fmt.Errorf("no batches available")
	}
	return resp.Batches[0].ID, nil
}

func (a *Adapter) fetchCategories(ctx context.Context, batchID, lang string) (map[string]kagiCategory, error) {
	var resp struct {
		Categories []struct {
			ID           string `json:"id"`
			CategoryID   string `json:"categoryId"`
			CategoryName string `json:"categoryName"`
		} `json:"categories"`
	}
	u := fmt.Sprintf("%s/api/batches/%s/categories?lang=%s", a.baseURL, batchID, url.QueryEscape(lang))
	if err := source.GetJSON(ctx, a.client, u, &resp); err != nil {
		return nil, err
	}

	categories := make(map[string]kagiCategory, len(resp.Categories))
	for _, cat := range resp.Categories {
		name := cat.CategoryName
		if name == "" {
			name = titleCase(cat.CategoryID)
		}
		categories[cat.CategoryID] = kagiCategory{ID: cat.ID, Name: name}
	}
	return categories, nil
}

type kagiStory struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Summary       string        `json:"summary"`
	ShortSummary  string        `json:"short_summary"`
	Emoji         string        `json:"emoji"`
	Category      string        `json:"category"`
	UniqueDomains int           `json:"unique_domains"`
	Articles      []kagiArticle `json:"articles"`
}

type kagiArticle struct {
	Link   string `json:"link"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
	Date   string `json:"date"`
}

func (a *Adapter) fetchStories(ctx context.Context, batchID, categoryID, lang string, limit int) ([]kagiStory, error) {
	var resp struct {
		Stories []kagiStory `json:"stories"`
	}
	u := fmt.Sprintf("%s/api/batches/%s/categories/%s/stories?lang=%s&limit=%d",
		a.baseURL, batchID, categoryID, url.QueryEscape(lang), limit)
	if err := source.GetJSON(ctx, a.client, u, &resp); err != nil {
		return nil, err
	}
	return resp.Stories, nil
}

func mapStory(sourceName, slug string, story kagiStory) (*domain.Item, error) {
	if story.Title == "" {
		return nil, fmt.Errorf("story %s has no title", story.ID)
	}

	summary := story.Summary
	if summary == "" {
		summary = story.ShortSummary
	}
	summary = strings.TrimSpace(citationExpr.ReplaceAllString(summary, ""))

	itemURL := ""
	if len(story.Articles) > 0 {
		itemURL = story.Articles[0].Link
	}

	id := story.ID
	if id == "" {
		id = slug + "-" + story.Title
	}

	return &domain.Item{
		ID:        sourceName + "/" + id,
		Title:     story.Title,
		URL:       itemURL,
		Author:    "Kagi News",
		Published: earliestArticleDate(story.Articles),
		Summary:   summary,
		Kind:      domain.KindKagiNews,
		Meta: map[string]string{
			"category":       slug,
			"emoji":          story.Emoji,
			"unique_domains": strconv.Itoa(story.UniqueDomains),
		},
	}, nil
}

// earliestArticleDate returns the oldest publication date among the cited
// source articles, or nil when none of them parses.
func earliestArticleDate(articles []kagiArticle) *time.Time {
	var earliest *time.Time
	for _, art := range articles {
		if art.Date == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, art.Date)
		if err != nil {
			continue
		}
		parsed = parsed.UTC()
		if earliest == nil || parsed.Before(*earliest) {
			earliest = &parsed
		}
	}
	return earliest
}

// titleCase turns a slug like "world_news" into "World News".
func titleCase(slug string) string {
	words := strings.Split(slug, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (a *Adapter) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
