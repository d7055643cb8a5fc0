package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/inkfeed/inkfeed/internal/config"
	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/ports"
	"github.com/inkfeed/inkfeed/internal/source"
)

const defaultMaxArticles = 30

// Adapter fetches an RSS or Atom feed and maps its entries into a single
// group.
type Adapter struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.SourceAdapter = (*Adapter)(nil)

func New(client *http.Client, logger *slog.Logger) *Adapter {
	if client == nil {
		client = source.NewHTTPClient()
	}
	return &Adapter{client: client, logger: logger}
}

// Kind identifies the adapter inside the registry.
func (a *Adapter) Kind() string {
	return string(domain.KindRSS)
}

// Fetch downloads the feed and converts up to MaxArticles entries. Entries
// that cannot be mapped are skipped; the whole source fails only when the
// feed itself cannot be fetched or parsed.
func (a *Adapter) Fetch(ctx context.Context, src config.SourceConfig) ([]domain.Group, error) {
	if src.URL == "" {
		return nil, fmt.Errorf("source %s: url is required", src.Name)
	}

	body, _, err := source.GetBody(ctx, a.client, src.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	limit := src.MaxArticles
	if limit <= 0 {
		limit = defaultMaxArticles
	}

	group := domain.Group{
		DisplayName: src.Display(),
		Slug:        src.Name,
	}
	if group.DisplayName == src.Name && feed.Title != "" {
		group.DisplayName = feed.Title
	}

	for _, entry := range feed.Items {
		if len(group.Items) >= limit {
			break
		}
		item, err := a.mapEntry(ctx, src, entry)
		if err != nil {
			a.debug("skip entry", "source", src.Name, "error", err)
			continue
		}
		group.Items = append(group.Items, *item)
	}

	if len(group.Items) == 0 {
		return nil, nil
	}
	return []domain.Group{group}, nil
}

func (a *Adapter) mapEntry(ctx context.Context, src config.SourceConfig, entry *gofeed.Item) (*domain.Item, error) {
	if entry.Title == "" && entry.Link == "" {
		return nil, fmt.Errorf("entry has neither title nor link")
	}

	body := entry.Content
	if body == "" {
		body = entry.Description
	}
	summary, images, err := source.ExtractText(body)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}

	if entry.Image != nil && entry.Image.URL != "" {
		images = appendImage(images, domain.ImageRef{
			URL: entry.Image.URL,
			Alt: entry.Image.Title,
		})
	}

	content := ""
	if src.ContentEnabled() && entry.Link != "" {
		text, imgs, err := source.FetchArticle(ctx, a.client, entry.Link)
		if err != nil {
			a.debug("article fetch failed", "source", src.Name, "url", entry.Link, "error", err)
		} else {
			content = text
			for _, img := range imgs {
				images = appendImage(images, img)
			}
		}
	}

	id := entry.GUID
	if id == "" {
		id = entry.Link
	}

	return &domain.Item{
		ID:        src.Name + "/" + id,
		Title:     entry.Title,
		URL:       entry.Link,
		Author:    entryAuthor(entry),
		Published: entryDate(entry),
		Summary:   summary,
		Content:   content,
		Images:    images,
		Kind:      domain.KindRSS,
	}, nil
}

func entryAuthor(entry *gofeed.Item) string {
	if entry.Author != nil && entry.Author.Name != "" {
		return entry.Author.Name
	}
	if len(entry.Authors) > 0 && entry.Authors[0].Name != "" {
		return entry.Authors[0].Name
	}
	return "unknown"
}

// entryDate prefers the published timestamp, falls back to updated, and
// returns nil when the feed carries neither.
func entryDate(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		ts := entry.PublishedParsed.UTC()
		return &ts
	}
	if entry.UpdatedParsed != nil {
		ts := entry.UpdatedParsed.UTC()
		return &ts
	}
	return nil
}

func appendImage(images []domain.ImageRef, ref domain.ImageRef) []domain.ImageRef {
	for _, img := range images {
		if img.URL == ref.URL {
			return images
		}
	}
	return append(images, ref)
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
