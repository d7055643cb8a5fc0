package hackernews

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
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
	hnAPI      = "https://hacker-news.firebaseio.com/v0"
	algoliaAPI = "https://hn.algolia.com/api/v1"

	defaultTopStories = 30

	defaultCommentDepth     = 3
	defaultCommentsPerLevel = 10
)

// Adapter fetches the Hacker News front page through the Firebase top-stories
// list and the Algolia item API, which returns the full comment tree in one
// call per story.
type Adapter struct {
	client  *http.Client
	baseURL string
	itemURL string
	workers int
	logger  *slog.Logger
}

var _ ports.SourceAdapter = (*Adapter)(nil)

// New wires an HTTP client; workers bounds the per-story fan-out.
func New(client *http.Client, workers int, logger *slog.Logger) *Adapter {
	if client == nil {
		client = source.NewHTTPClient()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Adapter{
		client:  client,
		baseURL: hnAPI,
		itemURL: algoliaAPI,
		workers: workers,
		logger:  logger,
	}
}

// Kind identifies the adapter inside the registry.
func (a *Adapter) Kind() string {
	return string(domain.KindHackerNews)
}

// Fetch returns one group with the top stories in front-page ranking order.
// Individual stories that fail or turn out not to be stories are skipped;
// only the top-stories request itself can fail the source.
func (a *Adapter) Fetch(ctx context.Context, src config.SourceConfig) ([]domain.Group, error) {
	limit := src.TopStories
	if limit <= 0 {
		limit = defaultTopStories
	}

	var ids []int64
	if err := source.GetJSON(ctx, a.client, a.baseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("top stories: %w", err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	// Indexed results preserve the front-page ranking regardless of which
	// story resolves first.
	items := make([]*domain.Item, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, id := range ids {
		g.Go(func() error {
			item, err := a.fetchStory(gctx, src, id)
			if err != nil {
				a.debug("skip story", "id", id, "error", err)
				return nil
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	group := domain.Group{
		DisplayName: src.Display(),
		Slug:        src.Name,
	}
	for _, item := range items {
		if item != nil {
			group.Items = append(group.Items, *item)
		}
	}

	return []domain.Group{group}, nil
}

type algoliaItem struct {
	ID         int64         `json:"id"`
	Type       string        `json:"type"`
	Title      string        `json:"title"`
	URL        string        `json:"url"`
	Author     string        `json:"author"`
	Points     int           `json:"points"`
	Text       string        `json:"text"`
	CreatedAtI int64         `json:"created_at_i"`
	Children   []algoliaItem `json:"children"`
}

func (a *Adapter) fetchStory(ctx context.Context, src config.SourceConfig, id int64) (*domain.Item, error) {
	var story algoliaItem
	url := fmt.Sprintf("%s/items/%d", a.itemURL, id)
	if err := source.GetJSON(ctx, a.client, url, &story); err != nil {
		return nil, err
	}
	if story.Type != "story" || story.Title == "" {
		return nil, fmt.Errorf("item %d is not a story", id)
	}

	itemURL := story.URL
	if itemURL == "" {
		itemURL = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID)
	}

	summary := ""
	var images []domain.ImageRef
	if story.Text != "" {
		text, imgs, err := source.ExtractText(story.Text)
		if err == nil {
			summary = text
			images = imgs
		}
	}

	content := ""
	// Only external links carry an article; the site's own item pages are
	// just the discussion we already have.
	if src.ContentEnabled() && story.URL != "" && !strings.Contains(story.URL, "news.ycombinator.com") {
		text, imgs, err := source.FetchArticle(ctx, a.client, story.URL)
		if err != nil {
			a.debug("article fetch failed", "id", id, "url", story.URL, "error", err)
		} else {
			content = text
			images = appendImages(images, imgs)
		}
	}

	var comments []domain.Comment
	if src.CommentsEnabled() {
		depth := src.MaxCommentDepth
		if depth <= 0 {
			depth = defaultCommentDepth
		}
		perLevel := src.MaxCommentsPerLevel
		if perLevel <= 0 {
			perLevel = defaultCommentsPerLevel
		}
		comments = trimComments(story.Children, 0, depth, perLevel)
	}

	published := time.Unix(story.CreatedAtI, 0).UTC()

	item := &domain.Item{
		ID:        src.Name + "/" + strconv.FormatInt(story.ID, 10),
		Title:     story.Title,
		URL:       itemURL,
		Author:    story.Author,
		Published: &published,
		Summary:   summary,
		Content:   content,
		Images:    images,
		Comments:  comments,
		Kind:      domain.KindHackerNews,
		Meta: map[string]string{
			"score":    strconv.Itoa(story.Points),
			"comments": strconv.Itoa(countDescendants(story.Children)),
		},
	}
	return item, nil
}

// trimComments converts the Algolia comment tree into the domain shape,
// keeping at most perLevel comments per level down to the depth limit.
func trimComments(children []algoliaItem, depth, maxDepth, perLevel int) []domain.Comment {
	if depth >= maxDepth {
		return nil
	}
	var out []domain.Comment
	for _, child := range children {
		if child.Type != "comment" {
			continue
		}
		if len(out) >= perLevel {
			break
		}
		text, _, err := source.ExtractText(child.Text)
		if err != nil || text == "" {
			continue
		}
		published := time.Unix(child.CreatedAtI, 0).UTC()
		out = append(out, domain.Comment{
			Author:    child.Author,
			Text:      text,
			Published: &published,
			Children:  trimComments(child.Children, depth+1, maxDepth, perLevel),
		})
	}
	return out
}

func appendImages(images []domain.ImageRef, more []domain.ImageRef) []domain.ImageRef {
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		seen[img.URL] = struct{}{}
	}
	for _, img := range more {
		if _, ok := seen[img.URL]; ok {
			continue
		}
		seen[img.URL] = struct{}{}
		images = append(images, img)
	}
	return images
}

// countDescendants totals the comment tree returned by Algolia, which does
// not carry a descendant count of its own.
func countDescendants(children []algoliaItem) int {
	total := 0
	for _, child := range children {
		if child.Type != "comment" {
			continue
		}
		total += 1 + countDescendants(child.Children)
	}
	return total
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
