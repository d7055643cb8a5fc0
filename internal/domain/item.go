package domain

import "time"

// SourceKind tags the provider an item came from.
type SourceKind string

const (
	KindHackerNews SourceKind = "hackernews"
	KindKagiNews   SourceKind = "kaginews"
	KindRSS        SourceKind = "rss"
)

// ImageRef points at a remote image and, once localized, at its on-disk copy.
type ImageRef struct {
	URL       string
	Alt       string
	LocalPath string // relative to the run directory, e.g. "images/<hash>.png"
	Hash      string // sha256 of the image bytes
}

// Item is the canonical shape every source adapter maps into.
type Item struct {
	ID        string // source-qualified, unique within one edition
	Title     string
	URL       string
	Author    string
	Published *time.Time // nil when the source carries no usable date
	Summary   string     // plain text, paragraphs separated by blank lines
	Content   string     // readable text of the linked article, may be empty
	Images    []ImageRef
	Comments  []Comment
	Kind      SourceKind
	Meta      map[string]string // source-specific extras (score, comments, ...)
}

// Comment is one node of a discussion tree, already trimmed to the configured
// depth and width by the adapter.
type Comment struct {
	Author    string
	Text      string // plain text
	Published *time.Time
	Children  []Comment
}

// Group is one ordered run of items inside a source. Single-group sources
// (RSS, Hacker News) produce exactly one whose slug equals the source name;
// Kagi News produces one per category.
type Group struct {
	DisplayName string
	Slug        string
	Items       []Item
}

// SourceEdition is one source's contribution to an edition.
type SourceEdition struct {
	Name        string
	DisplayName string
	Kind        SourceKind
	Groups      []Group
}

// Edition is the immutable snapshot rendered by every format writer.
// Source order follows configuration order; item order inside a group is
// whatever the adapter returned.
type Edition struct {
	Timestamp time.Time
	Sources   []SourceEdition
}

// TotalItems counts items across all sources and groups.
func (e *Edition) TotalItems() int {
	total := 0
	for _, src := range e.Sources {
		for _, grp := range src.Groups {
			total += len(grp.Items)
		}
	}
	return total
}

// Empty reports whether the edition carries no items at all.
func (e *Edition) Empty() bool {
	return e.TotalItems() == 0
}

// FetchOutcome records how one configured source fared during the fetch stage.
type FetchOutcome struct {
	Source      string
	DisplayName string
	Kind        SourceKind
	Groups      []Group
	Err         error
	Attempts    int
	// AssetFailures counts images that stayed remote after retries.
	AssetFailures int
}

// Failed reports whether the source produced no usable result.
func (o FetchOutcome) Failed() bool {
	return o.Err != nil
}

// RenderResult records how one format renderer fared during the render stage.
type RenderResult struct {
	Format string
	Path   string
	Err    error
}
