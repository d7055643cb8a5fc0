package ports

import (
	"context"

	"github.com/inkfeed/inkfeed/internal/config"
	"github.com/inkfeed/inkfeed/internal/domain"
)

// SourceAdapter pulls items from one kind of upstream provider and maps them
// into the canonical model. Adapters never download images; localization is a
// separate stage so deduplication works across all sources.
type SourceAdapter interface {
	Kind() string
	Fetch(ctx context.Context, src config.SourceConfig) ([]domain.Group, error)
}

// Localizer resolves an item's remote image references to local files,
// mutating the item in place. Refs that cannot be fetched are dropped; the
// call fails only when every image of the item failed.
type Localizer interface {
	Localize(ctx context.Context, item *domain.Item) error
}

// AssetStore is the content-addressed image directory of one run.
type AssetStore interface {
	// Write persists data under a hash-derived name and returns the path
	// relative to the run directory. Writing the same hash twice reuses the
	// first file.
	Write(hash, ext string, data []byte) (string, error)
	// Exists reports whether the hash is already stored, and where.
	Exists(hash string) (string, bool)
}

// Renderer produces one output format from a finished edition. runDir is the
// dated run directory that also holds the localized images.
type Renderer interface {
	Format() string
	Render(ctx context.Context, ed *domain.Edition, runDir string) error
}

// RenderEngine rasterizes a self-contained HTML document to PNG bytes at a
// fixed viewport size. Implementations wrap an external browser engine and
// may fail when it is unavailable.
type RenderEngine interface {
	Capture(ctx context.Context, html string, width, height int) ([]byte, error)
}
