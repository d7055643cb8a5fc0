// Package app wires the configured sources, the image pipeline and the
// format renderers into one run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inkfeed/inkfeed/internal/assets"
	"github.com/inkfeed/inkfeed/internal/config"
	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/fetch"
	"github.com/inkfeed/inkfeed/internal/ports"
	"github.com/inkfeed/inkfeed/internal/render/epub"
	"github.com/inkfeed/inkfeed/internal/render/gemtext"
	renderhtml "github.com/inkfeed/inkfeed/internal/render/html"
	"github.com/inkfeed/inkfeed/internal/render/markdown"
	"github.com/inkfeed/inkfeed/internal/render/sleepscreen"
	"github.com/inkfeed/inkfeed/internal/source"
	"github.com/inkfeed/inkfeed/internal/source/hackernews"
	"github.com/inkfeed/inkfeed/internal/source/kaginews"
	"github.com/inkfeed/inkfeed/internal/source/rss"
)

// App is the composed application.
type App struct {
	cfg       config.Config
	logger    *slog.Logger
	registry  *source.Registry
	renderers []ports.Renderer
}

// New builds the adapter registry and the renderer list from configuration.
// Unknown output formats are skipped with a warning so one typo does not
// block the rest of the run.
func New(cfg config.Config, logger *slog.Logger) *App {
	client := source.NewHTTPClient()

	registry := source.NewRegistry()
	registry.Register(hackernews.New(client, cfg.Workers.Sources, logger.With("component", "hackernews")))
	registry.Register(kaginews.New(client, cfg.Workers.Sources, logger.With("component", "kaginews")))
	registry.Register(rss.New(client, logger.With("component", "rss")))

	var renderers []ports.Renderer
	for _, format := range cfg.OutputFormats {
		switch format {
		case renderhtml.FormatName:
			renderers = append(renderers, renderhtml.New())
		case markdown.FormatName:
			renderers = append(renderers, markdown.New())
		case gemtext.FormatName:
			renderers = append(renderers, gemtext.New())
		case epub.FormatName:
			renderers = append(renderers, epub.New())
		case sleepscreen.FormatName:
			renderers = append(renderers, sleepscreen.New(sleepscreen.NewChromeEngine(), cfg.Sleepscreen))
		default:
			logger.Warn("unknown output format, skipping", "format", format)
		}
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		renderers: renderers,
	}
}

// Run executes one fetch-and-render cycle. An empty edition is still rendered
// in every format so readers get a dated "nothing today" page, but the run
// reports failure afterwards; partial trouble is reported through the summary
// log instead.
func (a *App) Run(ctx context.Context) error {
	if len(a.renderers) == 0 {
		return fmt.Errorf("no output formats configured")
	}
	ts := time.Now().UTC()
	runDir := filepath.Join(a.cfg.OutputDir, ts.Format("2006-01-02"))

	store := assets.NewStore(runDir)
	policy := fetch.Policy{
		MaxRetries: a.cfg.Retry.MaxRetries,
		BaseDelay:  a.cfg.Retry.Delay(),
	}
	localizer := assets.NewLocalizer(store, source.NewHTTPClient(), policy,
		a.logger.With("component", "assets"))
	runner := fetch.NewRunner(a.registry, localizer, policy,
		a.cfg.Workers.Sources, a.cfg.Workers.Images, a.logger.With("component", "fetch"))

	a.logger.Info("run started", "dir", runDir, "sources", len(a.cfg.Sources), "formats", len(a.renderers))

	ed, outcomes := runner.Run(ctx, ts, a.cfg.Sources)
	for _, outcome := range outcomes {
		if outcome.Failed() {
			a.logger.Error("source failed", "source", outcome.Source,
				"attempts", outcome.Attempts, "error", outcome.Err)
			continue
		}
		a.logger.Info("source fetched", "source", outcome.Source,
			"items", countItems(outcome.Groups), "attempts", outcome.Attempts,
			"asset_failures", outcome.AssetFailures)
	}

	if ed.Empty() {
		a.logger.Warn("edition is empty, rendering placeholder pages")
	} else {
		a.logger.Info("edition assembled", "sources", len(ed.Sources), "items", ed.TotalItems())
	}

	results := a.renderAll(ctx, ed, runDir)

	succeeded := 0
	for _, res := range results {
		if res.Err != nil {
			a.logger.Error("render failed", "format", res.Format, "error", res.Err)
			continue
		}
		succeeded++
		a.logger.Info("render done", "format", res.Format, "path", res.Path)
	}

	if succeeded == 0 {
		return fmt.Errorf("all %d renderers failed", len(results))
	}
	if ed.Empty() {
		return fmt.Errorf("no source produced any items")
	}
	a.logger.Info("run finished", "rendered", succeeded, "of", len(results))
	return nil
}

// renderAll runs every renderer against the edition with bounded
// parallelism. A failing renderer never stops the others.
func (a *App) renderAll(ctx context.Context, ed *domain.Edition, runDir string) []domain.RenderResult {
	results := make([]domain.RenderResult, len(a.renderers))

	workers := a.cfg.Workers.Renders
	if workers <= 0 {
		workers = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, renderer := range a.renderers {
		g.Go(func() error {
			results[i] = domain.RenderResult{
				Format: renderer.Format(),
				Path:   filepath.Join(runDir, renderer.Format()),
				Err:    renderer.Render(gctx, ed, runDir),
			}
			return nil
		})
	}
	g.Wait()

	return results
}

func countItems(groups []domain.Group) int {
	total := 0
	for _, grp := range groups {
		total += len(grp.Items)
	}
	return total
}
