package fetch

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inkfeed/inkfeed/internal/config"
	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/edition"
	"github.com/inkfeed/inkfeed/internal/ports"
	"github.com/inkfeed/inkfeed/internal/source"
)

// Runner drives the fetch half of a run: all sources in parallel, then all
// image downloads in parallel, then edition assembly. One source failing
// never takes down the others.
type Runner struct {
	registry  *source.Registry
	localizer ports.Localizer
	policy    Policy
	sources   int
	images    int
	logger    *slog.Logger
}

func NewRunner(registry *source.Registry, localizer ports.Localizer, policy Policy, sourceWorkers, imageWorkers int, logger *slog.Logger) *Runner {
	if sourceWorkers <= 0 {
		sourceWorkers = 4
	}
	if imageWorkers <= 0 {
		imageWorkers = 8
	}
	return &Runner{
		registry:  registry,
		localizer: localizer,
		policy:    policy,
		sources:   sourceWorkers,
		images:    imageWorkers,
		logger:    logger,
	}
}

// Run fetches every enabled source and returns the assembled edition along
// with per-source outcomes for the summary. The outcomes slice always has
// one entry per enabled source, in configuration order.
func (r *Runner) Run(ctx context.Context, ts time.Time, sources []config.SourceConfig) (*domain.Edition, []domain.FetchOutcome) {
	var enabled []config.SourceConfig
	for _, src := range sources {
		if src.IsEnabled() {
			enabled = append(enabled, src)
		}
	}

	outcomes := make([]domain.FetchOutcome, len(enabled))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.sources)
	for i, src := range enabled {
		g.Go(func() error {
			outcomes[i] = r.fetchSource(gctx, src)
			return nil
		})
	}
	g.Wait()

	r.localizeAll(ctx, outcomes)

	for i, src := range enabled {
		if src.TimestamplessLast {
			pushUndatedLast(outcomes[i].Groups)
		}
	}

	return edition.Build(ts, outcomes), outcomes
}

func (r *Runner) fetchSource(ctx context.Context, src config.SourceConfig) domain.FetchOutcome {
	outcome := domain.FetchOutcome{
		Source:      src.Name,
		DisplayName: src.Display(),
		Kind:        domain.SourceKind(src.Kind),
	}

	adapter, err := r.registry.Resolve(src.Kind)
	if err != nil {
		outcome.Attempts = 1
		outcome.Err = &domain.SourceFetchError{Source: src.Name, Err: err}
		return outcome
	}

	attempts := 0
	err = Do(ctx, r.policy, r.logger, "fetch "+src.Name, func(ctx context.Context) error {
		attempts++
		groups, err := adapter.Fetch(ctx, src)
		if err != nil {
			return err
		}
		outcome.Groups = groups
		return nil
	})
	outcome.Attempts = attempts
	if err != nil {
		outcome.Err = &domain.SourceFetchError{
			Source:    src.Name,
			Transient: domain.IsTransient(err),
			Err:       err,
		}
	}
	return outcome
}

// localizeAll downloads images for every fetched item with a bounded worker
// pool. Failures are tallied per source; the items stay in the edition.
func (r *Runner) localizeAll(ctx context.Context, outcomes []domain.FetchOutcome) {
	if r.localizer == nil {
		return
	}

	type job struct {
		outcome int
		item    *domain.Item
	}
	var jobs []job
	for i := range outcomes {
		if outcomes[i].Failed() {
			continue
		}
		for gi := range outcomes[i].Groups {
			items := outcomes[i].Groups[gi].Items
			for ii := range items {
				if len(items[ii].Images) > 0 {
					jobs = append(jobs, job{outcome: i, item: &items[ii]})
				}
			}
		}
	}
	if len(jobs) == 0 {
		return
	}

	failures := make([]atomic.Int64, len(outcomes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.images)
	for _, j := range jobs {
		g.Go(func() error {
			if err := r.localizer.Localize(gctx, j.item); err != nil {
				failures[j.outcome].Add(1)
				r.debug("localize failed", "item", j.item.ID, "error", err)
			}
			return nil
		})
	}
	g.Wait()

	for i := range outcomes {
		outcomes[i].AssetFailures = int(failures[i].Load())
	}
}

// pushUndatedLast stably moves items without a timestamp behind the dated
// ones, preserving relative order inside both halves.
func pushUndatedLast(groups []domain.Group) {
	for gi := range groups {
		sort.SliceStable(groups[gi].Items, func(a, b int) bool {
			return groups[gi].Items[a].Published != nil && groups[gi].Items[b].Published == nil
		})
	}
}

func (r *Runner) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
