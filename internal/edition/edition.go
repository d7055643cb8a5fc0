// Package edition assembles fetch outcomes into the immutable snapshot the
// renderers consume.
package edition

import (
	"time"

	"github.com/inkfeed/inkfeed/internal/domain"
)

// Build folds per-source outcomes into an edition. Failed sources and
// sources that produced zero items are left out; the rest keep the order of
// the outcomes slice, which matches configuration order. An edition with no
// sources is still a valid edition.
func Build(ts time.Time, outcomes []domain.FetchOutcome) *domain.Edition {
	ed := &domain.Edition{Timestamp: ts.UTC()}
	for _, outcome := range outcomes {
		if outcome.Failed() {
			continue
		}
		var groups []domain.Group
		for _, grp := range outcome.Groups {
			if len(grp.Items) > 0 {
				groups = append(groups, grp)
			}
		}
		if len(groups) == 0 {
			continue
		}
		ed.Sources = append(ed.Sources, domain.SourceEdition{
			Name:        outcome.Source,
			DisplayName: outcome.DisplayName,
			Kind:        outcome.Kind,
			Groups:      groups,
		})
	}
	return ed
}
