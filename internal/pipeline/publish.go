package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hab-status-etl/internal/domain"
)

// publishable returns the copy of snap that is handed to publishers along
// with the number of statuses that were withheld.
//
// A status with a real tier below the confidence threshold is withheld;
// no_data is always published so consumers can clear stale state. When a
// beach limit is set only the first N beaches are kept.
func (p *Pipeline) publishable(snap domain.Snapshot) (domain.Snapshot, int) {
	out := snap
	withheld := 0

	out.Beaches, withheld = p.gate(snap.Beaches, withheld)
	if p.opts.BeachLimit > 0 && len(out.Beaches) > p.opts.BeachLimit {
		out.Beaches = out.Beaches[:p.opts.BeachLimit]
	}
	out.Cities, withheld = p.gate(snap.Cities, withheld)
	out.Regions, withheld = p.gate(snap.Regions, withheld)
	return out, withheld
}

func (p *Pipeline) gate(statuses []domain.LocationStatus, withheld int) ([]domain.LocationStatus, int) {
	kept := make([]domain.LocationStatus, 0, len(statuses))
	for _, st := range statuses {
		if st.Tier.HasData() && st.Confidence < p.opts.MinConfidence {
			withheld++
			continue
		}
		kept = append(kept, st)
	}
	return kept, withheld
}

// publish fans the snapshot out to every publisher concurrently. Each sink
// runs to completion regardless of the others; the first error is returned.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, snap domain.Snapshot) error {
	var g errgroup.Group
	for _, pub := range p.publishers {
		g.Go(func() error {
			start := p.clock.Now()
			err := pub.Publish(ctx, snap)
			p.metrics.PublishDuration.WithLabelValues(pub.Name()).Observe(p.clock.Since(start).Seconds())
			if err != nil {
				p.metrics.PublishErrors.WithLabelValues(pub.Name()).Inc()
				logger.Error("publish failed", "sink", pub.Name(), "error", err)
				return fmt.Errorf("publish to %s: %w", pub.Name(), err)
			}
			logger.Debug("snapshot published", "sink", pub.Name())
			return nil
		})
	}
	return g.Wait()
}
