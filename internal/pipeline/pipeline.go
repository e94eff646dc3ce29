package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hab-status-etl/internal/domain"
	"github.com/couchcryptid/hab-status-etl/internal/observability"
)

// ErrNoSnapshot is returned by Latest before the first successful run.
var ErrNoSnapshot = errors.New("no snapshot has been evaluated yet")

// SampleSource fetches the current raw samples from the hazard-monitoring service.
type SampleSource interface {
	FetchSamples(ctx context.Context) ([]domain.Sample, error)
}

// RegistryLoader loads the location hierarchy used for a run.
type RegistryLoader interface {
	LoadHierarchy(ctx context.Context) (*domain.Hierarchy, error)
}

// Publisher delivers a snapshot to one downstream sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, snap domain.Snapshot) error
}

// Options tunes evaluation and publishing.
type Options struct {
	Interval      time.Duration
	MaxSampleAge  time.Duration
	MinConfidence int
	// BeachLimit caps the beaches published per run. Zero means no limit.
	BeachLimit int
}

// Pipeline orchestrates the fetch-evaluate-publish loop.
type Pipeline struct {
	source     SampleSource
	registry   RegistryLoader
	publishers []Publisher
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	opts       Options

	ready  atomic.Bool
	latest atomic.Pointer[domain.Snapshot]
}

// New creates a Pipeline with the given stages and observability.
func New(source SampleSource, registry RegistryLoader, publishers []Publisher, clock clockwork.Clock,
	logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		source:     source,
		registry:   registry,
		publishers: publishers,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
		opts:       opts,
	}
}

// CheckReadiness returns nil once a run has completed,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Latest returns the most recent full snapshot, including statuses that were
// withheld from publishers.
func (p *Pipeline) Latest() (domain.Snapshot, error) {
	snap := p.latest.Load()
	if snap == nil {
		return domain.Snapshot{}, ErrNoSnapshot
	}
	return *snap, nil
}

// Run evaluates immediately and then once per interval until the context is
// cancelled. Failed runs are retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.opts.Interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5m.
	backoff := initialBackoff
	for {
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("run failed", "error", err, "retry_in", backoff)
			if !p.sleep(ctx, backoff) {
				return nil
			}
			backoff = sharedretry.NextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = initialBackoff
		if !p.sleep(ctx, p.opts.Interval) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce performs one fetch-evaluate-publish cycle. Publish failures are
// logged and counted but do not fail the run; the snapshot is still served.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	start := p.clock.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	h, err := p.registry.LoadHierarchy(ctx)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("registry_error").Inc()
		return fmt.Errorf("load registry: %w", err)
	}

	samples, err := p.source.FetchSamples(ctx)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("fetch_error").Inc()
		return fmt.Errorf("fetch samples: %w", err)
	}
	p.metrics.SamplesFetched.Add(float64(len(samples)))

	snap := domain.Evaluate(h, samples, p.clock.Now(), domain.EvaluateOptions{MaxSampleAge: p.opts.MaxSampleAge})
	snap.RunID = runID
	snap.Samples = samples
	p.recordSnapshot(snap)

	logger.Info("snapshot evaluated",
		"samples", len(samples),
		"beaches", len(snap.Beaches),
		"cities", len(snap.Cities),
		"regions", len(snap.Regions),
	)

	publishable, withheld := p.publishable(snap)
	if withheld > 0 {
		p.metrics.StatusesWithheld.Add(float64(withheld))
		logger.Info("low-confidence statuses withheld", "count", withheld, "min_confidence", p.opts.MinConfidence)
	}

	outcome := "success"
	if err := p.publish(ctx, logger, publishable); err != nil {
		outcome = "publish_error"
	}

	p.latest.Store(&snap)
	p.ready.Store(true)
	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	return nil
}

func (p *Pipeline) recordSnapshot(snap domain.Snapshot) {
	p.metrics.Statuses.Reset()
	matched := 0
	for _, st := range snap.All() {
		p.metrics.Statuses.WithLabelValues(string(st.Kind), st.Tier.String()).Inc()
		matched += len(st.Contributions)
	}
	p.metrics.SamplesMatched.Add(float64(matched))
}

// sleep waits for d on the pipeline clock. Returns false if the context ended first.
func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Minute
)
