// Command evaluate runs one status evaluation and prints the snapshot as JSON.
// Samples come from a saved ArcGIS query response, or are fetched live when
// no file is given.
//
// Usage:
//
//	go run ./cmd/evaluate \
//	  -registry config/locations.yaml \
//	  -samples fwc_response.json \
//	  -now 2025-08-10T12:00:00Z
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/hab-status-etl/internal/adapter/fwc"
	"github.com/couchcryptid/hab-status-etl/internal/adapter/registryfile"
	"github.com/couchcryptid/hab-status-etl/internal/config"
	"github.com/couchcryptid/hab-status-etl/internal/domain"
	"github.com/couchcryptid/hab-status-etl/internal/observability"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "evaluate:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	registryPath := fs.String("registry", "config/locations.yaml", "path to the location registry YAML")
	samplesPath := fs.String("samples", "", "saved ArcGIS query response JSON (fetches live when empty)")
	url := fs.String("url", config.DefaultFWCURL, "feature service query URL for live fetches")
	nowFlag := fs.String("now", "", "evaluation time, RFC3339 (default: current time)")
	maxAgeDays := fs.Int("max-age-days", 14, "ignore samples older than this many days (0 keeps all)")
	beachesOnly := fs.Bool("beaches-only", false, "print beach statuses only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *maxAgeDays < 0 {
		return fmt.Errorf("invalid -max-age-days %d: must be >= 0", *maxAgeDays)
	}

	now := time.Now().UTC()
	if *nowFlag != "" {
		t, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			return fmt.Errorf("invalid -now: %w", err)
		}
		now = t
	}

	h, err := registryfile.NewLoader(*registryPath).LoadHierarchy(ctx)
	if err != nil {
		return err
	}

	samples, err := loadSamples(ctx, *samplesPath, *url, stderr)
	if err != nil {
		return err
	}

	snap := domain.Evaluate(h, samples, now, domain.EvaluateOptions{
		MaxSampleAge: time.Duration(*maxAgeDays) * 24 * time.Hour,
	})

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if *beachesOnly {
		return enc.Encode(snap.Beaches)
	}
	return enc.Encode(snap)
}

func loadSamples(ctx context.Context, path, url string, stderr io.Writer) ([]domain.Sample, error) {
	if path == "" {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		client := fwc.NewClient(url, 30*time.Second, 3, observability.NewMetricsForTesting(), logger)
		return client.FetchSamples(ctx)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open samples: %w", err)
	}
	defer f.Close()
	return fwc.DecodeSamples(f)
}
