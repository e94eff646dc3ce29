// Package influx records every status of a run as an InfluxDB point so tier
// and concentration trends can be charted per location.
package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/couchcryptid/hab-status-etl/internal/config"
	"github.com/couchcryptid/hab-status-etl/internal/domain"
)

const (
	measurement = "hab_status"

	defaultPingTimeout = 5 * time.Second
)

// ErrConnectionFailed is returned when the server cannot be reached at startup.
var ErrConnectionFailed = errors.New("influxdb connection failed")

// pointWriter is satisfied by api.WriteAPIBlocking.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Writer implements pipeline.Publisher with the blocking write API.
type Writer struct {
	client influxdb2.Client
	api    pointWriter
	logger *slog.Logger
}

// NewWriter connects to InfluxDB and verifies it is reachable.
func NewWriter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Writer, error) {
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, influxdb2.DefaultOptions())

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &Writer{
		client: client,
		api:    client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		logger: logger,
	}, nil
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "influx" }

// Publish writes one point per status, timestamped with the evaluation time.
func (w *Writer) Publish(ctx context.Context, snap domain.Snapshot) error {
	statuses := snap.All()
	if len(statuses) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(statuses))
	for _, st := range statuses {
		points = append(points, toPoint(st, snap.EvaluatedAt))
	}
	if err := w.api.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	return nil
}

// Close releases the client.
func (w *Writer) Close() error {
	if w.client != nil {
		w.client.Close()
	}
	return nil
}

// toPoint maps a status to the hab_status measurement. tier_ordinal is -1
// for no_data so the field is always present.
func toPoint(st domain.LocationStatus, at time.Time) *write.Point {
	ordinal, ok := st.Tier.Ordinal()
	if !ok {
		ordinal = -1
	}
	return write.NewPoint(
		measurement,
		map[string]string{
			"location_id": st.LocationID,
			"kind":        string(st.Kind),
			"tier":        st.Tier.String(),
		},
		map[string]interface{}{
			"peak_concentration": st.PeakConcentration,
			"avg_concentration":  st.AvgConcentration,
			"confidence":         st.Confidence,
			"tier_ordinal":       ordinal,
		},
		at,
	)
}
