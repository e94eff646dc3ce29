// Package sqlite stores the location registry and the status history in a
// SQLite database. Schema changes are applied with embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/hab-status-etl/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrEmptyRegistry is returned by LoadHierarchy when no beaches are stored.
var ErrEmptyRegistry = errors.New("sqlite registry has no beaches")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed registry loader and history publisher.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	// m is not closed: closing it would close db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name identifies the store as a publisher.
func (s *Store) Name() string { return "sqlite" }

// LoadHierarchy reads the registry tables and validates them.
func (s *Store) LoadHierarchy(ctx context.Context) (*domain.Hierarchy, error) {
	regions, err := queryRows(ctx, s.db, `SELECT id, name FROM regions`, func(rows *sql.Rows) (domain.Region, error) {
		var r domain.Region
		return r, rows.Scan(&r.ID, &r.Name)
	})
	if err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}

	cities, err := queryRows(ctx, s.db, `SELECT id, name, region_id FROM cities`, func(rows *sql.Rows) (domain.City, error) {
		var c domain.City
		return c, rows.Scan(&c.ID, &c.Name, &c.RegionID)
	})
	if err != nil {
		return nil, fmt.Errorf("load cities: %w", err)
	}

	beaches, err := queryRows(ctx, s.db, `SELECT id, name, city_id FROM beaches`, func(rows *sql.Rows) (domain.Beach, error) {
		var b domain.Beach
		return b, rows.Scan(&b.ID, &b.Name, &b.CityID)
	})
	if err != nil {
		return nil, fmt.Errorf("load beaches: %w", err)
	}
	if len(beaches) == 0 {
		return nil, ErrEmptyRegistry
	}

	type siteRow struct {
		beachID string
		site    domain.Site
	}
	sites, err := queryRows(ctx, s.db,
		`SELECT beach_id, site_key, distance_miles, labels FROM beach_sites ORDER BY beach_id, position`,
		func(rows *sql.Rows) (siteRow, error) {
			var (
				r      siteRow
				labels string
			)
			if err := rows.Scan(&r.beachID, &r.site.Key, &r.site.DistanceMiles, &labels); err != nil {
				return r, err
			}
			if err := json.Unmarshal([]byte(labels), &r.site.LabelPatterns); err != nil {
				return r, fmt.Errorf("beach %s labels: %w", r.beachID, err)
			}
			if len(r.site.LabelPatterns) == 0 {
				r.site.LabelPatterns = nil
			}
			return r, nil
		})
	if err != nil {
		return nil, fmt.Errorf("load beach sites: %w", err)
	}

	byBeach := make(map[string][]domain.Site, len(beaches))
	for _, r := range sites {
		byBeach[r.beachID] = append(byBeach[r.beachID], r.site)
	}
	for i := range beaches {
		beaches[i].Sites = byBeach[beaches[i].ID]
	}
	return domain.NewHierarchy(regions, cities, beaches)
}

// SaveHierarchy replaces the stored registry with h in one transaction.
func (s *Store) SaveHierarchy(ctx context.Context, h *domain.Hierarchy) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"beach_sites", "beaches", "cities", "regions"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for _, r := range h.Regions() {
			if _, err := tx.ExecContext(ctx, `INSERT INTO regions (id, name) VALUES (?, ?)`, r.ID, r.Name); err != nil {
				return fmt.Errorf("insert region %s: %w", r.ID, err)
			}
		}
		for _, c := range h.Cities() {
			if _, err := tx.ExecContext(ctx, `INSERT INTO cities (id, name, region_id) VALUES (?, ?, ?)`,
				c.ID, c.Name, c.RegionID); err != nil {
				return fmt.Errorf("insert city %s: %w", c.ID, err)
			}
		}
		for _, b := range h.Beaches() {
			if _, err := tx.ExecContext(ctx, `INSERT INTO beaches (id, name, city_id) VALUES (?, ?, ?)`,
				b.ID, b.Name, b.CityID); err != nil {
				return fmt.Errorf("insert beach %s: %w", b.ID, err)
			}
			for pos, site := range b.Sites {
				labels, err := json.Marshal(nonNil(site.LabelPatterns))
				if err != nil {
					return fmt.Errorf("encode labels for beach %s: %w", b.ID, err)
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO beach_sites (beach_id, position, site_key, distance_miles, labels) VALUES (?, ?, ?, ?, ?)`,
					b.ID, pos, site.Key, site.DistanceMiles, string(labels)); err != nil {
					return fmt.Errorf("insert site %d of beach %s: %w", pos, b.ID, err)
				}
			}
		}
		return nil
	})
}

// Publish records every status of the snapshot and the raw samples of the run.
// Re-publishing the same run replaces its rows.
func (s *Store) Publish(ctx context.Context, snap domain.Snapshot) error {
	evaluatedAt := snap.EvaluatedAt.UTC().Format(timeLayout)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, st := range snap.All() {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO status_history
				(run_id, evaluated_at, location_id, kind, tier, peak_concentration, avg_concentration, confidence, sample_date)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				snap.RunID, evaluatedAt, st.LocationID, string(st.Kind), st.Tier.String(),
				st.PeakConcentration, st.AvgConcentration, st.Confidence, nullableTime(st.SampleDate),
			); err != nil {
				return fmt.Errorf("insert status %s: %w", st.LocationID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM raw_samples WHERE run_id = ?`, snap.RunID); err != nil {
			return fmt.Errorf("clear raw samples: %w", err)
		}
		for _, smp := range snap.Samples {
			if _, err := tx.ExecContext(ctx, `INSERT INTO raw_samples
				(run_id, sample_key, location, county, abundance, sample_date, lat, lon)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				snap.RunID, smp.Key, smp.LocationLabel, smp.County, smp.RawAbundance,
				smp.SampledAt.UTC().Format(timeLayout), smp.Lat, smp.Lon,
			); err != nil {
				return fmt.Errorf("insert raw sample %s: %w", smp.Key, err)
			}
		}
		return nil
	})
}

// History returns up to limit recorded statuses of a location, newest first.
func (s *Store) History(ctx context.Context, locationID string, limit int) ([]domain.HistoryEntry, error) {
	entries, err := queryRows(ctx, s.db, `SELECT run_id, evaluated_at, location_id, kind, tier,
			peak_concentration, avg_concentration, confidence, sample_date
		FROM status_history WHERE location_id = ?
		ORDER BY evaluated_at DESC LIMIT ?`,
		func(rows *sql.Rows) (domain.HistoryEntry, error) {
			var (
				e           domain.HistoryEntry
				evaluatedAt string
				kind, tier  string
				sampleDate  sql.NullString
			)
			if err := rows.Scan(&e.RunID, &evaluatedAt, &e.Status.LocationID, &kind, &tier,
				&e.Status.PeakConcentration, &e.Status.AvgConcentration, &e.Status.Confidence, &sampleDate); err != nil {
				return e, err
			}
			var err error
			if e.EvaluatedAt, err = time.Parse(timeLayout, evaluatedAt); err != nil {
				return e, fmt.Errorf("parse evaluated_at: %w", err)
			}
			if e.Status.Tier, err = domain.ParseTier(tier); err != nil {
				return e, err
			}
			e.Status.Kind = domain.LocationKind(kind)
			if sampleDate.Valid {
				if e.Status.SampleDate, err = time.Parse(timeLayout, sampleDate.String); err != nil {
					return e, fmt.Errorf("parse sample_date: %w", err)
				}
			}
			return e, nil
		}, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", locationID, err)
	}
	return entries, nil
}

// RawSamples returns the samples recorded for a run.
func (s *Store) RawSamples(ctx context.Context, runID string) ([]domain.Sample, error) {
	samples, err := queryRows(ctx, s.db, `SELECT sample_key, location, county, abundance, sample_date, lat, lon
		FROM raw_samples WHERE run_id = ? ORDER BY rowid`,
		func(rows *sql.Rows) (domain.Sample, error) {
			var (
				smp        domain.Sample
				sampleDate string
			)
			if err := rows.Scan(&smp.Key, &smp.LocationLabel, &smp.County, &smp.RawAbundance, &sampleDate, &smp.Lat, &smp.Lon); err != nil {
				return smp, err
			}
			t, err := time.Parse(timeLayout, sampleDate)
			if err != nil {
				return smp, fmt.Errorf("parse sample_date: %w", err)
			}
			smp.SampledAt = t
			return smp, nil
		}, runID)
	if err != nil {
		return nil, fmt.Errorf("query raw samples for run %s: %w", runID, err)
	}
	return samples, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func queryRows[T any](ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) (T, error), args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
