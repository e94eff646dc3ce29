// Package domain turns harmful-algal-bloom (HAB) sample data into beach,
// city, and region statuses.
//
// # Data Source
//
// Samples come from the FWC HAB monitoring feature service
// (ArcGIS REST, layer OpenData_HAB/MapServer/9). Each feature carries a
// sample key (HAB_ID), a free-text station label (LOCATION), a sample time
// in epoch milliseconds (SAMPLE_DATE), and an abundance category
// (Abundance). Distances from stations to beaches are not derived from
// coordinates; they come precomputed from the location registry.
//
// # Abundance Categories
//
// Karenia brevis abundance is published as a category, sometimes followed by
// the category's cell-count range:
//
//	"not present/background"           → 500 cells/L,  safe
//	"very low (>1,000 - 10,000)"       → 2,500 cells/L, safe
//	"low (>10,000 - 100,000)"          → range midpoint, default 5,000, caution
//	"medium (>100,000 - 1,000,000)"    → range midpoint, default 50,000, avoid
//	"high (>1,000,000)"                → range midpoint, default 500,000, avoid
//
// Matching is case-insensitive and ordered, because "low" is a substring of
// "very low". The "very low" estimate is fixed even when a range is present.
// Medium and high intentionally share the avoid tier. See [Classify].
//
// # Weighting
//
// A reading's weight is distance weight × age weight:
//
//	distance:  ≤1 mi 1.0 | ≤3 mi 0.7 | ≤10 mi 0.4 | beyond 0.2
//	age:       ≤7 days 1.0 | older max(0.1, 1 − days/7)
//
// # Beach Status
//
// The beach tier is a threshold on the mean of ordinal(tier) × weight across
// readings (≥1.5 avoid, ≥0.5 caution, else safe). Confidence is
// min(100, round(Σweight × 50 + readings × 10)). A beach without readings
// is no_data. See [Aggregate].
//
// # Rollup
//
// Cities roll up their beaches and regions roll up all beaches in their
// cities, taking the worst tier among children with data. Region child lists
// name cities for display; the numbers come from beaches only, so no beach
// is counted twice. See [Rollup] and [Evaluate].
//
// Every function in this package is pure: the caller supplies the reference
// time, and results never alias their inputs.
package domain
