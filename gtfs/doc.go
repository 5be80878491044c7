// Package gtfs loads the static stop and route reference data the tracker
// serves queries against. The snapshot is immutable once built; a reference
// reload produces a whole new snapshot that callers swap in atomically.
package gtfs
