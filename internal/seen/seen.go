// Package seen implements the per-source deduplication store.
//
// Every identifier observed for a source is kept either as present or as a
// tombstone carrying the time it disappeared from the upstream content.
// Tombstones are retained for a grace window so a feed that transiently
// drops and re-publishes an entry does not trigger a second notification,
// and are purged afterwards to bound memory.
package seen

import "time"

// Retention is how long a tombstoned identifier is kept before it is purged.
const Retention = 30 * 24 * time.Hour

// Store maps entry identifiers to their removal time. A zero time means the
// identifier is currently present in the upstream content.
type Store map[string]time.Time

// Contains reports whether id is known, either present or tombstoned.
func (s Store) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Record computes the store resulting from one check that observed the given
// identifiers at time now. Every observed id becomes present, clearing any
// tombstone; every previously present id missing from observed is tombstoned
// at now; tombstones older than the retention window are dropped. The
// previous store is never mutated.
func Record(now time.Time, observed []string, prev Store) Store {
	next := make(Store, len(observed)+len(prev))
	for _, id := range observed {
		next[id] = time.Time{}
	}
	cutoff := now.Add(-Retention)
	for id, removed := range prev {
		if _, ok := next[id]; ok {
			continue
		}
		switch {
		case removed.IsZero():
			next[id] = now
		case removed.After(cutoff):
			next[id] = removed
		}
	}
	return next
}
