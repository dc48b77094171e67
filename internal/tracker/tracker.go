// Package tracker keeps the set of work units already counted.
package tracker

import (
	"sort"

	"github.com/verte-zerg/taskcount/internal/model"
)

// Tracker holds every work unit seen since the process started.
// It is not safe for concurrent use; the caller serializes access.
type Tracker struct {
	seen map[model.WorkUnitTime]struct{}
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{seen: make(map[model.WorkUnitTime]struct{})}
}

// Baseline commits the first poll as starting data and returns it deduplicated.
// It is NewSinceSeen followed by Commit.
func (t *Tracker) Baseline(polled []model.WorkUnitTime) []model.WorkUnitTime {
	units := t.NewSinceSeen(polled)
	t.Commit(units)
	return units
}

// NewSinceSeen returns the polled units not yet seen, sorted and deduplicated.
// It does not modify the tracker.
func (t *Tracker) NewSinceSeen(polled []model.WorkUnitTime) []model.WorkUnitTime {
	out := make([]model.WorkUnitTime, 0, len(polled))
	batch := make(map[model.WorkUnitTime]struct{}, len(polled))
	for _, u := range polled {
		if _, ok := t.seen[u]; ok {
			continue
		}
		if _, ok := batch[u]; ok {
			continue
		}
		batch[u] = struct{}{}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Commit adds units to the seen set.
func (t *Tracker) Commit(units []model.WorkUnitTime) {
	for _, u := range units {
		t.seen[u] = struct{}{}
	}
}

// Seen reports how many distinct units have been committed.
func (t *Tracker) Seen() int {
	return len(t.seen)
}
