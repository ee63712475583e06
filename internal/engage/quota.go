package engage

import "github.com/STRATINT/engager/internal/models"

// QuotaTracker counts successful actions per kind against daily caps. Counts
// live for one pass and are never persisted.
type QuotaTracker struct {
	caps   map[models.ActionKind]int
	counts map[models.ActionKind]int
}

// NewQuotaTracker creates a tracker with the given caps. Kinds without a cap
// have a cap of zero.
func NewQuotaTracker(caps map[models.ActionKind]int) *QuotaTracker {
	q := &QuotaTracker{caps: make(map[models.ActionKind]int, len(caps))}
	for k, v := range caps {
		q.caps[k] = v
	}
	q.Reset()
	return q
}

// Remaining is cap minus count for kind.
func (q *QuotaTracker) Remaining(kind models.ActionKind) int {
	return q.caps[kind] - q.counts[kind]
}

// Record credits kind only when the action was confirmed successful. Dry runs,
// rate limits and errors never consume quota.
func (q *QuotaTracker) Record(kind models.ActionKind, outcome models.Outcome) {
	if outcome == models.OutcomeOK {
		q.counts[kind]++
	}
}

// Count returns successful actions of kind so far.
func (q *QuotaTracker) Count(kind models.ActionKind) int {
	return q.counts[kind]
}

// Counts returns a copy of all counters.
func (q *QuotaTracker) Counts() map[models.ActionKind]int {
	out := make(map[models.ActionKind]int, len(q.counts))
	for k, v := range q.counts {
		out[k] = v
	}
	return out
}

// Reset zeroes every counter.
func (q *QuotaTracker) Reset() {
	q.counts = make(map[models.ActionKind]int, len(models.ActionKinds))
	for _, k := range models.ActionKinds {
		q.counts[k] = 0
	}
}
