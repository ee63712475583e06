package engage

import (
	"testing"

	"github.com/STRATINT/engager/internal/models"
)

func TestQuotaTrackerCreditsOnlySuccess(t *testing.T) {
	q := NewQuotaTracker(map[models.ActionKind]int{models.ActionLike: 2, models.ActionFollow: 1})

	for _, o := range []models.Outcome{models.OutcomeDry, models.OutcomeRateLimited, models.OutcomeError, models.OutcomeUnavailable} {
		q.Record(models.ActionLike, o)
	}
	if got := q.Remaining(models.ActionLike); got != 2 {
		t.Fatalf("non-success outcomes consumed quota, remaining=%d", got)
	}

	q.Record(models.ActionLike, models.OutcomeOK)
	q.Record(models.ActionLike, models.OutcomeOK)
	if got := q.Remaining(models.ActionLike); got != 0 {
		t.Errorf("expected like quota exhausted, remaining=%d", got)
	}
	if got := q.Remaining(models.ActionFollow); got != 1 {
		t.Errorf("expected follow quota untouched, remaining=%d", got)
	}

	counts := q.Counts()
	counts[models.ActionLike] = 99
	if q.Count(models.ActionLike) != 2 {
		t.Error("Counts must return a copy")
	}

	q.Reset()
	if q.Remaining(models.ActionLike) != 2 || q.Count(models.ActionFollow) != 0 {
		t.Errorf("expected reset counters, got %v", q.Counts())
	}
}

func TestQuotaTrackerZeroCap(t *testing.T) {
	q := NewQuotaTracker(nil)
	if q.Remaining(models.ActionFollow) > 0 {
		t.Error("expected kinds without a cap to have no remaining quota")
	}
}
