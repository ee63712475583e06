package engage

import (
	"context"
	"time"

	"github.com/STRATINT/engager/internal/models"
)

// Recorder receives engine observations for metrics.
type Recorder interface {
	CandidateEvaluated(reason Reason)
	ActionDispatched(kind models.ActionKind, outcome models.Outcome)
	PageFetched()
	PassCompleted(failed bool)
	QuotaUsed(kind models.ActionKind, used int)
	SeenSize(n int)
	Slept(reason string, d time.Duration)
}

// NopRecorder discards every observation.
type NopRecorder struct{}

func (NopRecorder) CandidateEvaluated(Reason)                          {}
func (NopRecorder) ActionDispatched(models.ActionKind, models.Outcome) {}
func (NopRecorder) PageFetched()                                       {}
func (NopRecorder) PassCompleted(bool)                                 {}
func (NopRecorder) QuotaUsed(models.ActionKind, int)                   {}
func (NopRecorder) SeenSize(int)                                       {}
func (NopRecorder) Slept(string, time.Duration)                        {}

// ActionLogger persists a record of every dispatched action.
type ActionLogger interface {
	Record(ctx context.Context, entry models.ActionLog) error
}

// SeenStore loads and saves the dedup set between passes.
type SeenStore interface {
	// Load returns the persisted set. It returns an empty set together with an
	// error when stored data is unreadable.
	Load(ctx context.Context) (models.SeenSet, error)
	Save(ctx context.Context, seen models.SeenSet) error
}

// QuerySource supplies the ordered query list for a pass.
type QuerySource interface {
	Queries(ctx context.Context) ([]string, error)
}

// QueryList is a fixed QuerySource.
type QueryList []string

func (q QueryList) Queries(context.Context) ([]string, error) {
	return q, nil
}
