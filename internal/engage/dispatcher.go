package engage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/STRATINT/engager/internal/models"
	"github.com/STRATINT/engager/internal/platform"
)

const (
	actionBackoffMin = 45 * time.Second
	actionBackoffMax = 90 * time.Second
)

// Result is the outcome of one dispatched action.
type Result struct {
	Kind     models.ActionKind
	TargetID string
	Outcome  models.Outcome
	// Err carries the failure detail for OutcomeError and OutcomeRateLimited.
	Err error
}

// Paced reports whether the caller should apply the per-kind cadence delay.
func (r Result) Paced() bool {
	return r.Outcome == models.OutcomeOK || r.Outcome == models.OutcomeRateLimited
}

// ActionDispatcher performs single actions through the platform Actor.
type ActionDispatcher struct {
	actor  platform.Actor
	pacer  *Pacer
	logger *slog.Logger
}

// NewActionDispatcher creates a dispatcher. A nil actor makes every action
// unavailable.
func NewActionDispatcher(actor platform.Actor, pacer *Pacer, logger *slog.Logger) *ActionDispatcher {
	return &ActionDispatcher{actor: actor, pacer: pacer, logger: logger}
}

// Perform runs one action. Failures are reported in the Result and never
// returned as errors; a rate limit sleeps through a randomized backoff before
// returning.
func (d *ActionDispatcher) Perform(ctx context.Context, kind models.ActionKind, targetID string, dryRun bool) Result {
	res := Result{Kind: kind, TargetID: targetID}

	if dryRun {
		res.Outcome = models.OutcomeDry
		return res
	}

	call := d.entryPoint(kind)
	if call == nil {
		res.Outcome = models.OutcomeUnavailable
		return res
	}

	err := call(ctx, targetID)
	switch {
	case err == nil:
		res.Outcome = models.OutcomeOK
	case platform.IsRateLimited(err):
		res.Outcome = models.OutcomeRateLimited
		res.Err = err
		wait, _ := d.pacer.Pause(ctx, PauseActionBackoff, actionBackoffMin, actionBackoffMax)
		d.logger.Warn("rate limited on action, backing off",
			"kind", kind,
			"target_id", targetID,
			"backoff", wait.Round(time.Second).String())
	case errors.Is(err, platform.ErrActionUnavailable):
		res.Outcome = models.OutcomeUnavailable
	default:
		res.Outcome = models.OutcomeError
		res.Err = err
	}
	return res
}

func (d *ActionDispatcher) entryPoint(kind models.ActionKind) func(context.Context, string) error {
	if d.actor == nil {
		return nil
	}
	switch kind {
	case models.ActionLike:
		return d.actor.Like
	case models.ActionFollow:
		return d.actor.Follow
	default:
		return nil
	}
}
