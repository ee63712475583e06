package engage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/STRATINT/engager/internal/models"
	"github.com/STRATINT/engager/internal/platform"
)

func TestActionDispatcherOutcomes(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		actorErr    error
		dryRun      bool
		want        models.Outcome
		wantCalls   int
		wantBackoff bool
		wantErr     bool
	}{
		{name: "dry run", dryRun: true, want: models.OutcomeDry},
		{name: "ok", want: models.OutcomeOK, wantCalls: 1},
		{name: "rate limited", actorErr: platform.NewRateLimitError(boom, 0), want: models.OutcomeRateLimited, wantCalls: 1, wantBackoff: true, wantErr: true},
		{name: "adapter unavailable", actorErr: fmt.Errorf("follow: %w", platform.ErrActionUnavailable), want: models.OutcomeUnavailable, wantCalls: 1},
		{name: "error", actorErr: boom, want: models.OutcomeError, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingRecorder{}
			pacer, _ := newTestPacer(rec)
			actor := &fakeActor{errs: map[models.ActionKind][]error{}}
			if tt.actorErr != nil {
				actor.errs[models.ActionLike] = []error{tt.actorErr}
			}
			d := NewActionDispatcher(actor, pacer, discardLogger())

			res := d.Perform(context.Background(), models.ActionLike, "t1", tt.dryRun)

			if res.Outcome != tt.want {
				t.Fatalf("outcome = %q, want %q", res.Outcome, tt.want)
			}
			if len(actor.calls) != tt.wantCalls {
				t.Errorf("actor calls = %d, want %d", len(actor.calls), tt.wantCalls)
			}
			if (res.Err != nil) != tt.wantErr {
				t.Errorf("result error = %v, wantErr %t", res.Err, tt.wantErr)
			}

			backoff := rec.sleepsFor(PauseActionBackoff)
			if tt.wantBackoff {
				if len(backoff) != 1 || backoff[0] != 45*time.Second {
					t.Errorf("expected one 45s backoff, got %v", backoff)
				}
			} else if len(backoff) != 0 {
				t.Errorf("unexpected backoff %v", backoff)
			}
		})
	}
}

func TestActionDispatcherRoutesKinds(t *testing.T) {
	pacer, _ := newTestPacer(&recordingRecorder{})
	actor := &fakeActor{errs: map[models.ActionKind][]error{}}
	d := NewActionDispatcher(actor, pacer, discardLogger())

	d.Perform(context.Background(), models.ActionLike, "tweet-1", false)
	d.Perform(context.Background(), models.ActionFollow, "user-1", false)

	if got := actor.callsOf(models.ActionLike); len(got) != 1 || got[0] != "tweet-1" {
		t.Errorf("unexpected like calls %v", got)
	}
	if got := actor.callsOf(models.ActionFollow); len(got) != 1 || got[0] != "user-1" {
		t.Errorf("unexpected follow calls %v", got)
	}

	if res := d.Perform(context.Background(), models.ActionKind("retweet"), "x", false); res.Outcome != models.OutcomeUnavailable {
		t.Errorf("expected unknown kind to be unavailable, got %q", res.Outcome)
	}
}

func TestActionDispatcherWithoutActor(t *testing.T) {
	pacer, _ := newTestPacer(&recordingRecorder{})
	d := NewActionDispatcher(nil, pacer, discardLogger())

	if res := d.Perform(context.Background(), models.ActionFollow, "u", false); res.Outcome != models.OutcomeUnavailable {
		t.Errorf("expected unavailable without actor, got %q", res.Outcome)
	}
}

func TestResultPaced(t *testing.T) {
	paced := map[models.Outcome]bool{
		models.OutcomeOK:          true,
		models.OutcomeRateLimited: true,
		models.OutcomeDry:         false,
		models.OutcomeError:       false,
		models.OutcomeUnavailable: false,
	}
	for o, want := range paced {
		if got := (Result{Outcome: o}).Paced(); got != want {
			t.Errorf("Paced(%q) = %t, want %t", o, got, want)
		}
	}
}
