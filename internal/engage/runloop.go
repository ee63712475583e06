package engage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/STRATINT/engager/internal/config"
	"github.com/STRATINT/engager/internal/models"
	"github.com/google/uuid"
)

const (
	gateRecheckInterval = 15 * time.Minute
	passPauseMin        = 20 * time.Second
	passPauseMax        = 45 * time.Second
)

// PassError reports a pass that failed before completing.
type PassError struct {
	RunID string
	Err   error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("pass %s failed: %v", e.RunID, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// RunLoop drives gated passes over the query list, forever.
type RunLoop struct {
	settings   config.EngagementConfig
	gate       *SessionGate
	queries    QuerySource
	seenStore  SeenStore
	pager      *SearchPager
	filter     *FilterPipeline
	dispatcher *ActionDispatcher
	quota      *QuotaTracker
	breaks     *BreakScheduler
	pacer      *Pacer
	recorder   Recorder
	actionLog  ActionLogger
	status     *StatusBoard
	now        func() time.Time
	logger     *slog.Logger
}

// Deps groups the collaborators a RunLoop is built from. Recorder, ActionLog,
// Status and Now are optional.
type Deps struct {
	Settings   config.EngagementConfig
	Gate       *SessionGate
	Queries    QuerySource
	SeenStore  SeenStore
	Pager      *SearchPager
	Filter     *FilterPipeline
	Dispatcher *ActionDispatcher
	Pacer      *Pacer
	Recorder   Recorder
	ActionLog  ActionLogger
	Status     *StatusBoard
	Now        func() time.Time
	Logger     *slog.Logger
}

// NewRunLoop assembles a run loop.
func NewRunLoop(d Deps) *RunLoop {
	if d.Recorder == nil {
		d.Recorder = NopRecorder{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	lo, hi := d.Settings.MicroBreakSeconds.Durations()
	return &RunLoop{
		settings:   d.Settings,
		gate:       d.Gate,
		queries:    d.Queries,
		seenStore:  d.SeenStore,
		pager:      d.Pager,
		filter:     d.Filter,
		dispatcher: d.Dispatcher,
		quota: NewQuotaTracker(map[models.ActionKind]int{
			models.ActionLike:   d.Settings.LikePerDay,
			models.ActionFollow: d.Settings.FollowPerDay,
		}),
		breaks:    NewBreakScheduler(d.Settings.MicroBreakAfter, lo, hi, d.Pacer, d.Logger),
		pacer:     d.Pacer,
		recorder:  d.Recorder,
		actionLog: d.ActionLog,
		status:    d.Status,
		now:       d.Now,
		logger:    d.Logger,
	}
}

// Run loops until ctx is cancelled. Closed sessions wait a fixed interval and
// re-check; every pass, failed or not, is followed by a short jittered pause.
func (l *RunLoop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if now := l.now(); !l.gate.Eligible(now) {
			l.status.setState(StateGated, now)
			l.logger.Info("outside of session window, sleeping", "wait", gateRecheckInterval.String())
			if err := l.pacer.Sleep(ctx, PauseGate, gateRecheckInterval); err != nil {
				return err
			}
			continue
		}

		summary, err := l.RunPass(ctx)
		if err != nil {
			var passErr *PassError
			if errors.As(err, &passErr) {
				l.logger.Error("pass failed", "run_id", passErr.RunID, "error", passErr.Err)
			} else {
				l.logger.Error("pass failed", "error", err)
			}
		} else {
			l.logger.Info("pass done",
				"run_id", summary.RunID,
				"like", summary.Likes,
				"follow", summary.Follows,
				"accepted", summary.Accepted,
				"dry_run", summary.DryRun,
				"duration", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second).String())
		}

		if _, err := l.pacer.Pause(ctx, PauseBetweenPasses, passPauseMin, passPauseMax); err != nil {
			return err
		}
	}
}

// pass carries per-pass state. It is only touched by the run loop goroutine.
type pass struct {
	summary PassSummary
	seen    models.SeenSet
	query   string
	saved   bool
	logger  *slog.Logger
}

// RunPass performs one full pass over the query list and persists the seen
// set. Failures escaping the pass, panics included, come back as *PassError.
func (l *RunLoop) RunPass(ctx context.Context) (summary PassSummary, err error) {
	p := &pass{
		summary: PassSummary{
			RunID:     uuid.New().String(),
			StartedAt: l.now(),
			DryRun:    l.settings.DryRun,
		},
	}
	p.logger = l.logger.With("run_id", p.summary.RunID)

	defer func() {
		if r := recover(); r != nil {
			err = &PassError{RunID: p.summary.RunID, Err: fmt.Errorf("panic: %v", r)}
			// Keep what was acted on so the next pass does not repeat it.
			if p.seen != nil && !p.saved {
				l.saveSeen(ctx, p)
			}
		}
		if err != nil {
			p.summary.Error = err.Error()
		}
		p.summary.FinishedAt = l.now()
		l.recorder.PassCompleted(err != nil)
		l.status.finishPass(p.summary, len(p.seen))
		summary = p.summary
	}()

	l.status.setState(StateActive, p.summary.StartedAt)

	queries, err := l.queries.Queries(ctx)
	if err != nil {
		return p.summary, &PassError{RunID: p.summary.RunID, Err: fmt.Errorf("load queries: %w", err)}
	}
	if len(queries) == 0 {
		p.logger.Warn("no queries configured")
		return p.summary, nil
	}
	p.summary.Queries = len(queries)

	seen, err := l.seenStore.Load(ctx)
	if err != nil {
		p.logger.Warn("seen set unreadable, starting empty", "error", err)
	}
	if seen == nil {
		seen = models.SeenSet{}
	}
	p.seen = seen

	l.quota.Reset()
	l.breaks.Reset()
	for _, k := range models.ActionKinds {
		l.recorder.QuotaUsed(k, 0)
	}

	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		p.query = q
		p.logger.Info("query", "query", q)
		l.runQuery(ctx, p)
	}

	l.saveSeen(ctx, p)

	p.summary.Likes = l.quota.Count(models.ActionLike)
	p.summary.Follows = l.quota.Count(models.ActionFollow)
	p.summary.Attempts = l.breaks.Total()
	if err := ctx.Err(); err != nil {
		return p.summary, &PassError{RunID: p.summary.RunID, Err: err}
	}
	return p.summary, nil
}

func (l *RunLoop) saveSeen(ctx context.Context, p *pass) {
	p.saved = true
	l.recorder.SeenSize(len(p.seen))
	if err := l.seenStore.Save(context.WithoutCancel(ctx), p.seen); err != nil {
		p.logger.Error("cannot persist seen set", "error", err, "seen_ids", len(p.seen))
	}
}

func (l *RunLoop) runQuery(ctx context.Context, p *pass) {
	for page := range l.pager.Pages(ctx, p.query) {
		for _, c := range page {
			if ctx.Err() != nil {
				return
			}
			l.handleCandidate(ctx, p, c)
		}
	}
}

func (l *RunLoop) handleCandidate(ctx context.Context, p *pass, c models.Candidate) {
	decision := l.filter.Evaluate(c, p.seen)
	if !decision.Counted() {
		return
	}
	p.summary.Candidates++
	l.recorder.CandidateEvaluated(decision.Reason)
	if !decision.Accepted {
		p.logger.Debug("candidate rejected", "tweet_id", c.ID, "reason", decision.Reason)
		return
	}

	// Marked before acting: a failed action is not retried on later pages or runs.
	p.seen.Add(c.ID)
	p.summary.Accepted++

	if l.settings.DoLike && l.quota.Remaining(models.ActionLike) > 0 {
		l.act(ctx, p, c, models.ActionLike, c.ID)
	}

	if l.settings.DoFollow && l.quota.Remaining(models.ActionFollow) > 0 && c.Author.ID != "" {
		l.act(ctx, p, c, models.ActionFollow, c.Author.ID)
	}
}

func (l *RunLoop) act(ctx context.Context, p *pass, c models.Candidate, kind models.ActionKind, target string) {
	if ctx.Err() != nil {
		return
	}

	res := l.dispatcher.Perform(ctx, kind, target, l.settings.DryRun)
	l.quota.Record(kind, res.Outcome)
	l.recorder.ActionDispatched(kind, res.Outcome)
	l.recorder.QuotaUsed(kind, l.quota.Count(kind))

	attrs := []any{"kind", kind, "target_id", target, "tweet_id", c.ID, "outcome", res.Outcome}
	switch res.Outcome {
	case models.OutcomeError:
		p.logger.Warn("action failed", append(attrs, "error", res.Err)...)
	case models.OutcomeUnavailable:
		p.logger.Warn("action unavailable", attrs...)
	default:
		p.logger.Info("action", attrs...)
	}

	l.logAction(ctx, p, c, res)

	if res.Paced() {
		lo, hi := l.cadence(kind)
		if _, err := l.pacer.Pause(ctx, PauseCadence, lo, hi); err != nil {
			return
		}
	}

	l.breaks.Attempted(ctx)
}

func (l *RunLoop) cadence(kind models.ActionKind) (time.Duration, time.Duration) {
	if kind == models.ActionFollow {
		return l.settings.FollowInterval.Durations()
	}
	return l.settings.LikeInterval.Durations()
}

func (l *RunLoop) logAction(ctx context.Context, p *pass, c models.Candidate, res Result) {
	if l.actionLog == nil {
		return
	}

	entry := models.ActionLog{
		Timestamp:   l.now(),
		RunID:       p.summary.RunID,
		Kind:        res.Kind,
		TargetID:    res.TargetID,
		CandidateID: c.ID,
		Query:       p.query,
		Outcome:     res.Outcome,
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	}
	if err := l.actionLog.Record(context.WithoutCancel(ctx), entry); err != nil {
		p.logger.Warn("failed to record action", "error", err)
	}
}
