package engage

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/STRATINT/engager/internal/models"
	"github.com/STRATINT/engager/internal/platform"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sleepCall struct {
	reason string
	d      time.Duration
}

// fakeSleeper records sleeps without blocking.
type fakeSleeper struct {
	slept   []time.Duration
	onSleep func(d time.Duration)
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	if s.onSleep != nil {
		s.onSleep(d)
	}
	return ctx.Err()
}

// lowJitter always returns the lower bound.
type lowJitter struct{}

func (lowJitter) Between(lo, _ time.Duration) time.Duration { return lo }

type recordingRecorder struct {
	NopRecorder
	sleeps   []sleepCall
	reasons  []Reason
	outcomes []models.Outcome
	pages    int
	passes   []bool
}

func (r *recordingRecorder) Slept(reason string, d time.Duration) {
	r.sleeps = append(r.sleeps, sleepCall{reason: reason, d: d})
}

func (r *recordingRecorder) CandidateEvaluated(reason Reason) {
	r.reasons = append(r.reasons, reason)
}

func (r *recordingRecorder) ActionDispatched(_ models.ActionKind, o models.Outcome) {
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingRecorder) PageFetched() { r.pages++ }

func (r *recordingRecorder) PassCompleted(failed bool) { r.passes = append(r.passes, failed) }

func (r *recordingRecorder) sleepsFor(reason string) []time.Duration {
	var out []time.Duration
	for _, s := range r.sleeps {
		if s.reason == reason {
			out = append(out, s.d)
		}
	}
	return out
}

func newTestPacer(rec *recordingRecorder) (*Pacer, *fakeSleeper) {
	s := &fakeSleeper{}
	return NewPacer(s, lowJitter{}, rec), s
}

type actorCall struct {
	kind   models.ActionKind
	target string
}

// fakeActor returns queued errors per kind, then nil.
type fakeActor struct {
	calls []actorCall
	errs  map[models.ActionKind][]error
}

func (a *fakeActor) next(kind models.ActionKind, target string) error {
	a.calls = append(a.calls, actorCall{kind: kind, target: target})
	q := a.errs[kind]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	a.errs[kind] = q[1:]
	return err
}

func (a *fakeActor) Like(_ context.Context, id string) error {
	return a.next(models.ActionLike, id)
}

func (a *fakeActor) Follow(_ context.Context, id string) error {
	return a.next(models.ActionFollow, id)
}

func (a *fakeActor) callsOf(kind models.ActionKind) []string {
	var out []string
	for _, c := range a.calls {
		if c.kind == kind {
			out = append(out, c.target)
		}
	}
	return out
}

// pageStep is either a page of candidates or an error returned by a fetch.
type pageStep struct {
	candidates []models.Candidate
	err        error
}

type fakeSearcher struct {
	steps   map[string][]pageStep
	fetches map[string]int
}

func newFakeSearcher(steps map[string][]pageStep) *fakeSearcher {
	return &fakeSearcher{steps: steps, fetches: map[string]int{}}
}

func (s *fakeSearcher) Search(_ context.Context, query string) (platform.Page, error) {
	return s.step(query, 0)
}

func (s *fakeSearcher) step(query string, idx int) (platform.Page, error) {
	s.fetches[query]++
	steps := s.steps[query]
	if idx >= len(steps) {
		return nil, nil
	}
	st := steps[idx]
	if st.err != nil {
		// Errors are consumed so the retry sees the following step.
		s.steps[query] = append(append([]pageStep{}, steps[:idx]...), steps[idx+1:]...)
		return nil, st.err
	}
	return &fakePage{searcher: s, query: query, idx: idx, candidates: st.candidates}, nil
}

type fakePage struct {
	searcher   *fakeSearcher
	query      string
	idx        int
	candidates []models.Candidate
}

func (p *fakePage) Candidates() []models.Candidate { return p.candidates }

func (p *fakePage) Next(context.Context) (platform.Page, error) {
	return p.searcher.step(p.query, p.idx+1)
}

type memSeenStore struct {
	loaded  models.SeenSet
	loadErr error
	saved   []models.SeenSet
	saveErr error
}

func (m *memSeenStore) Load(context.Context) (models.SeenSet, error) {
	out := models.SeenSet{}
	for id := range m.loaded {
		out.Add(id)
	}
	if m.loadErr != nil {
		return models.SeenSet{}, m.loadErr
	}
	return out, nil
}

func (m *memSeenStore) Save(_ context.Context, seen models.SeenSet) error {
	cp := models.SeenSet{}
	for id := range seen {
		cp.Add(id)
	}
	m.saved = append(m.saved, cp)
	if m.saveErr == nil {
		m.loaded = cp
	}
	return m.saveErr
}

func int64Ptr(n int64) *int64 { return &n }

func timePtr(t time.Time) *time.Time { return &t }

// post builds a candidate that passes the default test filter.
func post(id, authorID string) models.Candidate {
	return models.Candidate{
		ID:     id,
		Text:   "shipping a new release today",
		Lang:   "en",
		Author: models.Author{ID: authorID, FollowersCount: int64Ptr(500)},
	}
}
