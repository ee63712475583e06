package engage

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/STRATINT/engager/internal/models"
	"github.com/STRATINT/engager/internal/platform"
)

const (
	pageDelayMin     = 2 * time.Second
	pageDelayMax     = 5 * time.Second
	searchBackoffMin = 60 * time.Second
	searchBackoffMax = 120 * time.Second
)

// SearchPager walks result pages for one query at a time.
type SearchPager struct {
	searcher platform.Searcher
	pacer    *Pacer
	recorder Recorder
	logger   *slog.Logger
}

// NewSearchPager creates a pager. A nil recorder discards observations.
func NewSearchPager(searcher platform.Searcher, pacer *Pacer, recorder Recorder, logger *slog.Logger) *SearchPager {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &SearchPager{searcher: searcher, pacer: pacer, recorder: recorder, logger: logger}
}

// Pages yields candidate pages for query in platform order. A short random
// delay separates fetches. Rate limits back off and retry the same fetch;
// any other error ends this query's pagination only.
func (p *SearchPager) Pages(ctx context.Context, query string) iter.Seq[[]models.Candidate] {
	return func(yield func([]models.Candidate) bool) {
		logger := p.logger.With("query", query)

		page, ok := p.fetch(ctx, logger, func(ctx context.Context) (platform.Page, error) {
			return p.searcher.Search(ctx, query)
		})

		n := 0
		for ok && page != nil {
			n++
			candidates := page.Candidates()
			logger.Info("search page", "page", n, "candidates", len(candidates))

			if !yield(candidates) {
				return
			}

			if _, err := p.pacer.Pause(ctx, PausePageJitter, pageDelayMin, pageDelayMax); err != nil {
				return
			}

			page, ok = p.fetch(ctx, logger, page.Next)
		}
	}
}

// fetch runs one page request, retrying for as long as the platform signals a
// rate limit. ok is false when pagination must stop.
func (p *SearchPager) fetch(ctx context.Context, logger *slog.Logger, call func(context.Context) (platform.Page, error)) (platform.Page, bool) {
	for {
		if ctx.Err() != nil {
			return nil, false
		}

		page, err := call(ctx)
		if err == nil {
			if page != nil {
				p.recorder.PageFetched()
			}
			return page, true
		}

		if !platform.IsRateLimited(err) {
			logger.Error("pagination aborted", "error", err)
			return nil, false
		}

		wait, serr := p.pacer.Pause(ctx, PauseSearchBackoff, searchBackoffMin, searchBackoffMax)
		logger.Warn("rate limited on search, backing off",
			"backoff", wait.Round(time.Second).String(),
			"error", err)
		if serr != nil {
			return nil, false
		}
	}
}
