package engage

import (
	"strings"
	"time"

	"github.com/STRATINT/engager/internal/config"
	"github.com/STRATINT/engager/internal/models"
)

// Reason explains a filter decision.
type Reason string

const (
	ReasonAccepted  Reason = "accepted"
	ReasonSeen      Reason = "seen"
	ReasonEmpty     Reason = "empty_text"
	ReasonReshare   Reason = "reshare"
	ReasonReply     Reason = "reply"
	ReasonKeyword   Reason = "blacklisted_keyword"
	ReasonLanguage  Reason = "language"
	ReasonTooOld    Reason = "too_old"
	ReasonFollowers Reason = "followers_out_of_range"
)

// Decision is the outcome of evaluating one candidate.
type Decision struct {
	Accepted bool
	Reason   Reason
}

// Counted reports whether the decision counts as a filter evaluation. Seen or
// identifier-less candidates are skipped before any check runs.
func (d Decision) Counted() bool {
	return d.Reason != ReasonSeen
}

var reshareMarkers = []string{"RT @", "QT @"}

// timestamp layouts tried for candidates whose adapter left the creation time
// unparsed. The last layout carries no zone and is read as UTC.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RubyDate,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// FilterPipeline decides whether a candidate deserves engagement. Checks run in
// a fixed order and the first failure rejects.
//
// Optional fields fail open: a missing language, a missing or unparseable
// creation time, and an unknown follower count all pass their checks.
type FilterPipeline struct {
	languages    map[string]struct{}
	keywords     []string
	maxAge       time.Duration
	minFollowers int64
	maxFollowers int64
	now          func() time.Time
}

// NewFilterPipeline builds a pipeline from engagement settings. A nil now uses
// time.Now.
func NewFilterPipeline(cfg config.EngagementConfig, now func() time.Time) *FilterPipeline {
	if now == nil {
		now = time.Now
	}

	langs := make(map[string]struct{}, len(cfg.Languages))
	for _, l := range cfg.Languages {
		langs[strings.ToLower(l)] = struct{}{}
	}

	keywords := make([]string, 0, len(cfg.ExcludeKeywords))
	for _, k := range cfg.ExcludeKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	return &FilterPipeline{
		languages:    langs,
		keywords:     keywords,
		maxAge:       time.Duration(cfg.MaxAgeHours) * time.Hour,
		minFollowers: cfg.MinFollowers,
		maxFollowers: cfg.MaxFollowers,
		now:          now,
	}
}

// Accept reports whether c passes every check.
func (f *FilterPipeline) Accept(c models.Candidate, seen models.SeenSet) bool {
	return f.Evaluate(c, seen).Accepted
}

// Evaluate runs the checks in order and reports the first failure.
func (f *FilterPipeline) Evaluate(c models.Candidate, seen models.SeenSet) Decision {
	if c.ID == "" || seen.Has(c.ID) {
		return reject(ReasonSeen)
	}

	text := NormalizeText(c.Text)
	if text == "" {
		return reject(ReasonEmpty)
	}

	for _, marker := range reshareMarkers {
		if strings.HasPrefix(text, marker) {
			return reject(ReasonReshare)
		}
	}
	if strings.HasPrefix(text, "@") {
		return reject(ReasonReply)
	}

	lower := strings.ToLower(text)
	for _, k := range f.keywords {
		if strings.Contains(lower, k) {
			return reject(ReasonKeyword)
		}
	}

	if c.Lang != "" {
		if _, ok := f.languages[strings.ToLower(c.Lang)]; !ok {
			return reject(ReasonLanguage)
		}
	}

	if created, ok := createdAt(c); ok {
		if f.now().UTC().Sub(created.UTC()) > f.maxAge {
			return reject(ReasonTooOld)
		}
	}

	if n := c.Author.FollowersCount; n != nil {
		if *n < f.minFollowers || *n > f.maxFollowers {
			return reject(ReasonFollowers)
		}
	}

	return Decision{Accepted: true, Reason: ReasonAccepted}
}

// NormalizeText flattens newlines and trims surrounding whitespace.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.TrimSpace(text)
}

func reject(r Reason) Decision {
	return Decision{Reason: r}
}

// createdAt resolves a candidate's creation instant. ok is false when the
// timestamp is absent or cannot be parsed.
func createdAt(c models.Candidate) (time.Time, bool) {
	if c.CreatedAt != nil {
		return *c.CreatedAt, true
	}

	raw := strings.TrimSpace(c.RawCreatedAt)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
