package engage

import (
	"testing"
	"time"

	"github.com/STRATINT/engager/internal/config"
	"github.com/STRATINT/engager/internal/models"
)

var filterNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func testFilter() *FilterPipeline {
	return NewFilterPipeline(config.EngagementConfig{
		MinFollowers:    100,
		MaxFollowers:    1000,
		Languages:       []string{"en"},
		MaxAgeHours:     24,
		ExcludeKeywords: []string{"giveaway", "Airdrop"},
	}, func() time.Time { return filterNow })
}

func TestFilterPipelineSeenShortCircuits(t *testing.T) {
	f := testFilter()
	seen := models.NewSeenSet("42")

	// Every later check would reject this candidate for its own reason.
	c := models.Candidate{ID: "42", Text: "RT @x giveaway", Lang: "fr"}
	d := f.Evaluate(c, seen)
	if d.Accepted || d.Reason != ReasonSeen {
		t.Fatalf("expected seen short-circuit, got %+v", d)
	}
	if d.Counted() {
		t.Error("seen candidates must not count as filter evaluations")
	}

	if d := f.Evaluate(models.Candidate{Text: "hello"}, seen); d.Reason != ReasonSeen {
		t.Errorf("expected missing id to be skipped like a seen one, got %+v", d)
	}
}

func TestFilterPipelineChecks(t *testing.T) {
	f := testFilter()

	tests := []struct {
		name   string
		mutate func(c *models.Candidate)
		want   Reason
	}{
		{name: "accepted", mutate: func(c *models.Candidate) {}, want: ReasonAccepted},
		{name: "blank text", mutate: func(c *models.Candidate) { c.Text = " \n\t " }, want: ReasonEmpty},
		{name: "retweet", mutate: func(c *models.Candidate) { c.Text = "RT @x hello" }, want: ReasonReshare},
		{name: "quote", mutate: func(c *models.Candidate) { c.Text = "QT @x hello" }, want: ReasonReshare},
		{name: "retweet after newline trim", mutate: func(c *models.Candidate) { c.Text = "\n RT @x hello" }, want: ReasonReshare},
		{name: "reply", mutate: func(c *models.Candidate) { c.Text = "@someone thanks" }, want: ReasonReply},
		{name: "keyword case folded", mutate: func(c *models.Candidate) { c.Text = "Huge GIVEAWAY today" }, want: ReasonKeyword},
		{name: "keyword configured uppercase", mutate: func(c *models.Candidate) { c.Text = "free airdrop" }, want: ReasonKeyword},
		{name: "language rejected", mutate: func(c *models.Candidate) { c.Lang = "fr" }, want: ReasonLanguage},
		{name: "language case folded", mutate: func(c *models.Candidate) { c.Lang = "EN" }, want: ReasonAccepted},
		{name: "language missing", mutate: func(c *models.Candidate) { c.Lang = "" }, want: ReasonAccepted},
		{name: "too old", mutate: func(c *models.Candidate) { c.CreatedAt = timePtr(filterNow.Add(-25 * time.Hour)) }, want: ReasonTooOld},
		{name: "exactly max age", mutate: func(c *models.Candidate) { c.CreatedAt = timePtr(filterNow.Add(-24 * time.Hour)) }, want: ReasonAccepted},
		{name: "fresh", mutate: func(c *models.Candidate) { c.CreatedAt = timePtr(filterNow.Add(-time.Hour)) }, want: ReasonAccepted},
		{name: "raw legacy timestamp too old", mutate: func(c *models.Candidate) { c.RawCreatedAt = "Mon Mar 10 08:00:00 +0000 2025" }, want: ReasonTooOld},
		{name: "raw timestamp without zone is utc", mutate: func(c *models.Candidate) { c.RawCreatedAt = "2025-03-14T11:00:00" }, want: ReasonAccepted},
		{name: "raw timestamp without zone too old", mutate: func(c *models.Candidate) { c.RawCreatedAt = "2025-03-12 11:00:00" }, want: ReasonTooOld},
		{name: "unparseable timestamp fails open", mutate: func(c *models.Candidate) { c.RawCreatedAt = "yesterday-ish" }, want: ReasonAccepted},
		{name: "followers below", mutate: func(c *models.Candidate) { c.Author.FollowersCount = int64Ptr(50) }, want: ReasonFollowers},
		{name: "followers above", mutate: func(c *models.Candidate) { c.Author.FollowersCount = int64Ptr(1001) }, want: ReasonFollowers},
		{name: "followers at bounds", mutate: func(c *models.Candidate) { c.Author.FollowersCount = int64Ptr(100) }, want: ReasonAccepted},
		{name: "followers unknown fails open", mutate: func(c *models.Candidate) { c.Author.FollowersCount = nil }, want: ReasonAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := post("1", "u1")
			tt.mutate(&c)

			d := f.Evaluate(c, models.SeenSet{})
			if d.Reason != tt.want {
				t.Fatalf("Evaluate() reason = %q, want %q", d.Reason, tt.want)
			}
			if d.Accepted != (tt.want == ReasonAccepted) {
				t.Errorf("Evaluate() accepted = %t for reason %q", d.Accepted, d.Reason)
			}
		})
	}
}

func TestFilterPipelineRejectsReshareLanguageFollowers(t *testing.T) {
	f := testFilter()
	seen := models.SeenSet{}

	rt := post("1", "u")
	rt.Text = "RT @x hello"
	if f.Accept(rt, seen) {
		t.Error("retweets must be rejected regardless of other fields")
	}

	french := post("2", "u")
	french.Lang = "fr"
	if f.Accept(french, seen) {
		t.Error("fr must be rejected when only en is allowed")
	}
	french.Lang = "en"
	if !f.Accept(french, seen) {
		t.Error("en must be accepted")
	}

	small := post("3", "u")
	small.Author.FollowersCount = int64Ptr(50)
	if f.Accept(small, seen) {
		t.Error("50 followers must be rejected for [100,1000]")
	}
	small.Author.FollowersCount = int64Ptr(500)
	if !f.Accept(small, seen) {
		t.Error("500 followers must be accepted for [100,1000]")
	}
}

func TestFilterPipelineRejectsHashtagKeyword(t *testing.T) {
	f := NewFilterPipeline(config.EngagementConfig{
		MaxFollowers:    1000,
		Languages:       []string{"en"},
		MaxAgeHours:     24,
		ExcludeKeywords: []string{"#ad"},
	}, func() time.Time { return filterNow })

	c := post("7", "u")
	c.Text = "new drop is live #AD"
	if d := f.Evaluate(c, models.SeenSet{}); d.Reason != ReasonKeyword {
		t.Errorf("expected keyword rejection, got %+v", d)
	}
}

func TestFilterPipelineDoesNotMutateSeen(t *testing.T) {
	f := testFilter()
	seen := models.SeenSet{}

	if !f.Accept(post("9", "u"), seen) {
		t.Fatal("expected candidate to be accepted")
	}
	if len(seen) != 0 {
		t.Errorf("filter must leave recording to the caller, seen=%v", seen)
	}
}
