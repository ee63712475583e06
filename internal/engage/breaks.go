package engage

import (
	"context"
	"log/slog"
	"time"
)

// BreakScheduler forces a randomized pause after every N attempted actions.
type BreakScheduler struct {
	after  int
	lo, hi time.Duration
	total  int
	pacer  *Pacer
	logger *slog.Logger
}

// NewBreakScheduler creates a scheduler. after <= 0 disables breaks.
func NewBreakScheduler(after int, lo, hi time.Duration, pacer *Pacer, logger *slog.Logger) *BreakScheduler {
	return &BreakScheduler{after: after, lo: lo, hi: hi, pacer: pacer, logger: logger}
}

// Attempted counts one attempted action and pauses when the running total is a
// positive multiple of the threshold. It reports whether a pause happened.
func (b *BreakScheduler) Attempted(ctx context.Context) bool {
	b.total++
	if b.after <= 0 || b.total%b.after != 0 {
		return false
	}

	wait, _ := b.pacer.Pause(ctx, PauseMicroBreak, b.lo, b.hi)
	b.logger.Info("micro-break",
		"attempted_actions", b.total,
		"pause", wait.Round(time.Second).String())
	return true
}

// Total returns attempted actions since the last reset.
func (b *BreakScheduler) Total() int {
	return b.total
}

// Reset starts a new run.
func (b *BreakScheduler) Reset() {
	b.total = 0
}
