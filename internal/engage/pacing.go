package engage

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sleeper blocks for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Jitter draws a duration uniformly from [lo, hi].
type Jitter interface {
	Between(lo, hi time.Duration) time.Duration
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// UniformJitter draws from math/rand/v2.
type UniformJitter struct{}

func (UniformJitter) Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// Pacer draws randomized pauses and sleeps through them, reporting each to
// the recorder under a reason label.
type Pacer struct {
	sleeper  Sleeper
	jitter   Jitter
	recorder Recorder
}

// NewPacer wires a pacer. A nil recorder discards observations.
func NewPacer(sleeper Sleeper, jitter Jitter, recorder Recorder) *Pacer {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Pacer{sleeper: sleeper, jitter: jitter, recorder: recorder}
}

// Pause sleeps for a duration drawn from [lo, hi] and returns it.
func (p *Pacer) Pause(ctx context.Context, reason string, lo, hi time.Duration) (time.Duration, error) {
	d := p.jitter.Between(lo, hi)
	p.recorder.Slept(reason, d)
	return d, p.sleeper.Sleep(ctx, d)
}

// Sleep pauses for exactly d.
func (p *Pacer) Sleep(ctx context.Context, reason string, d time.Duration) error {
	p.recorder.Slept(reason, d)
	return p.sleeper.Sleep(ctx, d)
}

// Sleep reasons reported to the recorder.
const (
	PauseCadence       = "cadence"
	PauseMicroBreak    = "micro_break"
	PausePageJitter    = "page_jitter"
	PauseSearchBackoff = "search_backoff"
	PauseActionBackoff = "action_backoff"
	PauseGate          = "gate"
	PauseBetweenPasses = "between_passes"
)
