package engage

import (
	"sync"
	"time"
)

// PassSummary describes one completed pass over the query list.
type PassSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Queries    int       `json:"queries"`
	Candidates int       `json:"candidates"`
	Accepted   int       `json:"accepted"`
	Likes      int       `json:"likes"`
	Follows    int       `json:"follows"`
	Attempts   int       `json:"attempts"`
	DryRun     bool      `json:"dry_run"`
	Error      string    `json:"error,omitempty"`
}

// Snapshot is a point-in-time view of the run loop for the status API.
type Snapshot struct {
	State     string       `json:"state"`
	UpdatedAt time.Time    `json:"updated_at"`
	SeenIDs   int          `json:"seen_ids"`
	LastPass  *PassSummary `json:"last_pass,omitempty"`
}

// Run loop states.
const (
	StateStarting = "starting"
	StateGated    = "gated"
	StateActive   = "active"
	StateIdle     = "idle"
)

// StatusBoard holds the latest snapshot. The run loop publishes into it and
// HTTP handlers read copies.
type StatusBoard struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStatusBoard returns a board in the starting state.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{snap: Snapshot{State: StateStarting, UpdatedAt: time.Now()}}
}

// Snapshot returns a copy of the current state.
func (b *StatusBoard) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.snap
	if s.LastPass != nil {
		last := *s.LastPass
		s.LastPass = &last
	}
	return s
}

func (b *StatusBoard) setState(state string, at time.Time) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.State = state
	b.snap.UpdatedAt = at
}

func (b *StatusBoard) finishPass(summary PassSummary, seen int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.State = StateIdle
	b.snap.UpdatedAt = summary.FinishedAt
	b.snap.SeenIDs = seen
	b.snap.LastPass = &summary
}
