package models

import "time"

// ActionKind identifies an engagement action.
type ActionKind string

const (
	ActionLike   ActionKind = "like"
	ActionFollow ActionKind = "follow"
)

// ActionKinds lists every kind in dispatch order.
var ActionKinds = []ActionKind{ActionLike, ActionFollow}

// Outcome is the result of a single dispatched action.
type Outcome string

const (
	OutcomeDry         Outcome = "dry"
	OutcomeOK          Outcome = "ok"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeError       Outcome = "error"
)

// ActionLog is a persisted record of one dispatched action.
type ActionLog struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	RunID       string     `json:"run_id"`
	Kind        ActionKind `json:"kind"`
	TargetID    string     `json:"target_id"`
	CandidateID string     `json:"candidate_id"`
	Query       string     `json:"query"`
	Outcome     Outcome    `json:"outcome"`
	Error       string     `json:"error,omitempty"`
}
