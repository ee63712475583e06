package models

import "time"

// Candidate is one post discovered through search and evaluated for engagement.
type Candidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// Lang is the platform's language code; empty when unknown.
	Lang string `json:"lang,omitempty"`
	// CreatedAt is set when the adapter could parse the creation timestamp.
	CreatedAt *time.Time `json:"created_at,omitempty"`
	// RawCreatedAt keeps a timestamp the adapter could not parse itself.
	RawCreatedAt string `json:"raw_created_at,omitempty"`
	Author       Author `json:"author"`
}

// Author is the account that published a candidate.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	// FollowersCount is nil when the platform did not report it.
	FollowersCount *int64 `json:"followers_count,omitempty"`
}
