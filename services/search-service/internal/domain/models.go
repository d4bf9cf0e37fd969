package domain

import "time"

// SearchDocument is the search projection of one post.
type SearchDocument struct {
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	// SourceEmittedAt is the emittedAt of the event that wrote this row.
	SourceEmittedAt time.Time `json:"-"`
	Score           float64   `json:"score,omitempty"`
}

// Tombstone remembers an applied delete so a late create or update for the
// same post is discarded instead of resurrecting it.
type Tombstone struct {
	PostID    string
	DeletedAt time.Time
	ExpiresAt time.Time
}

type SearchResult struct {
	Query   string           `json:"query"`
	Limit   int              `json:"limit"`
	Count   int              `json:"count"`
	Results []SearchDocument `json:"results"`
}

// EventMeta is the envelope data a projection needs from an event.
type EventMeta struct {
	ID         string
	RoutingKey string
	EmittedAt  time.Time
}
