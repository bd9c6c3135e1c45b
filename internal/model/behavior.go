package model

import "time"

// BehaviorKind distinguishes the good-behavior catalog from the
// bad-behavior catalog.
type BehaviorKind string

const (
	KindGood BehaviorKind = "good"
	KindBad  BehaviorKind = "bad"
)

// Behavior is a catalog entry. Points is always a positive magnitude; for
// bad behaviors it is the penalty subtracted from the score.
type Behavior struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Points    int          `json:"points"`
	Kind      BehaviorKind `json:"kind"`
	Category  string       `json:"category"`
	Color     string       `json:"color"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
