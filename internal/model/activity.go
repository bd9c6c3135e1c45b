package model

import (
	"time"

	"github.com/pmallory/goldstar/internal/daykey"
)

// ActivityKind tags what produced an activity record.
type ActivityKind string

const (
	ActivityGood   ActivityKind = "good"
	ActivityBad    ActivityKind = "bad"
	ActivityReward ActivityKind = "reward"
)

// Activity is an immutable log entry for one behavior completion, bad
// behavior occurrence, or reward redemption. Points is the signed delta
// applied to the day's score. Date is redundant with Timestamp but serves
// as the partition key for the daily ledger.
type Activity struct {
	ID         string       `json:"id"`
	ChildID    int64        `json:"childId"`
	BehaviorID int64        `json:"behaviorId"`
	Kind       ActivityKind `json:"activityType"`
	Points     int          `json:"points"`
	Name       string       `json:"name"`
	Note       string       `json:"note,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
	Date       daykey.Key   `json:"date"`
}
