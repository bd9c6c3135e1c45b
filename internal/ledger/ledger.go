// Package ledger owns per-child, per-day activity state: which good
// behaviors are done today, which bad behaviors have occurred, the running
// score, and the day's activity log. Two implementations exist, selected
// by configuration: a KV-backed Store for local persistence and a
// RemoteView that derives the same state from a remote activity list.
package ledger

import (
	"context"
	"slices"
	"time"

	"github.com/pmallory/goldstar/internal/daykey"
	"github.com/pmallory/goldstar/internal/model"
)

// Entry is the ledger record for one (child, date) pair. The JSON shape is
// the persisted wire format, so field names here are load-bearing.
type Entry struct {
	CompletedGoodBehaviors []int64          `json:"completedGoodBehaviors"`
	CompletedBadBehaviors  []int64          `json:"completedBadBehaviors"`
	TodayScore             int              `json:"todayScore"`
	Activities             []model.Activity `json:"activities"`
	LastUpdated            time.Time        `json:"lastUpdated"`
}

// NewEntry returns an empty entry: zero score, no completions, no activity.
func NewEntry() *Entry {
	return &Entry{
		CompletedGoodBehaviors: []int64{},
		CompletedBadBehaviors:  []int64{},
		Activities:             []model.Activity{},
	}
}

// HasGood reports whether the good behavior is already completed today.
func (e *Entry) HasGood(behaviorID int64) bool {
	return slices.Contains(e.CompletedGoodBehaviors, behaviorID)
}

// HasBad reports whether the bad behavior has occurred at least once today.
// Membership only; the occurrence count lives in Activities.
func (e *Entry) HasBad(behaviorID int64) bool {
	return slices.Contains(e.CompletedBadBehaviors, behaviorID)
}

// Result is the outcome of a ledger mutation. Expected domain conditions
// (already completed, not enough points) come back as OK=false with a
// message rather than an error, so callers can branch without unwrapping.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Score   int    `json:"score"`
}

// Options control optional ledger behavior.
type Options struct {
	// ClampAtZero floors the running score at zero after every mutation,
	// matching the classic accumulation model. Off by default: the ledger
	// model allows negative scores.
	ClampAtZero bool
}

// Source is the daily-ledger contract shared by the local store and the
// remote-derived view. All operations are scoped to the current calendar
// day unless an explicit date key is given.
type Source interface {
	// LoadToday returns the entry for (childID, today), lazily empty if
	// none exists.
	LoadToday(ctx context.Context, childID int64) (*Entry, error)

	// LoadDay returns the entry for an explicit date key. Past days stay
	// addressable after rollover.
	LoadDay(ctx context.Context, childID int64, date daykey.Key) (*Entry, error)

	// IsCompleted tests membership in today's good or bad set.
	IsCompleted(ctx context.Context, childID, behaviorID int64, kind model.BehaviorKind) (bool, error)

	// CompleteGoodBehavior marks a good behavior done today. Idempotent: a
	// second call for the same behavior returns OK=false and mutates
	// nothing.
	CompleteGoodBehavior(ctx context.Context, childID, behaviorID int64, points int, name string) (Result, error)

	// RecordBadBehavior logs a bad behavior occurrence. Never idempotent:
	// every call appends an activity and subtracts the penalty.
	RecordBadBehavior(ctx context.Context, childID, behaviorID int64, penalty int, name string) (Result, error)

	// RedeemReward spends points from today's running score. Fails with
	// OK=false when the score cannot cover the cost.
	RedeemReward(ctx context.Context, childID, rewardID int64, cost int, name string) (Result, error)

	// ListRecentActivities returns today's activities, newest first,
	// truncated to limit.
	ListRecentActivities(ctx context.Context, childID int64, limit int) ([]model.Activity, error)

	// ResetForNewDay advances the ledger's notion of today and returns the
	// new date key. Prior days' entries are left untouched.
	ResetForNewDay(ctx context.Context) (daykey.Key, error)

	// AggregateChildrenWithTodayScores attaches each child's current-day
	// summary. Read-only.
	AggregateChildrenWithTodayScores(ctx context.Context, children []model.Child) ([]model.ChildView, error)
}

// summarize builds a ChildView from a child and its current-day entry.
func summarize(c model.Child, e *Entry) model.ChildView {
	return model.ChildView{
		Child:              c,
		TodayScore:         e.TodayScore,
		TodayActivityCount: len(e.Activities),
		CompletedGoodCount: len(e.CompletedGoodBehaviors),
		CompletedBadCount:  len(e.CompletedBadBehaviors),
	}
}

// recentActivities returns the entry's activities newest first, truncated.
func recentActivities(e *Entry, limit int) []model.Activity {
	acts := slices.Clone(e.Activities)
	slices.SortStableFunc(acts, func(a, b model.Activity) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if limit >= 0 && len(acts) > limit {
		acts = acts[:limit]
	}
	return acts
}
