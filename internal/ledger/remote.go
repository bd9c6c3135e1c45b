package ledger

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/pmallory/goldstar/internal/daykey"
	"github.com/pmallory/goldstar/internal/model"
	"github.com/pmallory/goldstar/internal/remote"
)

// RemoteView is the API-backed ledger Source. Nothing is stored locally:
// every read re-derives the day's entry from the remote activity list, and
// that derivation must line up with what Store maintains incrementally
// (same completed-set membership and score arithmetic).
type RemoteView struct {
	client *remote.Client
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewRemoteView(client *remote.Client, opts Options, logger *slog.Logger) *RemoteView {
	return &RemoteView{
		client: client,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// SetNow overrides the clock. Test hook.
func (v *RemoteView) SetNow(now func() time.Time) {
	v.now = now
}

func (v *RemoteView) today() daykey.Key {
	return daykey.At(v.now())
}

// Derive folds a flat activity list into a ledger entry: good activities
// populate the completed set, bad activities the bad set, the score is the
// sum of deltas, and the activity list is kept in timestamp order.
func Derive(activities []model.Activity, opts Options) *Entry {
	e := NewEntry()

	acts := slices.Clone(activities)
	slices.SortStableFunc(acts, func(a, b model.Activity) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	for _, a := range acts {
		switch a.Kind {
		case model.ActivityGood:
			if !e.HasGood(a.BehaviorID) {
				e.CompletedGoodBehaviors = append(e.CompletedGoodBehaviors, a.BehaviorID)
			}
		case model.ActivityBad:
			if !e.HasBad(a.BehaviorID) {
				e.CompletedBadBehaviors = append(e.CompletedBadBehaviors, a.BehaviorID)
			}
		}
		e.TodayScore += a.Points
		if opts.ClampAtZero && e.TodayScore < 0 {
			e.TodayScore = 0
		}
		e.Activities = append(e.Activities, a)
		if a.Timestamp.After(e.LastUpdated) {
			e.LastUpdated = a.Timestamp
		}
	}
	return e
}

func (v *RemoteView) loadDay(ctx context.Context, childID int64, date daykey.Key) (*Entry, error) {
	activities, err := v.client.ListActivities(ctx, childID, date)
	if err != nil {
		return nil, err
	}
	return Derive(activities, v.opts), nil
}

func (v *RemoteView) LoadToday(ctx context.Context, childID int64) (*Entry, error) {
	return v.loadDay(ctx, childID, v.today())
}

func (v *RemoteView) LoadDay(ctx context.Context, childID int64, date daykey.Key) (*Entry, error) {
	return v.loadDay(ctx, childID, date)
}

func (v *RemoteView) IsCompleted(ctx context.Context, childID, behaviorID int64, kind model.BehaviorKind) (bool, error) {
	e, err := v.LoadToday(ctx, childID)
	if err != nil {
		return false, err
	}
	if kind == model.KindBad {
		return e.HasBad(behaviorID), nil
	}
	return e.HasGood(behaviorID), nil
}

func (v *RemoteView) CompleteGoodBehavior(ctx context.Context, childID, behaviorID int64, points int, name string) (Result, error) {
	e, err := v.LoadToday(ctx, childID)
	if err != nil {
		return Result{}, err
	}
	if e.HasGood(behaviorID) {
		return Result{OK: false, Message: "already completed today", Score: e.TodayScore}, nil
	}

	if _, err := v.client.LogActivity(ctx, remote.LogActivityRequest{
		ChildID:      childID,
		ActivityType: string(model.ActivityGood),
		ActivityID:   behaviorID,
		Note:         name,
	}); err != nil {
		return Result{}, err
	}

	after, err := v.LoadToday(ctx, childID)
	if err != nil {
		// The write landed; only the confirming read failed. Fall back to
		// the locally-patched score so the caller still sees success.
		v.logger.Warn("reload after log failed", "child_id", childID, "error", err)
		return Result{OK: true, Score: e.TodayScore + points}, nil
	}
	return Result{OK: true, Score: after.TodayScore}, nil
}

func (v *RemoteView) RecordBadBehavior(ctx context.Context, childID, behaviorID int64, penalty int, name string) (Result, error) {
	e, err := v.LoadToday(ctx, childID)
	if err != nil {
		return Result{}, err
	}

	if _, err := v.client.LogActivity(ctx, remote.LogActivityRequest{
		ChildID:      childID,
		ActivityType: string(model.ActivityBad),
		ActivityID:   behaviorID,
		Note:         name,
	}); err != nil {
		return Result{}, err
	}

	after, err := v.LoadToday(ctx, childID)
	if err != nil {
		v.logger.Warn("reload after log failed", "child_id", childID, "error", err)
		score := e.TodayScore - penalty
		if v.opts.ClampAtZero && score < 0 {
			score = 0
		}
		return Result{OK: true, Score: score}, nil
	}
	return Result{OK: true, Score: after.TodayScore}, nil
}

func (v *RemoteView) RedeemReward(ctx context.Context, childID, rewardID int64, cost int, name string) (Result, error) {
	e, err := v.LoadToday(ctx, childID)
	if err != nil {
		return Result{}, err
	}
	if e.TodayScore < cost {
		return Result{OK: false, Message: "not enough points", Score: e.TodayScore}, nil
	}

	if _, err := v.client.LogActivity(ctx, remote.LogActivityRequest{
		ChildID:      childID,
		ActivityType: string(model.ActivityReward),
		ActivityID:   rewardID,
		Note:         name,
	}); err != nil {
		return Result{}, err
	}

	after, err := v.LoadToday(ctx, childID)
	if err != nil {
		v.logger.Warn("reload after log failed", "child_id", childID, "error", err)
		return Result{OK: true, Score: e.TodayScore - cost}, nil
	}
	return Result{OK: true, Score: after.TodayScore}, nil
}

func (v *RemoteView) ListRecentActivities(ctx context.Context, childID int64, limit int) ([]model.Activity, error) {
	e, err := v.LoadToday(ctx, childID)
	if err != nil {
		return nil, err
	}
	return recentActivities(e, limit), nil
}

// ResetForNewDay is a no-op for the remote view beyond recomputing the
// boundary: the service partitions activities by date on its side.
func (v *RemoteView) ResetForNewDay(_ context.Context) (daykey.Key, error) {
	return v.today(), nil
}

func (v *RemoteView) AggregateChildrenWithTodayScores(ctx context.Context, children []model.Child) ([]model.ChildView, error) {
	views := make([]model.ChildView, 0, len(children))
	for _, c := range children {
		e, err := v.LoadToday(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, summarize(c, e))
	}
	return views, nil
}
