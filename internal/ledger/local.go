package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pmallory/goldstar/internal/daykey"
	"github.com/pmallory/goldstar/internal/kv"
	"github.com/pmallory/goldstar/internal/model"
)

const lastActiveDateKey = "lastActiveDate"

// EntryKey is the KV key for one child-day ledger entry.
func EntryKey(childID int64, date daykey.Key) string {
	return fmt.Sprintf("activities_%d_%s", childID, date)
}

// Store is the locally-persisted ledger Source, backed by the versioned KV
// store. Writes are read-modify-compare-and-swap with a bounded retry, so
// concurrent writers for the same child-day cannot silently overwrite each
// other.
type Store struct {
	kv     *kv.Store
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(kvs *kv.Store, opts Options, logger *slog.Logger) *Store {
	return &Store{
		kv:     kvs,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// SetNow overrides the clock. Test hook.
func (s *Store) SetNow(now func() time.Time) {
	s.now = now
}

func (s *Store) today() daykey.Key {
	return daykey.At(s.now())
}

// loadEntry reads the entry for (childID, date). A missing key yields a
// fresh empty entry at version 0; a corrupt value is logged and replaced by
// an empty entry carrying the stored version so the next write repairs it.
func (s *Store) loadEntry(childID int64, date daykey.Key) (*Entry, int64) {
	key := EntryKey(childID, date)
	raw, version, err := s.kv.Get(key)
	if errors.Is(err, kv.ErrNotFound) {
		return NewEntry(), 0
	}
	if err != nil {
		s.logger.Error("ledger read failed, using empty entry", "key", key, "error", err)
		return NewEntry(), 0
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		s.logger.Error("corrupt ledger entry, using empty entry", "key", key, "error", err)
		return NewEntry(), version
	}
	if e.CompletedGoodBehaviors == nil {
		e.CompletedGoodBehaviors = []int64{}
	}
	if e.CompletedBadBehaviors == nil {
		e.CompletedBadBehaviors = []int64{}
	}
	if e.Activities == nil {
		e.Activities = []model.Activity{}
	}
	return &e, version
}

func (s *Store) LoadToday(_ context.Context, childID int64) (*Entry, error) {
	e, _ := s.loadEntry(childID, s.today())
	return e, nil
}

func (s *Store) LoadDay(_ context.Context, childID int64, date daykey.Key) (*Entry, error) {
	e, _ := s.loadEntry(childID, date)
	return e, nil
}

func (s *Store) IsCompleted(_ context.Context, childID, behaviorID int64, kind model.BehaviorKind) (bool, error) {
	e, _ := s.loadEntry(childID, s.today())
	if kind == model.KindBad {
		return e.HasBad(behaviorID), nil
	}
	return e.HasGood(behaviorID), nil
}

// mutate runs fn against the current entry and, when fn reports a change,
// writes it back with a compare-and-swap. A version conflict means another
// writer won the race; the whole read-modify-write is retried against the
// fresh state.
func (s *Store) mutate(ctx context.Context, childID int64, fn func(e *Entry) (Result, bool)) (Result, error) {
	var res Result
	backoff := retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		date := s.today()
		e, version := s.loadEntry(childID, date)

		r, changed := fn(e)
		res = r
		if !changed {
			return nil
		}

		e.LastUpdated = s.now().UTC()
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}

		if err := s.kv.CompareAndSwap(EntryKey(childID, date), string(raw), version); err != nil {
			if errors.Is(err, kv.ErrVersionConflict) {
				return retry.RetryableError(err)
			}
			return fmt.Errorf("write entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *Store) newActivity(childID, behaviorID int64, kind model.ActivityKind, delta int, name string) model.Activity {
	ts := s.now()
	return model.Activity{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ChildID:    childID,
		BehaviorID: behaviorID,
		Kind:       kind,
		Points:     delta,
		Name:       name,
		Timestamp:  ts,
		Date:       daykey.At(ts),
	}
}

func (s *Store) applyDelta(e *Entry, delta int) {
	e.TodayScore += delta
	if s.opts.ClampAtZero && e.TodayScore < 0 {
		e.TodayScore = 0
	}
}

func (s *Store) CompleteGoodBehavior(ctx context.Context, childID, behaviorID int64, points int, name string) (Result, error) {
	return s.mutate(ctx, childID, func(e *Entry) (Result, bool) {
		if e.HasGood(behaviorID) {
			return Result{OK: false, Message: "already completed today", Score: e.TodayScore}, false
		}
		e.CompletedGoodBehaviors = append(e.CompletedGoodBehaviors, behaviorID)
		s.applyDelta(e, points)
		e.Activities = append(e.Activities, s.newActivity(childID, behaviorID, model.ActivityGood, points, name))
		return Result{OK: true, Score: e.TodayScore}, true
	})
}

func (s *Store) RecordBadBehavior(ctx context.Context, childID, behaviorID int64, penalty int, name string) (Result, error) {
	return s.mutate(ctx, childID, func(e *Entry) (Result, bool) {
		if !e.HasBad(behaviorID) {
			e.CompletedBadBehaviors = append(e.CompletedBadBehaviors, behaviorID)
		}
		s.applyDelta(e, -penalty)
		e.Activities = append(e.Activities, s.newActivity(childID, behaviorID, model.ActivityBad, -penalty, name))
		return Result{OK: true, Score: e.TodayScore}, true
	})
}

func (s *Store) RedeemReward(ctx context.Context, childID, rewardID int64, cost int, name string) (Result, error) {
	return s.mutate(ctx, childID, func(e *Entry) (Result, bool) {
		if e.TodayScore < cost {
			return Result{OK: false, Message: "not enough points", Score: e.TodayScore}, false
		}
		s.applyDelta(e, -cost)
		e.Activities = append(e.Activities, s.newActivity(childID, rewardID, model.ActivityReward, -cost, name))
		return Result{OK: true, Score: e.TodayScore}, true
	})
}

func (s *Store) ListRecentActivities(_ context.Context, childID int64, limit int) ([]model.Activity, error) {
	e, _ := s.loadEntry(childID, s.today())
	return recentActivities(e, limit), nil
}

// ResetForNewDay records the current date under lastActiveDate and returns
// it. No entries are erased: the new day's entry appears lazily on first
// read, which is what zeroes every child's visible score.
func (s *Store) ResetForNewDay(_ context.Context) (daykey.Key, error) {
	today := s.today()
	if err := s.kv.Put(lastActiveDateKey, string(today)); err != nil {
		return today, fmt.Errorf("record last active date: %w", err)
	}
	return today, nil
}

// LastActiveDate returns the most recently recorded day boundary, or the
// empty key if none was ever recorded.
func (s *Store) LastActiveDate() daykey.Key {
	raw, _, err := s.kv.Get(lastActiveDateKey)
	if err != nil {
		return ""
	}
	return daykey.Key(raw)
}

func (s *Store) AggregateChildrenWithTodayScores(_ context.Context, children []model.Child) ([]model.ChildView, error) {
	today := s.today()
	views := make([]model.ChildView, 0, len(children))
	for _, c := range children {
		e, _ := s.loadEntry(c.ID, today)
		views = append(views, summarize(c, e))
	}
	return views, nil
}
