package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/pmallory/goldstar/internal/daykey"
	"github.com/pmallory/goldstar/internal/database"
	"github.com/pmallory/goldstar/internal/kv"
	"github.com/pmallory/goldstar/internal/logging"
	"github.com/pmallory/goldstar/internal/model"
)

func setupTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(kv.NewStore(db), opts, logging.Discard())
}

func TestCompleteGoodBehaviorIdempotent(t *testing.T) {
	s := setupTestStore(t, Options{})
	ctx := context.Background()

	res, err := s.CompleteGoodBehavior(ctx, 1, 10, 5, "Brush Teeth")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected OK, got message %q", res.Message)
	}
	if res.Score != 5 {
		t.Errorf("score = %d, want 5", res.Score)
	}

	// Second completion of the same behavior today is a no-op.
	res, err = s.CompleteGoodBehavior(ctx, 1, 10, 5, "Brush Teeth")
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if res.OK {
		t.Error("second complete should not be OK")
	}
	if res.Message != "already completed today" {
		t.Errorf("message = %q, want %q", res.Message, "already completed today")
	}
	if res.Score != 5 {
		t.Errorf("score = %d, want 5", res.Score)
	}

	entry, err := s.LoadToday(ctx, 1)
	if err != nil {
		t.Fatalf("load today: %v", err)
	}
	if len(entry.Activities) != 1 {
		t.Errorf("activities = %d, want 1", len(entry.Activities))
	}
	if len(entry.CompletedGoodBehaviors) != 1 || entry.CompletedGoodBehaviors[0] != 10 {
		t.Errorf("completed good = %v, want [10]", entry.CompletedGoodBehaviors)
	}

	done, err := s.IsCompleted(ctx, 1, 10, model.KindGood)
	if err != nil {
		t.Fatalf("is completed: %v", err)
	}
	if !done {
		t.Error("expected behavior to be completed")
	}
}

func TestRecordBadBehaviorRepeats(t *testing.T) {
	s := setupTestStore(t, Options{})
	ctx := context.Background()

	if _, err := s.CompleteGoodBehavior(ctx, 1, 10, 5, "Brush Teeth"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Every record counts, even for the same behavior.
	res, err := s.RecordBadBehavior(ctx, 1, 20, 3, "Yelling")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !res.OK || res.Score != 2 {
		t.Fatalf("first record: ok=%v score=%d, want ok score 2", res.OK, res.Score)
	}

	res, err = s.RecordBadBehavior(ctx, 1, 20, 3, "Yelling")
	if err != nil {
		t.Fatalf("record again: %v", err)
	}
	if !res.OK || res.Score != -1 {
		t.Fatalf("second record: ok=%v score=%d, want ok score -1", res.OK, res.Score)
	}

	entry, _ := s.LoadToday(ctx, 1)
	if len(entry.Activities) != 3 {
		t.Errorf("activities = %d, want 3", len(entry.Activities))
	}
	// Membership set holds the behavior once regardless of repeats.
	if len(entry.CompletedBadBehaviors) != 1 || entry.CompletedBadBehaviors[0] != 20 {
		t.Errorf("completed bad = %v, want [20]", entry.CompletedBadBehaviors)
	}
	if entry.TodayScore != -1 {
		t.Errorf("score = %d, want -1", entry.TodayScore)
	}
}

func TestClampAtZero(t *testing.T) {
	s := setupTestStore(t, Options{ClampAtZero: true})
	ctx := context.Background()

	res, err := s.RecordBadBehavior(ctx, 1, 20, 3, "Yelling")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Score != 0 {
		t.Errorf("clamped score = %d, want 0", res.Score)
	}

	// The clamp also floors intermediate arithmetic, not just the display.
	if _, err := s.CompleteGoodBehavior(ctx, 1, 10, 2, "Brush Teeth"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	entry, _ := s.LoadToday(ctx, 1)
	if entry.TodayScore != 2 {
		t.Errorf("score = %d, want 2", entry.TodayScore)
	}
}

func TestRedeemReward(t *testing.T) {
	s := setupTestStore(t, Options{})
	ctx := context.Background()

	res, err := s.RedeemReward(ctx, 1, 30, 10, "Extra Screen Time")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.OK {
		t.Error("redeem with zero points should fail")
	}
	if res.Message != "not enough points" {
		t.Errorf("message = %q, want %q", res.Message, "not enough points")
	}

	if _, err := s.CompleteGoodBehavior(ctx, 1, 10, 15, "Homework"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	res, err = s.RedeemReward(ctx, 1, 30, 10, "Extra Screen Time")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !res.OK || res.Score != 5 {
		t.Fatalf("redeem: ok=%v score=%d, want ok score 5", res.OK, res.Score)
	}

	entry, _ := s.LoadToday(ctx, 1)
	if len(entry.Activities) != 2 {
		t.Fatalf("activities = %d, want 2", len(entry.Activities))
	}
	redeemed := entry.Activities[1]
	if redeemed.Kind != model.ActivityReward {
		t.Errorf("kind = %q, want %q", redeemed.Kind, model.ActivityReward)
	}
	if redeemed.Points != -10 {
		t.Errorf("points = %d, want -10", redeemed.Points)
	}
}

func TestListRecentActivities(t *testing.T) {
	s := setupTestStore(t, Options{})
	ctx := context.Background()

	clock := time.Date(2024, 3, 5, 9, 0, 0, 0, time.Local)
	s.SetNow(func() time.Time { return clock })

	if _, err := s.CompleteGoodBehavior(ctx, 1, 10, 5, "Brush Teeth"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	clock = clock.Add(time.Hour)
	if _, err := s.RecordBadBehavior(ctx, 1, 20, 3, "Yelling"); err != nil {
		t.Fatalf("record: %v", err)
	}

	acts, err := s.ListRecentActivities(ctx, 1, 1)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(acts) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(acts))
	}
	// Newest first: the bad record came last.
	if acts[0].Kind != model.ActivityBad || acts[0].Name != "Yelling" {
		t.Errorf("got %q/%q, want the latest bad record", acts[0].Kind, acts[0].Name)
	}

	all, err := s.ListRecentActivities(ctx, 1, 20)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(all))
	}
}

func TestAggregateChildrenWithTodayScores(t *testing.T) {
	s := setupTestStore(t, Options{})
	ctx := context.Background()

	if _, err := s.CompleteGoodBehavior(ctx, 1, 10, 2, "Brush Teeth"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := s.RecordBadBehavior(ctx, 1, 20, 3, "Yelling"); err != nil {
		t.Fatalf("record: %v", err)
	}

	children := []model.Child{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Ben"}}
	views, err := s.AggregateChildrenWithTodayScores(ctx, children)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].TodayScore != -1 {
		t.Errorf("ada score = %d, want -1", views[0].TodayScore)
	}
	if views[0].TodayActivityCount != 2 {
		t.Errorf("ada activity count = %d, want 2", views[0].TodayActivityCount)
	}
	if views[0].CompletedGoodCount != 1 || views[0].CompletedBadCount != 1 {
		t.Errorf("ada counts = %d/%d, want 1/1", views[0].CompletedGoodCount, views[0].CompletedBadCount)
	}
	// Ben never did anything today; his view is the lazily-empty entry.
	if views[1].TodayScore != 0 || views[1].TodayActivityCount != 0 {
		t.Errorf("ben view = %d/%d, want zeroes", views[1].TodayScore, views[1].TodayActivityCount)
	}
}

func TestDayRollover(t *testing.T) {
	s := setupTestStore(t, Options{})
	ctx := context.Background()

	clock := time.Date(2024, 3, 5, 22, 0, 0, 0, time.Local)
	s.SetNow(func() time.Time { return clock })

	if _, err := s.CompleteGoodBehavior(ctx, 1, 10, 5, "Brush Teeth"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	firstDay := daykey.At(clock)

	// Cross midnight. Today's entry is a fresh empty one.
	clock = clock.Add(3 * time.Hour)
	entry, err := s.LoadToday(ctx, 1)
	if err != nil {
		t.Fatalf("load today: %v", err)
	}
	if entry.TodayScore != 0 || len(entry.Activities) != 0 {
		t.Errorf("new day entry = score %d, %d activities, want empty", entry.TodayScore, len(entry.Activities))
	}

	// The prior day stays addressable.
	old, err := s.LoadDay(ctx, 1, firstDay)
	if err != nil {
		t.Fatalf("load day: %v", err)
	}
	if old.TodayScore != 5 || len(old.Activities) != 1 {
		t.Errorf("prior day entry = score %d, %d activities, want 5 and 1", old.TodayScore, len(old.Activities))
	}

	today, err := s.ResetForNewDay(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if today != daykey.At(clock) {
		t.Errorf("reset date = %q, want %q", today, daykey.At(clock))
	}
	if got := s.LastActiveDate(); got != today {
		t.Errorf("last active date = %q, want %q", got, today)
	}
}

func TestCorruptEntryDegradesToEmpty(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	kvs := kv.NewStore(db)
	s := NewStore(kvs, Options{}, logging.Discard())

	if err := kvs.Put(EntryKey(1, daykey.Today()), "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	entry, err := s.LoadToday(context.Background(), 1)
	if err != nil {
		t.Fatalf("load today: %v", err)
	}
	if entry.TodayScore != 0 || len(entry.Activities) != 0 {
		t.Error("corrupt entry should degrade to empty")
	}

	// The next write repairs the stored value.
	res, err := s.CompleteGoodBehavior(context.Background(), 1, 10, 5, "Brush Teeth")
	if err != nil {
		t.Fatalf("complete over corrupt entry: %v", err)
	}
	if !res.OK || res.Score != 5 {
		t.Fatalf("complete: ok=%v score=%d, want ok score 5", res.OK, res.Score)
	}
	entry, _ = s.LoadToday(context.Background(), 1)
	if entry.TodayScore != 5 {
		t.Errorf("repaired score = %d, want 5", entry.TodayScore)
	}
}

func TestActivityIDsAreTimeOrdered(t *testing.T) {
	s := setupTestStore(t, Options{})
	ctx := context.Background()

	if _, err := s.CompleteGoodBehavior(ctx, 1, 10, 5, "A"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := s.CompleteGoodBehavior(ctx, 1, 11, 5, "B"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	entry, _ := s.LoadToday(ctx, 1)
	if len(entry.Activities) != 2 {
		t.Fatalf("activities = %d, want 2", len(entry.Activities))
	}
	// UUIDv7 ids sort by creation time.
	if !(entry.Activities[0].ID < entry.Activities[1].ID) {
		t.Errorf("ids not time-ordered: %q then %q", entry.Activities[0].ID, entry.Activities[1].ID)
	}
}
