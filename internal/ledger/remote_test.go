package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pmallory/goldstar/internal/daykey"
	"github.com/pmallory/goldstar/internal/logging"
	"github.com/pmallory/goldstar/internal/model"
	"github.com/pmallory/goldstar/internal/remote"
)

func TestDerive(t *testing.T) {
	ts := func(h int) time.Time { return time.Date(2024, 3, 5, h, 0, 0, 0, time.UTC) }

	// Out of order on purpose; Derive must sort by timestamp first.
	acts := []model.Activity{
		{ID: "a3", BehaviorID: 20, Kind: model.ActivityBad, Points: -3, Timestamp: ts(11)},
		{ID: "a1", BehaviorID: 10, Kind: model.ActivityGood, Points: 5, Timestamp: ts(9)},
		{ID: "a2", BehaviorID: 20, Kind: model.ActivityBad, Points: -3, Timestamp: ts(10)},
	}

	e := Derive(acts, Options{})
	if e.TodayScore != -1 {
		t.Errorf("score = %d, want -1", e.TodayScore)
	}
	if len(e.CompletedGoodBehaviors) != 1 || e.CompletedGoodBehaviors[0] != 10 {
		t.Errorf("good set = %v, want [10]", e.CompletedGoodBehaviors)
	}
	// Two bad occurrences, one set member.
	if len(e.CompletedBadBehaviors) != 1 || e.CompletedBadBehaviors[0] != 20 {
		t.Errorf("bad set = %v, want [20]", e.CompletedBadBehaviors)
	}
	if len(e.Activities) != 3 || e.Activities[0].ID != "a1" || e.Activities[2].ID != "a3" {
		t.Errorf("activities not in timestamp order: %v", e.Activities)
	}
	if !e.LastUpdated.Equal(ts(11)) {
		t.Errorf("last updated = %v, want %v", e.LastUpdated, ts(11))
	}
}

func TestDeriveClamp(t *testing.T) {
	ts := func(h int) time.Time { return time.Date(2024, 3, 5, h, 0, 0, 0, time.UTC) }
	acts := []model.Activity{
		{ID: "a1", BehaviorID: 20, Kind: model.ActivityBad, Points: -3, Timestamp: ts(9)},
		{ID: "a2", BehaviorID: 10, Kind: model.ActivityGood, Points: 2, Timestamp: ts(10)},
	}

	// Clamping applies per step, same as the incremental store.
	e := Derive(acts, Options{ClampAtZero: true})
	if e.TodayScore != 2 {
		t.Errorf("clamped score = %d, want 2", e.TodayScore)
	}
	if Derive(acts, Options{}).TodayScore != -1 {
		t.Errorf("unclamped score = %d, want -1", Derive(acts, Options{}).TodayScore)
	}
}

// fakeAPI is a minimal in-memory activity service speaking the upstream
// wire format.
type fakeAPI struct {
	mu                sync.Mutex
	activities        []map[string]any
	nextID            int
	failReads         bool
	failReadsAfterLog bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /activities", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failReads {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		childID := r.URL.Query().Get("childId")
		out := []map[string]any{}
		for _, a := range f.activities {
			if fmt.Sprint(a["ChildId"]) == childID {
				out = append(out, a)
			}
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("POST /activities", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var req remote.LogActivityRequest
		json.NewDecoder(r.Body).Decode(&req)

		// The server owns the point delta.
		points := map[string]int{"good": 5, "bad": -3, "reward": -10}[req.ActivityType]
		f.nextID++
		act := map[string]any{
			"Id":           fmt.Sprintf("a%d", f.nextID),
			"ChildId":      req.ChildID,
			"ActivityId":   req.ActivityID,
			"ActivityType": req.ActivityType,
			"Points":       points,
			"Name":         req.Note,
			"CreatedAt":    time.Now().UTC().Format(time.RFC3339),
			"Date":         string(daykey.Today()),
		}
		f.activities = append(f.activities, act)
		if f.failReadsAfterLog {
			f.failReads = true
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(act)
	})
	return mux
}

func setupRemoteView(t *testing.T, opts Options) (*RemoteView, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return NewRemoteView(remote.NewClient(srv.URL), opts, logging.Discard()), api
}

func TestRemoteViewCompleteGoodBehavior(t *testing.T) {
	v, _ := setupRemoteView(t, Options{})
	ctx := context.Background()

	res, err := v.CompleteGoodBehavior(ctx, 1, 10, 5, "Brush Teeth")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.OK || res.Score != 5 {
		t.Fatalf("complete: ok=%v score=%d, want ok score 5", res.OK, res.Score)
	}

	// Idempotence holds across the wire: the derived entry blocks a repeat.
	res, err = v.CompleteGoodBehavior(ctx, 1, 10, 5, "Brush Teeth")
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if res.OK {
		t.Error("second complete should not be OK")
	}
	if res.Message != "already completed today" {
		t.Errorf("message = %q, want %q", res.Message, "already completed today")
	}

	entry, err := v.LoadToday(ctx, 1)
	if err != nil {
		t.Fatalf("load today: %v", err)
	}
	if len(entry.Activities) != 1 || entry.TodayScore != 5 {
		t.Errorf("entry = score %d, %d activities, want 5 and 1", entry.TodayScore, len(entry.Activities))
	}
}

func TestRemoteViewBadBehaviorAndRedeem(t *testing.T) {
	v, _ := setupRemoteView(t, Options{})
	ctx := context.Background()

	if _, err := v.CompleteGoodBehavior(ctx, 1, 10, 5, "Brush Teeth"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := v.CompleteGoodBehavior(ctx, 1, 11, 5, "Homework"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	res, err := v.RecordBadBehavior(ctx, 1, 20, 3, "Yelling")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !res.OK || res.Score != 7 {
		t.Fatalf("record: ok=%v score=%d, want ok score 7", res.OK, res.Score)
	}

	// 7 < 10: the derived score gates redemption.
	res, err = v.RedeemReward(ctx, 1, 30, 10, "Extra Screen Time")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.OK || res.Message != "not enough points" {
		t.Fatalf("redeem: ok=%v message=%q, want insufficient", res.OK, res.Message)
	}
}

func TestRemoteViewReloadFailureFallsBack(t *testing.T) {
	v, api := setupRemoteView(t, Options{})
	ctx := context.Background()

	if _, err := v.CompleteGoodBehavior(ctx, 1, 10, 5, "Brush Teeth"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// The write lands but the confirming read is down; the caller still
	// sees success with the locally-patched score.
	api.mu.Lock()
	api.failReadsAfterLog = true
	api.mu.Unlock()

	res, err := v.CompleteGoodBehavior(ctx, 1, 11, 5, "Homework")
	if err != nil {
		t.Fatalf("complete with failing reload: %v", err)
	}
	if !res.OK || res.Score != 10 {
		t.Fatalf("fallback result: ok=%v score=%d, want ok score 10", res.OK, res.Score)
	}

	// With reads fully down, even the pre-check fails and the error surfaces.
	if _, err := v.CompleteGoodBehavior(ctx, 1, 12, 5, "Chores"); err == nil {
		t.Error("expected error while reads are down")
	}
}

func TestRemoteViewAggregate(t *testing.T) {
	v, _ := setupRemoteView(t, Options{})
	ctx := context.Background()

	if _, err := v.CompleteGoodBehavior(ctx, 1, 10, 5, "Brush Teeth"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	views, err := v.AggregateChildrenWithTodayScores(ctx, []model.Child{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Ben"}})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if views[0].TodayScore != 5 || views[1].TodayScore != 0 {
		t.Errorf("scores = %d/%d, want 5/0", views[0].TodayScore, views[1].TodayScore)
	}
}
