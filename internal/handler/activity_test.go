package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pmallory/goldstar/internal/database"
	"github.com/pmallory/goldstar/internal/kv"
	"github.com/pmallory/goldstar/internal/ledger"
	"github.com/pmallory/goldstar/internal/logging"
	"github.com/pmallory/goldstar/internal/model"
	"github.com/pmallory/goldstar/internal/websocket"
)

// retiredCatalog serves catalogs whose behaviors have been deactivated.
type retiredCatalog struct{}

func (retiredCatalog) ListChildren(_ context.Context) ([]model.Child, error) {
	return []model.Child{{ID: 1, Name: "Ada"}}, nil
}

func (retiredCatalog) ListGoodBehaviors(_ context.Context) ([]model.Behavior, error) {
	return []model.Behavior{{ID: 10, Name: "Brush Teeth", Points: 5, Kind: model.KindGood, Active: false}}, nil
}

func (retiredCatalog) ListBadBehaviors(_ context.Context) ([]model.Behavior, error) {
	return []model.Behavior{{ID: 20, Name: "Yelling", Points: 3, Kind: model.KindBad, Active: false}}, nil
}

func (retiredCatalog) ListRewards(_ context.Context) ([]model.Reward, error) {
	return []model.Reward{{ID: 30, Name: "Extra Screen Time", PointCost: 10, Active: false}}, nil
}

func setupActivityHandler(t *testing.T) (*ActivityHandler, *ledger.Store) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := ledger.NewStore(kv.NewStore(db), ledger.Options{}, logging.Discard())
	hub := websocket.NewHub(logging.Discard())
	return NewActivityHandler(store, retiredCatalog{}, hub, logging.Discard()), store
}

func postMutation(t *testing.T, h http.HandlerFunc, path, idParam, idValue string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.SetPathValue("id", "1")
	req.SetPathValue(idParam, idValue)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func assertErrorBody(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != want {
		t.Errorf("error = %q, want %q", body["error"], want)
	}
}

func TestCompleteRejectsInactiveBehavior(t *testing.T) {
	h, store := setupActivityHandler(t)

	rec := postMutation(t, h.Complete, "/api/children/1/behaviors/10/complete", "behavior_id", "10")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	assertErrorBody(t, rec, "behavior is not active")

	entry, err := store.LoadToday(context.Background(), 1)
	if err != nil {
		t.Fatalf("load today: %v", err)
	}
	if entry.TodayScore != 0 || len(entry.Activities) != 0 {
		t.Errorf("entry = score %d, %d activities, want untouched", entry.TodayScore, len(entry.Activities))
	}
}

func TestRecordRejectsInactiveBehavior(t *testing.T) {
	h, store := setupActivityHandler(t)

	rec := postMutation(t, h.Record, "/api/children/1/bad-behaviors/20/record", "behavior_id", "20")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	assertErrorBody(t, rec, "behavior is not active")

	entry, err := store.LoadToday(context.Background(), 1)
	if err != nil {
		t.Fatalf("load today: %v", err)
	}
	if len(entry.Activities) != 0 {
		t.Errorf("activities = %d, want none", len(entry.Activities))
	}
}

func TestRedeemRejectsInactiveReward(t *testing.T) {
	h, _ := setupActivityHandler(t)

	rec := postMutation(t, h.Redeem, "/api/children/1/rewards/30/redeem", "reward_id", "30")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	assertErrorBody(t, rec, "reward is not active")
}
