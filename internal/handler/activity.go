package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pmallory/goldstar/internal/daykey"
	"github.com/pmallory/goldstar/internal/ledger"
	"github.com/pmallory/goldstar/internal/model"
	"github.com/pmallory/goldstar/internal/tracker"
	"github.com/pmallory/goldstar/internal/websocket"
)

const defaultActivityLimit = 20

// ActivityHandler serves the daily ledger: today's view, activity history,
// and the three mutations. It validates ids against the catalog so it works
// the same over the local stores and the remote client.
type ActivityHandler struct {
	source  ledger.Source
	catalog tracker.Catalog
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewActivityHandler(source ledger.Source, catalog tracker.Catalog, hub *websocket.Hub, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{source: source, catalog: catalog, hub: hub, logger: logger}
}

func (h *ActivityHandler) childExists(r *http.Request, childID int64) (bool, error) {
	children, err := h.catalog.ListChildren(r.Context())
	if err != nil {
		return false, err
	}
	for _, c := range children {
		if c.ID == childID {
			return true, nil
		}
	}
	return false, nil
}

func (h *ActivityHandler) findBehavior(r *http.Request, behaviorID int64, kind model.BehaviorKind) (*model.Behavior, error) {
	var (
		behaviors []model.Behavior
		err       error
	)
	if kind == model.KindBad {
		behaviors, err = h.catalog.ListBadBehaviors(r.Context())
	} else {
		behaviors, err = h.catalog.ListGoodBehaviors(r.Context())
	}
	if err != nil {
		return nil, err
	}
	for i := range behaviors {
		if behaviors[i].ID == behaviorID {
			return &behaviors[i], nil
		}
	}
	return nil, nil
}

func (h *ActivityHandler) findReward(r *http.Request, rewardID int64) (*model.Reward, error) {
	rewards, err := h.catalog.ListRewards(r.Context())
	if err != nil {
		return nil, err
	}
	for i := range rewards {
		if rewards[i].ID == rewardID {
			return &rewards[i], nil
		}
	}
	return nil, nil
}

// Today returns the child's current-day ledger entry.
func (h *ActivityHandler) Today(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	entry, err := h.source.LoadToday(r.Context(), childID)
	if err != nil {
		h.logger.Error("load today", "child_id", childID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load today's ledger")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Day returns the ledger entry for an explicit date key. Past days stay
// addressable after rollover.
func (h *ActivityHandler) Day(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}
	date := daykey.Key(r.PathValue("date"))
	if !date.Valid() {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	entry, err := h.source.LoadDay(r.Context(), childID, date)
	if err != nil {
		h.logger.Error("load day", "child_id", childID, "date", date, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load ledger")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Activities returns today's activity records, newest first.
func (h *ActivityHandler) Activities(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	limit := defaultActivityLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	activities, err := h.source.ListRecentActivities(r.Context(), childID, limit)
	if err != nil {
		h.logger.Error("list activities", "child_id", childID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to list activities")
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// Complete marks a good behavior done for the child today. A repeat call
// comes back 409 with the tagged result.
func (h *ActivityHandler) Complete(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}
	behaviorID, err := parseIDParam(r, "behavior_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid behavior id")
		return
	}

	ok, err := h.childExists(r, childID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load children")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	behavior, err := h.findBehavior(r, behaviorID, model.KindGood)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load behaviors")
		return
	}
	if behavior == nil {
		writeError(w, http.StatusNotFound, "behavior not found")
		return
	}
	if !behavior.Active {
		writeError(w, http.StatusBadRequest, "behavior is not active")
		return
	}

	res, err := h.source.CompleteGoodBehavior(r.Context(), childID, behavior.ID, behavior.Points, behavior.Name)
	if err != nil {
		h.logger.Error("complete behavior", "child_id", childID, "behavior_id", behaviorID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to record completion")
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusConflict, res)
		return
	}

	h.hub.Broadcast(websocket.LedgerMessage("completed", childID, behavior.ID, res.Score))
	writeJSON(w, http.StatusOK, res)
}

// Record logs a bad behavior occurrence. Never idempotent: each call
// appends another activity and subtracts the penalty again.
func (h *ActivityHandler) Record(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}
	behaviorID, err := parseIDParam(r, "behavior_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid behavior id")
		return
	}

	ok, err := h.childExists(r, childID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load children")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	behavior, err := h.findBehavior(r, behaviorID, model.KindBad)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load behaviors")
		return
	}
	if behavior == nil {
		writeError(w, http.StatusNotFound, "behavior not found")
		return
	}
	if !behavior.Active {
		writeError(w, http.StatusBadRequest, "behavior is not active")
		return
	}

	res, err := h.source.RecordBadBehavior(r.Context(), childID, behavior.ID, behavior.Points, behavior.Name)
	if err != nil {
		h.logger.Error("record behavior", "child_id", childID, "behavior_id", behaviorID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to record behavior")
		return
	}

	h.hub.Broadcast(websocket.LedgerMessage("recorded", childID, behavior.ID, res.Score))
	writeJSON(w, http.StatusOK, res)
}

// Redeem spends points from today's score on a reward. Insufficient points
// comes back 400 with the tagged result.
func (h *ActivityHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}
	rewardID, err := parseIDParam(r, "reward_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reward id")
		return
	}

	ok, err := h.childExists(r, childID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load children")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	reward, err := h.findReward(r, rewardID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load rewards")
		return
	}
	if reward == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}
	if !reward.Active {
		writeError(w, http.StatusBadRequest, "reward is not active")
		return
	}

	res, err := h.source.RedeemReward(r.Context(), childID, reward.ID, reward.PointCost, reward.Name)
	if err != nil {
		h.logger.Error("redeem reward", "child_id", childID, "reward_id", rewardID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to redeem reward")
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}

	h.hub.Broadcast(websocket.LedgerMessage("redeemed", childID, reward.ID, res.Score))
	writeJSON(w, http.StatusOK, res)
}
