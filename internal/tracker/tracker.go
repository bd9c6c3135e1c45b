// Package tracker coordinates a caregiver screen: it loads the catalogs,
// owns the selected-child cursor and its view state machine, routes
// mutations to the configured ledger source, and keeps the view fresh with
// periodic re-polls and day-boundary detection.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pmallory/goldstar/internal/daykey"
	"github.com/pmallory/goldstar/internal/ledger"
	"github.com/pmallory/goldstar/internal/model"
	"github.com/pmallory/goldstar/internal/websocket"
)

// State is the per-selected-child view state. The machine cycles
// Unselected → Loading → Ready, back to Loading on any mutation or child
// switch, and Loading → Error on fetch failure with retry available.
type State string

const (
	StateUnselected State = "unselected"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateError      State = "error"
)

// DefaultPollInterval is how often the tracker re-polls the ledger source
// for staleness when nothing else is happening.
const DefaultPollInterval = 30 * time.Second

// Catalog lists the base catalogs. Satisfied by both the local store
// bundle and the remote client.
type Catalog interface {
	ListChildren(ctx context.Context) ([]model.Child, error)
	ListGoodBehaviors(ctx context.Context) ([]model.Behavior, error)
	ListBadBehaviors(ctx context.Context) ([]model.Behavior, error)
	ListRewards(ctx context.Context) ([]model.Reward, error)
}

// Catalogs is the joined result of one catalog load. It is published
// atomically: the presentation layer never observes a partial set.
type Catalogs struct {
	Children      []model.ChildView `json:"children"`
	GoodBehaviors []model.Behavior  `json:"goodBehaviors"`
	BadBehaviors  []model.Behavior  `json:"badBehaviors"`
	Rewards       []model.Reward    `json:"rewards"`
}

// Snapshot is a point-in-time copy of the tracker state for rendering.
type Snapshot struct {
	State           State         `json:"state"`
	Error           string        `json:"error,omitempty"`
	SelectedChildID int64         `json:"selectedChildId,omitempty"`
	Today           *ledger.Entry `json:"today,omitempty"`
	OptimisticScore int           `json:"optimisticScore"`
	Date            daykey.Key    `json:"date"`
	Catalogs        Catalogs      `json:"catalogs"`
}

// Tracker is the reconciliation coordinator. Construct one per process and
// inject its collaborators; it keeps no package-level state.
type Tracker struct {
	catalog      Catalog
	source       ledger.Source
	hub          *websocket.Hub
	logger       *slog.Logger
	pollInterval time.Duration
	now          func() time.Time

	mu              sync.Mutex
	state           State
	lastErr         string
	selectedChildID int64
	today           *ledger.Entry
	optimisticScore int
	catalogs        Catalogs
	lastSeenDate    daykey.Key

	// generation guards against a superseded load applying a stale result
	// over a newer one. Every select/mutation/refresh bumps it; a load only
	// publishes if its generation is still current.
	generation uint64
}

func New(catalog Catalog, source ledger.Source, hub *websocket.Hub, logger *slog.Logger, pollInterval time.Duration) *Tracker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Tracker{
		catalog:      catalog,
		source:       source,
		hub:          hub,
		logger:       logger,
		pollInterval: pollInterval,
		now:          time.Now,
		state:        StateUnselected,
		lastSeenDate: daykey.Today(),
	}
}

// SetNow overrides the clock. Test hook.
func (t *Tracker) SetNow(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.lastSeenDate = daykey.At(now())
	t.mu.Unlock()
}

// LoadCatalogs fetches all four catalogs in parallel, joins them, enriches
// children with today's scores, and publishes the set atomically.
func (t *Tracker) LoadCatalogs(ctx context.Context) error {
	var (
		children []model.Child
		good     []model.Behavior
		bad      []model.Behavior
		rewards  []model.Reward
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		children, err = t.catalog.ListChildren(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		good, err = t.catalog.ListGoodBehaviors(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		bad, err = t.catalog.ListBadBehaviors(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rewards, err = t.catalog.ListRewards(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}

	views, err := t.source.AggregateChildrenWithTodayScores(ctx, children)
	if err != nil {
		return fmt.Errorf("aggregate today scores: %w", err)
	}

	t.mu.Lock()
	t.catalogs = Catalogs{
		Children:      views,
		GoodBehaviors: good,
		BadBehaviors:  bad,
		Rewards:       rewards,
	}
	t.mu.Unlock()
	return nil
}

// SelectChild moves the cursor to childID and loads its current-day entry.
func (t *Tracker) SelectChild(ctx context.Context, childID int64) error {
	t.mu.Lock()
	if !t.childInCatalog(childID) {
		t.mu.Unlock()
		return fmt.Errorf("unknown child %d", childID)
	}
	t.selectedChildID = childID
	t.state = StateLoading
	t.lastErr = ""
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	t.load(ctx, childID, gen)
	return nil
}

// childInCatalog must be called with the lock held.
func (t *Tracker) childInCatalog(childID int64) bool {
	for _, c := range t.catalogs.Children {
		if c.ID == childID {
			return true
		}
	}
	return false
}

// load fetches the child's entry and publishes it only if gen is still the
// current generation; a superseded load's result is discarded.
func (t *Tracker) load(ctx context.Context, childID int64, gen uint64) {
	entry, err := t.source.LoadToday(ctx, childID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation {
		return
	}
	if err != nil {
		t.state = StateError
		t.lastErr = err.Error()
		t.logger.Warn("ledger load failed", "child_id", childID, "error", err)
		return
	}
	t.today = entry
	t.optimisticScore = entry.TodayScore
	t.state = StateReady
	t.lastErr = ""
}

// Refresh re-loads the selected child's entry from the authoritative source.
func (t *Tracker) Refresh(ctx context.Context) {
	t.mu.Lock()
	if t.selectedChildID == 0 {
		t.mu.Unlock()
		return
	}
	childID := t.selectedChildID
	t.state = StateLoading
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	t.load(ctx, childID, gen)
}

// Retry re-runs the last failed load. Exposed to the presentation layer's
// retry action; identical to Refresh but only meaningful from Error.
func (t *Tracker) Retry(ctx context.Context) {
	t.Refresh(ctx)
}

// mutation validates the selection, applies op, patches the score
// optimistically, then reconciles with an authoritative reload.
func (t *Tracker) mutation(ctx context.Context, op func(childID int64) (ledger.Result, error)) (ledger.Result, error) {
	t.mu.Lock()
	if t.selectedChildID == 0 {
		t.mu.Unlock()
		return ledger.Result{OK: false, Message: "no child selected"}, nil
	}
	childID := t.selectedChildID
	t.mu.Unlock()

	res, err := op(childID)
	if err != nil {
		t.mu.Lock()
		t.state = StateError
		t.lastErr = err.Error()
		t.mu.Unlock()
		return ledger.Result{}, err
	}

	if !res.OK {
		return res, nil
	}

	t.mu.Lock()
	// Optimistic: show the mutation's score immediately, reconcile below.
	t.optimisticScore = res.Score
	t.state = StateLoading
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	t.load(ctx, childID, gen)
	return res, nil
}

// CompleteGoodBehavior marks the behavior done for the selected child.
func (t *Tracker) CompleteGoodBehavior(ctx context.Context, behaviorID int64) (ledger.Result, error) {
	b := t.findBehavior(behaviorID, model.KindGood)
	if b == nil {
		return ledger.Result{OK: false, Message: "unknown behavior"}, nil
	}

	var mutated int64
	res, err := t.mutation(ctx, func(childID int64) (ledger.Result, error) {
		mutated = childID
		return t.source.CompleteGoodBehavior(ctx, childID, b.ID, b.Points, b.Name)
	})
	if err == nil && res.OK {
		t.hub.Broadcast(websocket.LedgerMessage("completed", mutated, b.ID, res.Score))
	}
	return res, err
}

// RecordBadBehavior logs an occurrence for the selected child.
func (t *Tracker) RecordBadBehavior(ctx context.Context, behaviorID int64) (ledger.Result, error) {
	b := t.findBehavior(behaviorID, model.KindBad)
	if b == nil {
		return ledger.Result{OK: false, Message: "unknown behavior"}, nil
	}

	var mutated int64
	res, err := t.mutation(ctx, func(childID int64) (ledger.Result, error) {
		mutated = childID
		return t.source.RecordBadBehavior(ctx, childID, b.ID, b.Points, b.Name)
	})
	if err == nil && res.OK {
		t.hub.Broadcast(websocket.LedgerMessage("recorded", mutated, b.ID, res.Score))
	}
	return res, err
}

// UseReward redeems a reward against the selected child's score.
func (t *Tracker) UseReward(ctx context.Context, rewardID int64) (ledger.Result, error) {
	r := t.findReward(rewardID)
	if r == nil {
		return ledger.Result{OK: false, Message: "unknown reward"}, nil
	}

	var mutated int64
	res, err := t.mutation(ctx, func(childID int64) (ledger.Result, error) {
		mutated = childID
		return t.source.RedeemReward(ctx, childID, r.ID, r.PointCost, r.Name)
	})
	if err == nil && res.OK {
		t.hub.Broadcast(websocket.LedgerMessage("redeemed", mutated, r.ID, res.Score))
	}
	return res, err
}

func (t *Tracker) findBehavior(id int64, kind model.BehaviorKind) *model.Behavior {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.catalogs.GoodBehaviors
	if kind == model.KindBad {
		list = t.catalogs.BadBehaviors
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

func (t *Tracker) findReward(id int64) *model.Reward {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.catalogs.Rewards {
		if t.catalogs.Rewards[i].ID == id {
			return &t.catalogs.Rewards[i]
		}
	}
	return nil
}

// SelectedChildID returns the current cursor, 0 when unselected.
func (t *Tracker) SelectedChildID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectedChildID
}

// Snapshot returns a copy of the current view state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:           t.state,
		Error:           t.lastErr,
		SelectedChildID: t.selectedChildID,
		Today:           t.today,
		OptimisticScore: t.optimisticScore,
		Date:            t.lastSeenDate,
		Catalogs:        t.catalogs,
	}
}

// Run polls until ctx is canceled: on every tick it refreshes the selected
// child's view, and when the calendar day has advanced since the last tick
// it rolls the ledger over and reloads everything.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick performs one staleness check. Split out of Run so tests and the
// poll loop share the same path.
func (t *Tracker) Tick(ctx context.Context) {
	t.mu.Lock()
	now := t.now
	last := t.lastSeenDate
	t.mu.Unlock()

	today := daykey.At(now())
	if today != last {
		t.rollover(ctx, today)
		return
	}
	t.Refresh(ctx)
}

// rollover advances the day boundary: the ledger resets its notion of
// today, the catalogs are re-aggregated (every child's visible score drops
// to the new day's lazily-empty entry), and the selected view reloads.
func (t *Tracker) rollover(ctx context.Context, today daykey.Key) {
	if _, err := t.source.ResetForNewDay(ctx); err != nil {
		t.logger.Error("day rollover reset failed", "error", err)
	}

	t.mu.Lock()
	t.lastSeenDate = today
	t.mu.Unlock()

	if err := t.LoadCatalogs(ctx); err != nil {
		t.logger.Error("day rollover catalog reload failed", "error", err)
	}
	t.Refresh(ctx)

	t.hub.Broadcast(websocket.NewMessage("ledger", "rolled_over", 0, map[string]any{"date": string(today)}))
	t.logger.Info("day rolled over", "date", today)
}
