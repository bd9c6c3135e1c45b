// Package legacy imports a browser local-storage export from the original
// tracker into the goldstar store. The export is a JSON object mapping
// storage keys to JSON-encoded string values: the catalogs under
// "children", "behaviors", "badBehaviors", "rewards", one ledger entry per
// "activities_<childId>_<date>" key, and "lastActiveDate".
package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pmallory/goldstar/internal/daykey"
	"github.com/pmallory/goldstar/internal/kv"
	"github.com/pmallory/goldstar/internal/ledger"
	"github.com/pmallory/goldstar/internal/model"
	"github.com/pmallory/goldstar/internal/remote"
	"github.com/pmallory/goldstar/internal/store"
)

const entryKeyPrefix = "activities_"

// legacy record shapes; identifiers are strings in the old data model.

type legacyChild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	AvatarEmoji string `json:"avatarEmoji"`
}

type legacyBehavior struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
	Category string `json:"category"`
	Color    string `json:"color"`
}

type legacyReward struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PointCost int    `json:"pointCost"`
	Icon      string `json:"icon"`
}

type legacyActivity struct {
	ID         string `json:"id"`
	BehaviorID string `json:"behaviorId"`
	ActivityID string `json:"activityId"`
	Kind       string `json:"activityType"`
	Points     int    `json:"points"`
	Name       string `json:"name"`
	Timestamp  string `json:"timestamp"`
	Date       string `json:"date"`
}

func (a legacyActivity) behaviorKey() string {
	if a.BehaviorID != "" {
		return a.BehaviorID
	}
	return a.ActivityID
}

type legacyEntry struct {
	CompletedGoodBehaviors []string         `json:"completedGoodBehaviors"`
	CompletedBadBehaviors  []string         `json:"completedBadBehaviors"`
	TodayScore             int              `json:"todayScore"`
	Activities             []legacyActivity `json:"activities"`
	LastUpdated            string           `json:"lastUpdated"`
}

// Export is a parsed local-storage dump.
type Export struct {
	Children       []legacyChild
	Behaviors      []legacyBehavior
	BadBehaviors   []legacyBehavior
	Rewards        []legacyReward
	Entries        map[string]legacyEntry // original "activities_..." key → entry
	LastActiveDate string
}

// Parse decodes an export file. Values may be stored as JSON-encoded
// strings (the local-storage convention) or as plain JSON; both are
// accepted.
func Parse(data []byte) (*Export, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}

	export := &Export{Entries: make(map[string]legacyEntry)}

	for key, value := range raw {
		payload := unquote(value)
		switch {
		case key == "children":
			if err := json.Unmarshal(payload, &export.Children); err != nil {
				return nil, fmt.Errorf("parse children: %w", err)
			}
		case key == "behaviors":
			if err := json.Unmarshal(payload, &export.Behaviors); err != nil {
				return nil, fmt.Errorf("parse behaviors: %w", err)
			}
		case key == "badBehaviors":
			if err := json.Unmarshal(payload, &export.BadBehaviors); err != nil {
				return nil, fmt.Errorf("parse badBehaviors: %w", err)
			}
		case key == "rewards":
			if err := json.Unmarshal(payload, &export.Rewards); err != nil {
				return nil, fmt.Errorf("parse rewards: %w", err)
			}
		case key == "lastActiveDate":
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				s = strings.Trim(string(payload), `"`)
			}
			export.LastActiveDate = s
		case strings.HasPrefix(key, entryKeyPrefix):
			var e legacyEntry
			if err := json.Unmarshal(payload, &e); err != nil {
				return nil, fmt.Errorf("parse entry %q: %w", key, err)
			}
			export.Entries[key] = e
		}
	}
	return export, nil
}

// unquote handles local-storage values that arrive as JSON strings
// containing JSON ("[{...}]" encoded as "\"[{...}]\"").
func unquote(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return json.RawMessage(s)
	}
	return raw
}

// splitEntryKey breaks "activities_<childId>_<date>" into its parts. The
// date is always the final underscore-separated segment; child ids may
// themselves contain underscores.
func splitEntryKey(key string) (childID string, date daykey.Key, ok bool) {
	rest := strings.TrimPrefix(key, entryKeyPrefix)
	i := strings.LastIndex(rest, "_")
	if i <= 0 {
		return "", "", false
	}
	childID, date = rest[:i], daykey.Key(rest[i+1:])
	if childID == "" || !date.Valid() {
		return "", "", false
	}
	return childID, date, true
}

// Summary reports what an import did.
type Summary struct {
	Children    int
	Behaviors   int
	Rewards     int
	Days        int
	Activities  int
	SkippedDays int
}

// Importer writes a parsed export into the local store.
type Importer struct {
	children  *store.ChildStore
	behaviors *store.BehaviorStore
	rewards   *store.RewardStore
	kv        *kv.Store
	logger    *slog.Logger
}

func NewImporter(children *store.ChildStore, behaviors *store.BehaviorStore, rewards *store.RewardStore, kvs *kv.Store, logger *slog.Logger) *Importer {
	return &Importer{children: children, behaviors: behaviors, rewards: rewards, kv: kvs, logger: logger}
}

// Import creates catalog rows, remaps the legacy string identifiers to the
// new numeric ones, and writes one ledger entry per child-day. Days whose
// entry key already exists are skipped, so re-running an import is safe.
func (im *Importer) Import(export *Export) (*Summary, error) {
	sum := &Summary{}

	childIDs := make(map[string]int64, len(export.Children))
	for _, c := range export.Children {
		created, err := im.children.Create(c.Name, orDefault(c.Color, "#3B82F6"), c.AvatarEmoji)
		if err != nil {
			return nil, fmt.Errorf("import child %q: %w", c.Name, err)
		}
		childIDs[c.ID] = created.ID
		sum.Children++
	}

	behaviorIDs := make(map[string]int64, len(export.Behaviors)+len(export.BadBehaviors))
	for _, b := range export.Behaviors {
		created, err := im.behaviors.Create(b.Name, b.Points, model.KindGood, b.Category, b.Color, true)
		if err != nil {
			return nil, fmt.Errorf("import behavior %q: %w", b.Name, err)
		}
		behaviorIDs[b.ID] = created.ID
		sum.Behaviors++
	}
	for _, b := range export.BadBehaviors {
		created, err := im.behaviors.Create(b.Name, b.Points, model.KindBad, b.Category, b.Color, true)
		if err != nil {
			return nil, fmt.Errorf("import bad behavior %q: %w", b.Name, err)
		}
		behaviorIDs[b.ID] = created.ID
		sum.Behaviors++
	}

	for _, r := range export.Rewards {
		if _, err := im.rewards.Create(r.Name, r.PointCost, r.Icon, true); err != nil {
			return nil, fmt.Errorf("import reward %q: %w", r.Name, err)
		}
		sum.Rewards++
	}

	// Deterministic order so re-runs fail the same way if they fail.
	keys := make([]string, 0, len(export.Entries))
	for k := range export.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		legacyChildID, date, ok := splitEntryKey(key)
		if !ok {
			im.logger.Warn("skipping malformed entry key", "key", key)
			continue
		}
		childID, ok := childIDs[legacyChildID]
		if !ok {
			im.logger.Warn("entry references unknown child, skipping", "key", key)
			continue
		}

		newKey := ledger.EntryKey(childID, date)
		if _, _, err := im.kv.Get(newKey); err == nil {
			sum.SkippedDays++
			continue
		}

		entry, count := convertEntry(export.Entries[key], childID, date, behaviorIDs)
		raw, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("encode entry %q: %w", key, err)
		}
		if err := im.kv.Put(newKey, string(raw)); err != nil {
			return nil, fmt.Errorf("write entry %q: %w", key, err)
		}
		sum.Days++
		sum.Activities += count
	}

	if export.LastActiveDate != "" {
		if err := im.kv.Put("lastActiveDate", export.LastActiveDate); err != nil {
			return nil, fmt.Errorf("write lastActiveDate: %w", err)
		}
	}

	return sum, nil
}

// convertEntry remaps one legacy day into the current entry shape. Unknown
// behavior references keep a zero id rather than dropping the record: the
// score history matters more than the dangling foreign key.
func convertEntry(le legacyEntry, childID int64, date daykey.Key, behaviorIDs map[string]int64) (*ledger.Entry, int) {
	entry := ledger.NewEntry()
	entry.TodayScore = le.TodayScore

	for _, id := range le.CompletedGoodBehaviors {
		if mapped, ok := behaviorIDs[id]; ok && !entry.HasGood(mapped) {
			entry.CompletedGoodBehaviors = append(entry.CompletedGoodBehaviors, mapped)
		}
	}
	for _, id := range le.CompletedBadBehaviors {
		if mapped, ok := behaviorIDs[id]; ok && !entry.HasBad(mapped) {
			entry.CompletedBadBehaviors = append(entry.CompletedBadBehaviors, mapped)
		}
	}

	for _, la := range le.Activities {
		ts, err := time.Parse(time.RFC3339, la.Timestamp)
		if err != nil {
			ts = time.Time{}
		}
		entry.Activities = append(entry.Activities, model.Activity{
			ID:         la.ID,
			ChildID:    childID,
			BehaviorID: behaviorIDs[la.behaviorKey()],
			Kind:       model.ActivityKind(la.Kind),
			Points:     la.Points,
			Name:       la.Name,
			Timestamp:  ts,
			Date:       date,
		})
		if ts.After(entry.LastUpdated) {
			entry.LastUpdated = ts
		}
	}

	return entry, len(entry.Activities)
}

// IDMap translates legacy string identifiers to the numeric ids a remote
// API assigned when its catalogs were created.
type IDMap struct {
	Children  map[string]int64 `json:"children"`
	Behaviors map[string]int64 `json:"behaviors"`
}

// ActivityPoster is the slice of the remote client replay needs.
type ActivityPoster interface {
	LogActivity(ctx context.Context, req remote.LogActivityRequest) (*model.Activity, error)
}

// Replay posts every exported activity to a remote API in timestamp order.
// Activities whose child or behavior has no mapping are skipped with a
// warning rather than aborting the run.
func Replay(ctx context.Context, poster ActivityPoster, export *Export, ids IDMap, logger *slog.Logger) (posted, skipped int, err error) {
	type dated struct {
		act  legacyActivity
		date daykey.Key
		cid  string
	}

	var all []dated
	for key, entry := range export.Entries {
		legacyChildID, date, ok := splitEntryKey(key)
		if !ok {
			continue
		}
		for _, a := range entry.Activities {
			all = append(all, dated{act: a, date: date, cid: legacyChildID})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].act.Timestamp < all[j].act.Timestamp })

	for _, d := range all {
		childID, ok := ids.Children[d.cid]
		if !ok {
			logger.Warn("no remote mapping for child, skipping activity", "childId", d.cid, "activity", d.act.ID)
			skipped++
			continue
		}
		behaviorID, ok := ids.Behaviors[d.act.behaviorKey()]
		if !ok {
			logger.Warn("no remote mapping for behavior, skipping activity", "behaviorId", d.act.behaviorKey(), "activity", d.act.ID)
			skipped++
			continue
		}
		req := remote.LogActivityRequest{
			ChildID:      childID,
			ActivityType: d.act.Kind,
			ActivityID:   behaviorID,
		}
		if _, err := poster.LogActivity(ctx, req); err != nil {
			return posted, skipped, fmt.Errorf("replay activity %s: %w", d.act.ID, err)
		}
		posted++
	}
	return posted, skipped, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
