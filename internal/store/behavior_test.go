package store

import (
	"testing"

	"github.com/pmallory/goldstar/internal/model"
)

func TestBehaviorCRUD(t *testing.T) {
	_, bs, _ := setupTestStores(t)

	behavior, err := bs.Create("Brush Teeth", 5, model.KindGood, "hygiene", "#00AA00", true)
	if err != nil {
		t.Fatalf("create behavior: %v", err)
	}
	if behavior.Name != "Brush Teeth" {
		t.Errorf("name = %q, want %q", behavior.Name, "Brush Teeth")
	}
	if behavior.Points != 5 {
		t.Errorf("points = %d, want 5", behavior.Points)
	}
	if behavior.Kind != model.KindGood {
		t.Errorf("kind = %q, want good", behavior.Kind)
	}
	if !behavior.Active {
		t.Error("expected active")
	}

	updated, err := bs.Update(behavior.ID, "Brush Teeth Well", 10, "hygiene", "#00AA00", false)
	if err != nil {
		t.Fatalf("update behavior: %v", err)
	}
	if updated.Name != "Brush Teeth Well" || updated.Points != 10 || updated.Active {
		t.Errorf("updated = %q/%d/active=%v, want renamed, 10, inactive", updated.Name, updated.Points, updated.Active)
	}

	if err := bs.Delete(behavior.ID); err != nil {
		t.Fatalf("delete behavior: %v", err)
	}
	got, err := bs.GetByID(behavior.ID)
	if err != nil {
		t.Fatalf("get deleted behavior: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestBehaviorListByKind(t *testing.T) {
	_, bs, _ := setupTestStores(t)

	bs.Create("Brush Teeth", 5, model.KindGood, "", "", true)
	bs.Create("Homework", 10, model.KindGood, "", "", true)
	bs.Create("Yelling", 3, model.KindBad, "", "", true)
	bs.Create("Old Chore", 2, model.KindGood, "", "", false)

	good, err := bs.ListByKind(model.KindGood)
	if err != nil {
		t.Fatalf("list good: %v", err)
	}
	if len(good) != 3 {
		t.Fatalf("expected 3 good behaviors, got %d", len(good))
	}
	// Active first, then by name; the inactive one sinks to the bottom.
	if good[0].Name != "Brush Teeth" || good[1].Name != "Homework" || good[2].Name != "Old Chore" {
		t.Errorf("order = [%s %s %s], want active-then-name", good[0].Name, good[1].Name, good[2].Name)
	}

	bad, err := bs.ListByKind(model.KindBad)
	if err != nil {
		t.Fatalf("list bad: %v", err)
	}
	if len(bad) != 1 || bad[0].Name != "Yelling" {
		t.Fatalf("bad list = %v, want just Yelling", bad)
	}
}
