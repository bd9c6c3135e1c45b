package store

import "testing"

func TestRewardCRUD(t *testing.T) {
	_, _, rs := setupTestStores(t)

	reward, err := rs.Create("Extra Screen Time", 10, "📺", true)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if reward.Name != "Extra Screen Time" {
		t.Errorf("name = %q, want %q", reward.Name, "Extra Screen Time")
	}
	if reward.PointCost != 10 {
		t.Errorf("point_cost = %d, want 10", reward.PointCost)
	}
	if !reward.Active {
		t.Error("expected active")
	}

	got, err := rs.GetByID(reward.ID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if got == nil {
		t.Fatal("expected reward, got nil")
	}

	updated, err := rs.Update(reward.ID, "Movie Night", 25, "🎬", true)
	if err != nil {
		t.Fatalf("update reward: %v", err)
	}
	if updated.Name != "Movie Night" || updated.PointCost != 25 {
		t.Errorf("updated = %q/%d, want Movie Night/25", updated.Name, updated.PointCost)
	}

	if err := rs.Delete(reward.ID); err != nil {
		t.Fatalf("delete reward: %v", err)
	}
	got, err = rs.GetByID(reward.ID)
	if err != nil {
		t.Fatalf("get deleted reward: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestRewardNotFound(t *testing.T) {
	_, _, rs := setupTestStores(t)

	got, err := rs.GetByID(999)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if got != nil {
		t.Error("expected nil for non-existent reward")
	}
}

func TestRewardListOrdering(t *testing.T) {
	_, _, rs := setupTestStores(t)

	rs.Create("Zebra Treat", 10, "", true)
	rs.Create("Alpha Treat", 20, "", true)
	rs.Create("Beta Inactive", 5, "", false)

	rewards, err := rs.List()
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	if len(rewards) != 3 {
		t.Fatalf("expected 3 rewards, got %d", len(rewards))
	}

	// Active first (alpha, zebra), then inactive (beta).
	if rewards[0].Name != "Alpha Treat" || rewards[1].Name != "Zebra Treat" || rewards[2].Name != "Beta Inactive" {
		t.Errorf("order = [%s %s %s], want active-then-name", rewards[0].Name, rewards[1].Name, rewards[2].Name)
	}
}
