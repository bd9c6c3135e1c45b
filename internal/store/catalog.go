package store

import (
	"context"

	"github.com/pmallory/goldstar/internal/model"
)

// Catalog bundles the three catalog stores behind context-taking methods so
// the local variant satisfies the same interface the remote client does.
type Catalog struct {
	Children  *ChildStore
	Behaviors *BehaviorStore
	Rewards   *RewardStore
}

func NewCatalog(children *ChildStore, behaviors *BehaviorStore, rewards *RewardStore) *Catalog {
	return &Catalog{Children: children, Behaviors: behaviors, Rewards: rewards}
}

func (c *Catalog) ListChildren(_ context.Context) ([]model.Child, error) {
	return c.Children.List()
}

func (c *Catalog) ListGoodBehaviors(_ context.Context) ([]model.Behavior, error) {
	return c.Behaviors.ListByKind(model.KindGood)
}

func (c *Catalog) ListBadBehaviors(_ context.Context) ([]model.Behavior, error) {
	return c.Behaviors.ListByKind(model.KindBad)
}

func (c *Catalog) ListRewards(_ context.Context) ([]model.Reward, error) {
	return c.Rewards.List()
}
