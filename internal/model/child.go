package model

import "time"

type Child struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	AvatarEmoji string    `json:"avatarEmoji"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ChildView is a Child enriched with the current day's ledger summary.
type ChildView struct {
	Child
	TodayScore         int `json:"todayScore"`
	TodayActivityCount int `json:"todayActivityCount"`
	CompletedGoodCount int `json:"completedGoodCount"`
	CompletedBadCount  int `json:"completedBadCount"`
}
