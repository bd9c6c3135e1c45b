package model

import "time"

type Reward struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	PointCost int       `json:"pointCost"`
	Icon      string    `json:"icon"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
