package model

import "time"

// Alert is a user price-watch on a deal. It is triggered when an admin
// update drops the deal price to the target price or lower.
type Alert struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	DealID      string     `json:"dealId"`
	TargetPrice float64    `json:"targetPrice"`
	Active      bool       `json:"active"`
	TriggeredAt *time.Time `json:"triggeredAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
