package model

import "time"

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportReviewed ReportStatus = "reviewed"
)

type Report struct {
	ID        string       `json:"id"`
	DealID    string       `json:"dealId"`
	Reason    string       `json:"reason"`
	Notes     string       `json:"notes,omitempty"`
	Status    ReportStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
