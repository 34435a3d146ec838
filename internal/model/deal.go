package model

import (
	"dealfeed/internal/misc"
	"math"
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusDisabled Status = "disabled"
)

// NormalizeStatus maps values outside the known enum to StatusPending so
// that malformed records surface in the admin moderation queue instead of
// leaking into the public feed.
func NormalizeStatus(s Status) Status {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusDisabled:
		return s
	}
	return StatusPending
}

type Country string

const (
	CountryCA Country = "CA"
	CountryUS Country = "US"
)

var Countries = []Country{CountryCA, CountryUS}

func ParseCountry(s string) Country {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "US":
		return CountryUS
	default:
		return CountryCA
	}
}

type Deal struct {
	ID              string     `json:"id"`
	SourceKey       string     `json:"sourceKey,omitempty"`
	Title           string     `json:"title"`
	Price           float64    `json:"price"`
	OriginalPrice   float64    `json:"originalPrice,omitempty"`
	DiscountPercent int        `json:"discountPercent"`
	URL             string     `json:"url"`
	URLHost         string     `json:"urlHost,omitempty"`
	Retailer        string     `json:"retailer,omitempty"`
	Category        string     `json:"category,omitempty"`
	Status          Status     `json:"status"`
	Country         Country    `json:"country"`
	Clicks          int        `json:"clicks"`
	Views           int        `json:"views"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CreatedByUserID string     `json:"createdByUserId,omitempty"`
	PointsAwarded   bool       `json:"pointsAwarded,omitempty"`
}

// Visible reports whether the deal may appear in the public feed. Unknown
// status values are never visible.
func (d Deal) Visible(now time.Time) bool {
	if NormalizeStatus(d.Status) != StatusApproved {
		return false
	}
	if d.ExpiresAt != nil && !d.ExpiresAt.After(now) {
		return false
	}
	return true
}

// UpdateWith merges the non-zero fields of new onto d, keeping d's identity
// (ID, CreatedAt) and its click/view counters.
func (d *Deal) UpdateWith(new Deal) {
	if new.Title != "" {
		d.Title = new.Title
	}
	if new.Price > 0 {
		d.Price = new.Price
	}
	if new.OriginalPrice > 0 {
		d.OriginalPrice = new.OriginalPrice
	}
	if new.URL != "" {
		d.URL = new.URL
	}
	if new.URLHost != "" {
		d.URLHost = new.URLHost
	}
	if new.SourceKey != "" {
		d.SourceKey = new.SourceKey
	}
	if new.Retailer != "" {
		d.Retailer = new.Retailer
	}
	if new.Category != "" {
		d.Category = new.Category
	}
	if new.Status != "" {
		d.Status = NormalizeStatus(new.Status)
	}
	if new.ExpiresAt != nil {
		d.ExpiresAt = new.ExpiresAt
	}
	if new.CreatedByUserID != "" && d.CreatedByUserID == "" {
		d.CreatedByUserID = new.CreatedByUserID
	}
	d.DiscountPercent = ComputeDiscountPercent(d.Price, d.OriginalPrice)
	d.UpdatedAt = time.Now()
}

// ComputeDiscountPercent derives the discount from the original price,
// returning 0 when it is not computable.
func ComputeDiscountPercent(price, originalPrice float64) int {
	if price <= 0 || originalPrice <= price {
		return 0
	}
	return misc.Clamp(int(math.Round((1-price/originalPrice)*100)), 0, 99)
}
