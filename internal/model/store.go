package model

import (
	"strings"
	"time"
)

// Store is the root persisted document for one country partition.
type Store struct {
	UpdatedAt time.Time `json:"updatedAt"`
	Deals     []Deal    `json:"deals"`
	Reports   []Report  `json:"reports"`
	Alerts    []Alert   `json:"alerts"`
}

// Normalize defaults nil collections to empty slices so callers and the
// serialized document never see null arrays.
func (s *Store) Normalize() {
	if s.Deals == nil {
		s.Deals = []Deal{}
	}
	if s.Reports == nil {
		s.Reports = []Report{}
	}
	if s.Alerts == nil {
		s.Alerts = []Alert{}
	}
}

// FindDeal returns a pointer into Deals for the deal with the given ID, or
// nil if absent. The pointer is invalidated by appends.
func (s *Store) FindDeal(id string) *Deal {
	for i := range s.Deals {
		if s.Deals[i].ID == id {
			return &s.Deals[i]
		}
	}
	return nil
}

// FindDealBySourceKey returns the deal whose SourceKey matches, or nil.
func (s *Store) FindDealBySourceKey(sourceKey string) *Deal {
	for i := range s.Deals {
		if strings.EqualFold(s.Deals[i].SourceKey, sourceKey) {
			return &s.Deals[i]
		}
	}
	return nil
}

// FindReport returns a pointer into Reports for the report with the given
// ID, or nil if absent.
func (s *Store) FindReport(id string) *Report {
	for i := range s.Reports {
		if s.Reports[i].ID == id {
			return &s.Reports[i]
		}
	}
	return nil
}
