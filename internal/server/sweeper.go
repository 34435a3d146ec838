package server

import (
	"context"
	"dealfeed/internal/dealstore"
	"dealfeed/internal/model"
	"time"
)

// Expired deals stay readable for a day so admin tooling can still see
// why they vanished from the feed before they get disabled for good.
const expiredRetention = 24 * time.Hour

func (s Server) SweepExpiredInInterval(ctx context.Context, ticker *time.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s Server) sweepExpired() {
	cutoff := time.Now().Add(-expiredRetention)
	for _, country := range model.Countries {
		swept := 0
		err := s.Store.Mutate(country, func(st *model.Store) error {
			now := time.Now()
			for i := range st.Deals {
				d := &st.Deals[i]
				if model.NormalizeStatus(d.Status) != model.StatusApproved {
					continue
				}
				if d.ExpiresAt == nil || d.ExpiresAt.After(cutoff) {
					continue
				}
				d.Status = model.StatusDisabled
				d.UpdatedAt = now
				swept++
			}
			if swept == 0 {
				return dealstore.ErrNoChange
			}
			return nil
		})
		if err != nil {
			s.Logger.Errorf("sweepExpired: Error sweeping country %s, err: %v", country, err)
			continue
		}
		if swept > 0 {
			s.Logger.Infof("sweepExpired: Disabled %d long-expired deal(s) for country %s", swept, country)
		}
	}
}
