package server

import (
	"testing"
	"time"

	"dealfeed/internal/model"

	"github.com/stretchr/testify/require"
)

func TestSweepExpired(t *testing.T) {
	require := require.New(t)
	s, _ := newTestServer(t)

	longGone := time.Now().Add(-48 * time.Hour)
	justExpired := time.Now().Add(-time.Hour)

	old := seedDeal(t, s, model.CountryCA, model.Deal{
		Title: "Long Expired", URL: "https://shop.example.com/p/1",
		Status: model.StatusApproved, ExpiresAt: &longGone,
	})
	recent := seedDeal(t, s, model.CountryCA, model.Deal{
		Title: "Recently Expired", URL: "https://shop.example.com/p/2",
		Status: model.StatusApproved, ExpiresAt: &justExpired,
	})
	live := seedDeal(t, s, model.CountryCA, model.Deal{
		Title: "Live", URL: "https://shop.example.com/p/3", Status: model.StatusApproved,
	})
	pendingOld := seedDeal(t, s, model.CountryUS, model.Deal{
		Title: "Old Pending", URL: "https://shop.example.com/p/4",
		Status: model.StatusPending, ExpiresAt: &longGone,
	})

	s.sweepExpired()

	ca := s.Store.Read(model.CountryCA)
	require.Equal(model.StatusDisabled, ca.FindDeal(old.ID).Status)
	require.Equal(model.StatusApproved, ca.FindDeal(recent.ID).Status, "retention window keeps fresh expiries visible to admins")
	require.Equal(model.StatusApproved, ca.FindDeal(live.ID).Status)

	us := s.Store.Read(model.CountryUS)
	require.Equal(model.StatusPending, us.FindDeal(pendingOld.ID).Status, "sweep only touches approved deals")

	// Second sweep is a no-op.
	s.sweepExpired()
	ca = s.Store.Read(model.CountryCA)
	require.Equal(model.StatusDisabled, ca.FindDeal(old.ID).Status)
}
