package server

import (
	"dealfeed/internal/dealstore"
	"dealfeed/internal/linkpolicy"
	"dealfeed/internal/misc"
	"dealfeed/internal/model"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"net/http"
	"time"
)

var errReportNotFound = errors.New("report not found")

func (s Server) adminDealList() http.HandlerFunc {
	type response struct {
		UpdatedAt time.Time    `json:"updatedAt"`
		Deals     []model.Deal `json:"deals"`
		Total     int          `json:"total"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		st := s.Store.Read(country)

		deals := st.Deals
		if statusFilter := r.URL.Query().Get("status"); statusFilter != "" {
			want := model.NormalizeStatus(model.Status(statusFilter))
			deals = []model.Deal{}
			for _, d := range st.Deals {
				if model.NormalizeStatus(d.Status) == want {
					deals = append(deals, d)
				}
			}
		}
		s.writeJsonResponse(w, response{
			UpdatedAt: st.UpdatedAt,
			Deals:     deals,
			Total:     len(deals),
		}, http.StatusOK)
	}
}

func (s Server) adminDealPending() http.HandlerFunc {
	type response struct {
		Deals []model.Deal `json:"deals"`
		Total int          `json:"total"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		st := s.Store.Read(country)

		deals := []model.Deal{}
		for _, d := range st.Deals {
			if model.NormalizeStatus(d.Status) == model.StatusPending {
				deals = append(deals, d)
			}
		}
		s.writeJsonResponse(w, response{Deals: deals, Total: len(deals)}, http.StatusOK)
	}
}

func (s Server) adminDealCreate() http.HandlerFunc {
	type request struct {
		Title         string     `json:"title" validate:"required,max=300"`
		Price         float64    `json:"price" validate:"required,gt=0"`
		OriginalPrice float64    `json:"originalPrice" validate:"omitempty,gt=0"`
		URL           string     `json:"url" validate:"required"`
		Retailer      string     `json:"retailer" validate:"max=100"`
		Category      string     `json:"category" validate:"max=100"`
		SourceKey     string     `json:"sourceKey" validate:"max=200"`
		ExpiresAt     *time.Time `json:"expiresAt"`
		Country       string     `json:"country"`
	}
	type response model.Deal
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("adminDealCreate: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err := s.Validate.Struct(req); err != nil {
			s.Logger.Debugf("adminDealCreate: Invalid deal, err: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res := linkpolicy.Validate(req.URL, req.Retailer)
		if !res.OK {
			s.Logger.Debugf("adminDealCreate: Rejected link: %s, reason: %s", misc.StringLimit(req.URL, 120), res.Reason)
			http.Error(w, res.Reason, http.StatusBadRequest)
			return
		}

		country := countryFromRequest(r, req.Country)
		now := time.Now()
		d := model.Deal{
			ID:              uuid.NewString(),
			SourceKey:       req.SourceKey,
			Title:           req.Title,
			Price:           req.Price,
			OriginalPrice:   req.OriginalPrice,
			DiscountPercent: model.ComputeDiscountPercent(req.Price, req.OriginalPrice),
			URL:             res.NormalizedURL,
			URLHost:         res.Host,
			Retailer:        req.Retailer,
			Category:        req.Category,
			Status:          model.StatusApproved,
			Country:         country,
			ExpiresAt:       req.ExpiresAt,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if d.Category == "" {
			d.Category = "Other"
		}

		err := s.Store.Mutate(country, func(st *model.Store) error {
			key := dealstore.Key(d)
			for _, existing := range st.Deals {
				if dealstore.Key(existing) == key {
					return errDealExists
				}
			}
			st.Deals = append(st.Deals, d)
			return nil
		})
		if errors.Is(err, errDealExists) {
			s.Logger.Debugf("adminDealCreate: Deal already stored, key match for URL: %s", misc.StringLimit(d.URL, 120))
			http.Error(w, "this deal already exists", http.StatusConflict)
			return
		}
		if err != nil {
			s.Logger.Errorf("adminDealCreate: Error persisting deal, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response(d), http.StatusCreated)
	}
}

func (s Server) adminDealUpdate() http.HandlerFunc {
	type request struct {
		Title         *string    `json:"title"`
		Price         *float64   `json:"price"`
		OriginalPrice *float64   `json:"originalPrice"`
		URL           *string    `json:"url"`
		Retailer      *string    `json:"retailer"`
		Category      *string    `json:"category"`
		SourceKey     *string    `json:"sourceKey"`
		Status        *string    `json:"status"`
		ExpiresAt     *time.Time `json:"expiresAt"`
		Country       string     `json:"country"`
	}
	type response struct {
		Deal            model.Deal `json:"deal"`
		AlertsTriggered int        `json:"alertsTriggered"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("adminDealUpdate: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if req.Price != nil && *req.Price <= 0 {
			http.Error(w, "price must be greater than 0", http.StatusBadRequest)
			return
		}
		if req.URL != nil {
			retailer := ""
			if req.Retailer != nil {
				retailer = *req.Retailer
			}
			if res := linkpolicy.Validate(*req.URL, retailer); !res.OK {
				s.Logger.Debugf("adminDealUpdate: Rejected link: %s, reason: %s", misc.StringLimit(*req.URL, 120), res.Reason)
				http.Error(w, res.Reason, http.StatusBadRequest)
				return
			}
		}

		country := countryFromRequest(r, req.Country)
		dealID := mux.Vars(r)["dealID"]
		var updated model.Deal
		var triggered int
		now := time.Now()
		err := s.Store.Mutate(country, func(st *model.Store) error {
			d := st.FindDeal(dealID)
			if d == nil {
				return errDealNotFound
			}

			patch := model.Deal{}
			if req.Title != nil {
				patch.Title = *req.Title
			}
			if req.Price != nil {
				patch.Price = *req.Price
			}
			if req.OriginalPrice != nil {
				patch.OriginalPrice = *req.OriginalPrice
			}
			if req.URL != nil {
				patch.URL = *req.URL
				if res := linkpolicy.Validate(*req.URL, d.Retailer); res.OK {
					patch.URLHost = res.Host
				}
			}
			if req.Retailer != nil {
				patch.Retailer = *req.Retailer
			}
			if req.Category != nil {
				patch.Category = *req.Category
			}
			if req.SourceKey != nil {
				patch.SourceKey = *req.SourceKey
			}
			if req.Status != nil {
				patch.Status = model.NormalizeStatus(model.Status(*req.Status))
			}
			if req.ExpiresAt != nil {
				patch.ExpiresAt = req.ExpiresAt
			}

			priceDropped := req.Price != nil && *req.Price < d.Price
			d.UpdateWith(patch)

			if priceDropped {
				for i := range st.Alerts {
					a := &st.Alerts[i]
					if a.DealID == d.ID && a.Active && a.TargetPrice >= d.Price {
						a.Active = false
						t := now
						a.TriggeredAt = &t
						triggered++
					}
				}
			}
			updated = *d
			return nil
		})
		if errors.Is(err, errDealNotFound) {
			s.Logger.Debugf("adminDealUpdate: Deal not found, ID: %s, country: %s", dealID, country)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if err != nil {
			s.Logger.Errorf("adminDealUpdate: Error updating deal ID: %s, err: %v", dealID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Deal: updated, AlertsTriggered: triggered}, http.StatusOK)
	}
}

func (s Server) adminDealApprove() http.HandlerFunc {
	type response model.Deal
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		dealID := mux.Vars(r)["dealID"]

		var approved model.Deal
		err := s.Store.Mutate(country, func(st *model.Store) error {
			d := st.FindDeal(dealID)
			if d == nil {
				return errDealNotFound
			}
			d.Status = model.StatusApproved
			d.UpdatedAt = time.Now()

			// Award at most once, no matter how many times approve is hit.
			// On award failure the flag stays down so a later approve retries.
			if d.CreatedByUserID != "" && !d.PointsAwarded {
				if err := s.Points.Award(r.Context(), d.CreatedByUserID, s.ApprovePoints); err != nil {
					s.Logger.Errorf("adminDealApprove: Error awarding points to user: %s, err: %v", d.CreatedByUserID, err)
				} else {
					d.PointsAwarded = true
				}
			}
			approved = *d
			return nil
		})
		if errors.Is(err, errDealNotFound) {
			s.Logger.Debugf("adminDealApprove: Deal not found, ID: %s, country: %s", dealID, country)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if err != nil {
			s.Logger.Errorf("adminDealApprove: Error approving deal ID: %s, err: %v", dealID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response(approved), http.StatusOK)
	}
}

// adminDealReject removes the record entirely so rejected submissions do
// not linger or reappear in any listing.
func (s Server) adminDealReject() http.HandlerFunc {
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		dealID := mux.Vars(r)["dealID"]

		err := s.Store.Mutate(country, func(st *model.Store) error {
			for i := range st.Deals {
				if st.Deals[i].ID == dealID {
					st.Deals = append(st.Deals[:i], st.Deals[i+1:]...)
					return nil
				}
			}
			return errDealNotFound
		})
		if errors.Is(err, errDealNotFound) {
			s.Logger.Debugf("adminDealReject: Deal not found, ID: %s, country: %s", dealID, country)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if err != nil {
			s.Logger.Errorf("adminDealReject: Error rejecting deal ID: %s, err: %v", dealID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

// adminDealDelete soft-deletes: the record flips to disabled with its
// expiry stamped, staying in storage for audit.
func (s Server) adminDealDelete() http.HandlerFunc {
	type response model.Deal
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		dealID := mux.Vars(r)["dealID"]

		var disabled model.Deal
		err := s.Store.Mutate(country, func(st *model.Store) error {
			d := st.FindDeal(dealID)
			if d == nil {
				return errDealNotFound
			}
			now := time.Now()
			d.Status = model.StatusDisabled
			d.ExpiresAt = &now
			d.UpdatedAt = now
			disabled = *d
			return nil
		})
		if errors.Is(err, errDealNotFound) {
			s.Logger.Debugf("adminDealDelete: Deal not found, ID: %s, country: %s", dealID, country)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if err != nil {
			s.Logger.Errorf("adminDealDelete: Error disabling deal ID: %s, err: %v", dealID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response(disabled), http.StatusOK)
	}
}

func (s Server) adminDealBulk() http.HandlerFunc {
	type bulkDeal struct {
		SourceKey     string     `json:"sourceKey"`
		Title         string     `json:"title"`
		Price         float64    `json:"price"`
		OriginalPrice float64    `json:"originalPrice"`
		URL           string     `json:"url"`
		Retailer      string     `json:"retailer"`
		Category      string     `json:"category"`
		Status        string     `json:"status"`
		ExpiresAt     *time.Time `json:"expiresAt"`
	}
	type request struct {
		Deals   []bulkDeal `json:"deals" validate:"required,min=1,max=500"`
		Country string     `json:"country"`
	}
	type response struct {
		dealstore.UpsertResult
		Skipped int `json:"skipped"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("adminDealBulk: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err := s.Validate.Struct(req); err != nil {
			s.Logger.Debugf("adminDealBulk: Invalid bulk request, err: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		country := countryFromRequest(r, req.Country)
		var incoming []model.Deal
		skipped := 0
		for _, bd := range req.Deals {
			if bd.Title == "" || bd.Price <= 0 {
				skipped++
				continue
			}
			res := linkpolicy.Validate(bd.URL, bd.Retailer)
			if !res.OK {
				s.Logger.Debugf("adminDealBulk: Skipping deal with bad link: %s, reason: %s",
					misc.StringLimit(bd.URL, 120), res.Reason)
				skipped++
				continue
			}
			incoming = append(incoming, model.Deal{
				SourceKey:     bd.SourceKey,
				Title:         bd.Title,
				Price:         bd.Price,
				OriginalPrice: bd.OriginalPrice,
				URL:           res.NormalizedURL,
				URLHost:       res.Host,
				Retailer:      bd.Retailer,
				Category:      bd.Category,
				Status:        model.Status(bd.Status),
				ExpiresAt:     bd.ExpiresAt,
			})
		}

		result, err := s.Store.Upsert(country, incoming)
		if err != nil {
			s.Logger.Errorf("adminDealBulk: Error upserting %d deal(s) for country %s, err: %v",
				len(incoming), country, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.Logger.Infof("adminDealBulk: Upserted deals for country %s, added: %d, updated: %d, skipped: %d, total: %d",
			country, result.Added, result.Updated, skipped, result.Total)
		s.writeJsonResponse(w, response{UpsertResult: result, Skipped: skipped}, http.StatusOK)
	}
}

func (s Server) adminDealReset() http.HandlerFunc {
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		if err := s.Store.Reset(country); err != nil {
			if errors.Is(err, dealstore.ErrResetDisabled) {
				s.Logger.Debugf("adminDealReset: Reset requested but disabled, country: %s", country)
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}
			s.Logger.Errorf("adminDealReset: Error resetting country %s, err: %v", country, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.Logger.Infof("adminDealReset: Store reset for country %s", country)
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

func (s Server) adminReportList() http.HandlerFunc {
	type response struct {
		Reports []model.Report `json:"reports"`
		Total   int            `json:"total"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		st := s.Store.Read(country)
		s.writeJsonResponse(w, response{Reports: st.Reports, Total: len(st.Reports)}, http.StatusOK)
	}
}

func (s Server) adminReportReview() http.HandlerFunc {
	type response model.Report
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		reportID := mux.Vars(r)["reportID"]

		var reviewed model.Report
		err := s.Store.Mutate(country, func(st *model.Store) error {
			rep := st.FindReport(reportID)
			if rep == nil {
				return errReportNotFound
			}
			rep.Status = model.ReportReviewed
			rep.UpdatedAt = time.Now()
			reviewed = *rep
			return nil
		})
		if errors.Is(err, errReportNotFound) {
			s.Logger.Debugf("adminReportReview: Report not found, ID: %s, country: %s", reportID, country)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if err != nil {
			s.Logger.Errorf("adminReportReview: Error reviewing report ID: %s, err: %v", reportID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response(reviewed), http.StatusOK)
	}
}
