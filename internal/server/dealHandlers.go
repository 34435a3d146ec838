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
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	sortNewest   = "newest"
	sortTrending = "trending"
)

var (
	errDealExists    = errors.New("deal already exists")
	errDealNotFound  = errors.New("deal not found")
	errDealNotActive = errors.New("deal not active")
)

func (s Server) dealList() http.HandlerFunc {
	type response struct {
		UpdatedAt time.Time    `json:"updatedAt"`
		Deals     []model.Deal `json:"deals"`
		Total     int          `json:"total"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		st := s.Store.Read(country)

		q := r.URL.Query()
		category := q.Get("category")
		maxPrice := float64(0)
		if mp := q.Get("maxPrice"); mp != "" {
			p, err := strconv.ParseFloat(mp, 64)
			if err != nil || p <= 0 {
				s.Logger.Debugf("dealList: Bad maxPrice parameter: %s", mp)
				http.Error(w, "invalid maxPrice", http.StatusBadRequest)
				return
			}
			maxPrice = p
		}
		minDiscount := 0
		if d := q.Get("discount"); d != "" {
			n, err := strconv.Atoi(d)
			if err != nil || n < 0 {
				s.Logger.Debugf("dealList: Bad discount parameter: %s", d)
				http.Error(w, "invalid discount", http.StatusBadRequest)
				return
			}
			minDiscount = n
		}

		now := time.Now()
		deals := []model.Deal{}
		for _, d := range st.Deals {
			if !d.Visible(now) {
				continue
			}
			if category != "" && !strings.EqualFold(d.Category, category) {
				continue
			}
			if maxPrice > 0 && d.Price > maxPrice {
				continue
			}
			if minDiscount > 0 && d.DiscountPercent < minDiscount {
				continue
			}
			deals = append(deals, d)
		}

		switch sortMode := q.Get("sort"); sortMode {
		case sortTrending:
			sort.SliceStable(deals, func(i, j int) bool {
				ti := deals[i].Clicks + deals[i].Views
				tj := deals[j].Clicks + deals[j].Views
				if ti != tj {
					return ti > tj
				}
				return deals[i].CreatedAt.After(deals[j].CreatedAt)
			})
		case sortNewest, "":
			sort.SliceStable(deals, func(i, j int) bool {
				return deals[i].CreatedAt.After(deals[j].CreatedAt)
			})
		default:
			s.Logger.Debugf("dealList: Bad sort parameter: %s", sortMode)
			http.Error(w, "invalid sort", http.StatusBadRequest)
			return
		}

		s.writeJsonResponse(w, response{
			UpdatedAt: st.UpdatedAt,
			Deals:     deals,
			Total:     len(deals),
		}, http.StatusOK)
	}
}

func (s Server) dealGetOne() http.HandlerFunc {
	type response model.Deal
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		dealID := mux.Vars(r)["dealID"]

		st := s.Store.Read(country)
		d := st.FindDeal(dealID)
		if d == nil || !d.Visible(time.Now()) {
			s.Logger.Debugf("dealGetOne: Deal not visible or not found, ID: %s, country: %s", dealID, country)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		s.writeJsonResponse(w, response(*d), http.StatusOK)
	}
}

func (s Server) dealSubmit() http.HandlerFunc {
	type request struct {
		Title         string  `json:"title" validate:"required,max=300"`
		Price         float64 `json:"price" validate:"required,gt=0"`
		OriginalPrice float64 `json:"originalPrice" validate:"omitempty,gt=0"`
		URL           string  `json:"url" validate:"required"`
		Retailer      string  `json:"retailer" validate:"max=100"`
		Category      string  `json:"category" validate:"max=100"`
		SourceKey     string  `json:"sourceKey" validate:"max=200"`
		Country       string  `json:"country"`
	}
	type response model.Deal
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("dealSubmit: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err := s.Validate.Struct(req); err != nil {
			s.Logger.Debugf("dealSubmit: Invalid submission: %s, err: %v", misc.StringLimit(req.Title, 60), err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res := linkpolicy.Validate(req.URL, req.Retailer)
		if !res.OK {
			s.Logger.Debugf("dealSubmit: Rejected link: %s, reason: %s", misc.StringLimit(req.URL, 120), res.Reason)
			http.Error(w, res.Reason, http.StatusBadRequest)
			return
		}

		if ok, retryAfter := s.Limiter.Allow(r.Context(), clientIP(r)); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			s.Logger.Debugf("dealSubmit: Rate limited submission from %s", r.RemoteAddr)
			http.Error(w, "too many submissions, slow down", http.StatusTooManyRequests)
			return
		}

		country := countryFromRequest(r, req.Country)
		dupKey := string(country) + ":" + dealstore.URLKey(res.NormalizedURL)
		if s.Duplicates.Seen(r.Context(), dupKey) {
			s.Logger.Debugf("dealSubmit: Duplicate submission within window, key: %s", dupKey)
			http.Error(w, "this deal was already submitted recently", http.StatusConflict)
			return
		}

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
			// Public submissions always enter the moderation queue. Nothing
			// the client sends can change this.
			Status:          model.StatusPending,
			Country:         country,
			CreatedAt:       now,
			UpdatedAt:       now,
			CreatedByUserID: s.userIDFromRequest(r),
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
			s.Logger.Debugf("dealSubmit: Deal already stored, key match for URL: %s", misc.StringLimit(d.URL, 120))
			http.Error(w, "this deal already exists", http.StatusConflict)
			return
		}
		if err != nil {
			s.Logger.Errorf("dealSubmit: Error persisting submission, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response(d), http.StatusCreated)
	}
}

func (s Server) dealClick() http.HandlerFunc {
	return s.dealCounter("dealClick", func(d *model.Deal) int {
		d.Clicks++
		return d.Clicks
	})
}

func (s Server) dealView() http.HandlerFunc {
	return s.dealCounter("dealView", func(d *model.Deal) int {
		d.Views++
		return d.Views
	})
}

// dealCounter bumps a counter on a visible deal. Any other state gets an
// explicit "deal not active" instead of silently counting.
func (s Server) dealCounter(name string, bump func(d *model.Deal) int) http.HandlerFunc {
	type response struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		country := countryFromRequest(r, "")
		dealID := mux.Vars(r)["dealID"]

		var count int
		now := time.Now()
		err := s.Store.Mutate(country, func(st *model.Store) error {
			d := st.FindDeal(dealID)
			if d == nil {
				return errDealNotFound
			}
			if !d.Visible(now) {
				return errDealNotActive
			}
			count = bump(d)
			d.UpdatedAt = now
			return nil
		})
		if errors.Is(err, errDealNotFound) {
			s.Logger.Debugf("%s: Deal not found, ID: %s, country: %s", name, dealID, country)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if errors.Is(err, errDealNotActive) {
			s.Logger.Debugf("%s: Deal not active, ID: %s, country: %s", name, dealID, country)
			http.Error(w, "deal not active", http.StatusConflict)
			return
		}
		if err != nil {
			s.Logger.Errorf("%s: Error updating counter, ID: %s, err: %v", name, dealID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Success: true, Count: count}, http.StatusOK)
	}
}

func (s Server) dealReport() http.HandlerFunc {
	type request struct {
		Reason  string `json:"reason" validate:"required,max=200"`
		Notes   string `json:"notes" validate:"max=2000"`
		Country string `json:"country"`
	}
	type response struct {
		ReportID string `json:"reportId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("dealReport: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err := s.Validate.Struct(req); err != nil {
			s.Logger.Debugf("dealReport: Invalid report, err: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		country := countryFromRequest(r, req.Country)
		dealID := mux.Vars(r)["dealID"]
		now := time.Now()
		rep := model.Report{
			ID:        uuid.NewString(),
			DealID:    dealID,
			Reason:    req.Reason,
			Notes:     req.Notes,
			Status:    model.ReportPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := s.Store.Mutate(country, func(st *model.Store) error {
			if st.FindDeal(dealID) == nil {
				return errDealNotFound
			}
			st.Reports = append(st.Reports, rep)
			return nil
		})
		if errors.Is(err, errDealNotFound) {
			s.Logger.Debugf("dealReport: Deal not found, ID: %s, country: %s", dealID, country)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if err != nil {
			s.Logger.Errorf("dealReport: Error persisting report for deal ID: %s, err: %v", dealID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{ReportID: rep.ID}, http.StatusCreated)
	}
}

func (s Server) dealAlert() http.HandlerFunc {
	type request struct {
		TargetPrice float64 `json:"targetPrice" validate:"required,gt=0"`
		Country     string  `json:"country"`
	}
	type response model.Alert
	return func(w http.ResponseWriter, r *http.Request) {
		userID := s.userIDFromRequest(r)
		if userID == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("dealAlert: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err := s.Validate.Struct(req); err != nil {
			s.Logger.Debugf("dealAlert: Invalid alert, err: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		country := countryFromRequest(r, req.Country)
		dealID := mux.Vars(r)["dealID"]
		alert := model.Alert{
			ID:          uuid.NewString(),
			UserID:      userID,
			DealID:      dealID,
			TargetPrice: req.TargetPrice,
			Active:      true,
			CreatedAt:   time.Now(),
		}
		err := s.Store.Mutate(country, func(st *model.Store) error {
			if st.FindDeal(dealID) == nil {
				return errDealNotFound
			}
			st.Alerts = append(st.Alerts, alert)
			return nil
		})
		if errors.Is(err, errDealNotFound) {
			s.Logger.Debugf("dealAlert: Deal not found, ID: %s, country: %s", dealID, country)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if err != nil {
			s.Logger.Errorf("dealAlert: Error persisting alert for deal ID: %s, err: %v", dealID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response(alert), http.StatusCreated)
	}
}
