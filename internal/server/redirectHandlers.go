package server

import (
	"dealfeed/internal/affiliate"
	"dealfeed/internal/dealstore"
	"dealfeed/internal/model"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"net/http"
	"strings"
	"time"
)

// goRedirect resolves a short product reference to its affiliate URL and
// forwards. Resolution fails closed: a missing program parameter is a
// server error, never a redirect without tracking.
func (s Server) goRedirect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		source := vars["source"]
		itemID := vars["itemID"]
		country := countryFromRequest(r, "")

		target, err := s.Affiliates.Resolve(source, itemID, country)
		if err != nil {
			if errors.Is(err, affiliate.ErrUnknownSource) || errors.Is(err, affiliate.ErrBadItemID) {
				s.Logger.Debugf("goRedirect: Unresolvable reference %s/%s, err: %v", source, itemID, err)
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("goRedirect: Error resolving %s/%s for country %s, err: %v", source, itemID, country, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		// Click bookkeeping is best effort; the redirect wins over the counter.
		sourceKey := strings.ToLower(source) + ":" + itemID
		if err := s.Store.Mutate(country, func(st *model.Store) error {
			d := st.FindDealBySourceKey(sourceKey)
			if d == nil {
				return dealstore.ErrNoChange
			}
			d.Clicks++
			d.UpdatedAt = time.Now()
			return nil
		}); err != nil {
			s.Logger.Errorf("goRedirect: Error counting click for %s, err: %v", sourceKey, err)
		}

		http.Redirect(w, r, target, http.StatusFound)
	}
}
