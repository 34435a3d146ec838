package server

import (
	"dealfeed/internal/model"
	"encoding/json"
	"net/http"
	"strings"
)

func (s Server) writeJsonResponse(w http.ResponseWriter, response any, statusCode int) {
	if resp, err := json.Marshal(response); err != nil {
		s.Logger.Errorf("Error encoding response: %+v, err: %v", response, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	} else {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(statusCode)
		if _, err = w.Write(resp); err != nil {
			s.Logger.Errorf("Error writing JSON response: %s, err: %v", resp, err)
		}
	}
}

// countryFromRequest resolves the partition for a request. Precedence:
// query parameter, then X-Country header, then the body's country field,
// then CA.
func countryFromRequest(r *http.Request, bodyCountry string) model.Country {
	if q := r.URL.Query().Get("country"); q != "" {
		return model.ParseCountry(q)
	}
	if h := r.Header.Get("X-Country"); h != "" {
		return model.ParseCountry(h)
	}
	if bodyCountry != "" {
		return model.ParseCountry(bodyCountry)
	}
	return model.CountryCA
}

// clientIP is the rate-limit key for a request. RemoteAddr is good enough
// behind a proxy that rewrites it; X-Forwarded-For is untrusted input.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}
