package server

import (
	"github.com/gorilla/mux"
	"net/http"
)

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMw, s.maxBytesMw)

	r.HandleFunc("/deals", s.dealList()).Methods(http.MethodGet)
	r.HandleFunc("/deals", s.dealSubmit()).Methods(http.MethodPost)
	r.HandleFunc("/deals/{dealID}", s.dealGetOne()).Methods(http.MethodGet)
	r.HandleFunc("/deals/{dealID}/click", s.dealClick()).Methods(http.MethodPost)
	r.HandleFunc("/deals/{dealID}/view", s.dealView()).Methods(http.MethodPost)
	r.HandleFunc("/deals/{dealID}/report", s.dealReport()).Methods(http.MethodPost)
	r.HandleFunc("/deals/{dealID}/alert", s.dealAlert()).Methods(http.MethodPost)

	r.HandleFunc("/go/{source}/{itemID}", s.goRedirect()).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(s.adminAuthMw)
	admin.HandleFunc("/deals", s.adminDealList()).Methods(http.MethodGet)
	admin.HandleFunc("/deals", s.adminDealCreate()).Methods(http.MethodPost)
	admin.HandleFunc("/deals/pending", s.adminDealPending()).Methods(http.MethodGet)
	admin.HandleFunc("/deals/bulk", s.adminDealBulk()).Methods(http.MethodPost)
	admin.HandleFunc("/deals/reset", s.adminDealReset()).Methods(http.MethodPost)
	admin.HandleFunc("/deals/{dealID}", s.adminDealUpdate()).Methods(http.MethodPut)
	admin.HandleFunc("/deals/{dealID}", s.adminDealDelete()).Methods(http.MethodDelete)
	admin.HandleFunc("/deals/{dealID}/approve", s.adminDealApprove()).Methods(http.MethodPost)
	admin.HandleFunc("/deals/{dealID}/reject", s.adminDealReject()).Methods(http.MethodPost)
	admin.HandleFunc("/reports", s.adminReportList()).Methods(http.MethodGet)
	admin.HandleFunc("/reports/{reportID}/review", s.adminReportReview()).Methods(http.MethodPost)
	admin.PathPrefix("").Handler(http.NotFoundHandler())

	return r
}
