package web

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/voipmon/internal/adapters/web/middleware"
)

// SetupRoutes builds the router. Everything but /healthz sits behind basic
// auth when a user is configured.
func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(mux.MiddlewareFunc(middleware.BasicAuth(s.opts.User, s.opts.PasswordHash)))

	protected.Handle("/metrics", promhttp.Handler())
	protected.HandleFunc("/ws", s.WSManager.HandleWebSocket)

	api := protected.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleSessions).Methods(http.MethodGet)
	api.HandleFunc("/streams", s.handleStreams).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	api.HandleFunc("/observations", s.handleObservations).Methods(http.MethodGet)
	api.HandleFunc("/features", s.handleFeatures).Methods(http.MethodGet)
	api.HandleFunc("/risk", s.handleAssessments).Methods(http.MethodGet)
	api.HandleFunc("/risk/{addr}", s.handleRisk).Methods(http.MethodGet)
	api.HandleFunc("/model", s.handleModelStatus).Methods(http.MethodGet)
	api.HandleFunc("/reports/latest", s.handleLatestReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/latest/pdf", s.handleLatestReportPDF).Methods(http.MethodGet)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)

	// Fitting and report builds walk the whole log. They stay on the api
	// subrouter so a wrong method still answers 405.
	limit := middleware.RateLimitMiddleware(middleware.NewRateLimiter(10, time.Minute))
	api.Handle("/model/fit", limit(http.HandlerFunc(s.handleFit))).Methods(http.MethodPost)
	api.Handle("/model/save", limit(http.HandlerFunc(s.handleSaveModel))).Methods(http.MethodPost)
	api.Handle("/reports", limit(http.HandlerFunc(s.handleBuildReport))).Methods(http.MethodPost)
	api.Handle("/import", limit(http.HandlerFunc(s.handleImport))).Methods(http.MethodPost)

	return r
}
