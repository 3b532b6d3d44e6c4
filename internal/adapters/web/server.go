// Package web serves the HTTP API, Prometheus metrics and the live
// WebSocket feed.
package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/voipmon/internal/adapters/reporting"
	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/ports"
)

// Service is the part of the monitor the web adapter depends on.
type Service interface {
	ports.MonitorService

	FitFromLog(ctx context.Context) error
	Assessments() []domain.RiskAssessment
	Recommendations(report domain.Report) []domain.Recommendation
	ReportStats() domain.ReportStats
	ExportObservationsCSV(w io.Writer) error
	ExportAlertsCSV(w io.Writer) error
	ExportFeaturesCSV(w io.Writer) error
}

// Options configures the server.
type Options struct {
	Addr          string
	User          string
	PasswordHash  string
	StatsInterval time.Duration
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr        string
	Service     Service
	WSManager   *WSManager
	PDFExporter *reporting.PDFExporter

	opts Options
	srv  *http.Server
}

// NewServer creates a new web server.
func NewServer(opts Options, service Service) *Server {
	return &Server{
		Addr:        opts.Addr,
		Service:     service,
		WSManager:   NewWSManager(service, opts.StatsInterval),
		PDFExporter: reporting.NewPDFExporter(),
		opts:        opts,
	}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(SetupRoutes(s), "voipmon-api")
}

// Run starts the broadcaster and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.WSManager.Start(ctx)

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("web server shutdown error", "error", err)
		}
	}()

	slog.Info("web server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// BroadcastAlert sends a rule engine alert to all connected clients
func (s *Server) BroadcastAlert(alert domain.SuspiciousEvent) {
	s.WSManager.BroadcastAlert(alert)
}

// BroadcastReport sends a freshly built report to all connected clients
func (s *Server) BroadcastReport(report domain.Report) {
	s.WSManager.BroadcastReport(report)
}
