package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// maxImportBytes bounds the body of an import request.
const maxImportBytes = 64 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps core errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInsufficientData),
		errors.Is(err, domain.ErrModelNotTrained):
		return http.StatusConflict
	case errors.Is(err, domain.ErrFeatureSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBundleNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("format") == "csv"
}

func setAttachment(w http.ResponseWriter, contentType, name string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Service.GetSystemStats())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Service.GetSessions())
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Service.GetStreams())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if wantsCSV(r) {
		setAttachment(w, "text/csv", "alerts.csv")
		if err := s.Service.ExportAlertsCSV(w); err != nil {
			slog.Error("alerts csv export failed", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, s.Service.GetAlerts())
}

// handleObservations serves the log, or its last ?limit entries.
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	if wantsCSV(r) {
		setAttachment(w, "text/csv", "observations.csv")
		if err := s.Service.ExportObservationsCSV(w); err != nil {
			slog.Error("observations csv export failed", "error", err)
		}
		return
	}

	obs := s.Service.GetObservations()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit < len(obs) {
			obs = obs[len(obs)-limit:]
		}
	}
	writeJSON(w, http.StatusOK, obs)
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	if wantsCSV(r) {
		setAttachment(w, "text/csv", "features.csv")
		if err := s.Service.ExportFeaturesCSV(w); err != nil {
			slog.Error("features csv export failed", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, s.Service.ExtractFeatures())
}

func (s *Server) handleAssessments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Service.Assessments())
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	if !domain.IsValidAddr(addr) {
		writeError(w, http.StatusBadRequest, "invalid IP address")
		return
	}
	writeJSON(w, http.StatusOK, s.Service.RiskTier(addr))
}

func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"trained":      s.Service.IsTrained(),
		"feature_rows": len(s.Service.ExtractFeatures()),
	})
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	if err := s.Service.FitFromLog(r.Context()); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trained": true})
}

func (s *Server) handleSaveModel(w http.ResponseWriter, r *http.Request) {
	if err := s.Service.SaveModel(r.Context()); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleBuildReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.Service.BuildReport(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	s.BroadcastReport(report)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.Service.LatestReport()
	if !ok {
		writeError(w, http.StatusNotFound, "no report built yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatestReportPDF(w http.ResponseWriter, r *http.Request) {
	report, ok := s.Service.LatestReport()
	if !ok {
		writeError(w, http.StatusNotFound, "no report built yet")
		return
	}

	data, err := s.PDFExporter.ExportReport(report, s.Service.Recommendations(report), s.Service.ReportStats())
	if err != nil {
		slog.Error("pdf export failed", "report", report.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	setAttachment(w, "application/pdf", "voip_report_"+report.GeneratedAt.Format("20060102_150405")+".pdf")
	w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	setAttachment(w, "application/json", "voip_analysis_"+time.Now().Format("20060102_150405")+".json")
	if err := s.Service.Export(w); err != nil {
		slog.Error("export failed", "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := s.Service.Import(r.Body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Service.GetSystemStats())
}
