package reporting

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// maxPDFRows caps the anomaly and pattern tables.
const maxPDFRows = 25

// PDFExporter exports reports to PDF format
type PDFExporter struct {
	Title string
}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{Title: "VoIP Traffic Analysis Report"}
}

// ExportReport renders a report, its recommendations and the traffic counters.
func (e *PDFExporter) ExportReport(report domain.Report, recs []domain.Recommendation, stats domain.ReportStats) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, report)
	e.addSummary(pdf, report, stats)
	e.addHighRisk(pdf, report.HighRisk)
	e.addPatterns(pdf, report.Patterns)
	e.addAnomalies(pdf, report.Anomalies)
	e.addRecommendations(pdf, recs)
	e.addFooter(pdf, report)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, report domain.Report) {
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 14, e.Title, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, "Generated: "+report.GeneratedAt.Format("2006-01-02 15:04:05 MST"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Status: "+report.Summary.Status, "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (e *PDFExporter) sectionTitle(pdf *gofpdf.Fpdf, title string) {
	if pdf.GetY() > 250 {
		pdf.AddPage()
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func (e *PDFExporter) addSummary(pdf *gofpdf.Fpdf, report domain.Report, stats domain.ReportStats) {
	e.sectionTitle(pdf, "Summary")

	rows := []struct {
		label string
		value string
	}{
		{"Observations analyzed", fmt.Sprintf("%d", report.TotalRecords)},
		{"Feature rows", fmt.Sprintf("%d", report.Summary.FeatureRows)},
		{"Model", report.Summary.ModelStatus},
		{"Anomalies", fmt.Sprintf("%d", report.Summary.TotalAnomalies)},
		{"Behavioral patterns", fmt.Sprintf("%d", report.Summary.BehavioralPatterns)},
		{"High-risk sources", fmt.Sprintf("%d", report.Summary.HighRiskIPs)},
		{"SIP packets", fmt.Sprintf("%d", stats.Statistics.SIPTotal())},
		{"RTP packets", fmt.Sprintf("%d", stats.Statistics[domain.StatRTPPackets])},
		{"Sessions", fmt.Sprintf("%d", stats.Sessions)},
		{"RTP streams", fmt.Sprintf("%d", stats.Streams)},
		{"Rule alerts", fmt.Sprintf("%d", stats.Alerts)},
	}

	for i, row := range rows {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}
		pdf.SetXY(x, pdf.GetY())
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, row.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(35, 7, row.value, "", 0, "R", false, 0, "")
		if i%2 == 1 || i == len(rows)-1 {
			pdf.Ln(7)
		}
	}
	pdf.Ln(6)
}

func (e *PDFExporter) addHighRisk(pdf *gofpdf.Fpdf, risks []domain.RiskAssessment) {
	e.sectionTitle(pdf, "High-Risk Sources")
	if len(risks) == 0 {
		e.empty(pdf, "No source reached HIGH risk")
		return
	}

	e.tableHeader(pdf, []string{"Source", "Risk", "Score", "Incidents", "Last Activity"}, []float64{45, 30, 20, 25, 60})
	pdf.SetFont("Arial", "", 9)
	for _, r := range risks {
		cr, cg, cb := tierColor(r.Tier)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(45, 7, r.SrcAddr, "1", 0, "L", false, 0, "")
		pdf.SetTextColor(cr, cg, cb)
		pdf.CellFormat(30, 7, string(r.Tier), "1", 0, "C", false, 0, "")
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", r.Score), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", r.IncidentCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 7, r.LastActivity.Format("2006-01-02 15:04:05"), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (e *PDFExporter) addPatterns(pdf *gofpdf.Fpdf, patterns []domain.BehavioralPattern) {
	e.sectionTitle(pdf, "Behavioral Patterns")
	if len(patterns) == 0 {
		e.empty(pdf, "No behavioral patterns detected")
		return
	}

	e.tableHeader(pdf, []string{"Source", "Pattern", "Severity", "Description"}, []float64{35, 40, 20, 85})
	pdf.SetFont("Arial", "", 9)
	for i, p := range patterns {
		if i >= maxPDFRows {
			e.more(pdf, len(patterns)-i)
			break
		}
		cr, cg, cb := severityColor(p.Severity)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(35, 7, p.SrcAddr, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, string(p.Kind), "1", 0, "L", false, 0, "")
		pdf.SetTextColor(cr, cg, cb)
		pdf.CellFormat(20, 7, string(p.Severity), "1", 0, "C", false, 0, "")
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(85, 7, truncate(p.Description, 55), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (e *PDFExporter) addAnomalies(pdf *gofpdf.Fpdf, anomalies []domain.AnomalyResult) {
	e.sectionTitle(pdf, "Anomalous Sources")
	if len(anomalies) == 0 {
		e.empty(pdf, "No anomalous sources")
		return
	}

	e.tableHeader(pdf, []string{"Source", "Score", "Isolation", "Cluster", "Packets", "Destinations"}, []float64{40, 25, 30, 25, 30, 30})
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(60, 60, 60)
	for i, a := range anomalies {
		if i >= maxPDFRows {
			e.more(pdf, len(anomalies)-i)
			break
		}
		pdf.CellFormat(40, 7, a.SrcAddr, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", a.CombinedScore), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.3f", a.OutlierScore), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", a.ClusterID), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.0f", a.TotalPackets), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.0f", a.UniqueDestinations), "1", 1, "C", false, 0, "")
	}
	pdf.Ln(6)
}

func (e *PDFExporter) addRecommendations(pdf *gofpdf.Fpdf, recs []domain.Recommendation) {
	e.sectionTitle(pdf, "Recommendations")

	for _, rec := range recs {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		r, g, b := priorityColor(rec.Priority)
		pdf.SetFillColor(r, g, b)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(25, 6, rec.Priority, "", 0, "C", true, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 51, 102)
		pdf.CellFormat(0, 6, "  "+rec.Title, "", 1, "L", false, 0, "")
		pdf.Ln(1)

		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 5, rec.Description, "", "L", false)

		for _, action := range rec.Actions {
			pdf.CellFormat(5, 5, "", "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 5, "- "+truncate(action, 100), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, report domain.Report) {
	pdf.SetY(-20)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5, "voipmon | Report ID: "+truncate(report.ID, 8), "", 1, "C", false, 0, "")
}

func (e *PDFExporter) tableHeader(pdf *gofpdf.Fpdf, cols []string, widths []float64) {
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)
	for i, c := range cols {
		ln := 0
		if i == len(cols)-1 {
			ln = 1
		}
		pdf.CellFormat(widths[i], 8, c, "1", ln, "C", true, 0, "")
	}
}

func (e *PDFExporter) empty(pdf *gofpdf.Fpdf, msg string) {
	pdf.SetFont("Arial", "I", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 7, msg, "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (e *PDFExporter) more(pdf *gofpdf.Fpdf, n int) {
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, fmt.Sprintf("... %d more", n), "", 1, "L", false, 0, "")
}

func tierColor(t domain.RiskTier) (r, g, b int) {
	switch t {
	case domain.RiskCritical:
		return 220, 53, 69
	case domain.RiskHigh:
		return 255, 149, 0
	case domain.RiskMedium:
		return 255, 204, 0
	default:
		return 52, 199, 89
	}
}

func severityColor(s domain.Severity) (r, g, b int) {
	switch s {
	case domain.SeverityHigh:
		return 220, 53, 69
	case domain.SeverityMedium:
		return 255, 149, 0
	default:
		return 52, 199, 89
	}
}

func priorityColor(priority string) (r, g, b int) {
	switch priority {
	case "critical":
		return 220, 53, 69
	case "high":
		return 255, 149, 0
	case "medium":
		return 255, 204, 0
	default:
		return 52, 199, 89
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
