package reporting

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// PrintReport writes a report as console tables.
func PrintReport(w io.Writer, report domain.Report, recs []domain.Recommendation) {
	fmt.Fprintf(w, "Report %s (%s)\n", report.ID, report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Status: %s | Model: %s | Records: %d | Feature rows: %d\n\n",
		report.Summary.Status, report.Summary.ModelStatus, report.TotalRecords, report.Summary.FeatureRows)

	if len(report.Anomalies) > 0 {
		fmt.Fprintln(w, "Anomalous sources")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Source", "Score", "Isolation", "Cluster", "Packets", "Destinations", "Pkts/min"})
		fl := func(f float64) string { return strconv.FormatFloat(f, 'g', 6, 64) }
		for _, a := range report.Anomalies {
			table.Append([]string{
				a.SrcAddr, fl(a.CombinedScore), fl(a.OutlierScore), strconv.Itoa(a.ClusterID),
				fl(a.TotalPackets), fl(a.UniqueDestinations), fl(a.PacketsPerMinute),
			})
		}
		table.Render()
		fmt.Fprintln(w)
	}

	if len(report.Patterns) > 0 {
		fmt.Fprintln(w, "Behavioral patterns")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Source", "Pattern", "Severity", "Description"})
		table.SetAutoWrapText(false)
		for _, p := range report.Patterns {
			table.Append([]string{p.SrcAddr, string(p.Kind), string(p.Severity), p.Description})
		}
		table.Render()
		fmt.Fprintln(w)
	}

	if len(report.HighRisk) > 0 {
		fmt.Fprintln(w, "High-risk sources")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Source", "Risk", "Score", "Incidents"})
		for _, r := range report.HighRisk {
			table.Append([]string{r.SrcAddr, string(r.Tier), strconv.Itoa(r.Score), strconv.Itoa(r.IncidentCount)})
		}
		table.Render()
		fmt.Fprintln(w)
	}

	if len(recs) > 0 {
		fmt.Fprintln(w, "Recommendations")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Priority", "Title", "Description"})
		for _, r := range recs {
			table.Append([]string{r.Priority, r.Title, r.Description})
		}
		table.Render()
	}
}

// PrintAssessments writes the risk view of every tracked source.
func PrintAssessments(w io.Writer, assessments []domain.RiskAssessment) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Source", "Risk", "Score", "Incidents", "Details"})
	for _, a := range assessments {
		table.Append([]string{a.SrcAddr, string(a.Tier), strconv.Itoa(a.Score), strconv.Itoa(a.IncidentCount), a.Details})
	}
	table.Render()
}
