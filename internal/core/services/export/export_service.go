package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// ExportJSON writes the full snapshot as indented JSON.
func ExportJSON(w io.Writer, data domain.DataExport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("%w: encode export: %v", domain.ErrPersistence, err)
	}
	return nil
}

// ImportJSON reads a snapshot written by ExportJSON.
func ImportJSON(r io.Reader) (domain.DataExport, error) {
	var data domain.DataExport
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return domain.DataExport{}, fmt.Errorf("%w: decode export: %v", domain.ErrPersistence, err)
	}
	return data, nil
}

// ExportObservationsCSV writes the observation log with headers.
func ExportObservationsCSV(w io.Writer, obs []domain.Observation) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	headers := []string{
		"Timestamp", "Type", "SrcIP", "DstIP",
		"Method", "CallID", "UserAgent",
		"SrcPort", "DstPort", "StreamKey",
		"Suspicious",
	}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, o := range obs {
		row := []string{
			o.Timestamp.Format(time.RFC3339Nano),
			string(o.Kind),
			o.SrcAddr,
			o.DstAddr,
			"", "", "",
			"", "", "",
			strconv.FormatBool(o.Suspicious),
		}
		if o.SIP != nil {
			row[4] = string(o.SIP.Method)
			row[5] = o.SIP.CallID
			row[6] = o.SIP.UserAgent
		}
		if o.RTP != nil {
			row[7] = strconv.Itoa(int(o.RTP.SrcPort))
			row[8] = strconv.Itoa(int(o.RTP.DstPort))
			row[9] = o.RTP.StreamKey
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportAlertsCSV writes the alert log as CSV
func ExportAlertsCSV(w io.Writer, alerts []domain.SuspiciousEvent) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	headers := []string{"ID", "Timestamp", "Type", "SrcIP", "DstIP", "Method", "Reason"}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, a := range alerts {
		row := []string{
			a.ID,
			a.Timestamp.Format(time.RFC3339Nano),
			string(a.Category),
			a.SrcAddr,
			a.DstAddr,
			string(a.Method),
			a.Reason,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportFeaturesCSV writes feature rows with the src address first and the
// numeric columns in domain.FeatureColumns order.
func ExportFeaturesCSV(w io.Writer, rows []domain.FeatureVector) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	headers := append([]string{"src_ip"}, domain.FeatureColumns...)
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{r.SrcAddr}
		for _, v := range r.Values() {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
