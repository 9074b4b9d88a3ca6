package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/Ido77/tarot-capital/internal/model"
)

// resultColumns defines the ordered CSV and XLSX output columns.
var resultColumns = []string{
	"Ticker",
	"Current Price",
	"PSU Targets",
	"Nearest Target Upside %",
	"Highest Target Upside %",
	"Filing Source",
	"Filing Date",
	"Filings Analyzed",
}

// exportEnvelope is the JSON export layout: summary counts up front, then
// the full per-ticker results.
type exportEnvelope struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	Total         int            `json:"total"`
	WithTargets   int            `json:"with_targets"`
	HighUpside    int            `json:"high_upside"`
	HighUpsidePct float64        `json:"high_upside_pct"`
	Results       []model.Result `json:"results"`
}

// ExportJSON writes results with summary counts to outputPath.
func ExportJSON(results []model.Result, highUpsidePct float64, outputPath string) error {
	env := exportEnvelope{
		GeneratedAt:   time.Now().UTC(),
		Total:         len(results),
		HighUpsidePct: highUpsidePct,
		Results:       results,
	}
	for _, r := range results {
		if r.HasTargets() {
			env.WithTargets++
		}
		if isHighUpside(r, highUpsidePct) {
			env.HighUpside++
		}
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal json")
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write json")
	}
	return nil
}

// ExportCSV writes results as a CSV file, one row per ticker.
func ExportCSV(results []model.Result, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(resultColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range results {
		if err := w.Write(buildRow(r)); err != nil {
			return eris.Wrapf(err, "export: write row %s", r.Ticker)
		}
	}
	return nil
}

// ExportXLSX writes results as a workbook with results split onto
// high-upside and low-upside sheets at the given threshold.
func ExportXLSX(results []model.Result, highUpsidePct float64, outputPath string) error {
	wb := xlsx.NewFile()

	high, err := wb.AddSheet("High Upside")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	low, err := wb.AddSheet("Low Upside")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	for _, sheet := range []*xlsx.Sheet{high, low} {
		header := sheet.AddRow()
		for _, col := range resultColumns {
			header.AddCell().Value = col
		}
	}

	for _, r := range results {
		if !r.HasTargets() {
			continue
		}
		sheet := low
		if isHighUpside(r, highUpsidePct) {
			sheet = high
		}
		row := sheet.AddRow()
		for _, v := range buildRow(r) {
			row.AddCell().Value = v
		}
	}

	return eris.Wrap(wb.Save(outputPath), "export: save xlsx")
}

func isHighUpside(r model.Result, highUpsidePct float64) bool {
	return r.HighestTargetUpside != nil && *r.HighestTargetUpside >= highUpsidePct
}

func buildRow(r model.Result) []string {
	targets := make([]string, 0, len(r.Targets))
	for _, t := range r.Targets {
		targets = append(targets, "$"+t.StringFixed(2))
	}

	filingDate := ""
	if r.FilingDate != nil {
		filingDate = r.FilingDate.Format("2006-01-02")
	}

	return []string{
		r.Ticker,
		r.CurrentPrice.StringFixed(2),
		strings.Join(targets, "; "),
		formatUpside(r.NearestTargetUpside),
		formatUpside(r.HighestTargetUpside),
		string(r.FilingSource),
		filingDate,
		strconv.Itoa(len(r.FilingsAnalyzed)),
	}
}

func formatUpside(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
