// Package model defines the domain types shared across the extraction pipeline.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies which class of SEC filing produced a set of targets.
// Proxy statements are the primary source; insider Form 4 filings are the
// secondary fallback.
type Source string

const (
	SourceProxy   Source = "DEF 14A"
	SourceInsider Source = "Form 4"
)

// Filing is one SEC filing returned by the search collaborator.
type Filing struct {
	Ticker     string    `json:"ticker"`
	Accession  string    `json:"accession_number,omitempty"`
	FormType   string    `json:"form_type"`
	FilingDate time.Time `json:"filing_date"`
	URL        string    `json:"filing_url"`
}

// FilingMeta carries the attribution for an aggregated result.
type FilingMeta struct {
	Ticker     string
	Source     Source
	FilingDate *time.Time
}

// Snippet preserves the text surrounding an extracted target for audit.
type Snippet struct {
	FilingDate time.Time       `json:"filing_date"`
	FilingURL  string          `json:"filing_url,omitempty"`
	Target     decimal.Decimal `json:"target"`
	Context    string          `json:"context"`
}

// FilingAnalysis summarizes one filing that contributed targets.
type FilingAnalysis struct {
	FilingDate   time.Time `json:"date"`
	FormType     string    `json:"type"`
	URL          string    `json:"url,omitempty"`
	TargetsFound int       `json:"targets_found"`
}

// Result is the per-ticker outcome of the extraction pipeline. Targets is
// the deduplicated, ascending set of validated price targets; the upside
// fields are nil when no target survived validation. A Result with an empty
// target set is a valid outcome, not an error.
type Result struct {
	Ticker              string            `json:"ticker"`
	CurrentPrice        decimal.Decimal   `json:"current_price"`
	Targets             []decimal.Decimal `json:"psu_targets"`
	FilingSource        Source            `json:"filing_source,omitempty"`
	FilingDate          *time.Time        `json:"filing_date,omitempty"`
	NearestTargetUpside *float64          `json:"nearest_target_upside,omitempty"`
	HighestTargetUpside *float64          `json:"highest_target_upside,omitempty"`
	FilingsAnalyzed     []FilingAnalysis  `json:"filings_analyzed,omitempty"`
	Snippets            []Snippet         `json:"filing_content_snippets,omitempty"`
	RejectionReason     string            `json:"rejection_reason,omitempty"`
	ExtractedAt         time.Time         `json:"extracted_at"`
}

// HasTargets reports whether any validated target survived.
func (r *Result) HasTargets() bool {
	return len(r.Targets) > 0
}
