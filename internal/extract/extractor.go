package extract

import (
	"github.com/shopspring/decimal"
)

// Candidate is a raw numeric match with its provenance. Candidates are
// ephemeral: they exist between extraction and validation, and the span is
// kept only for audit output.
type Candidate struct {
	Raw       string
	Value     decimal.Decimal
	PatternID string
	Tier      Tier
	Span      string
}

// spanWindow is how many characters of surrounding text are kept on each
// side of a match for the audit span.
const spanWindow = 80

// Extract applies every pattern to text and returns all numeric candidates.
// It is a pure function: every match of every pattern is kept as a separate
// candidate even when several patterns hit the same literal, so provenance
// survives until deduplication. Captures that do not parse as a
// non-negative decimal are silently discarded.
func Extract(text string, pats []Pattern) []Candidate {
	var out []Candidate
	for _, p := range pats {
		matches := p.Regexp.FindAllStringSubmatchIndex(text, -1)
		for _, m := range matches {
			// m holds pairs: full match, then each capture group.
			for g := 1; 2*g+1 < len(m); g++ {
				lo, hi := m[g*2], m[g*2+1]
				if lo < 0 || hi < 0 {
					continue
				}
				raw := text[lo:hi]
				v, err := decimal.NewFromString(raw)
				if err != nil || v.IsNegative() {
					continue
				}
				out = append(out, Candidate{
					Raw:       raw,
					Value:     v,
					PatternID: p.ID,
					Tier:      p.Tier,
					Span:      span(text, m[0], m[1]),
				})
			}
		}
	}
	return out
}

// span clips the text surrounding [lo, hi) to the audit window.
func span(text string, lo, hi int) string {
	start := lo - spanWindow
	if start < 0 {
		start = 0
	}
	end := hi + spanWindow
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
