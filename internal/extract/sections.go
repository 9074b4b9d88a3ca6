package extract

import (
	"regexp"
	"strings"
)

// psuKeywords mark a sentence as PSU-relevant. The list is intentionally
// broad; section filtering trades precision for recall, like the pattern
// library itself.
var psuKeywords = []string{
	"psu", "performance stock unit", "performance unit", "performance share",
	"performance-based", "performance target", "performance goal",
	"vest", "vesting", "vesting schedule", "vesting condition",
	"target", "hurdle", "threshold", "performance metric",
}

// excludeKeywords reject sentences whose dollar amounts are almost never
// PSU hurdles: warrants, deal costs, fees, market prices and the like.
var excludeKeywords = []string{
	"warrant", "exercise price", "exercise of warrant",
	"transaction cost", "advisory cost", "legal fee", "accounting fee",
	"merger", "acquisition", "exchange offer", "tender offer",
	"dividend", "distribution", "split", "spinoff",
	"underwriting", "commission", "expense", "fee",
	"registration", "prospectus", "offering price",
	"market price", "closing price", "trading price",
	"book value", "net worth", "assets", "liabilities",
}

var (
	rangeGuard   = regexp.MustCompile(`(\$\d+(?:\.\d+)?)\s+to\s+(\$\d+(?:\.\d+)?)`)
	decimalGuard = regexp.MustCompile(`(\$\d+)\.(\d+)`)
	sentenceEnd  = regexp.MustCompile(`[.!?]`)
)

// Sections splits filing text into sentences and keeps the PSU-relevant
// ones. Price ranges and decimal amounts are protected from the sentence
// splitter so "$12.50 to $20.00" survives intact. An empty return means the
// filing has no PSU-related content worth extracting from.
func Sections(text string) []string {
	protected := rangeGuard.ReplaceAllString(text, "${1}_TO_${2}")
	protected = decimalGuard.ReplaceAllString(protected, "${1}_DOT_${2}")

	var sections []string
	for _, sentence := range sentenceEnd.Split(protected, -1) {
		sentence = strings.ReplaceAll(sentence, "_TO_", " to ")
		sentence = strings.ReplaceAll(sentence, "_DOT_", ".")

		lower := strings.ToLower(sentence)
		if !containsAny(lower, psuKeywords) {
			continue
		}
		if containsAny(lower, excludeKeywords) {
			continue
		}
		sections = append(sections, sentence)
	}
	return sections
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
