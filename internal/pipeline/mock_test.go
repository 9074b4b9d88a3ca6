package pipeline

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/Ido77/tarot-capital/internal/config"
	"github.com/Ido77/tarot-capital/internal/extract"
	"github.com/Ido77/tarot-capital/pkg/ninjas"
)

// mockMarket is a canned ninjas.Client recording the forms queried.
type mockMarket struct {
	mu           sync.Mutex
	price        decimal.Decimal
	priceErr     error
	filings      map[string][]ninjas.Filing // keyed by form
	filingsErr   error
	queriedForms []string
	priced       []string
}

func (m *mockMarket) StockPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	m.mu.Lock()
	m.priced = append(m.priced, ticker)
	m.mu.Unlock()
	if m.priceErr != nil {
		return decimal.Zero, m.priceErr
	}
	return m.price, nil
}

func (m *mockMarket) Filings(_ context.Context, q ninjas.FilingQuery) ([]ninjas.Filing, error) {
	m.mu.Lock()
	m.queriedForms = append(m.queriedForms, q.Form)
	m.mu.Unlock()
	if m.filingsErr != nil {
		return nil, m.filingsErr
	}
	return m.filings[q.Form], nil
}

func (m *mockMarket) forms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queriedForms...)
}

// mockFetcher serves canned documents by URL.
type mockFetcher struct {
	docs map[string]string
}

func (m *mockFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	s, err := m.DownloadString(ctx, url)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

func (m *mockFetcher) DownloadString(_ context.Context, url string) (string, error) {
	doc, ok := m.docs[url]
	if !ok {
		return "", eris.Errorf("no document for %s", url)
	}
	return doc, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Extract: config.ExtractConfig{
			MinUpsidePct:         50,
			MaxPlausibleMultiple: 50,
			MinUniqueTargets:     1,
			RegexGapCap:          extract.DefaultGapCap,
			MonthsBack:           6,
			MaxFilings:           50,
			HighUpsidePct:        40,
		},
		Batch: config.BatchConfig{MaxConcurrentTickers: 2},
	}
}
