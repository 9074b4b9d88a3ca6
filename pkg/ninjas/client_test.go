package ninjas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Ido77/tarot-capital/internal/resilience"
)

func testClient(srv *httptest.Server) Client {
	return NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithRetry(resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			OnRetry:        func(int, error) {},
		}),
	)
}

func TestStockPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "HROW", r.URL.Query().Get("ticker"))
		w.Write([]byte(`{"ticker":"HROW","name":"Harrow Inc","price":3.50,"exchange":"NASDAQ","currency":"USD"}`))
	}))
	defer srv.Close()

	price, err := testClient(srv).StockPrice(context.Background(), "hrow")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(3.50)))
}

func TestStockPriceMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testClient(srv).StockPrice(context.Background(), "NOPE")
	assert.Error(t, err)
}

func TestFilingsSortedNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("filing"))
		w.Write([]byte(`[
			{"ticker":"HROW","filing_date":"2026-01-10","filing_url":"https://www.sec.gov/a","form_type":"4"},
			{"ticker":"HROW","filing_date":"2026-03-02","filing_url":"https://www.sec.gov/b","form_type":"FORM 4"},
			{"ticker":"HROW","filing_date":"2026-02-14","filing_url":"https://www.sec.gov/c","form_type":"8-K"}
		]`))
	}))
	defer srv.Close()

	filings, err := testClient(srv).Filings(context.Background(), FilingQuery{
		Ticker: "HROW",
		Form:   "4",
		Start:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Limit:  100,
	})
	require.NoError(t, err)

	// The 8-K is filtered out; remaining filings come newest first.
	require.Len(t, filings, 2)
	assert.Equal(t, "2026-03-02", filings[0].FilingDate)
	assert.Equal(t, "2026-01-10", filings[1].FilingDate)
}

func TestFilingsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv).Filings(context.Background(), FilingQuery{Ticker: "HROW", Form: "4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestFilingsRateLimitedCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)
	_, err := c.Filings(context.Background(), FilingQuery{Ticker: "HROW", Form: "4"})
	require.Error(t, err)

	var te *resilience.Transient
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 7*time.Second, te.RetryAfter)
}

func TestRetryAfterHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"seconds", "7", 7 * time.Second},
		{"missing", "", 0},
		{"http date falls back", "Wed, 21 Oct 2026 07:28:00 GMT", 0},
		{"zero", "0", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.value != "" {
				h.Set("Retry-After", tc.value)
			}
			assert.Equal(t, tc.want, retryAfter(h))
		})
	}
}

func TestStockPriceRetriesTransientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ticker":"HROW","price":3.50}`))
	}))
	defer srv.Close()

	price, err := testClient(srv).StockPrice(context.Background(), "HROW")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(3.50)))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFilingDate(t *testing.T) {
	f := Filing{FilingDate: "2026-03-02"}
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), f.Date())
	assert.True(t, Filing{FilingDate: "bogus"}.Date().IsZero())
}
