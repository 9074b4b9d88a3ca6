// Package ninjas is a client for the API Ninjas stock price and SEC filing
// endpoints.
package ninjas

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/Ido77/tarot-capital/internal/resilience"
)

const defaultBaseURL = "https://api.api-ninjas.com/v1"

// Client exposes the market data endpoints the pipeline needs. Lookups
// that fail for transient reasons return errors; the caller decides
// whether that means "no data for this ticker" or something to retry.
type Client interface {
	// StockPrice returns the latest trade price for a ticker.
	StockPrice(ctx context.Context, ticker string) (decimal.Decimal, error)

	// Filings returns SEC filings matching the query, newest first.
	Filings(ctx context.Context, q FilingQuery) ([]Filing, error)
}

// FilingQuery selects filings by ticker, form type, and date range.
type FilingQuery struct {
	Ticker string
	Form   string // e.g. "DEF14A", "4"
	Start  time.Time
	End    time.Time
	Limit  int
}

// Filing is one SEC filing reference from the /sec endpoint.
type Filing struct {
	Ticker     string `json:"ticker"`
	FilingDate string `json:"filing_date"`
	FilingURL  string `json:"filing_url"`
	FormType   string `json:"form_type"`
	Accession  string `json:"accession_number,omitempty"`
}

// Date parses the filing date. A zero time means the API returned an
// unparseable date.
func (f Filing) Date() time.Time {
	t, err := time.Parse("2006-01-02", f.FilingDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimiter overrides the default request limiter.
func WithRateLimiter(lim *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = lim
	}
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an API Ninjas client. The default limiter matches the
// free tier's tolerance of roughly one request per 1.2 seconds.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(1200*time.Millisecond), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type stockPriceResponse struct {
	Ticker   string  `json:"ticker"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Exchange string  `json:"exchange"`
	Currency string  `json:"currency"`
}

func (c *httpClient) StockPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	params := url.Values{"ticker": {strings.ToUpper(ticker)}}

	body, err := c.get(ctx, "/stockprice", params)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "ninjas: stock price for %s", ticker)
	}

	var resp stockPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, eris.Wrapf(err, "ninjas: decode stock price for %s", ticker)
	}
	if resp.Price <= 0 {
		return decimal.Zero, eris.Errorf("ninjas: no price for %s", ticker)
	}

	return decimal.NewFromFloat(resp.Price), nil
}

func (c *httpClient) Filings(ctx context.Context, q FilingQuery) ([]Filing, error) {
	params := url.Values{
		"ticker": {strings.ToUpper(q.Ticker)},
		"filing": {q.Form},
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if !q.Start.IsZero() {
		params.Set("start", q.Start.Format("2006-01-02"))
	}
	if !q.End.IsZero() {
		params.Set("end", q.End.Format("2006-01-02"))
	}

	body, err := c.get(ctx, "/sec", params)
	if err != nil {
		return nil, eris.Wrapf(err, "ninjas: filings for %s", q.Ticker)
	}

	var filings []Filing
	if err := json.Unmarshal(body, &filings); err != nil {
		return nil, eris.Wrapf(err, "ninjas: decode filings for %s", q.Ticker)
	}

	// The API occasionally returns extra form types; keep only the
	// requested one.
	filtered := filings[:0]
	for _, f := range filings {
		if matchesForm(f.FormType, q.Form) {
			filtered = append(filtered, f)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].FilingDate > filtered[j].FilingDate
	})

	return filtered, nil
}

// matchesForm compares form types tolerantly: "4", "FORM 4" and "FORM4"
// are all Form 4.
func matchesForm(got, want string) bool {
	clean := func(s string) string {
		s = strings.ToUpper(strings.TrimSpace(s))
		s = strings.TrimPrefix(s, "FORM")
		return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	}
	return clean(got) == clean(want)
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	retryCfg := c.retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger("api-ninjas", path)
	}

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.Mark(eris.Wrap(err, "read response"), 0)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, resilience.Throttled(eris.New("rate limited (429)"), retryAfter(resp.Header))
		}
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Mark(
				eris.Errorf("transient status %d: %s", resp.StatusCode, truncate(string(body), 200)),
				resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
		}

		return body, nil
	})
}

// retryAfter parses a Retry-After header given in seconds. HTTP-date
// values fall back to zero, leaving the retry loop on its own backoff.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
