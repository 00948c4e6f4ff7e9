package polygon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"CoveredCall/internal/domain/models"
	"CoveredCall/internal/service/ratelimit"
	applogger "CoveredCall/pkg/logger"
	xhttp "CoveredCall/pkg/http"
	"CoveredCall/pkg/util"
)

const (
	DefaultBaseURL = "https://api.polygon.io"
	limiterKey     = "polygon"
	pageLimit      = 5000
)

// Client talks to the Polygon.io REST API. It implements PriceSource and OptionSource.
type Client struct {
	apiKey    string
	baseURL   string
	http      *xhttp.Client
	limiter   *ratelimit.Limiter
	perMinute int
	l         *applogger.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *xhttp.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit shares a limiter so every caller of the same key stays under perMinute requests.
func WithRateLimit(l *ratelimit.Limiter, perMinute int) Option {
	return func(c *Client) {
		c.limiter = l
		c.perMinute = perMinute
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   DefaultBaseURL,
		perMinute: 5,
		l:         applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(30 * time.Second))
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New()
	}
	return c
}

type aggsResponse struct {
	Status  string `json:"status"`
	NextURL string `json:"next_url"`
	Results []struct {
		T int64   `json:"t"`
		O float64 `json:"o"`
		C float64 `json:"c"`
		H float64 `json:"h"`
		L float64 `json:"l"`
	} `json:"results"`
}

// FetchDailyBars pages through /v2/aggs day bars between start and end inclusive.
func (c *Client) FetchDailyBars(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceBar, error) {
	start, end = util.Day(start), util.Day(end)
	if !start.Before(end) {
		return nil, nil
	}

	next := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s",
		c.baseURL, url.PathEscape(ticker), util.FormatDate(start), util.FormatDate(end))
	params := url.Values{
		"adjusted": {"true"},
		"sort":     {"asc"},
		"limit":    {fmt.Sprint(pageLimit)},
	}

	var bars []models.PriceBar
	for page := 1; next != ""; page++ {
		var resp aggsResponse
		if err := c.get(ctx, next, params, &resp); err != nil {
			return nil, fmt.Errorf("polygon aggs %s page %d: %w", ticker, page, err)
		}
		for _, r := range resp.Results {
			bars = append(bars, models.PriceBar{
				Ticker: ticker,
				Date:   util.Day(time.UnixMilli(r.T).UTC()),
				Open:   r.O,
				Close:  r.C,
				High:   r.H,
				Low:    r.L,
			})
		}
		c.l.Debug("polygon aggs page",
			applogger.String("ticker", ticker),
			applogger.Int("page", page),
			applogger.Int("results", len(resp.Results)))
		// next_url already carries the cursor and original query.
		next, params = resp.NextURL, nil
	}
	return bars, nil
}

type openCloseResponse struct {
	Status string   `json:"status"`
	From   string   `json:"from"`
	Symbol string   `json:"symbol"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
}

// FetchOptionBar returns the daily open/close of one contract. A 404 means no trades that day.
func (c *Client) FetchOptionBar(ctx context.Context, contract models.OptionContract, date time.Time) (models.OptionBar, bool, error) {
	u := fmt.Sprintf("%s/v1/open-close/%s/%s", c.baseURL, url.PathEscape(contract.Symbol), util.FormatDate(date))
	var resp openCloseResponse
	err := c.get(ctx, u, url.Values{"adjusted": {"true"}}, &resp)
	if xhttp.IsStatus(err, http.StatusNotFound) {
		return models.OptionBar{}, false, nil
	}
	if err != nil {
		return models.OptionBar{}, false, fmt.Errorf("polygon open-close %s: %w", contract.Symbol, err)
	}
	if strings.EqualFold(resp.Status, "NOT_FOUND") {
		return models.OptionBar{}, false, nil
	}

	day := util.Day(date)
	if t, err := util.ParseDate(resp.From); err == nil {
		day = t
	}
	return models.OptionBar{
		Ticker:      contract.Ticker,
		Date:        day,
		Symbol:      contract.Symbol,
		StrikePrice: contract.StrikePrice,
		OptionType:  contract.OptionType,
		Expiration:  contract.Expiration,
		Open:        orNaN(resp.Open),
		High:        orNaN(resp.High),
		Low:         orNaN(resp.Low),
		Close:       orNaN(resp.Close),
	}, true, nil
}

func (c *Client) get(ctx context.Context, u string, params url.Values, dest interface{}) error {
	if c.limiter != nil && c.perMinute > 0 {
		if err := c.limiter.Wait(ctx, limiterKey, 1, ratelimit.PerMinute(c.perMinute)); err != nil {
			return err
		}
	}
	q := url.Values{"apiKey": {c.apiKey}}
	for k, v := range params {
		q[k] = v
	}
	err := c.http.GetJSON(ctx, u, q, dest)
	if err != nil && !xhttp.IsStatus(err, http.StatusNotFound) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrCollaborator, err)
	}
	return err
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
