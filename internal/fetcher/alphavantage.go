package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const alphaVantageName = "alphavantage"

// AlphaVantageOptions parameterise the Alpha Vantage client.
type AlphaVantageOptions struct {
	BaseURL  string
	APIKey   string
	Symbol   string
	Timeout  time.Duration
	Lookback time.Duration
	Now      func() time.Time
}

// AlphaVantage serves daily closes and quotes for an equity symbol.
type AlphaVantage struct {
	opts   AlphaVantageOptions
	client *resty.Client
	logger zerolog.Logger
}

// NewAlphaVantage constructs an Alpha Vantage provider.
func NewAlphaVantage(opts AlphaVantageOptions, logger zerolog.Logger) *AlphaVantage {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 90 * 24 * time.Hour
	}
	if opts.Symbol == "" {
		opts.Symbol = "SPY"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co"
	}

	return &AlphaVantage{
		opts:   opts,
		client: resty.New().SetBaseURL(baseURL).SetTimeout(opts.Timeout),
		logger: logger.With().Str("component", "alphavantage").Str("symbol", opts.Symbol).Logger(),
	}
}

// Name identifies the provider in logs.
func (a *AlphaVantage) Name() string { return alphaVantageName }

// Historical returns the daily closes inside the lookback window, oldest first.
func (a *AlphaVantage) Historical(ctx context.Context) ([]decimal.Decimal, error) {
	var payload struct {
		apiNotice
		Series map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := a.query(ctx, "TIME_SERIES_DAILY", &payload); err != nil {
		return nil, err
	}
	if err := payload.err(); err != nil {
		return nil, err
	}
	if len(payload.Series) == 0 {
		return nil, parseErr(alphaVantageName, "missing daily time series")
	}

	cutoff := a.opts.Now().Add(-a.opts.Lookback)
	dates := make([]string, 0, len(payload.Series))
	for date := range payload.Series {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, parseErr(alphaVantageName, "bad date %q", date)
		}
		if day.Before(cutoff) {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)

	prices := make([]decimal.Decimal, 0, len(dates))
	for _, date := range dates {
		raw, ok := payload.Series[date]["4. close"]
		if !ok {
			return nil, parseErr(alphaVantageName, "missing close for %s", date)
		}
		closePrice, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, parseErr(alphaVantageName, "close %q for %s", raw, date)
		}
		if err := checkPrice(alphaVantageName, closePrice); err != nil {
			return nil, err
		}
		prices = append(prices, closePrice)
	}

	a.logger.Debug().Int("points", len(prices)).Msg("fetched daily closes")
	return prices, nil
}

// Current returns the latest quote.
func (a *AlphaVantage) Current(ctx context.Context) (decimal.Decimal, error) {
	var payload struct {
		apiNotice
		Quote map[string]string `json:"Global Quote"`
	}
	if err := a.query(ctx, "GLOBAL_QUOTE", &payload); err != nil {
		return decimal.Decimal{}, err
	}
	if err := payload.err(); err != nil {
		return decimal.Decimal{}, err
	}

	raw, ok := payload.Quote["05. price"]
	if !ok {
		return decimal.Decimal{}, parseErr(alphaVantageName, "missing global quote price")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, parseErr(alphaVantageName, "price %q", raw)
	}
	if err := checkPrice(alphaVantageName, price); err != nil {
		return decimal.Decimal{}, err
	}
	return price, nil
}

func (a *AlphaVantage) query(ctx context.Context, function string, dst any) error {
	if a.opts.APIKey == "" {
		return fmt.Errorf("%s: %w: api key not configured", alphaVantageName, ErrAuth)
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": function,
			"symbol":   a.opts.Symbol,
			"apikey":   a.opts.APIKey,
		}).
		Get("/query")
	if err := classifyResponse(alphaVantageName, resp, err); err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body(), dst); err != nil {
		return parseErr(alphaVantageName, "decode %s: %v", function, err)
	}
	return nil
}

// apiNotice captures the soft errors Alpha Vantage reports with HTTP 200.
type apiNotice struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (n apiNotice) err() error {
	if n.ErrorMessage != "" {
		if strings.Contains(strings.ToLower(n.ErrorMessage), "apikey") {
			return fmt.Errorf("%s: %w: %s", alphaVantageName, ErrAuth, n.ErrorMessage)
		}
		return parseErr(alphaVantageName, "%s", n.ErrorMessage)
	}

	msg := n.Note
	if msg == "" {
		msg = n.Information
	}
	if msg == "" {
		return nil
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "call frequency") || strings.Contains(lower, "requests per day") {
		return fmt.Errorf("%s: %w: %s", alphaVantageName, ErrNetwork, msg)
	}
	return fmt.Errorf("%s: %w: %s", alphaVantageName, ErrAuth, msg)
}

var _ Provider = (*AlphaVantage)(nil)
