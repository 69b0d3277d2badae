package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const coinGeckoName = "coingecko"

// CoinGeckoOptions parameterise the CoinGecko client.
type CoinGeckoOptions struct {
	BaseURL    string
	APIKey     string
	CoinID     string
	VsCurrency string
	Timeout    time.Duration
	Lookback   time.Duration
}

// CoinGecko serves market chart history and spot prices for a coin.
type CoinGecko struct {
	opts   CoinGeckoOptions
	client *resty.Client
	logger zerolog.Logger
}

// NewCoinGecko constructs a CoinGecko provider.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 90 * 24 * time.Hour
	}
	if opts.CoinID == "" {
		opts.CoinID = "bitcoin"
	}
	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	client := resty.New().SetBaseURL(baseURL).SetTimeout(opts.Timeout)
	if opts.APIKey != "" {
		client.SetHeader("x-cg-demo-api-key", opts.APIKey)
	}

	return &CoinGecko{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "coingecko").Str("coin", opts.CoinID).Logger(),
	}
}

// Name identifies the provider in logs.
func (c *CoinGecko) Name() string { return coinGeckoName }

// Historical returns the market chart prices for the lookback window.
func (c *CoinGecko) Historical(ctx context.Context) ([]decimal.Decimal, error) {
	days := int(c.opts.Lookback.Hours() / 24)
	if days < 1 {
		days = 1
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", c.opts.CoinID).
		SetQueryParams(map[string]string{
			"vs_currency": c.opts.VsCurrency,
			"days":        strconv.Itoa(days),
		}).
		Get("/coins/{id}/market_chart")
	if err := classifyResponse(coinGeckoName, resp, err); err != nil {
		return nil, err
	}

	var payload struct {
		Prices [][]json.Number `json:"prices"`
	}
	if err := decodeNumbers(resp.Body(), &payload); err != nil {
		return nil, parseErr(coinGeckoName, "decode market chart: %v", err)
	}
	if len(payload.Prices) == 0 {
		return nil, parseErr(coinGeckoName, "market chart returned no prices")
	}

	prices := make([]decimal.Decimal, 0, len(payload.Prices))
	for i, point := range payload.Prices {
		if len(point) != 2 {
			return nil, parseErr(coinGeckoName, "point %d has %d fields", i, len(point))
		}
		price, err := decimal.NewFromString(point[1].String())
		if err != nil {
			return nil, parseErr(coinGeckoName, "price %q", point[1])
		}
		if err := checkPrice(coinGeckoName, price); err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}

	c.logger.Debug().Int("points", len(prices)).Msg("fetched market chart")
	return prices, nil
}

// Current returns the spot price in the configured currency.
func (c *CoinGecko) Current(ctx context.Context) (decimal.Decimal, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           c.opts.CoinID,
			"vs_currencies": c.opts.VsCurrency,
		}).
		Get("/simple/price")
	if err := classifyResponse(coinGeckoName, resp, err); err != nil {
		return decimal.Decimal{}, err
	}

	var payload map[string]map[string]json.Number
	if err := decodeNumbers(resp.Body(), &payload); err != nil {
		return decimal.Decimal{}, parseErr(coinGeckoName, "decode simple price: %v", err)
	}
	raw, ok := payload[c.opts.CoinID][c.opts.VsCurrency]
	if !ok {
		return decimal.Decimal{}, parseErr(coinGeckoName, "no %s price for %s", c.opts.VsCurrency, c.opts.CoinID)
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Decimal{}, parseErr(coinGeckoName, "price %q", raw)
	}
	if err := checkPrice(coinGeckoName, price); err != nil {
		return decimal.Decimal{}, err
	}
	return price, nil
}

// decodeNumbers keeps numeric literals verbatim so no precision is lost before
// they become decimals.
func decodeNumbers(body []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

var _ Provider = (*CoinGecko)(nil)
