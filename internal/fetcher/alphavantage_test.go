package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func jsonHandler(t *testing.T, status int, body any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func newAlphaVantage(url string) *AlphaVantage {
	return NewAlphaVantage(AlphaVantageOptions{
		BaseURL:  url,
		APIKey:   "demo",
		Symbol:   "SPY",
		Timeout:  time.Second,
		Lookback: 90 * 24 * time.Hour,
		Now:      func() time.Time { return time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC) },
	}, noopLogger())
}

func TestAlphaVantageHistoricalFiltersLookback(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"function": r.URL.Query().Get("function"),
			"symbol":   r.URL.Query().Get("symbol"),
			"apikey":   r.URL.Query().Get("apikey"),
		}
		jsonHandler(t, http.StatusOK, map[string]any{
			"Time Series (Daily)": map[string]map[string]string{
				"2025-06-27": {"4. close": "601.25"},
				"2025-06-26": {"4. close": "598.10"},
				"2025-01-02": {"4. close": "400.00"},
			},
		})(w, r)
	}))
	defer srv.Close()

	prices, err := newAlphaVantage(srv.URL).Historical(context.Background())
	if err != nil {
		t.Fatalf("Historical 不应报错: %v", err)
	}
	if gotQuery["function"] != "TIME_SERIES_DAILY" || gotQuery["symbol"] != "SPY" || gotQuery["apikey"] != "demo" {
		t.Fatalf("请求参数不正确: %v", gotQuery)
	}
	if len(prices) != 2 {
		t.Fatalf("应过滤掉 90 天之前的数据, got %d points", len(prices))
	}
	if !prices[0].Equal(decimal.RequireFromString("598.10")) || !prices[1].Equal(decimal.RequireFromString("601.25")) {
		t.Fatalf("应按日期升序返回: %v", prices)
	}
}

func TestAlphaVantageCurrent(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, http.StatusOK, map[string]any{
		"Global Quote": map[string]string{"01. symbol": "SPY", "05. price": "512.3400"},
	}))
	defer srv.Close()

	price, err := newAlphaVantage(srv.URL).Current(context.Background())
	if err != nil {
		t.Fatalf("Current 不应报错: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("512.34")) {
		t.Fatalf("price = %s", price)
	}
}

func TestAlphaVantageErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
	}{
		{name: "rate limited note", status: http.StatusOK, body: map[string]string{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}, want: ErrNetwork},
		{name: "invalid key", status: http.StatusOK, body: map[string]string{"Error Message": "the parameter apikey is invalid or missing"}, want: ErrAuth},
		{name: "bad symbol", status: http.StatusOK, body: map[string]string{"Error Message": "Invalid API call"}, want: ErrParse},
		{name: "empty quote", status: http.StatusOK, body: map[string]any{"Global Quote": map[string]string{}}, want: ErrParse},
		{name: "server error", status: http.StatusBadGateway, body: map[string]string{}, want: ErrNetwork},
		{name: "forbidden", status: http.StatusForbidden, body: map[string]string{}, want: ErrAuth},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(jsonHandler(t, tc.status, tc.body))
			defer srv.Close()

			_, err := newAlphaVantage(srv.URL).Current(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("期望 %v, 实际 %v", tc.want, err)
			}
		})
	}
}

func TestAlphaVantageMissingKey(t *testing.T) {
	av := NewAlphaVantage(AlphaVantageOptions{BaseURL: "http://127.0.0.1:1"}, noopLogger())
	if _, err := av.Historical(context.Background()); !errors.Is(err, ErrAuth) {
		t.Fatalf("未配置 api key 应返回 ErrAuth, 实际 %v", err)
	}
}

func TestAlphaVantageTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := newAlphaVantage(url).Current(context.Background()); !errors.Is(err, ErrNetwork) {
		t.Fatalf("连接失败应返回 ErrNetwork, 实际 %v", err)
	}
}
