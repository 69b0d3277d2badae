package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"drawdownwatch/internal/asset"
)

var (
	// ErrNetwork covers transport failures, throttling and upstream 5xx.
	ErrNetwork = errors.New("price source: network error")
	// ErrAuth covers rejected or missing credentials.
	ErrAuth = errors.New("price source: auth error")
	// ErrParse covers payloads that cannot be turned into prices.
	ErrParse = errors.New("price source: parse error")
	// ErrUnsupportedAsset is returned when no provider serves an asset.
	ErrUnsupportedAsset = errors.New("price source: unsupported asset")
)

// PriceSource supplies the trailing daily closes and the latest price of an asset.
type PriceSource interface {
	FetchHistorical(ctx context.Context, id asset.ID) ([]decimal.Decimal, error)
	FetchCurrent(ctx context.Context, id asset.ID) (decimal.Decimal, error)
}

// Provider is a single upstream API bound to one instrument.
type Provider interface {
	Name() string
	Historical(ctx context.Context) ([]decimal.Decimal, error)
	Current(ctx context.Context) (decimal.Decimal, error)
}

func parseErr(provider, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", provider, ErrParse, fmt.Sprintf(format, args...))
}

// classifyResponse maps transport and HTTP failures onto the error taxonomy.
func classifyResponse(provider string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w: %v", provider, ErrNetwork, err)
	}
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return nil
	}

	detail := strings.TrimSpace(string(resp.Body()))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: %w: status %d: %s", provider, ErrAuth, status, detail)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%s: %w: status %d: %s", provider, ErrNetwork, status, detail)
	default:
		return fmt.Errorf("%s: %w: status %d: %s", provider, ErrParse, status, detail)
	}
}

func checkPrice(provider string, p decimal.Decimal) error {
	if p.IsNegative() {
		return parseErr(provider, "negative price %s", p.String())
	}
	return nil
}
