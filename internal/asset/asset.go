package asset

import (
	"fmt"
	"strings"
)

// ID identifies a tracked asset. It doubles as the key for all per-asset state.
type ID string

const (
	// EquityIndex tracks the S&P 500 through the SPY proxy.
	EquityIndex ID = "sp500"
	// Crypto tracks Bitcoin.
	Crypto ID = "bitcoin"
)

var displayNames = map[ID]string{
	EquityIndex: "S&P 500",
	Crypto:      "Bitcoin",
}

// All returns every supported asset in a stable order.
func All() []ID {
	return []ID{EquityIndex, Crypto}
}

// Parse maps a config or flag value onto a supported asset.
func Parse(s string) (ID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sp500", "spy", "equity", "equityindex":
		return EquityIndex, nil
	case "bitcoin", "btc", "crypto":
		return Crypto, nil
	}
	return "", fmt.Errorf("unsupported asset %q", s)
}

// ParseList parses a list of asset keys, dropping duplicates.
func ParseList(values []string) ([]ID, error) {
	seen := make(map[ID]struct{}, len(values))
	ids := make([]ID, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		id, err := Parse(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// DisplayName is the human readable name used in logs and notifications.
func (id ID) DisplayName() string {
	if name, ok := displayNames[id]; ok {
		return name
	}
	return string(id)
}

func (id ID) String() string {
	return string(id)
}
