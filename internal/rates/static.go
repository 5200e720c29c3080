// internal/rates/static.go
package rates

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"finflow-ledger/internal/util"
)

// Static is a fixed rate table keyed by "FROM:TO".
type Static map[string]float64

// ParseStatic reads a table written as "USD:EUR=0.9,EUR:USD=1.11".
func ParseStatic(spec string) (Static, error) {
	table := Static{}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pair, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("static rate %q: missing '='", entry)
		}
		from, to, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(pair)), ":")
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("static rate %q: pair must look like USD:EUR", entry)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("static rate %q: invalid rate", entry)
		}
		table.Set(from, to, rate)
	}
	return table, nil
}

// Set stores the from->to rate.
func (s Static) Set(from, to string, rate float64) {
	s[from+":"+to] = rate
}

// GetRate returns the stored rate or util.ErrUnsupportedCurrency.
func (s Static) GetRate(_ context.Context, from, to string) (float64, error) {
	if from == to {
		return 1.0, nil
	}
	rate, ok := s[from+":"+to]
	if !ok {
		return 0, fmt.Errorf("no static rate for %s/%s: %w", from, to, util.ErrUnsupportedCurrency)
	}
	return rate, nil
}
