// internal/rates/http.go
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"finflow-ledger/internal/util"
)

// HTTPProvider prices currency pairs against an exchangerate-api v6 compatible
// endpoint: GET {baseURL}/{apiKey}/pair/{from}/{to}.
type HTTPProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// pairResponse is the v6 pair conversion payload.
type pairResponse struct {
	Result         string  `json:"result"`
	BaseCode       string  `json:"base_code"`
	TargetCode     string  `json:"target_code"`
	ConversionRate float64 `json:"conversion_rate"`
	ErrorType      string  `json:"error-type,omitempty"`
}

// NewHTTPProvider creates a provider talking to baseURL.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "rates_http")),
	}
}

// GetRate fetches the live from->to rate.
func (p *HTTPProvider) GetRate(ctx context.Context, from, to string) (float64, error) {
	url := fmt.Sprintf("%s/%s/pair/%s/%s", p.baseURL, p.apiKey, from, to)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("Exchange rate request failed", "from", from, "to", to, "error", err)
		return 0, fmt.Errorf("failed to make request: %v: %w", err, util.ErrRateUnavailable)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("API returned status %d: %s: %w", resp.StatusCode, string(body), util.ErrRateUnavailable)
	}

	var apiResp pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return 0, fmt.Errorf("failed to decode response (status %d): %v: %w", resp.StatusCode, err, util.ErrRateUnavailable)
	}

	if apiResp.Result != "success" {
		if apiResp.ErrorType == "unsupported-code" {
			return 0, fmt.Errorf("API rejected pair %s/%s: %w", from, to, util.ErrUnsupportedCurrency)
		}
		return 0, fmt.Errorf("API returned result=%s error-type=%s: %w", apiResp.Result, apiResp.ErrorType, util.ErrRateUnavailable)
	}

	p.logger.Debug("Fetched exchange rate", "from", from, "to", to, "rate", apiResp.ConversionRate)
	return apiResp.ConversionRate, nil
}

var _ Provider = (*HTTPProvider)(nil)
