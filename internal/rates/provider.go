// internal/rates/provider.go
package rates

import "context"

// Provider resolves the rate that converts one unit of from into to at the
// current instant. Failures are util.ErrRateUnavailable (transient) or
// util.ErrUnsupportedCurrency (permanent).
type Provider interface {
	GetRate(ctx context.Context, from, to string) (float64, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, from, to string) (float64, error)

// GetRate calls f.
func (f ProviderFunc) GetRate(ctx context.Context, from, to string) (float64, error) {
	return f(ctx, from, to)
}
