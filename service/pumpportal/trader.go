package pumpportal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/metrics"
)

// DefaultAPIURL is the PumpPortal REST root.
const DefaultAPIURL = "https://pumpportal.fun/api"

// Trader builds unsigned trade transactions. Signing and submission are out
// of scope.
type Trader struct {
	provider *gateway.Provider
	req      *gateway.Requester
}

// NewTrader creates a Trader. The local-transaction endpoint needs no key.
func NewTrader(baseURL string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Trader {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	provider := gateway.NewProvider("pumpportal", m, logger)
	return &Trader{
		provider: provider,
		req: gateway.NewRequester("pumpportal", baseURL,
			gateway.WithHTTPClient(httpClient),
			gateway.WithRequesterMetrics(m),
			gateway.WithRequesterLogger(provider.Logger()),
		),
	}
}

// GetTradeTransaction returns the serialized unsigned transaction for params.
func (t *Trader) GetTradeTransaction(ctx context.Context, params TradeParams) gateway.Envelope[*TradeTransaction] {
	return gateway.Invoke(ctx, t.provider, "trade_local", func(ctx context.Context) (*TradeTransaction, error) {
		if err := gateway.Validate(params); err != nil {
			return nil, err
		}
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal trade: %w", err)
		}

		body, err := t.req.Do(ctx, http.MethodPost, "/trade-local", nil, bytes.NewReader(payload), "application/json")
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return nil, &gateway.ProviderError{Provider: "pumpportal", Message: "empty transaction"}
		}
		return &TradeTransaction{Transaction: base64.StdEncoding.EncodeToString(body)}, nil
	})
}
