// Package rugcheck adapts the RugCheck token risk reports.
package rugcheck

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/metrics"
)

// DefaultBaseURL is the public RugCheck API.
const DefaultBaseURL = "https://api.rugcheck.xyz"

// Risk is one finding in a report.
type Risk struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Score       int    `json:"score"`
	Level       string `json:"level"`
}

// ReportSummary is the provider's scored summary of a token. Scoring happens
// upstream; nothing here interprets it.
type ReportSummary struct {
	Mint            string  `json:"mint"`
	TokenProgram    string  `json:"tokenProgram"`
	TokenType       string  `json:"tokenType"`
	Risks           []Risk  `json:"risks"`
	Score           int     `json:"score"`
	ScoreNormalised int     `json:"score_normalised"`
	LPLockedPct     float64 `json:"lpLockedPct"`
}

// Client fetches risk reports.
type Client struct {
	provider *gateway.Provider
	req      *gateway.Requester
}

// NewClient creates a RugCheck client. The summary endpoint needs no key.
func NewClient(baseURL string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	provider := gateway.NewProvider("rugcheck", m, logger)
	return &Client{
		provider: provider,
		req: gateway.NewRequester("rugcheck", baseURL,
			gateway.WithHTTPClient(httpClient),
			gateway.WithRequesterMetrics(m),
			gateway.WithRequesterLogger(provider.Logger()),
		),
	}
}

// GetReportSummary returns the risk summary for mint.
func (c *Client) GetReportSummary(ctx context.Context, mint string) gateway.Envelope[*ReportSummary] {
	return gateway.Invoke(ctx, c.provider, "report_summary", func(ctx context.Context) (*ReportSummary, error) {
		var report ReportSummary
		if err := c.req.GetJSON(ctx, "/v1/tokens/"+url.PathEscape(mint)+"/report/summary", nil, &report); err != nil {
			return nil, err
		}
		report.Mint = mint
		if report.Risks == nil {
			report.Risks = []Risk{}
		}
		return &report, nil
	})
}
