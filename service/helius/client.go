// Package helius adapts Helius (Solana JSON-RPC, DAS and the REST indexer) to
// the gateway envelope.
package helius

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

const (
	// DefaultRPCURL is the Helius mainnet RPC endpoint; the API key is appended.
	DefaultRPCURL = "https://mainnet.helius-rpc.com"
	// DefaultAPIURL is the Helius REST indexer.
	DefaultAPIURL = "https://api.helius.xyz"

	// LamportsPerSOL converts lamports to SOL.
	LamportsPerSOL = 1e9

	// MaxTransactionLimit is the most transactions the indexer returns per call.
	MaxTransactionLimit = 100

	defaultSearchLimit = 100
)

// Config holds the Helius endpoints and credentials.
type Config struct {
	APIKey string
	// RPCURL overrides DefaultRPCURL. When set it must already carry the key.
	RPCURL string
	APIURL string
	// RPC replaces the solana-go client, mainly for tests.
	RPC        RPCClient
	HTTPClient *http.Client
}

// Client reads wallet and chain state.
type Client struct {
	rpc      RPCClient
	provider *gateway.Provider
	rest     *gateway.Requester
	// secrets are masked out of RPC error text, which embeds the endpoint URL.
	secrets []string
}

// NewClient creates a Helius client. An empty API key is a configuration error.
func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("helius: %w", gateway.ErrMissingAPIKey)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}

	rpcURL := cfg.RPCURL
	if rpcURL == "" {
		rpcURL = DefaultRPCURL + "/?api-key=" + url.QueryEscape(cfg.APIKey)
	}
	rpcClient := cfg.RPC
	if rpcClient == nil {
		rpcClient = NewRPCClient(rpcURL, cfg.HTTPClient)
	}

	provider := gateway.NewProvider("helius", m, logger)
	return &Client{
		rpc:      rpcClient,
		provider: provider,
		rest: gateway.NewRequester("helius", cfg.APIURL,
			gateway.WithHTTPClient(cfg.HTTPClient),
			gateway.WithQueryParam("api-key", cfg.APIKey),
			gateway.WithRequesterMetrics(m),
			gateway.WithRequesterLogger(provider.Logger()),
		),
		secrets: rpcSecrets(cfg.APIKey, rpcURL),
	}, nil
}

// rpcSecrets lists the strings that must never leave the process: the key in
// raw and escaped form, and the RPC URL's query string.
func rpcSecrets(apiKey, rpcURL string) []string {
	secrets := []string{apiKey, url.QueryEscape(apiKey)}
	if u, err := url.Parse(rpcURL); err == nil && u.RawQuery != "" {
		secrets = append(secrets, u.RawQuery)
	}
	return secrets
}

func (c *Client) redact(err error) error {
	return gateway.Redact(err, c.secrets...)
}

// GetNativeBalance returns the wallet's SOL balance (lamports / 1e9).
func (c *Client) GetNativeBalance(ctx context.Context, address string) gateway.Envelope[float64] {
	return gateway.Invoke(ctx, c.provider, "get_balance", func(ctx context.Context) (float64, error) {
		pubkey, err := parseAddress(address)
		if err != nil {
			return 0, err
		}
		out, err := c.rpc.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
		if err != nil {
			return 0, c.redact(err)
		}
		return float64(out.Value) / LamportsPerSOL, nil
	})
}

// GetTokenAccounts returns the wallet's SPL token holdings.
func (c *Client) GetTokenAccounts(ctx context.Context, address string) gateway.Envelope[[]TokenAccount] {
	return gateway.Invoke(ctx, c.provider, "get_token_accounts", func(ctx context.Context) ([]TokenAccount, error) {
		if _, err := parseAddress(address); err != nil {
			return nil, err
		}

		var resp balancesResponse
		if err := c.rest.GetJSON(ctx, "/v0/addresses/"+address+"/balances", nil, &resp); err != nil {
			return nil, err
		}

		accounts := make([]TokenAccount, 0, len(resp.Tokens))
		for _, t := range resp.Tokens {
			accounts = append(accounts, TokenAccount{
				Mint:         t.Mint,
				Amount:       t.Amount,
				Decimals:     t.Decimals,
				TokenAccount: t.TokenAccount,
				UIAmount:     UIAmount(t.Amount, t.Decimals),
			})
		}
		return accounts, nil
	})
}

// GetTransactionHistory returns the most recent parsed transactions for a
// wallet. limit is clamped to 1..100; there is no pagination.
func (c *Client) GetTransactionHistory(ctx context.Context, address string, limit int) gateway.Envelope[[]Transaction] {
	return gateway.Invoke(ctx, c.provider, "get_transactions", func(ctx context.Context) ([]Transaction, error) {
		if _, err := parseAddress(address); err != nil {
			return nil, err
		}

		q := url.Values{}
		q.Set("limit", strconv.Itoa(ClampLimit(limit)))

		var txs []Transaction
		if err := c.rest.GetJSON(ctx, "/v0/addresses/"+address+"/transactions", q, &txs); err != nil {
			return nil, err
		}
		if txs == nil {
			txs = []Transaction{}
		}
		return txs, nil
	})
}

// GetAsset looks up a single DAS asset by id (mint address).
func (c *Client) GetAsset(ctx context.Context, id string) gateway.Envelope[*Asset] {
	return gateway.Invoke(ctx, c.provider, "get_asset", func(ctx context.Context) (*Asset, error) {
		if _, err := parseAddress(id); err != nil {
			return nil, err
		}
		var asset Asset
		if err := c.rpc.RPCCallForInto(ctx, &asset, "getAsset", []any{map[string]any{"id": id}}); err != nil {
			return nil, c.redact(err)
		}
		return &asset, nil
	})
}

// SearchAssets lists the assets held by owner, including fungible tokens.
// Pages start at 1.
func (c *Client) SearchAssets(ctx context.Context, owner string, page, limit int) gateway.Envelope[*AssetPage] {
	return gateway.Invoke(ctx, c.provider, "search_assets", func(ctx context.Context) (*AssetPage, error) {
		if _, err := parseAddress(owner); err != nil {
			return nil, err
		}
		if page < 1 {
			page = 1
		}
		if limit <= 0 || limit > defaultSearchLimit {
			limit = defaultSearchLimit
		}

		params := map[string]any{
			"ownerAddress": owner,
			"page":         page,
			"limit":        limit,
			"tokenType":    "all",
		}
		var out AssetPage
		if err := c.rpc.RPCCallForInto(ctx, &out, "searchAssets", []any{params}); err != nil {
			return nil, c.redact(err)
		}
		return &out, nil
	})
}

// GetSnapshot fetches the native balance and token holdings concurrently.
// Neither half waits on or fails the other.
func (c *Client) GetSnapshot(ctx context.Context, address string) Snapshot {
	snap := Snapshot{Address: address}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		snap.Native = c.GetNativeBalance(ctx, address)
	}()
	go func() {
		defer wg.Done()
		snap.Tokens = c.GetTokenAccounts(ctx, address)
	}()
	wg.Wait()

	return snap
}

// ClampLimit bounds a transaction history limit to 1..MaxTransactionLimit.
func ClampLimit(limit int) int {
	return max(1, min(limit, MaxTransactionLimit))
}

// UIAmount converts a raw token amount into its decimal-adjusted value.
func UIAmount(amount uint64, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

func parseAddress(address string) (solana.PublicKey, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, gateway.InvalidRequest(fmt.Errorf("invalid address %q: %w", address, err))
	}
	return pubkey, nil
}
