package helius

import (
	"context"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// RPCClient is the subset of Solana JSON-RPC the adapter needs.
// This allows us to mock the RPC layer in tests without hitting real nodes.
type RPCClient interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)

	// RPCCallForInto issues an arbitrary method (the DAS extensions) and
	// decodes the result into out.
	RPCCallForInto(ctx context.Context, out any, method string, params []any) error
}

// realRPCClient adapts the solana-go RPC client to our RPCClient interface.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates an RPCClient for rpcURL. Helius authenticates RPC by
// query parameter, so the key is part of the URL:
// https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
//
// A nil httpClient keeps solana-go's default transport.
func NewRPCClient(rpcURL string, httpClient *http.Client) RPCClient {
	if httpClient == nil {
		return &realRPCClient{client: rpc.New(rpcURL)}
	}
	jsonClient := jsonrpc.NewClientWithOpts(rpcURL, &jsonrpc.RPCClientOpts{HTTPClient: httpClient})
	return &realRPCClient{client: rpc.NewWithCustomRPCClient(jsonClient)}
}

func (r *realRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return r.client.GetBalance(ctx, account, commitment)
}

func (r *realRPCClient) RPCCallForInto(ctx context.Context, out any, method string, params []any) error {
	return r.client.RPCCallForInto(ctx, out, method, params)
}
