package jupiter

import (
	"encoding/json"
	"time"
)

// Swap modes accepted by the quote endpoint.
const (
	SwapModeExactIn  = "ExactIn"
	SwapModeExactOut = "ExactOut"
)

// QuoteParams describes a quote request. Amounts are raw base units.
type QuoteParams struct {
	InputMint   string `json:"input_mint" validate:"required,solana_pubkey"`
	OutputMint  string `json:"output_mint" validate:"required,solana_pubkey,nefield=InputMint"`
	Amount      uint64 `json:"amount" validate:"gt=0"`
	SlippageBps int    `json:"slippage_bps" validate:"min=0,max=10000"`
	SwapMode    string `json:"swap_mode" validate:"oneof=ExactIn ExactOut"`
}

// SwapInfo is the pool-level detail of one route hop.
type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// RouteHop is one step of a quote's route plan.
type RouteHop struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

// Quote is a swap quote. Field names follow the provider so a quote can be sent
// back to the swap endpoint as-is.
type Quote struct {
	InputMint            string     `json:"inputMint"`
	InAmount             uint64     `json:"inAmount,string"`
	OutputMint           string     `json:"outputMint"`
	OutAmount            uint64     `json:"outAmount,string"`
	OtherAmountThreshold uint64     `json:"otherAmountThreshold,string"`
	SwapMode             string     `json:"swapMode"`
	SlippageBps          int        `json:"slippageBps"`
	PriceImpactPct       string     `json:"priceImpactPct"`
	RoutePlan            []RouteHop `json:"routePlan"`
	ContextSlot          uint64     `json:"contextSlot,omitempty"`
	TimeTaken            float64    `json:"timeTaken,omitempty"`

	// FetchedAt is when this process received the quote.
	FetchedAt time.Time `json:"fetchedAt"`

	// Raw is the provider body, forwarded verbatim when building a swap.
	Raw json.RawMessage `json:"-"`
}

// SwapTransaction is an unsigned, base64-encoded versioned transaction.
type SwapTransaction struct {
	SwapTransaction           string `json:"swapTransaction"`
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports,omitempty"`
}

type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}
