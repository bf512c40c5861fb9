package pumpportal

// Feed subscription methods.
const (
	MethodSubscribeNewToken     = "subscribeNewToken"
	MethodSubscribeTokenTrade   = "subscribeTokenTrade"
	MethodSubscribeAccountTrade = "subscribeAccountTrade"
)

// Subscription selects the feed streams to receive. NewTokens enables launch
// events; TokenTrades and AccountTrades add trade events for the given mints
// and wallets.
type Subscription struct {
	NewTokens     bool
	TokenTrades   []string
	AccountTrades []string
}

// LaunchEvent is one message from the feed. TxType is "create" for token
// launches and "buy" or "sell" for trades.
type LaunchEvent struct {
	Signature             string  `json:"signature"`
	Mint                  string  `json:"mint"`
	TraderPublicKey       string  `json:"traderPublicKey"`
	TxType                string  `json:"txType"`
	Name                  string  `json:"name,omitempty"`
	Symbol                string  `json:"symbol,omitempty"`
	URI                   string  `json:"uri,omitempty"`
	InitialBuy            float64 `json:"initialBuy,omitempty"`
	TokenAmount           float64 `json:"tokenAmount,omitempty"`
	SolAmount             float64 `json:"solAmount"`
	BondingCurveKey       string  `json:"bondingCurveKey"`
	VTokensInBondingCurve float64 `json:"vTokensInBondingCurve"`
	VSolInBondingCurve    float64 `json:"vSolInBondingCurve"`
	MarketCapSol          float64 `json:"marketCapSol"`
	Pool                  string  `json:"pool,omitempty"`
}

// TradeParams describes an unsigned trade to build.
type TradeParams struct {
	PublicKey        string  `json:"publicKey" validate:"required,solana_pubkey"`
	Action           string  `json:"action" validate:"oneof=buy sell"`
	Mint             string  `json:"mint" validate:"required,solana_pubkey"`
	Amount           float64 `json:"amount" validate:"gt=0"`
	DenominatedInSol bool    `json:"denominatedInSol,string"`
	Slippage         float64 `json:"slippage" validate:"min=0,max=100"`
	PriorityFee      float64 `json:"priorityFee" validate:"min=0"`
	Pool             string  `json:"pool,omitempty" validate:"omitempty,oneof=pump raydium pump-amm launchlab raydium-cpmm bonk auto"`
}

// TradeTransaction is an unsigned serialized transaction, base64-encoded.
type TradeTransaction struct {
	Transaction string `json:"transaction"`
}

type subscribeMessage struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}
