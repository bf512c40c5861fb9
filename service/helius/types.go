package helius

import (
	"encoding/json"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/shopspring/decimal"
)

// TokenAccount is one SPL token holding of a wallet.
type TokenAccount struct {
	Mint         string          `json:"mint"`
	Amount       uint64          `json:"amount"`
	Decimals     int             `json:"decimals"`
	TokenAccount string          `json:"token_account"`
	UIAmount     decimal.Decimal `json:"ui_amount"`
}

// NativeTransfer is a lamport movement inside a parsed transaction.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

// TokenTransfer is an SPL token movement inside a parsed transaction.
type TokenTransfer struct {
	FromTokenAccount string  `json:"fromTokenAccount"`
	ToTokenAccount   string  `json:"toTokenAccount"`
	FromUserAccount  string  `json:"fromUserAccount"`
	ToUserAccount    string  `json:"toUserAccount"`
	Mint             string  `json:"mint"`
	TokenAmount      float64 `json:"tokenAmount"`
	TokenStandard    string  `json:"tokenStandard,omitempty"`
}

// Transaction is the indexer's parsed ("enhanced") transaction record. The
// provider's field names are kept so records can be forwarded unchanged.
type Transaction struct {
	Signature        string           `json:"signature"`
	Slot             uint64           `json:"slot"`
	Timestamp        int64            `json:"timestamp"`
	Type             string           `json:"type"`
	Source           string           `json:"source"`
	Description      string           `json:"description"`
	Fee              int64            `json:"fee"`
	FeePayer         string           `json:"feePayer"`
	NativeTransfers  []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers   []TokenTransfer  `json:"tokenTransfers"`
	TransactionError json.RawMessage  `json:"transactionError,omitempty"`
}

// Asset is a DAS asset. Only commonly used fields are typed; Content and
// Ownership stay raw.
type Asset struct {
	Interface string          `json:"interface"`
	ID        string          `json:"id"`
	Content   json.RawMessage `json:"content,omitempty"`
	Ownership json.RawMessage `json:"ownership,omitempty"`
	Mutable   bool            `json:"mutable"`
	Burnt     bool            `json:"burnt"`
	TokenInfo *AssetTokenInfo `json:"token_info,omitempty"`
}

// AssetTokenInfo holds fungible-token data attached to a DAS asset.
type AssetTokenInfo struct {
	Symbol       string `json:"symbol"`
	Balance      uint64 `json:"balance"`
	Supply       uint64 `json:"supply"`
	Decimals     int    `json:"decimals"`
	TokenProgram string `json:"token_program"`
	PriceInfo    *struct {
		PricePerToken float64 `json:"price_per_token"`
		TotalPrice    float64 `json:"total_price"`
		Currency      string  `json:"currency"`
	} `json:"price_info,omitempty"`
}

// AssetPage is one page of a DAS search.
type AssetPage struct {
	Total int     `json:"total"`
	Limit int     `json:"limit"`
	Page  int     `json:"page"`
	Items []Asset `json:"items"`
}

// Snapshot is a wallet's balance and holdings fetched together. Each half
// carries its own outcome.
type Snapshot struct {
	Address string                           `json:"address"`
	Native  gateway.Envelope[float64]        `json:"native"`
	Tokens  gateway.Envelope[[]TokenAccount] `json:"tokens"`
}

type balancesResponse struct {
	Tokens []struct {
		Mint         string `json:"mint"`
		Amount       uint64 `json:"amount"`
		Decimals     int    `json:"decimals"`
		TokenAccount string `json:"tokenAccount"`
	} `json:"tokens"`
	NativeBalance uint64 `json:"nativeBalance"`
}
