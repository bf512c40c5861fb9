package birdeye

// PriceRecord is a token's current price as reported by the price feed.
type PriceRecord struct {
	Address        string  `json:"address"`
	Value          float64 `json:"value"`
	PriceChange24h float64 `json:"price_change_24h"`
	Liquidity      float64 `json:"liquidity"`
	MarketCap      float64 `json:"market_cap"`
	UpdateUnixTime int64   `json:"update_unix_time"`
}

// Candle is one OHLCV bucket.
type Candle struct {
	UnixTime int64   `json:"unix_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// TrendingToken is one row of the provider-ranked token list.
type TrendingToken struct {
	Address           string  `json:"address"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Decimals          int     `json:"decimals"`
	Price             float64 `json:"price"`
	Volume24hUSD      float64 `json:"volume_24h_usd"`
	Volume24hChange   float64 `json:"volume_24h_change_percent"`
	PriceChange24h    float64 `json:"price_change_24h_percent"`
	MarketCap         float64 `json:"market_cap"`
	Liquidity         float64 `json:"liquidity"`
	LastTradeUnixTime int64   `json:"last_trade_unix_time"`
}

// Provider wire formats.

type priceData struct {
	Value          float64 `json:"value"`
	UpdateUnixTime int64   `json:"updateUnixTime"`
	PriceChange24h float64 `json:"priceChange24h"`
	Liquidity      float64 `json:"liquidity"`
	MarketCap      float64 `json:"marketCap"`
}

type priceResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    *priceData `json:"data"`
}

type multiPriceResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Data    map[string]*priceData `json:"data"`
}

type ohlcvItem struct {
	UnixTime int64   `json:"unixTime"`
	O        float64 `json:"o"`
	H        float64 `json:"h"`
	L        float64 `json:"l"`
	C        float64 `json:"c"`
	V        float64 `json:"v"`
}

type ohlcvResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		Items []ohlcvItem `json:"items"`
	} `json:"data"`
}

type tokenListItem struct {
	Address           string  `json:"address"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Decimals          int     `json:"decimals"`
	Price             float64 `json:"price"`
	V24hUSD           float64 `json:"v24hUSD"`
	V24hChangePercent float64 `json:"v24hChangePercent"`
	PriceChange24h    float64 `json:"priceChange24hPercent"`
	MC                float64 `json:"mc"`
	Liquidity         float64 `json:"liquidity"`
	LastTradeUnixTime int64   `json:"lastTradeUnixTime"`
}

type tokenListResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		Tokens []tokenListItem `json:"tokens"`
	} `json:"data"`
}

func (d *priceData) toRecord(address string) *PriceRecord {
	return &PriceRecord{
		Address:        address,
		Value:          d.Value,
		PriceChange24h: d.PriceChange24h,
		Liquidity:      d.Liquidity,
		MarketCap:      d.MarketCap,
		UpdateUnixTime: d.UpdateUnixTime,
	}
}
