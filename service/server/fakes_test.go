package server

import (
	"context"
	"time"

	"github.com/brojonat/caesarbot/service/birdeye"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/helius"
	"github.com/brojonat/caesarbot/service/jupiter"
	"github.com/brojonat/caesarbot/service/pumpfun"
	"github.com/brojonat/caesarbot/service/pumpportal"
)

type fakePrices struct {
	price     gateway.Envelope[*birdeye.PriceRecord]
	multi     gateway.Envelope[map[string]*birdeye.PriceRecord]
	gotMulti  []string
	gotFrame  string
	gotFrom   *time.Time
	gotTo     *time.Time
	gotLimit  int
	gotOffset int
}

func (f *fakePrices) GetPrice(ctx context.Context, address string) gateway.Envelope[*birdeye.PriceRecord] {
	return f.price
}

func (f *fakePrices) GetMultiPrice(ctx context.Context, addresses []string) gateway.Envelope[map[string]*birdeye.PriceRecord] {
	f.gotMulti = addresses
	return f.multi
}

func (f *fakePrices) GetOHLCV(ctx context.Context, address, timeframe string, from, to *time.Time) gateway.Envelope[[]birdeye.Candle] {
	f.gotFrame, f.gotFrom, f.gotTo = timeframe, from, to
	return gateway.Ok([]birdeye.Candle{})
}

func (f *fakePrices) GetTrending(ctx context.Context, sortKey, direction string, offset, limit int) gateway.Envelope[[]birdeye.TrendingToken] {
	f.gotOffset, f.gotLimit = offset, limit
	return gateway.Ok([]birdeye.TrendingToken{})
}

type fakeWallets struct {
	gotLimit int
}

func (f *fakeWallets) GetNativeBalance(ctx context.Context, address string) gateway.Envelope[float64] {
	return gateway.Ok(2.5)
}

func (f *fakeWallets) GetTokenAccounts(ctx context.Context, address string) gateway.Envelope[[]helius.TokenAccount] {
	return gateway.Ok([]helius.TokenAccount{})
}

func (f *fakeWallets) GetTransactionHistory(ctx context.Context, address string, limit int) gateway.Envelope[[]helius.Transaction] {
	f.gotLimit = limit
	return gateway.Ok([]helius.Transaction{})
}

func (f *fakeWallets) GetAsset(ctx context.Context, id string) gateway.Envelope[*helius.Asset] {
	return gateway.Ok(&helius.Asset{ID: id})
}

func (f *fakeWallets) SearchAssets(ctx context.Context, owner string, page, limit int) gateway.Envelope[*helius.AssetPage] {
	return gateway.Ok(&helius.AssetPage{Page: page})
}

func (f *fakeWallets) GetSnapshot(ctx context.Context, address string) helius.Snapshot {
	return helius.Snapshot{
		Address: address,
		Native:  gateway.Ok(1.0),
		Tokens:  gateway.Fail[[]helius.TokenAccount](&gateway.ProviderError{Provider: "helius", StatusCode: 500, Message: "boom"}),
	}
}

type fakeSwaps struct {
	gotParams jupiter.QuoteParams
	gotQuote  *jupiter.Quote
	gotWallet string
}

func (f *fakeSwaps) GetQuote(ctx context.Context, params jupiter.QuoteParams) gateway.Envelope[*jupiter.Quote] {
	f.gotParams = params
	return gateway.Ok(&jupiter.Quote{InputMint: params.InputMint, OutputMint: params.OutputMint, InAmount: params.Amount})
}

func (f *fakeSwaps) GetSwapTransaction(ctx context.Context, quote *jupiter.Quote, wallet string) gateway.Envelope[*jupiter.SwapTransaction] {
	f.gotQuote, f.gotWallet = quote, wallet
	return gateway.Fail[*jupiter.SwapTransaction](gateway.WithCode(jupiter.ErrQuoteStale, jupiter.CodeQuoteStale))
}

type fakeTrades struct {
	got pumpportal.TradeParams
}

func (f *fakeTrades) GetTradeTransaction(ctx context.Context, params pumpportal.TradeParams) gateway.Envelope[*pumpportal.TradeTransaction] {
	f.got = params
	return gateway.Ok(&pumpportal.TradeTransaction{Transaction: "AQID"})
}

type fakeUploads struct {
	gotData     []byte
	gotFilename string
	gotMeta     pumpfun.TokenMetadata
}

func (f *fakeUploads) UploadImage(ctx context.Context, data []byte, filename string) gateway.Envelope[*pumpfun.UploadResult] {
	f.gotData, f.gotFilename = data, filename
	return gateway.Ok(&pumpfun.UploadResult{IPFS: "ipfs://image"})
}

func (f *fakeUploads) UploadMetadata(ctx context.Context, metadata pumpfun.TokenMetadata) gateway.Envelope[*pumpfun.UploadResult] {
	f.gotMeta = metadata
	return gateway.Ok(&pumpfun.UploadResult{IPFS: "ipfs://meta"})
}

// fakeFeed replays events, then blocks until the stream's context ends.
type fakeFeed struct {
	events []pumpportal.LaunchEvent
	gotSub chan pumpportal.Subscription
}

func (f *fakeFeed) Stream(ctx context.Context, sub pumpportal.Subscription, handler func(pumpportal.LaunchEvent)) error {
	f.gotSub <- sub
	for _, e := range f.events {
		handler(e)
	}
	<-ctx.Done()
	return nil
}
