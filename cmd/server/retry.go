package main

import (
	"context"
	"time"

	"github.com/brojonat/caesarbot/service/birdeye"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/metrics"
	"github.com/brojonat/caesarbot/service/server"
)

// retryingPrices retries the idempotent single-token price reads on transient
// provider failures. Batch and list reads pass straight through.
type retryingPrices struct {
	server.PriceService
	attempts  int
	baseDelay time.Duration
	metrics   *metrics.Metrics
}

func (p *retryingPrices) GetPrice(ctx context.Context, address string) gateway.Envelope[*birdeye.PriceRecord] {
	return gateway.RetryEnvelope(ctx, func(ctx context.Context) gateway.Envelope[*birdeye.PriceRecord] {
		return p.PriceService.GetPrice(ctx, address)
	}, p.options("get_price")...)
}

func (p *retryingPrices) GetOHLCV(ctx context.Context, address, timeframe string, from, to *time.Time) gateway.Envelope[[]birdeye.Candle] {
	return gateway.RetryEnvelope(ctx, func(ctx context.Context) gateway.Envelope[[]birdeye.Candle] {
		return p.PriceService.GetOHLCV(ctx, address, timeframe, from, to)
	}, p.options("get_ohlcv")...)
}

func (p *retryingPrices) options(op string) []gateway.RetryOption {
	return []gateway.RetryOption{
		gateway.WithMaxAttempts(p.attempts),
		gateway.WithBaseDelay(p.baseDelay),
		gateway.WithRetryMetrics(p.metrics, op),
	}
}
