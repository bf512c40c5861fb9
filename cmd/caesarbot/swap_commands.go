package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/jupiter"
	"github.com/brojonat/caesarbot/service/pumpportal"
	"github.com/urfave/cli/v2"
)

func swapCommands() *cli.Command {
	return &cli.Command{
		Name:  "swap",
		Usage: "Swap quote and unsigned transaction commands",
		Subcommands: []*cli.Command{
			{
				Name:  "quote",
				Usage: "Get a swap quote",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Usage: "Input mint", Required: true},
					&cli.StringFlag{Name: "out", Usage: "Output mint", Required: true},
					&cli.Uint64Flag{Name: "amount", Usage: "Amount in base units", Required: true},
					&cli.IntFlag{Name: "slippage-bps", Value: 50},
					&cli.StringFlag{Name: "mode", Usage: "ExactIn or ExactOut", Value: "ExactIn"},
				},
				Action: func(c *cli.Context) error {
					params := jupiter.QuoteParams{
						InputMint:   c.String("in"),
						OutputMint:  c.String("out"),
						Amount:      c.Uint64("amount"),
						SlippageBps: c.Int("slippage-bps"),
						SwapMode:    c.String("mode"),
					}
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[*jupiter.Quote], error) {
						return newClient(c).GetQuote(ctx, params)
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:      "transaction",
				Usage:     "Build the unsigned swap transaction for a quote",
				ArgsUsage: "<quote.json>",
				Description: `Reads a quote as printed by "caesarbot swap quote --jq .data" from the
given file, or from stdin when the file is "-".`,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "wallet", Aliases: []string{"w"}, Usage: "Signing wallet", Required: true},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "quote file"); err != nil {
						return err
					}
					quote, err := readQuote(c.Args().First())
					if err != nil {
						return err
					}
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[*jupiter.SwapTransaction], error) {
						return newClient(c).GetSwapTransaction(ctx, quote, c.String("wallet"))
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:  "pump",
				Usage: "Build an unsigned launchpad buy or sell",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "wallet", Aliases: []string{"w"}, Usage: "Signing wallet", Required: true},
					&cli.StringFlag{Name: "action", Usage: "buy or sell", Value: "buy"},
					&cli.StringFlag{Name: "mint", Usage: "Token mint", Required: true},
					&cli.Float64Flag{Name: "amount", Usage: "Amount to trade", Required: true},
					&cli.BoolFlag{Name: "sol", Usage: "Amount is denominated in SOL"},
					&cli.Float64Flag{Name: "slippage", Usage: "Slippage percent", Value: 10},
					&cli.Float64Flag{Name: "priority-fee", Usage: "Priority fee in SOL", Value: 0.00001},
					&cli.StringFlag{Name: "pool", Usage: "Pool (pump, raydium, auto, ...)"},
				},
				Action: func(c *cli.Context) error {
					params := pumpportal.TradeParams{
						PublicKey:        c.String("wallet"),
						Action:           c.String("action"),
						Mint:             c.String("mint"),
						Amount:           c.Float64("amount"),
						DenominatedInSol: c.Bool("sol"),
						Slippage:         c.Float64("slippage"),
						PriorityFee:      c.Float64("priority-fee"),
						Pool:             c.String("pool"),
					}
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[*pumpportal.TradeTransaction], error) {
						return newClient(c).GetTradeTransaction(ctx, params)
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
		},
	}
}

func readQuote(path string) (*jupiter.Quote, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open quote: %w", err)
		}
		defer f.Close()
	}
	var quote jupiter.Quote
	if err := json.NewDecoder(f).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	return &quote, nil
}
