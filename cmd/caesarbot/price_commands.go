package main

import (
	"context"

	"github.com/brojonat/caesarbot/service/birdeye"
	"github.com/brojonat/caesarbot/service/dexscreener"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/rugcheck"
	"github.com/urfave/cli/v2"
)

func priceCommands() *cli.Command {
	return &cli.Command{
		Name:  "price",
		Usage: "Token price and market commands",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Get a token's current price",
				ArgsUsage: "<mint>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "token mint"); err != nil {
						return err
					}
					mint := c.Args().First()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[*birdeye.PriceRecord], error) {
						return newClient(c).GetPrice(ctx, mint)
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:      "multi",
				Usage:     "Get prices for several tokens",
				ArgsUsage: "<mint> [mint...]",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("at least one token mint is required", 1)
					}
					mints := c.Args().Slice()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[map[string]*birdeye.PriceRecord], error) {
						return newClient(c).GetMultiPrice(ctx, mints)
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:  "trending",
				Usage: "List trending tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sort-by", Usage: "Sort key (default v24hUSD)"},
					&cli.StringFlag{Name: "sort-type", Usage: "Sort direction (asc, desc)"},
					&cli.IntFlag{Name: "offset", Value: 0},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
				},
				Action: func(c *cli.Context) error {
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[[]birdeye.TrendingToken], error) {
						return newClient(c).GetTrending(ctx, c.String("sort-by"), c.String("sort-type"), c.Int("offset"), c.Int("limit"))
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:      "report",
				Usage:     "Get a token's risk report summary",
				ArgsUsage: "<mint>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "token mint"); err != nil {
						return err
					}
					mint := c.Args().First()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[*rugcheck.ReportSummary], error) {
						return newClient(c).GetReport(ctx, mint)
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:      "pairs",
				Usage:     "List a token's trading pairs",
				ArgsUsage: "<mint>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "token mint"); err != nil {
						return err
					}
					mint := c.Args().First()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[[]dexscreener.Pair], error) {
						return newClient(c).GetPairs(ctx, mint)
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
