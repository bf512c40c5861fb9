package main

import (
	"context"

	"github.com/brojonat/caesarbot/client"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/helius"
	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet state and snapshot schedule commands",
		Subcommands: []*cli.Command{
			{
				Name:      "balance",
				Usage:     "Get a wallet's SOL balance",
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					address := c.Args().First()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[float64], error) {
						return newClient(c).GetBalance(ctx, address)
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:      "tokens",
				Usage:     "List a wallet's token holdings",
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					address := c.Args().First()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[[]helius.TokenAccount], error) {
						return newClient(c).GetTokenAccounts(ctx, address)
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:      "transactions",
				Usage:     "List a wallet's parsed transactions",
				Aliases:   []string{"txs"},
				ArgsUsage: "<address>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					address := c.Args().First()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[[]helius.Transaction], error) {
						return newClient(c).GetTransactions(ctx, address, c.Int("limit"))
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:      "snapshot",
				Usage:     "Get a wallet's balance and holdings together",
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					address := c.Args().First()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[helius.Snapshot], error) {
						return newClient(c).GetSnapshot(ctx, address)
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:      "watch",
				Usage:     "Poll a wallet's snapshot on a schedule",
				ArgsUsage: "<address>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Usage:   "Poll interval (server default when unset)",
					},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					address := c.Args().First()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[client.WatchResult], error) {
						return newClient(c).Watch(ctx, address, c.Duration("interval"))
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:      "unwatch",
				Usage:     "Stop polling a wallet",
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					address := c.Args().First()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[client.WatchResult], error) {
						return newClient(c).Unwatch(ctx, address)
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
