package main

import (
	"context"
	"fmt"

	"github.com/brojonat/caesarbot/service/db"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/realtime"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func statsCommands() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "User stats and leaderboard commands",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Get a wallet's stats",
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					address := c.Args().First()
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[*db.UserStats], error) {
						return newClient(c).GetUserStats(ctx, address)
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:      "set",
				Usage:     "Update a wallet's stats; unset flags keep their stored value",
				ArgsUsage: "<address>",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "trades"},
					&cli.StringFlag{Name: "volume", Usage: "Total volume (decimal)"},
					&cli.StringFlag{Name: "pnl", Usage: "Total PnL (decimal)"},
					&cli.Int64Flag{Name: "launched"},
					&cli.Int64Flag{Name: "missions"},
					&cli.Int64Flag{Name: "xp"},
					&cli.StringFlag{Name: "tier"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					params, err := statsParamsFromFlags(c)
					if err != nil {
						return err
					}
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[*db.UserStats], error) {
						return newClient(c).UpsertUserStats(ctx, params)
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:  "leaderboard",
				Usage: "List the top wallets by xp",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10},
				},
				Action: func(c *cli.Context) error {
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[[]realtime.LeaderboardEntry], error) {
						return newClient(c).GetLeaderboard(ctx, c.Int("limit"))
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

// statsParamsFromFlags builds a partial update from the flags that were set.
func statsParamsFromFlags(c *cli.Context) (db.UpsertUserStatsParams, error) {
	params := db.UpsertUserStatsParams{WalletAddress: c.Args().First()}

	ints := map[string]**int64{
		"trades":   &params.TotalTrades,
		"launched": &params.TokensLaunched,
		"missions": &params.MissionsCompleted,
		"xp":       &params.XP,
	}
	for name, dst := range ints {
		if c.IsSet(name) {
			v := c.Int64(name)
			*dst = &v
		}
	}

	decimals := map[string]**decimal.Decimal{
		"volume": &params.TotalVolume,
		"pnl":    &params.TotalPnL,
	}
	for name, dst := range decimals {
		if !c.IsSet(name) {
			continue
		}
		v, err := decimal.NewFromString(c.String(name))
		if err != nil {
			return params, fmt.Errorf("invalid --%s: %w", name, err)
		}
		*dst = &v
	}

	if c.IsSet("tier") {
		tier := c.String("tier")
		params.RankTier = &tier
	}
	return params, nil
}
