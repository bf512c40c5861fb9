package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/caesarbot/service/db"
	"github.com/jackc/pgx/v5"
	"github.com/urfave/cli/v2"
)

func dbCommands() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Database migration and inspection commands",
		Subcommands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply all pending migrations",
				Action: func(c *cli.Context) error {
					dsn, err := databaseURL(c)
					if err != nil {
						return err
					}
					if err := db.Migrate(c.Context, dsn); err != nil {
						return err
					}
					fmt.Fprintln(os.Stderr, "migrations applied")
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "Roll back the most recent migration",
				Action: func(c *cli.Context) error {
					dsn, err := databaseURL(c)
					if err != nil {
						return err
					}
					return db.MigrateDown(c.Context, dsn)
				},
			},
			{
				Name:  "status",
				Usage: "Show migration status",
				Action: func(c *cli.Context) error {
					dsn, err := databaseURL(c)
					if err != nil {
						return err
					}
					return db.MigrateStatus(c.Context, dsn)
				},
			},
			{
				Name:      "get-stats",
				Usage:     "Read a wallet's stats row directly",
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					store, closer, err := getStore(c)
					if err != nil {
						return err
					}
					defer closer()

					stats, err := store.GetUserStats(c.Context, c.Args().First())
					if errors.Is(err, pgx.ErrNoRows) {
						return cli.Exit("no stats for wallet", 1)
					}
					if err != nil {
						return fmt.Errorf("failed to get stats: %w", err)
					}
					return outputJSON(c, stats)
				},
			},
			{
				Name:  "top",
				Usage: "List the top stats rows by xp",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10},
					&cli.BoolFlag{Name: "table", Aliases: []string{"t"}, Usage: "Print a table instead of JSON"},
				},
				Action: func(c *cli.Context) error {
					store, closer, err := getStore(c)
					if err != nil {
						return err
					}
					defer closer()

					rows, err := store.ListTopUserStats(c.Context, int32(c.Int("limit")))
					if err != nil {
						return fmt.Errorf("failed to list stats: %w", err)
					}
					if !c.Bool("table") {
						return outputJSON(c, rows)
					}

					w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "RANK\tWALLET\tXP\tTIER\tTRADES\tVOLUME\tLAST ACTIVITY")
					for i, row := range rows {
						fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\t%s\t%s\n",
							i+1,
							row.WalletAddress,
							row.XP,
							row.RankTier,
							row.TotalTrades,
							row.TotalVolume.StringFixed(2),
							row.LastActivity.Format(time.RFC3339),
						)
					}
					w.Flush()

					fmt.Fprintf(os.Stderr, "\nTotal: %d wallets\n", len(rows))
					return nil
				},
			},
			{
				Name:      "missions",
				Usage:     "List a wallet's mission progress rows",
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					store, closer, err := getStore(c)
					if err != nil {
						return err
					}
					defer closer()

					rows, err := store.ListMissionProgress(c.Context, c.Args().First())
					if err != nil {
						return fmt.Errorf("failed to list mission progress: %w", err)
					}
					return outputJSON(c, rows)
				},
			},
		},
	}
}

func databaseURL(c *cli.Context) (string, error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return "", fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	return dbURL, nil
}

// getStore connects to the database named by --database-url.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dsn, err := databaseURL(c)
	if err != nil {
		return nil, nil, err
	}

	pool, err := db.NewPool(c.Context, dsn)
	if err != nil {
		return nil, nil, err
	}

	return db.NewStore(pool, nil), pool.Close, nil
}
