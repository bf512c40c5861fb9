package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "caesarbot",
		Usage: "Solana launchpad, wallet and market-data gateway CLI",
		Description: `A command-line tool for the caesarbot proxy.

Most commands call the proxy over HTTP and print its {success, data, error, timestamp}
envelope as JSON. Use --jq to reshape the output. The db commands talk to Postgres directly.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			priceCommands(),
			walletCommands(),
			swapCommands(),
			statsCommands(),
			uploadCommands(),
			dbCommands(),
			scheduleCommands(),
			streamCommands(),
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Aliases: []string{"s"},
				Usage:   "Proxy server URL",
				EnvVars: []string{"CAESARBOT_SERVER_URL", "SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression applied to the JSON output",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Per-request timeout",
				EnvVars: []string{"HTTP_TIMEOUT"},
				Value:   30 * time.Second,
			},
			&cli.IntFlag{
				Name:    "retries",
				Usage:   "Attempts per request when the proxy is unreachable",
				EnvVars: []string{"RETRY_ATTEMPTS"},
				Value:   1,
			},
			&cli.DurationFlag{
				Name:    "retry-delay",
				Usage:   "Linear backoff unit between attempts",
				EnvVars: []string{"RETRY_BASE_DELAY"},
				Value:   time.Second,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log requests to stderr",
			},
		},
	}
}
