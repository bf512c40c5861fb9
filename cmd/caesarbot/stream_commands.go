package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brojonat/caesarbot/client"
	natspkg "github.com/brojonat/caesarbot/service/nats"
	"github.com/brojonat/caesarbot/service/pumpportal"
	"github.com/brojonat/caesarbot/service/realtime"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func streamCommands() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Follow live change events and launch feeds",
		Subcommands: []*cli.Command{
			sseStreamCommand("stats", client.StreamStats, "Stream a wallet's stats changes via SSE"),
			sseStreamCommand("snapshots", client.StreamSnapshots, "Stream a wallet's polled snapshots via SSE"),
			launchesCommand(),
			busCommand(),
		},
	}
}

func sseStreamCommand(name, stream, usage string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<address>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "filter",
				Usage: "Server-side jq predicate on the changed record (e.g. '.xp > 100')",
			},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "wallet address"); err != nil {
				return err
			}
			emit, err := newLineEmitter(c)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			fmt.Fprintf(os.Stderr, "Connected. Streaming %s events (Ctrl+C to stop)...\n", name)
			return newClient(c).StreamChanges(ctx, stream, c.Args().First(), c.String("filter"),
				func(event *natspkg.ChangeEvent) error {
					return emit(event)
				})
		},
	}
}

func launchesCommand() *cli.Command {
	return &cli.Command{
		Name:  "launches",
		Usage: "Stream new token launches and trades from the launchpad feed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "ws-url",
				Usage:   "Launch feed websocket URL",
				EnvVars: []string{"PUMPPORTAL_WS_URL"},
				Value:   pumpportal.DefaultFeedURL,
			},
			&cli.BoolFlag{Name: "no-new-tokens", Usage: "Skip token creation events"},
			&cli.StringSliceFlag{Name: "token", Usage: "Also stream trades for this mint (repeatable)"},
			&cli.StringSliceFlag{Name: "account", Usage: "Also stream trades by this wallet (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			sub := pumpportal.Subscription{
				NewTokens:     !c.Bool("no-new-tokens"),
				TokenTrades:   c.StringSlice("token"),
				AccountTrades: c.StringSlice("account"),
			}
			if !sub.NewTokens && len(sub.TokenTrades) == 0 && len(sub.AccountTrades) == 0 {
				return cli.Exit("nothing to subscribe to", 1)
			}
			emit, err := newLineEmitter(c)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			feed := pumpportal.NewFeed(c.String("ws-url"), nil, newLogger(c))
			return feed.Stream(ctx, sub, func(event pumpportal.LaunchEvent) {
				if err := emit(event); err != nil {
					fmt.Fprintf(os.Stderr, "Error writing event: %v\n", err)
				}
			})
		},
	}
}

// busCommand reads change events straight off NATS, bypassing the proxy.
func busCommand() *cli.Command {
	return &cli.Command{
		Name:      "bus",
		Usage:     "Subscribe to change events on the NATS bus",
		ArgsUsage: "[address]",
		Description: `Without an address, events for every wallet on the table are printed.

Example:
  caesarbot stream bus --table wallet_snapshots 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:  "table",
				Usage: "Table to follow (user_stats, mission_progress, wallet_snapshots)",
				Value: realtime.TableUserStats,
			},
		},
		Action: func(c *cli.Context) error {
			emit, err := newLineEmitter(c)
			if err != nil {
				return err
			}

			bus, err := natspkg.NewBus(c.String("nats-url"), nil, newLogger(c))
			if err != nil {
				return err
			}
			defer bus.Close()

			subject := natspkg.ChangeSubject(c.String("table"), c.Args().First())
			sub, err := bus.SubscribeChanges(subject, func(event *natspkg.ChangeEvent) {
				if err := emit(event); err != nil {
					fmt.Fprintf(os.Stderr, "Error writing event: %v\n", err)
				}
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			fmt.Fprintf(os.Stderr, "Subscribed to %s (Ctrl+C to stop)...\n", subject)
			ctx, cancel := signalContext(c.Context)
			defer cancel()
			<-ctx.Done()
			return nil
		},
	}
}

// newLineEmitter returns a writer of one compact JSON document per line,
// reshaped by --jq when set.
func newLineEmitter(c *cli.Context) (func(v any) error, error) {
	var code *gojq.Code
	if expr := c.String("jq"); expr != "" {
		var err error
		if code, err = compileJQ(expr); err != nil {
			return nil, err
		}
	}
	enc := json.NewEncoder(stdout)
	return func(v any) error {
		if code == nil {
			return enc.Encode(v)
		}
		input, err := toJQInput(v)
		if err != nil {
			return err
		}
		iter := code.Run(input)
		for {
			out, ok := iter.Next()
			if !ok {
				return nil
			}
			if err, isErr := out.(error); isErr {
				return fmt.Errorf("jq filter error: %w", err)
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
	}, nil
}

// signalContext is cancelled on interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
