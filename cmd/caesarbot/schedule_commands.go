package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/caesarbot/service/temporal"
	"github.com/urfave/cli/v2"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

func scheduleCommands() *cli.Command {
	return &cli.Command{
		Name:  "schedules",
		Usage: "Inspect and manage wallet snapshot schedules in Temporal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Usage:   "List wallet snapshot schedules",
				Aliases: []string{"ls"},
				Action: func(c *cli.Context) error {
					temporalClient, err := getTemporalClient(c)
					if err != nil {
						return err
					}
					defer temporalClient.Close()

					iter, err := temporalClient.ScheduleClient().List(c.Context, client.ScheduleListOptions{
						PageSize: 100,
					})
					if err != nil {
						return fmt.Errorf("failed to list schedules: %w", err)
					}

					w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "WALLET\tPAUSED\tNEXT RUN")
					count := 0
					for iter.HasNext() {
						schedule, err := iter.Next()
						if err != nil {
							return fmt.Errorf("failed to iterate schedules: %w", err)
						}
						wallet, ok := strings.CutPrefix(schedule.ID, temporal.SchedulePrefix)
						if !ok {
							continue
						}
						next := "-"
						if len(schedule.NextActionTimes) > 0 {
							next = schedule.NextActionTimes[0].Format(time.RFC3339)
						}
						fmt.Fprintf(w, "%s\t%v\t%s\n", wallet, schedule.Paused, next)
						count++
					}
					w.Flush()

					fmt.Fprintf(os.Stderr, "\nTotal: %d wallets\n", count)
					return nil
				},
			},
			{
				Name:      "describe",
				Usage:     "Describe a wallet's snapshot schedule",
				Aliases:   []string{"desc"},
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "wallet address"); err != nil {
						return err
					}
					temporalClient, err := getTemporalClient(c)
					if err != nil {
						return err
					}
					defer temporalClient.Close()

					id := temporal.ScheduleID(c.Args().First())
					desc, err := temporalClient.ScheduleClient().GetHandle(c.Context, id).Describe(c.Context)
					if err != nil {
						return fmt.Errorf("failed to describe schedule: %w", err)
					}

					fmt.Fprintf(stdout, "Schedule ID:    %s\n", id)
					fmt.Fprintf(stdout, "Paused:         %v\n", desc.Schedule.State.Paused)
					if note := desc.Schedule.State.Note; note != "" {
						fmt.Fprintf(stdout, "Note:           %s\n", note)
					}
					for _, interval := range desc.Schedule.Spec.Intervals {
						fmt.Fprintf(stdout, "Every:          %v\n", interval.Every)
					}
					fmt.Fprintf(stdout, "Recent Actions: %d\n", len(desc.Info.RecentActions))
					if n := len(desc.Info.RecentActions); n > 0 {
						fmt.Fprintf(stdout, "Last Action:    %s\n", desc.Info.RecentActions[n-1].ActualTime.Format(time.RFC3339))
					}
					return nil
				},
			},
			{
				Name:      "pause",
				Usage:     "Pause a wallet's snapshot schedule",
				ArgsUsage: "<address>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "note", Value: "Paused via caesarbot CLI"},
				},
				Action: func(c *cli.Context) error {
					return withScheduleHandle(c, func(ctx context.Context, h client.ScheduleHandle) error {
						return h.Pause(ctx, client.SchedulePauseOptions{Note: c.String("note")})
					}, "paused")
				},
			},
			{
				Name:      "resume",
				Usage:     "Resume a paused wallet snapshot schedule",
				ArgsUsage: "<address>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "note", Value: "Resumed via caesarbot CLI"},
				},
				Action: func(c *cli.Context) error {
					return withScheduleHandle(c, func(ctx context.Context, h client.ScheduleHandle) error {
						return h.Unpause(ctx, client.ScheduleUnpauseOptions{Note: c.String("note")})
					}, "resumed")
				},
			},
			{
				Name:      "trigger",
				Usage:     "Take a snapshot of a wallet now",
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					return withScheduleHandle(c, func(ctx context.Context, h client.ScheduleHandle) error {
						return h.Trigger(ctx, client.ScheduleTriggerOptions{})
					}, "triggered")
				},
			},
		},
	}
}

func withScheduleHandle(c *cli.Context, fn func(context.Context, client.ScheduleHandle) error, verb string) error {
	if err := requireArgs(c, 1, "wallet address"); err != nil {
		return err
	}
	temporalClient, err := getTemporalClient(c)
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	id := temporal.ScheduleID(c.Args().First())
	if err := fn(c.Context, temporalClient.ScheduleClient().GetHandle(c.Context, id)); err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	fmt.Fprintf(stdout, "✓ Schedule %s: %s\n", verb, id)
	return nil
}

// getTemporalClient connects to the Temporal server named by the group flags.
func getTemporalClient(c *cli.Context) (client.Client, error) {
	temporalClient, err := client.Dial(client.Options{
		HostPort:  c.String("temporal-host"),
		Namespace: c.String("temporal-namespace"),
		Logger:    log.NewStructuredLogger(newLogger(c)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}
	return temporalClient, nil
}
