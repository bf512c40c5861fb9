package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/pumpfun"
	"github.com/urfave/cli/v2"
)

func uploadCommands() *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Pin token launch content",
		Subcommands: []*cli.Command{
			{
				Name:      "image",
				Usage:     "Upload a token image",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "image file"); err != nil {
						return err
					}
					path := c.Args().First()
					// Read once so retries resend the same bytes.
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("failed to read image: %w", err)
					}
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[*pumpfun.UploadResult], error) {
						return newClient(c).UploadImage(ctx, filepath.Base(path), bytes.NewReader(data))
					})
					if err != nil {
						return err
					}
					return printEnvelope(c, env)
				},
			},
			{
				Name:  "metadata",
				Usage: "Upload a token metadata document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "symbol", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "image", Usage: "Image URI from 'upload image'"},
					&cli.StringFlag{Name: "twitter"},
					&cli.StringFlag{Name: "telegram"},
					&cli.StringFlag{Name: "website"},
					&cli.BoolFlag{Name: "show-name", Value: true},
				},
				Action: func(c *cli.Context) error {
					metadata := pumpfun.TokenMetadata{
						Name:        c.String("name"),
						Symbol:      c.String("symbol"),
						Description: c.String("description"),
						Image:       c.String("image"),
						Twitter:     c.String("twitter"),
						Telegram:    c.String("telegram"),
						Website:     c.String("website"),
						ShowName:    c.Bool("show-name"),
					}
					env, err := call(c, func(ctx context.Context) (gateway.Envelope[*pumpfun.UploadResult], error) {
						return newClient(c).UploadMetadata(ctx, metadata)
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
