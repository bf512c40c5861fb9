package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/brojonat/caesarbot/client"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelError
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, newLogger(c))
}

// call runs fn with the request timeout, retrying transport failures. Failure
// envelopes are answers, not transport failures, so they are never retried here.
func call[T any](c *cli.Context, fn func(ctx context.Context) (gateway.Envelope[T], error)) (gateway.Envelope[T], error) {
	return gateway.WithRetry(c.Context, func(ctx context.Context) (gateway.Envelope[T], error) {
		ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
		defer cancel()
		return fn(ctx)
	}, gateway.WithMaxAttempts(c.Int("retries")), gateway.WithBaseDelay(c.Duration("retry-delay")))
}

// printEnvelope writes the envelope and turns a failure envelope into a
// non-zero exit.
func printEnvelope[T any](c *cli.Context, env gateway.Envelope[T]) error {
	if err := outputJSON(c, env); err != nil {
		return err
	}
	if !env.Success {
		_, err := env.Result()
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// outputJSON writes v as indented JSON, or the results of the --jq
// expression applied to it.
func outputJSON(c *cli.Context, v any) error {
	expr := c.String("jq")
	if expr == "" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	code, err := compileJQ(expr)
	if err != nil {
		return err
	}
	input, err := toJQInput(v)
	if err != nil {
		return err
	}
	return runJQ(code, input, stdout)
}

func compileJQ(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return code, nil
}

// toJQInput round-trips v through JSON so gojq sees plain maps and slices.
func toJQInput(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	return out, nil
}

func runJQ(code *gojq.Code, input any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("jq filter error: %w", err)
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
}

func requireArgs(c *cli.Context, n int, what string) error {
	if c.NArg() != n {
		return fmt.Errorf("requires exactly %d argument(s): %s", n, what)
	}
	return nil
}
