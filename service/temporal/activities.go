package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/helius"
	"github.com/brojonat/caesarbot/service/metrics"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// PollWalletSnapshotInput identifies the wallet a schedule polls.
type PollWalletSnapshotInput struct {
	Address string `json:"address"`
}

// WalletSnapshot is the point-in-time holdings of a wallet. A side that could
// not be fetched carries its error message instead of data.
type WalletSnapshot struct {
	Address       string                `json:"wallet_address"`
	NativeBalance *float64              `json:"native_balance,omitempty"`
	Tokens        []helius.TokenAccount `json:"tokens,omitempty"`
	NativeError   *string               `json:"native_error,omitempty"`
	TokensError   *string               `json:"tokens_error,omitempty"`
	PolledAt      time.Time             `json:"polled_at"`
}

// Complete reports whether both sides of the snapshot were fetched.
func (s *WalletSnapshot) Complete() bool {
	return s.NativeError == nil && s.TokensError == nil
}

// FetchInput contains parameters for the fetch activities.
type FetchInput struct {
	Address string `json:"address"`
}

// FetchNativeBalanceResult contains the native balance in whole SOL.
type FetchNativeBalanceResult struct {
	Balance float64 `json:"balance"`
}

// FetchTokenAccountsResult contains the wallet's token holdings.
type FetchTokenAccountsResult struct {
	Tokens []helius.TokenAccount `json:"tokens"`
}

// RecordSnapshotInput contains the snapshot to publish.
type RecordSnapshotInput struct {
	Snapshot WalletSnapshot `json:"snapshot"`
}

// WalletReader defines the chain-state reads needed by activities.
// This allows for easy mocking in tests.
type WalletReader interface {
	GetNativeBalance(ctx context.Context, address string) gateway.Envelope[float64]
	GetTokenAccounts(ctx context.Context, address string) gateway.Envelope[[]helius.TokenAccount]
}

// SnapshotPublisher defines where recorded snapshots go.
// This allows for easy mocking in tests.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, wallet string, snapshot any) error
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	wallets   WalletReader
	publisher SnapshotPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(wallets WalletReader, publisher SnapshotPublisher, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		wallets:   wallets,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// FetchNativeBalance reads the wallet's native balance.
func (a *Activities) FetchNativeBalance(ctx context.Context, input FetchInput) (*FetchNativeBalanceResult, error) {
	defer a.observe("FetchNativeBalance", time.Now())

	env := a.wallets.GetNativeBalance(ctx, input.Address)
	if err := activityError(env.Error); err != nil {
		a.logger.WarnContext(ctx, "native balance fetch failed",
			"address", input.Address,
			"error", err,
		)
		return nil, err
	}
	return &FetchNativeBalanceResult{Balance: env.Data}, nil
}

// FetchTokenAccounts reads the wallet's token holdings.
func (a *Activities) FetchTokenAccounts(ctx context.Context, input FetchInput) (*FetchTokenAccountsResult, error) {
	defer a.observe("FetchTokenAccounts", time.Now())

	env := a.wallets.GetTokenAccounts(ctx, input.Address)
	if err := activityError(env.Error); err != nil {
		a.logger.WarnContext(ctx, "token accounts fetch failed",
			"address", input.Address,
			"error", err,
		)
		return nil, err
	}
	return &FetchTokenAccountsResult{Tokens: env.Data}, nil
}

// RecordSnapshot publishes the snapshot on the wallet_snapshots change stream.
func (a *Activities) RecordSnapshot(ctx context.Context, input RecordSnapshotInput) error {
	defer a.observe("RecordSnapshot", time.Now())

	if err := a.publisher.PublishSnapshot(ctx, input.Snapshot.Address, input.Snapshot); err != nil {
		a.logger.ErrorContext(ctx, "failed to record snapshot",
			"address", input.Snapshot.Address,
			"error", err,
		)
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	status := "complete"
	if !input.Snapshot.Complete() {
		status = "partial"
	}
	// PolledAt is the workflow start, so this covers the whole poll.
	if a.metrics != nil && !input.Snapshot.PolledAt.IsZero() {
		a.metrics.RecordWorkflowDuration(status, time.Since(input.Snapshot.PolledAt).Seconds())
	}

	a.logger.DebugContext(ctx, "recorded snapshot",
		"address", input.Snapshot.Address,
		"tokens", len(input.Snapshot.Tokens),
		"status", status,
	)
	return nil
}

func (a *Activities) observe(activity string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, time.Since(start).Seconds())
	}
}

// activityError converts a failed envelope into an activity error. Invalid
// requests will fail the same way on every attempt, so they are not retried.
func activityError(e *gateway.Error) error {
	if e == nil {
		return nil
	}
	if e.Code == gateway.CodeInvalidRequest {
		return temporalsdk.NewNonRetryableApplicationError(e.Message, e.Code, e)
	}
	return temporalsdk.NewApplicationError(e.Message, e.Code)
}
