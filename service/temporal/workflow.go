package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// PollWalletSnapshotWorkflow captures one snapshot of a wallet's holdings.
// It is triggered by a Temporal schedule at a configured interval.
//
// The native balance and token holdings are fetched concurrently. A snapshot
// with one side missing is still recorded; if both sides fail there is nothing
// to record and the workflow fails.
func PollWalletSnapshotWorkflow(ctx workflow.Context, input PollWalletSnapshotInput) (*WalletSnapshot, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("PollWalletSnapshotWorkflow started", "address", input.Address)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	snapshot := &WalletSnapshot{
		Address:  input.Address,
		PolledAt: workflow.Now(ctx),
	}
	fetch := FetchInput{Address: input.Address}

	nativeFuture := workflow.ExecuteActivity(ctx, a.FetchNativeBalance, fetch)
	tokensFuture := workflow.ExecuteActivity(ctx, a.FetchTokenAccounts, fetch)

	var native *FetchNativeBalanceResult
	if err := nativeFuture.Get(ctx, &native); err != nil {
		logger.Warn("native balance unavailable", "address", input.Address, "error", err)
		msg := err.Error()
		snapshot.NativeError = &msg
	} else {
		snapshot.NativeBalance = &native.Balance
	}

	var tokens *FetchTokenAccountsResult
	if err := tokensFuture.Get(ctx, &tokens); err != nil {
		logger.Warn("token accounts unavailable", "address", input.Address, "error", err)
		msg := err.Error()
		snapshot.TokensError = &msg
	} else {
		snapshot.Tokens = tokens.Tokens
	}

	if snapshot.NativeError != nil && snapshot.TokensError != nil {
		return snapshot, fmt.Errorf("wallet %s: native: %s; tokens: %s",
			input.Address, *snapshot.NativeError, *snapshot.TokensError)
	}

	if err := workflow.ExecuteActivity(ctx, a.RecordSnapshot, RecordSnapshotInput{Snapshot: *snapshot}).Get(ctx, nil); err != nil {
		logger.Error("failed to record snapshot", "address", input.Address, "error", err)
		return snapshot, fmt.Errorf("failed to record snapshot: %w", err)
	}

	logger.Info("PollWalletSnapshotWorkflow completed",
		"address", input.Address,
		"token_count", len(snapshot.Tokens),
		"complete", snapshot.Complete(),
	)
	return snapshot, nil
}
