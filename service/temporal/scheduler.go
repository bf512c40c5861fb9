package temporal

import (
	"context"
	"time"
)

// Scheduler manages Temporal schedules for wallet snapshot polling.
// Each wallet gets its own schedule that triggers the PollWalletSnapshotWorkflow.
type Scheduler interface {
	// UpsertSnapshotSchedule creates the schedule for a wallet, or updates
	// its interval when one already exists.
	UpsertSnapshotSchedule(ctx context.Context, address string, interval time.Duration) error

	// DeleteSnapshotSchedule deletes the schedule for a wallet.
	// This stops the wallet from being polled.
	DeleteSnapshotSchedule(ctx context.Context, address string) error
}

// SchedulePrefix starts every wallet snapshot schedule ID.
const SchedulePrefix = "snapshot-wallet-"

// ScheduleID returns the Temporal schedule ID for a wallet address.
func ScheduleID(address string) string {
	return SchedulePrefix + address
}
