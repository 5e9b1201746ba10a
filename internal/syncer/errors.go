package syncer

import "errors"

var (
	// ErrSyncInProgress is returned when a cycle is triggered while another
	// one is already running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNoNetwork is returned when the connectivity monitor reports the
	// network as unreachable.
	ErrNoNetwork = errors.New("no network connection")

	// ErrRemoteUnreachable is returned when the network is up but the remote
	// store itself does not answer the reachability probe.
	ErrRemoteUnreachable = errors.New("remote store unreachable")

	// ErrCycleTimeout is returned when the cycle exceeded its time budget.
	// Entries not yet marked synced are left untouched for the next cycle.
	ErrCycleTimeout = errors.New("sync cycle timed out")

	// ErrNotSyncable marks operations whose entity type has no remote apply
	// routine; they stay pending for manual reconciliation.
	ErrNotSyncable = errors.New("operation not auto-syncable")
)
