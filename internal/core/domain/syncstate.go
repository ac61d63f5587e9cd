package domain

import "time"

// SyncState is process-local bookkeeping for the sync engine and the
// refresher. It is initialised at startup from a restored snapshot (or
// empty) and mutated only under the owner's lock; readers observe it
// indirectly through StoreStats.
type SyncState struct {
	// LastBackupAt is when the replica was last backed up.
	LastBackupAt time.Time

	// LastRestoreAt is when the replica was last restored.
	LastRestoreAt time.Time

	// LastRefreshAt is when a refresh cycle last promoted a standby.
	LastRefreshAt time.Time

	// ActiveSnapshot is the version of the snapshot the replica was
	// restored from, or the last one backed up.
	ActiveSnapshot string

	// MergedPartitions is the set of partition keys already merged
	// into the active replica. Refresh cycles only pull keys outside
	// this set.
	MergedPartitions map[string]bool
}

// CycleResult records the outcome of one refresh cycle.
type CycleResult struct {
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Merged lists the partition keys merged this cycle.
	Merged []string `json:"merged,omitempty"`

	// Skipped lists partition keys that exhausted their pull retries
	// and will be retried next cycle.
	Skipped []string `json:"skipped,omitempty"`

	// RowCount is the promoted replica's row count. Zero if the cycle
	// did not promote.
	RowCount int64 `json:"row_count"`

	// Success is true if the cycle completed and promoted (or had
	// nothing to do).
	Success bool `json:"success"`

	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`
}
