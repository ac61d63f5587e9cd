package services

import (
	"sync"
	"time"

	"github.com/veridian-labs/newsvault/internal/core/domain"
)

// StateTracker owns the process-local SyncState behind one mutex. The
// sync engine and refresher mutate it; readers take copies. It is the
// only shared mutable sync metadata in the process — no ambient
// globals.
type StateTracker struct {
	mu    sync.Mutex
	state domain.SyncState
}

// NewStateTracker creates an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{
		state: domain.SyncState{MergedPartitions: make(map[string]bool)},
	}
}

// Snapshot returns a copy of the current state.
func (t *StateTracker) Snapshot() domain.SyncState {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := t.state
	cp.MergedPartitions = make(map[string]bool, len(t.state.MergedPartitions))
	for k, v := range t.state.MergedPartitions {
		cp.MergedPartitions[k] = v
	}
	return cp
}

// MarkBackup records a completed backup.
func (t *StateTracker) MarkBackup(version string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.LastBackupAt = at
	t.state.ActiveSnapshot = version
}

// MarkRestore records a completed restore.
func (t *StateTracker) MarkRestore(version string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.LastRestoreAt = at
	t.state.ActiveSnapshot = version
}

// MarkRefresh records a promoted refresh cycle and the partitions it
// merged.
func (t *StateTracker) MarkRefresh(merged []string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.LastRefreshAt = at
	for _, p := range merged {
		t.state.MergedPartitions[p] = true
	}
}

// LastRefreshAt returns the time of the last successful refresh.
func (t *StateTracker) LastRefreshAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.LastRefreshAt
}

// Unmerged filters keys down to those not yet merged into the active
// replica.
func (t *StateTracker) Unmerged(keys []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, k := range keys {
		if !t.state.MergedPartitions[k] {
			out = append(out, k)
		}
	}
	return out
}
