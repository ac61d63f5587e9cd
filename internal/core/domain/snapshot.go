package domain

import "time"

// SnapshotVersionLayout formats snapshot versions as UTC timestamps
// with microsecond resolution, so lexical order equals creation order.
const SnapshotVersionLayout = "20060102T150405.000000"

// SnapshotMeta is the metadata header embedded in a snapshot blob.
type SnapshotMeta struct {
	// Version identifies the snapshot. Versions sort lexically in
	// creation order.
	Version string `json:"version"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`

	// RowCount is the number of articles in the serialized replica.
	RowCount int64 `json:"row_count"`

	// Checksum is the hex SHA-256 of the snapshot payload. Restore
	// verifies it before loading.
	Checksum string `json:"checksum"`
}

// NewSnapshotVersion derives a version string from a timestamp.
func NewSnapshotVersion(t time.Time) string {
	return t.UTC().Format(SnapshotVersionLayout)
}
