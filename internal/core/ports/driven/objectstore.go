package driven

import "context"

// ObjectStore abstracts the durable object storage holding the
// authoritative dataset: partitioned parquet files, the partition
// manifest, and replica snapshots. Implementations must return
// domain.ErrObjectNotFound (possibly wrapped) from Get when a key does
// not exist. All calls may block on the network; callers own deadlines
// and retries.
type ObjectStore interface {
	// Put writes data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads the object at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Copy duplicates the object at src to dst within the store.
	// Used for the write-to-temp-then-publish pattern.
	Copy(ctx context.Context, src, dst string) error

	// Delete removes the object at key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
