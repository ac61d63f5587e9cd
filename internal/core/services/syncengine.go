package services

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driven"
	"github.com/veridian-labs/newsvault/internal/logger"
)

// SyncEngine backs the replica up to object storage as versioned
// snapshots and restores it from them. Snapshots are published with a
// write-then-pointer pattern: the blob is written first, and the
// "latest" pointer object only after the blob write is confirmed, so
// readers never see a half-written snapshot.
type SyncEngine struct {
	store     driven.ObjectStore
	factory   driven.StoreFactory
	state     *StateTracker
	prefix    string
	retention int

	// mu serialises backup against restore; both contend on the
	// latest pointer. Refresh cycles may run concurrently with either.
	mu sync.Mutex

	now func() time.Time
}

// NewSyncEngine creates a sync engine. retention is the number of
// snapshot versions kept after each backup; zero keeps all.
func NewSyncEngine(store driven.ObjectStore, factory driven.StoreFactory, state *StateTracker, prefix string, retention int) *SyncEngine {
	return &SyncEngine{
		store:     store,
		factory:   factory,
		state:     state,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

// Backup serializes the replica into a new snapshot version and
// publishes it as latest.
func (e *SyncEngine) Backup(ctx context.Context, replica driven.ArticleStore) (*domain.SnapshotMeta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := replica.Serialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("serializing replica: %w", err)
	}
	rows, err := replica.RowCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}

	now := e.now().UTC()
	sum := sha256.Sum256(payload)
	meta := domain.SnapshotMeta{
		Version:   domain.NewSnapshotVersion(now),
		CreatedAt: now,
		RowCount:  rows,
		Checksum:  hex.EncodeToString(sum[:]),
	}

	blob, err := encodeSnapshot(meta, payload)
	if err != nil {
		return nil, err
	}

	if err := e.store.Put(ctx, snapshotKey(e.prefix, meta.Version), blob); err != nil {
		return nil, domain.Transient("snapshot put "+meta.Version, err)
	}
	// Publish the pointer only after the blob write is confirmed.
	if err := e.store.Put(ctx, latestKey(e.prefix), []byte(meta.Version)); err != nil {
		return nil, domain.Transient("latest pointer put", err)
	}

	e.state.MarkBackup(meta.Version, now)
	logger.Info("Backed up %d rows as snapshot %s", rows, meta.Version)

	if err := e.prune(ctx, meta.Version); err != nil {
		// Pruning failure never fails a completed backup.
		logger.Warn("Snapshot pruning failed: %v", err)
	}
	return &meta, nil
}

// Restore loads the snapshot named by the latest pointer into a fresh
// replica. It never mutates an active store; the caller decides
// whether to promote the returned one.
func (e *SyncEngine) Restore(ctx context.Context) (driven.ArticleStore, *domain.SnapshotMeta, error) {
	return e.RestoreVersion(ctx, "")
}

// RestoreVersion loads an explicit snapshot version; an empty version
// resolves through the latest pointer.
func (e *SyncEngine) RestoreVersion(ctx context.Context, version string) (driven.ArticleStore, *domain.SnapshotMeta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if version == "" {
		data, err := e.store.Get(ctx, latestKey(e.prefix))
		if err != nil {
			if errors.Is(err, domain.ErrObjectNotFound) {
				return nil, nil, domain.ErrSnapshotNotFound
			}
			return nil, nil, domain.Transient("latest pointer get", err)
		}
		version = strings.TrimSpace(string(data))
	}

	blob, err := e.store.Get(ctx, snapshotKey(e.prefix, version))
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("version %s: %w", version, domain.ErrSnapshotNotFound)
		}
		return nil, nil, domain.Transient("snapshot get "+version, err)
	}

	meta, payload, err := decodeSnapshot(blob)
	if err != nil {
		return nil, nil, err
	}

	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != meta.Checksum {
		return nil, nil, fmt.Errorf("version %s: %w", version, domain.ErrSnapshotCorrupt)
	}

	replica, err := e.factory.FromBytes(ctx, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("loading snapshot %s: %w", version, err)
	}

	e.state.MarkRestore(meta.Version, e.now().UTC())
	logger.Info("Restored snapshot %s (%d rows)", meta.Version, meta.RowCount)
	return replica, &meta, nil
}

// Versions lists available snapshot versions, oldest first.
func (e *SyncEngine) Versions(ctx context.Context) ([]string, error) {
	keys, err := e.store.List(ctx, joinKey(e.prefix, "_snapshots")+"/")
	if err != nil {
		return nil, domain.Transient("snapshot list", err)
	}
	var versions []string
	for _, k := range keys {
		base := k[strings.LastIndex(k, "/")+1:]
		if v, ok := strings.CutSuffix(base, ".snapshot"); ok {
			versions = append(versions, v)
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// prune removes the oldest snapshots beyond the retention count. The
// just-published version is never pruned.
func (e *SyncEngine) prune(ctx context.Context, keep string) error {
	if e.retention <= 0 {
		return nil
	}
	versions, err := e.Versions(ctx)
	if err != nil {
		return err
	}
	excess := len(versions) - e.retention
	for _, v := range versions {
		if excess <= 0 {
			break
		}
		if v == keep {
			continue
		}
		if err := e.store.Delete(ctx, snapshotKey(e.prefix, v)); err != nil {
			return err
		}
		logger.Debug("Pruned snapshot %s", v)
		excess--
	}
	return nil
}

// Snapshot blob framing: a 4-byte big-endian header length, the JSON
// SnapshotMeta header, then the raw payload.

func encodeSnapshot(meta domain.SnapshotMeta, payload []byte) ([]byte, error) {
	header, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot header: %w", err)
	}
	blob := make([]byte, 4, 4+len(header)+len(payload))
	binary.BigEndian.PutUint32(blob, uint32(len(header)))
	blob = append(blob, header...)
	blob = append(blob, payload...)
	return blob, nil
}

func decodeSnapshot(blob []byte) (domain.SnapshotMeta, []byte, error) {
	if len(blob) < 4 {
		return domain.SnapshotMeta{}, nil, domain.ErrSnapshotCorrupt
	}
	headerLen := binary.BigEndian.Uint32(blob)
	if int(headerLen) > len(blob)-4 {
		return domain.SnapshotMeta{}, nil, domain.ErrSnapshotCorrupt
	}
	var meta domain.SnapshotMeta
	if err := json.Unmarshal(blob[4:4+headerLen], &meta); err != nil {
		return domain.SnapshotMeta{}, nil, domain.ErrSnapshotCorrupt
	}
	return meta, blob[4+headerLen:], nil
}
