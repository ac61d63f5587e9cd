// Package cli wires the newsvault commands: serve, export, backup,
// restore, refresh and version.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/veridian-labs/newsvault/internal/adapters/driven/config/file"
	memstore "github.com/veridian-labs/newsvault/internal/adapters/driven/objectstore/memory"
	s3store "github.com/veridian-labs/newsvault/internal/adapters/driven/objectstore/s3"
	"github.com/veridian-labs/newsvault/internal/adapters/driven/storage/sqlite"
	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driven"
	"github.com/veridian-labs/newsvault/internal/core/services"
	"github.com/veridian-labs/newsvault/internal/logger"
)

// app holds the wired services shared by the commands.
type app struct {
	cfg      file.Config
	store    driven.ObjectStore
	factory  *sqlite.Factory
	state    *services.StateTracker
	engine   *services.SyncEngine
	exporter *services.Exporter
}

// newApp loads configuration and constructs the service graph.
func newApp(ctx context.Context) (*app, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = file.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := file.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var store driven.ObjectStore
	switch cfg.Storage.Backend {
	case "s3":
		store, err = s3store.NewStore(ctx, s3store.Options{
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			PathStyle: cfg.Storage.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to s3: %w", err)
		}
	default:
		store = memstore.NewStore()
	}

	factory, err := sqlite.NewFactory(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("creating replica factory: %w", err)
	}

	state := services.NewStateTracker()
	return &app{
		cfg:      cfg,
		store:    store,
		factory:  factory,
		state:    state,
		engine:   services.NewSyncEngine(store, factory, state, cfg.Storage.Prefix, cfg.Snapshot.Retention),
		exporter: services.NewExporter(store, cfg.Storage.Prefix),
	}, nil
}

// openReplica restores the latest snapshot, falling back to an empty
// replica at first-ever startup.
func (a *app) openReplica(ctx context.Context) (driven.ArticleStore, error) {
	replica, meta, err := a.engine.Restore(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			logger.Info("No snapshot found, starting empty")
			return a.factory.Empty(ctx)
		}
		return nil, fmt.Errorf("restoring snapshot: %w", err)
	}
	logger.Info("Restored snapshot %s", meta.Version)
	return replica, nil
}

// refreshConfig maps file configuration onto the refresher.
func (a *app) refreshConfig() services.RefreshConfig {
	return services.RefreshConfig{
		Interval:      a.cfg.Refresh.Interval.Std(),
		RetryAttempts: a.cfg.Refresh.RetryAttempts,
		BackoffBase:   a.cfg.Refresh.BackoffBase.Std(),
		RowFloor:      a.cfg.Refresh.RowFloor,
		CycleTimeout:  a.cfg.Refresh.Timeout.Std(),
		Concurrency:   a.cfg.Refresh.Concurrency,
	}
}
