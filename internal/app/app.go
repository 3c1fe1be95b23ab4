// Package app wires the pipeline stages and owns the shared resource
// lifecycle for a run.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/AntonioDavid333/bestiary/internal/aggregate"
	"github.com/AntonioDavid333/bestiary/internal/config"
	"github.com/AntonioDavid333/bestiary/internal/curate"
	"github.com/AntonioDavid333/bestiary/internal/index"
	"github.com/AntonioDavid333/bestiary/internal/ingest"
	"github.com/AntonioDavid333/bestiary/internal/observability"
	"github.com/AntonioDavid333/bestiary/internal/storage"
	"github.com/AntonioDavid333/bestiary/internal/store"
)

// Store names in the snapshot catalog.
const (
	StoreRaw       = "raw"
	StoreCurated   = "curated"
	StoreAnalytics = "analytics"
)

// App owns the three stores and the stage components. The stages run
// strictly in order; no stage starts before its predecessor's replace is
// published.
type App struct {
	cfg *config.Config

	catalog   *store.Catalog
	raw       *store.Store
	curated   *store.Store
	analytics *store.Store

	loader      *ingest.Loader
	transformer *curate.Transformer
	engine      *aggregate.Engine
	indexes     *index.Manager

	archiver *storage.Archiver
	gc       *store.GarbageCollector
	stats    *observability.RunStats
}

// New creates an App with the given configuration, opening the catalog and
// the three stores.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	catalog, err := store.NewCatalog(cfg.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot catalog: %w", err)
	}
	log.Printf("Snapshot catalog initialized: %s", cfg.CatalogPath())

	a := &App{
		cfg:     cfg,
		catalog: catalog,
		stats:   observability.NewRunStats(),
	}

	a.raw, err = store.NewStore(catalog, cfg.SnapshotDir(), StoreRaw, store.WithKeyField("name"))
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("failed to open raw store: %w", err)
	}
	a.curated, err = store.NewStore(catalog, cfg.SnapshotDir(), StoreCurated, store.WithKeyField("name"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open curated store: %w", err)
	}
	a.analytics, err = store.NewStore(catalog, cfg.SnapshotDir(), StoreAnalytics)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open analytics store: %w", err)
	}

	a.loader = ingest.NewLoader(a.raw, a.stats)
	a.transformer = curate.NewTransformer(a.raw, a.curated, a.stats)
	a.engine = aggregate.NewEngine(a.curated, a.analytics, a.stats)
	a.indexes = index.NewManager(a.raw, a.curated)
	a.gc = store.NewGarbageCollector(catalog, cfg.RetentionTTL())

	if cfg.Archive.Enabled {
		objStorage, err := newObjectStorage(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.archiver = storage.NewArchiver(objStorage, cfg.Archive.Concurrency, cfg.Archive.Prefix)
		log.Printf("Snapshot archiver initialized: type=%s", cfg.Storage.Type)
	}

	return a, nil
}

// Run executes the configured stages in pipeline order against the given
// source rows, then archives published snapshots and sweeps expired ones.
func (a *App) Run(ctx context.Context, rows []ingest.Row) error {
	if err := a.indexes.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	if a.cfg.ShouldRunIngest() {
		if _, err := a.loader.Ingest(ctx, rows); err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
	}

	if a.cfg.ShouldRunCurate() {
		if _, err := a.transformer.Curate(ctx); err != nil {
			return fmt.Errorf("curation failed: %w", err)
		}
	}

	if a.cfg.ShouldRunAggregate() {
		if _, err := a.engine.Aggregate(ctx); err != nil {
			return fmt.Errorf("aggregation failed: %w", err)
		}
	}

	a.stats.LogSummary()

	if a.archiver != nil {
		if err := a.archiveSnapshots(ctx); err != nil {
			log.Printf("[WARN] app: snapshot archival failed: %v", err)
		}
	}
	if err := a.gc.CollectGarbage(ctx); err != nil {
		log.Printf("[WARN] app: snapshot GC failed: %v", err)
	}
	return nil
}

// Stores returns the three stores for operator CRUD access.
func (a *App) Stores() (raw, curated, analytics *store.Store) {
	return a.raw, a.curated, a.analytics
}

// Stats returns the run statistics tracker.
func (a *App) Stats() *observability.RunStats {
	return a.stats
}

// archiveSnapshots uploads the current snapshot of every store.
func (a *App) archiveSnapshots(ctx context.Context) error {
	var snapshots []*store.SnapshotRecord
	for _, s := range []*store.Store{a.raw, a.curated, a.analytics} {
		rec, err := s.Snapshot(ctx)
		if err != nil {
			return err
		}
		if rec != nil {
			snapshots = append(snapshots, rec)
		}
	}

	_, err := a.archiver.Archive(ctx, snapshots)
	return err
}

// Close releases the stores and the catalog.
func (a *App) Close() {
	for _, s := range []*store.Store{a.raw, a.curated, a.analytics} {
		if s != nil {
			s.Close()
		}
	}
	if a.catalog != nil {
		a.catalog.Close()
	}
}

// newObjectStorage builds the configured ObjectStorage backend.
func newObjectStorage(cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Storage.Path)
	case "s3":
		return storage.NewS3Storage(context.Background(), cfg.Storage.S3.Bucket, storage.S3Config{
			Region:   cfg.Storage.S3.Region,
			Endpoint: cfg.Storage.S3.Endpoint,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
