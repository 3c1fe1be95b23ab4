package store

import (
	"context"
	"log"
	"os"
	"time"
)

// GarbageCollector removes superseded snapshot files after the retention TTL
// has elapsed. Superseded snapshots are kept for the configured period so
// that readers holding an old handle can finish before the file disappears.
type GarbageCollector struct {
	catalog *Catalog
	ttl     time.Duration
}

// NewGarbageCollector creates a garbage collector over the snapshot catalog.
func NewGarbageCollector(catalog *Catalog, ttl time.Duration) *GarbageCollector {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour // Default 7 days
	}
	return &GarbageCollector{catalog: catalog, ttl: ttl}
}

// GCResult holds the outcome of a garbage collection run.
type GCResult struct {
	DeletedSnapshots []string
	Errors           []string
}

// CollectGarbage finds and removes superseded snapshots past the TTL,
// logging a summary.
func (gc *GarbageCollector) CollectGarbage(ctx context.Context) error {
	result, err := gc.CollectGarbageWithResult(ctx)
	if err != nil {
		return err
	}

	if len(result.DeletedSnapshots) > 0 {
		log.Printf("store/gc: deleted %d expired snapshots", len(result.DeletedSnapshots))
	}
	if len(result.Errors) > 0 {
		log.Printf("store/gc: encountered %d errors during GC", len(result.Errors))
	}
	return nil
}

// CollectGarbageWithResult performs garbage collection and returns detailed
// results. Catalog entries are removed first; a snapshot file that cannot be
// deleted is reported but does not abort the run.
func (gc *GarbageCollector) CollectGarbageWithResult(ctx context.Context) (*GCResult, error) {
	result := &GCResult{}

	paths, err := gc.catalog.SweepExpired(ctx, gc.ttl)
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.DeletedSnapshots = append(result.DeletedSnapshots, path)
	}
	return result, nil
}
