package storage

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/AntonioDavid333/bestiary/internal/store"
)

// Archiver copies published snapshot files into object storage in parallel.
// Uploads are idempotent: a snapshot already present under its object key is
// skipped, so re-running an archive pass after a partial failure only
// uploads what is missing.
type Archiver struct {
	storage     ObjectStorage
	concurrency int
	prefix      string
}

// ArchiveResult contains the outcome of an archive pass.
type ArchiveResult struct {
	Uploaded []string
	Skipped  []string
	Errors   map[string]error
}

// NewArchiver creates an archiver.
// concurrency bounds the number of parallel uploads.
// prefix is prepended to every object key.
func NewArchiver(storage ObjectStorage, concurrency int, prefix string) *Archiver {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Archiver{
		storage:     storage,
		concurrency: concurrency,
		prefix:      prefix,
	}
}

// Archive uploads the given snapshot files. Failures are collected per
// snapshot rather than aborting the pass.
func (a *Archiver) Archive(ctx context.Context, snapshots []*store.SnapshotRecord) (*ArchiveResult, error) {
	result := &ArchiveResult{Errors: make(map[string]error)}
	if len(snapshots) == 0 {
		return result, nil
	}

	sem := semaphore.NewWeighted(int64(a.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, snap := range snapshots {
		key := a.objectKey(snap)

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[snap.SnapshotID] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(snap *store.SnapshotRecord, key string) {
			defer sem.Release(1)
			defer wg.Done()

			exists, err := a.storage.Exists(ctx, key)
			if err != nil {
				mu.Lock()
				result.Errors[snap.SnapshotID] = err
				mu.Unlock()
				return
			}
			if exists {
				mu.Lock()
				result.Skipped = append(result.Skipped, snap.SnapshotID)
				mu.Unlock()
				return
			}

			if err := a.storage.Upload(ctx, snap.Path, key); err != nil {
				mu.Lock()
				result.Errors[snap.SnapshotID] = err
				mu.Unlock()
				return
			}

			mu.Lock()
			result.Uploaded = append(result.Uploaded, snap.SnapshotID)
			mu.Unlock()
		}(snap, key)
	}

	wg.Wait()

	if len(result.Uploaded) > 0 {
		log.Printf("storage/archiver: uploaded %d snapshots (%d already archived)",
			len(result.Uploaded), len(result.Skipped))
	}
	for id, err := range result.Errors {
		log.Printf("[WARN] storage/archiver: failed to archive snapshot %s: %v", id, err)
	}
	return result, nil
}

// objectKey derives the object key for a snapshot file.
func (a *Archiver) objectKey(snap *store.SnapshotRecord) string {
	return path.Join(a.prefix, snap.Store, filepath.Base(snap.Path))
}
