// Package index declares the secondary indexes that accelerate the
// aggregation pipelines and operator point lookups.
package index

import (
	"context"
	"log"

	"github.com/AntonioDavid333/bestiary/internal/store"
)

// Key-field index: point lookups by name on the record stores.
var keyIndexFields = []string{"name"}

// Curated index fields: the per-type KPI group key and the top-n
// filter/sort key. Declarations are performance hints consumed by the
// store's query planner; they never change what a query returns.
var curatedIndexFields = []string{"type_primary", "total_base_stats"}

// Manager declares secondary indexes on the record stores.
type Manager struct {
	raw     *store.Store
	curated *store.Store
}

// NewManager creates an index manager over the raw and curated stores.
func NewManager(raw, curated *store.Store) *Manager {
	return &Manager{raw: raw, curated: curated}
}

// EnsureIndexes declares every pipeline index. Declaring an existing index
// is a no-op, so the call is safe on every run.
func (m *Manager) EnsureIndexes(ctx context.Context) error {
	declared := 0
	for _, field := range keyIndexFields {
		for _, s := range []*store.Store{m.raw, m.curated} {
			if err := s.CreateIndex(ctx, field); err != nil {
				return err
			}
			declared++
		}
	}
	for _, field := range curatedIndexFields {
		if err := m.curated.CreateIndex(ctx, field); err != nil {
			return err
		}
		declared++
	}
	log.Printf("index: ensured %d index declarations", declared)
	return nil
}
