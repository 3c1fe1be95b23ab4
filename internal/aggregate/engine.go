package aggregate

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/AntonioDavid333/bestiary/internal/observability"
	"github.com/AntonioDavid333/bestiary/internal/store"
	"github.com/AntonioDavid333/bestiary/pkg/types"
)

// StageAggregate names the aggregation stage in run statistics.
const StageAggregate = "aggregate"

// Top-N pipeline constants.
const (
	topNThreshold = 400
	topNLimit     = 10
)

// Engine runs the three fixed pipelines over CURATED and fully replaces
// ANALYTICS with their combined results.
type Engine struct {
	curated   *store.Store
	analytics *store.Store
	stats     *observability.RunStats
}

// NewEngine creates an aggregation engine between the two stores.
func NewEngine(curated, analytics *store.Store, stats *observability.RunStats) *Engine {
	return &Engine{curated: curated, analytics: analytics, stats: stats}
}

// Aggregate executes all three pipelines and loads their tagged results
// into ANALYTICS in one replace, returning the total document count. Every
// pipeline is a deterministic function of CURATED content, so re-running
// against the same CURATED yields an identical ANALYTICS store.
func (e *Engine) Aggregate(ctx context.Context) (int, error) {
	cur, err := e.curated.Find(ctx, nil, nil)
	if err != nil {
		return 0, err
	}
	records, err := store.DecodeAll[types.CuratedRecord](cur.All())
	if err != nil {
		return 0, fmt.Errorf("aggregate: failed to decode curated records: %w", err)
	}

	e.stats.StartStage(StageAggregate, len(records))

	kpiDocs, err := store.EncodeAll(PerTypeKPI(records))
	if err != nil {
		return 0, fmt.Errorf("aggregate: failed to encode per-type KPIs: %w", err)
	}
	topDocs, err := store.EncodeAll(TopN(records))
	if err != nil {
		return 0, fmt.Errorf("aggregate: failed to encode top-n entries: %w", err)
	}
	powerDocs, err := store.EncodeAll([]types.PowerSummary{PowerIndex(records)})
	if err != nil {
		return 0, fmt.Errorf("aggregate: failed to encode power summary: %w", err)
	}

	docs := append(kpiDocs, topDocs...)
	docs = append(docs, powerDocs...)

	count, err := e.analytics.Load(ctx, docs)
	if err != nil {
		return 0, err
	}

	e.stats.EndStage(StageAggregate, count)
	log.Printf("aggregate: materialized %d analytics documents from %d curated records",
		count, len(records))
	return count, nil
}

// PerTypeKPI groups records by primary type and computes the mean
// total_base_stats and cardinality per group. Groups are emitted in type
// order so the result set is deterministic.
func PerTypeKPI(records []types.CuratedRecord) []types.TypeKPI {
	groups := GroupBy(records, func(r types.CuratedRecord) string { return r.TypePrimary })

	typeNames := make([]string, 0, len(groups))
	for name := range groups {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	kpis := make([]types.TypeKPI, 0, len(groups))
	for _, name := range typeNames {
		avg := NewPartialAggregate(AggAvg)
		for _, rec := range groups[name] {
			avg.Accumulate(float64(rec.TotalBaseStats))
		}
		kpis = append(kpis, types.TypeKPI{
			Pipeline:          types.PipelinePerTypeKPI,
			Type:              name,
			AvgTotalBaseStats: avg.Result(),
			Count:             len(groups[name]),
		})
	}
	return kpis
}

// TopN filters records above the total_base_stats threshold, sorts them
// descending with ties kept in original order, and truncates to the limit.
// Entries carry their 1-based rank.
func TopN(records []types.CuratedRecord) []types.TopEntry {
	strong := Filter(records, func(r types.CuratedRecord) bool {
		return r.TotalBaseStats > topNThreshold
	})
	ranked := SortBy(strong, func(a, b types.CuratedRecord) bool {
		return a.TotalBaseStats > b.TotalBaseStats
	})
	ranked = Head(ranked, topNLimit)

	entries := make([]types.TopEntry, len(ranked))
	for i, r := range ranked {
		entries[i] = types.TopEntry{
			Pipeline:      types.PipelineTopN,
			Rank:          i + 1,
			CuratedRecord: r,
		}
	}
	return entries
}

// PowerIndex projects every record to attack_base * speed_base and reduces
// the full set to a single mean.
func PowerIndex(records []types.CuratedRecord) types.PowerSummary {
	avg := NewPartialAggregate(AggAvg)
	for _, rec := range records {
		attack, _ := rec.BaseStat(types.StatAttack)
		speed, _ := rec.BaseStat(types.StatSpeed)
		avg.Accumulate(float64(attack * speed))
	}
	return types.PowerSummary{
		Pipeline:      types.PipelinePowerIndex,
		AvgPowerIndex: avg.Result(),
	}
}
