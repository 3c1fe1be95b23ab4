// Package curate derives analysis-ready curated records from the RAW store
// and performs the idempotent full reload of the CURATED store.
package curate

import (
	"context"
	"fmt"
	"log"
	"sort"

	berrors "github.com/AntonioDavid333/bestiary/internal/errors"
	"github.com/AntonioDavid333/bestiary/internal/observability"
	"github.com/AntonioDavid333/bestiary/internal/store"
	"github.com/AntonioDavid333/bestiary/pkg/types"
)

// StageCurate names the curation stage in run statistics.
const StageCurate = "curate"

// Transformer rebuilds the CURATED store from RAW.
type Transformer struct {
	raw     *store.Store
	curated *store.Store
	stats   *observability.RunStats
}

// NewTransformer creates a transformer between the two stores.
func NewTransformer(raw, curated *store.Store, stats *observability.RunStats) *Transformer {
	return &Transformer{raw: raw, curated: curated, stats: stats}
}

// Curate reads all RAW records, fills missing height and weight with the
// RAW median, computes the derived fields, and fully replaces the CURATED
// store, returning the count loaded. Any invariant violation aborts the run
// before the write, leaving CURATED at its prior content.
func (t *Transformer) Curate(ctx context.Context) (int, error) {
	cur, err := t.raw.Find(ctx, nil, nil)
	if err != nil {
		return 0, err
	}
	raws, err := store.DecodeAll[types.RawRecord](cur.All())
	if err != nil {
		return 0, fmt.Errorf("curate: failed to decode raw records: %w", err)
	}

	t.stats.StartStage(StageCurate, len(raws))

	// Medians are computed once over all non-missing values, before any fill.
	heightMedian := medianOf(raws, func(r *types.RawRecord) *float64 { return r.HeightM })
	weightMedian := medianOf(raws, func(r *types.RawRecord) *float64 { return r.WeightKg })

	curated := make([]types.CuratedRecord, len(raws))
	for i := range raws {
		curated[i] = derive(&raws[i], heightMedian, weightMedian)
	}

	if err := validate(curated); err != nil {
		return 0, err
	}

	docs, err := store.EncodeAll(curated)
	if err != nil {
		return 0, fmt.Errorf("curate: failed to encode curated records: %w", err)
	}

	count, err := t.curated.Load(ctx, docs)
	if err != nil {
		return 0, err
	}

	t.stats.EndStage(StageCurate, count)
	log.Printf("curate: derived %d curated records", count)
	return count, nil
}

// derive maps one raw record to its curated form.
func derive(raw *types.RawRecord, heightMedian, weightMedian float64) types.CuratedRecord {
	height := heightMedian
	if raw.HeightM != nil {
		height = *raw.HeightM
	}
	weight := weightMedian
	if raw.WeightKg != nil {
		weight = *raw.WeightKg
	}

	total := 0
	for _, stat := range types.BaseStatNames {
		if base, ok := raw.BaseStat(stat); ok {
			total += base
		}
	}

	var bmi float64
	if height > 0 {
		bmi = weight / (height * height)
	}

	return types.CuratedRecord{
		Name:           raw.Name,
		TypePrimary:    raw.TypePrimary,
		TypeSecondary:  raw.TypeSecondary,
		Species:        raw.Species,
		HeightM:        height,
		WeightKg:       weight,
		CatchRate:      raw.CatchRate,
		BaseExp:        raw.BaseExp,
		GrowthRate:     raw.GrowthRate,
		Stats:          raw.Stats,
		BMI:            bmi,
		TotalBaseStats: total,
		IsDualType:     raw.TypeSecondary != "",
	}
}

// validate asserts the post-transform invariants over the whole curated
// set. It fails closed: the first violation aborts the run.
func validate(curated []types.CuratedRecord) error {
	seen := make(map[string]bool, len(curated))
	for i := range curated {
		rec := &curated[i]

		if rec.Name == "" {
			return berrors.NewValidationFailure("record has empty name")
		}
		if seen[rec.Name] {
			return berrors.NewValidationFailure("duplicate name " + rec.Name)
		}
		seen[rec.Name] = true

		if rec.TypePrimary == "" {
			return berrors.NewValidationFailure(rec.Name + " has empty type_primary")
		}
		for _, stat := range types.BaseStatNames {
			if _, ok := rec.BaseStat(stat); !ok {
				return berrors.NewValidationFailure(
					fmt.Sprintf("%s is missing base stat %s", rec.Name, stat))
			}
		}
		if rec.TotalBaseStats <= 0 {
			return berrors.NewValidationFailure(
				fmt.Sprintf("%s has non-positive total_base_stats %d", rec.Name, rec.TotalBaseStats))
		}
		if rec.HeightM <= 0 {
			return berrors.NewValidationFailure(
				fmt.Sprintf("%s has non-positive height_m %g", rec.Name, rec.HeightM))
		}
	}
	return nil
}

// medianOf computes the median of one optional field over all records that
// carry it. It returns zero when no record does.
func medianOf(raws []types.RawRecord, field func(*types.RawRecord) *float64) float64 {
	var values []float64
	for i := range raws {
		if v := field(&raws[i]); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return 0
	}

	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
