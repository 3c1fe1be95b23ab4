// Package ingest parses loosely-typed source rows into typed raw records
// and performs the idempotent full reload of the RAW store.
package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"

	berrors "github.com/AntonioDavid333/bestiary/internal/errors"
	"github.com/AntonioDavid333/bestiary/internal/observability"
	"github.com/AntonioDavid333/bestiary/internal/store"
	"github.com/AntonioDavid333/bestiary/pkg/types"
)

// StageIngest names the ingestion stage in run statistics.
const StageIngest = "ingest"

// Drop reasons reported to run statistics.
const (
	DropMissingRequired = "missing_required_field"
	DropParseError      = "parse_error"
	DropDuplicateName   = "duplicate_name"
)

// Row is one loosely-typed source row, keyed by column name.
type Row map[string]interface{}

// Loader ingests source rows into the RAW store.
type Loader struct {
	raw   *store.Store
	stats *observability.RunStats
}

// NewLoader creates a loader writing to the given RAW store.
func NewLoader(raw *store.Store, stats *observability.RunStats) *Loader {
	return &Loader{raw: raw, stats: stats}
}

// NormalizeColumn canonicalizes a source column name: lower-case with
// spaces collapsed to underscores. The transform is total, any string in
// yields a string out.
func NormalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "_")
}

// Ingest parses the source rows and fully replaces the RAW store with the
// survivors, returning the count loaded. Row-level failures drop the row
// and continue; re-running with the same source yields an identical store.
func (l *Loader) Ingest(ctx context.Context, rows []Row) (int, error) {
	l.stats.StartStage(StageIngest, len(rows))

	records := make([]types.RawRecord, 0, len(rows))
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		rec, err := buildRecord(normalizeRow(row))
		if err != nil {
			reason := DropParseError
			if berrors.GetCode(err) == berrors.CodeMissingRequiredField {
				reason = DropMissingRequired
			}
			l.stats.RecordDrop(StageIngest, reason)
			log.Printf("[WARN] ingest: dropping row %d: %v", i, err)
			continue
		}
		if seen[rec.Name] {
			l.stats.RecordDrop(StageIngest, DropDuplicateName)
			continue
		}
		seen[rec.Name] = true
		records = append(records, *rec)
	}

	docs, err := store.EncodeAll(records)
	if err != nil {
		return 0, fmt.Errorf("ingest: failed to encode records: %w", err)
	}

	count, err := l.raw.Load(ctx, docs)
	if err != nil {
		return 0, err
	}

	l.stats.EndStage(StageIngest, count)
	log.Printf("ingest: loaded %d of %d source rows", count, len(rows))
	return count, nil
}

// normalizeRow canonicalizes every column name of a source row.
func normalizeRow(row Row) Row {
	norm := make(Row, len(row))
	for col, v := range row {
		norm[NormalizeColumn(col)] = v
	}
	return norm
}

// buildRecord maps one normalized row to a typed raw record. Rows missing
// name or type are dropped before coercion; any coercion failure on the
// remaining fields rejects the whole row.
func buildRecord(row Row) (*types.RawRecord, error) {
	name, ok := stringValue(row["name"])
	if !ok {
		return nil, berrors.NewMissingRequiredField("name")
	}

	primary, secondary := recordTypes(row)
	if primary == "" {
		return nil, berrors.NewMissingRequiredField("type")
	}

	rec := &types.RawRecord{
		Name:          name,
		TypePrimary:   primary,
		TypeSecondary: secondary,
		Abilities:     parseList(row["abilities"]),
		EggGroups:     parseList(row["egg_groups"]),
		Stats:         make(map[string]types.StatBlock, len(types.BaseStatNames)),
	}
	rec.Species, _ = stringValue(row["species"])
	rec.GrowthRate, _ = stringValue(row["growth_rate"])

	var err error
	if rec.HeightM, err = parseMeasure("height_m", cell(row, "height_m", "height"), " m"); err != nil {
		return nil, err
	}
	if rec.WeightKg, err = parseMeasure("weight_kg", cell(row, "weight_kg", "weight"), " kg"); err != nil {
		return nil, err
	}
	if rec.CatchRate, err = parseInt("catch_rate", row["catch_rate"]); err != nil {
		return nil, err
	}
	if rec.BaseExp, err = parseInt("base_exp", row["base_exp"]); err != nil {
		return nil, err
	}

	for _, stat := range types.BaseStatNames {
		block, err := statBlock(row, stat)
		if err != nil {
			return nil, err
		}
		rec.Stats[stat] = block
	}
	return rec, nil
}

// recordTypes resolves the type pair from either split columns or the
// combined slash-delimited form. The split pair is canonical downstream.
func recordTypes(row Row) (primary, secondary string) {
	primary, _ = stringValue(row["type_primary"])
	secondary, _ = stringValue(row["type_secondary"])
	if primary != "" {
		return primary, secondary
	}
	combined, ok := stringValue(row["type"])
	if !ok {
		return "", ""
	}
	return splitType(combined)
}

// statBlock assembles one stat's base/min/max from flat source columns.
// Absent min/max columns default to the base value.
func statBlock(row Row, stat string) (types.StatBlock, error) {
	base, err := parseInt(stat+"_base", row[stat+"_base"])
	if err != nil {
		return types.StatBlock{}, err
	}

	block := types.StatBlock{Base: base, Min: base, Max: base}
	if v, present := row[stat+"_min"]; present {
		if block.Min, err = parseInt(stat+"_min", v); err != nil {
			return types.StatBlock{}, err
		}
	}
	if v, present := row[stat+"_max"]; present {
		if block.Max, err = parseInt(stat+"_max", v); err != nil {
			return types.StatBlock{}, err
		}
	}
	return block, nil
}

// cell returns the first present column among the given names.
func cell(row Row, names ...string) interface{} {
	for _, name := range names {
		if v, present := row[name]; present {
			return v
		}
	}
	return nil
}
