package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonioDavid333/bestiary/internal/observability"
	"github.com/AntonioDavid333/bestiary/internal/store"
	"github.com/AntonioDavid333/bestiary/pkg/types"
)

func newTestLoader(t *testing.T) (*Loader, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	cat, err := store.NewCatalog(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	raw, err := store.NewStore(cat, dir, "raw", store.WithKeyField("name"))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	return NewLoader(raw, observability.NewRunStats()), raw
}

func bulbasaurRow() Row {
	return Row{
		"Name":         "Bulbasaur",
		"Type":         "Grass/Poison",
		"Species":      "Seed",
		"Height":       "0.7 m",
		"Weight":       "6.9 kg",
		"Catch Rate":   "45",
		"Base Exp":     "64",
		"hp_base":      45,
		"attack_base":  49,
		"defense_base": 49,
		"speed_base":   45,
	}
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "catch_rate", NormalizeColumn("Catch Rate"))
	assert.Equal(t, "name", NormalizeColumn("Name"))
	assert.Equal(t, "hp_base", NormalizeColumn("hp_base"))
	assert.Equal(t, "egg_groups", NormalizeColumn("  Egg Groups  "))
}

func TestLoader_IngestParsesRow(t *testing.T) {
	loader, raw := newTestLoader(t)

	count, err := loader.Ingest(context.Background(), []Row{bulbasaurRow()})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	cur, err := raw.Find(context.Background(), store.Filter{store.Eq("name", "Bulbasaur")}, nil)
	require.NoError(t, err)
	records, err := store.DecodeAll[types.RawRecord](cur.All())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Grass", rec.TypePrimary)
	assert.Equal(t, "Poison", rec.TypeSecondary)
	require.NotNil(t, rec.HeightM)
	assert.InDelta(t, 0.7, *rec.HeightM, 1e-9)
	require.NotNil(t, rec.WeightKg)
	assert.InDelta(t, 6.9, *rec.WeightKg, 1e-9)
	assert.Equal(t, 45, rec.CatchRate)
	assert.Equal(t, 64, rec.BaseExp)

	hp, ok := rec.BaseStat(types.StatHP)
	require.True(t, ok)
	assert.Equal(t, 45, hp)
}

func TestLoader_DropsRowsMissingRequiredFields(t *testing.T) {
	loader, _ := newTestLoader(t)

	noName := bulbasaurRow()
	delete(noName, "Name")
	noType := bulbasaurRow()
	noType["Name"] = "Typeless"
	delete(noType, "Type")

	count, err := loader.Ingest(context.Background(), []Row{noName, noType, bulbasaurRow()})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoader_ParseFailureDropsRowNotBatch(t *testing.T) {
	loader, _ := newTestLoader(t)

	badHeight := bulbasaurRow()
	badHeight["Name"] = "Glitch"
	badHeight["Height"] = "tall"

	count, err := loader.Ingest(context.Background(), []Row{badHeight, bulbasaurRow()})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoader_MissingMeasureIsLegal(t *testing.T) {
	loader, raw := newTestLoader(t)

	row := bulbasaurRow()
	delete(row, "Height")
	row["Weight"] = ""

	count, err := loader.Ingest(context.Background(), []Row{row})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	cur, err := raw.Find(context.Background(), nil, nil)
	require.NoError(t, err)
	records, err := store.DecodeAll[types.RawRecord](cur.All())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].HeightM)
	assert.Nil(t, records[0].WeightKg)
}

func TestLoader_DeduplicationKeepsFirst(t *testing.T) {
	loader, raw := newTestLoader(t)

	first := bulbasaurRow()
	first["Name"] = "Pikachu"
	first["Catch Rate"] = "190"
	second := bulbasaurRow()
	second["Name"] = "Pikachu"
	second["Catch Rate"] = "3"

	count, err := loader.Ingest(context.Background(), []Row{first, second})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	cur, err := raw.Find(context.Background(), store.Filter{store.Eq("name", "Pikachu")}, nil)
	require.NoError(t, err)
	records, err := store.DecodeAll[types.RawRecord](cur.All())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 190, records[0].CatchRate)
}

func TestLoader_IngestIsIdempotent(t *testing.T) {
	loader, raw := newTestLoader(t)
	ctx := context.Background()

	rows := []Row{bulbasaurRow()}
	second := bulbasaurRow()
	second["Name"] = "Ivysaur"
	rows = append(rows, second)

	count1, err := loader.Ingest(ctx, rows)
	require.NoError(t, err)
	cur, err := raw.Find(ctx, nil, nil)
	require.NoError(t, err)
	content1 := cur.All()

	count2, err := loader.Ingest(ctx, rows)
	require.NoError(t, err)
	cur, err = raw.Find(ctx, nil, nil)
	require.NoError(t, err)
	content2 := cur.All()

	assert.Equal(t, count1, count2)
	assert.Equal(t, content1, content2)
}

func TestLoader_SplitTypeColumnsPreferred(t *testing.T) {
	loader, raw := newTestLoader(t)

	row := bulbasaurRow()
	delete(row, "Type")
	row["type_primary"] = "Electric"

	count, err := loader.Ingest(context.Background(), []Row{row})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	cur, err := raw.Find(context.Background(), nil, nil)
	require.NoError(t, err)
	records, err := store.DecodeAll[types.RawRecord](cur.All())
	require.NoError(t, err)
	assert.Equal(t, "Electric", records[0].TypePrimary)
	assert.Empty(t, records[0].TypeSecondary)
}

func TestProperty_NormalizeColumn(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("output has no spaces or upper-case letters", prop.ForAll(
		func(name string) bool {
			out := NormalizeColumn(name)
			return !strings.ContainsAny(out, " ") && out == strings.ToLower(out)
		},
		gen.AnyString(),
	))

	properties.Property("normalization is idempotent", prop.ForAll(
		func(name string) bool {
			once := NormalizeColumn(name)
			return NormalizeColumn(once) == once
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
