package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonioDavid333/bestiary/internal/app"
	"github.com/AntonioDavid333/bestiary/internal/config"
	"github.com/AntonioDavid333/bestiary/internal/ingest"
	"github.com/AntonioDavid333/bestiary/internal/store"
	"github.com/AntonioDavid333/bestiary/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func sourceRow(name, typ string, height, weight string, hp, attack, defense, speed int) ingest.Row {
	return ingest.Row{
		"Name":         name,
		"Type":         typ,
		"Height":       height,
		"Weight":       weight,
		"hp_base":      hp,
		"attack_base":  attack,
		"defense_base": defense,
		"speed_base":   speed,
	}
}

func testRows() []ingest.Row {
	return []ingest.Row{
		sourceRow("Bulbasaur", "Grass/Poison", "0.7 m", "6.9 kg", 45, 49, 49, 45),
		sourceRow("Gyarados", "Water/Flying", "6.5 m", "235 kg", 95, 155, 109, 81),
		sourceRow("Arcanine", "Fire", "1.9 m", "155 kg", 90, 110, 80, 95),
		sourceRow("Pikachu", "Electric", "0.4 m", "6 kg", 35, 55, 40, 90),
		// Duplicate: first Pikachu wins.
		sourceRow("Pikachu", "Electric", "0.5 m", "7 kg", 1, 1, 1, 1),
		// Missing type: dropped at ingest.
		{"Name": "Ghost", "Height": "1 m", "hp_base": 10, "attack_base": 10, "defense_base": 10, "speed_base": 10},
		// Unparseable height: dropped at ingest.
		sourceRow("Glitch", "Bug", "tall", "1 kg", 10, 10, 10, 10),
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	application, err := app.New(cfg)
	require.NoError(t, err)
	defer application.Close()

	ctx := context.Background()
	require.NoError(t, application.Run(ctx, testRows()))

	raw, curated, analytics := application.Stores()

	// 7 source rows: one missing type, one unparseable, one duplicate.
	n, err := raw.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = curated.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	cur, err := curated.Find(ctx, store.Filter{store.Eq("name", "Bulbasaur")}, nil)
	require.NoError(t, err)
	records, err := store.DecodeAll[types.CuratedRecord](cur.All())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 188, records[0].TotalBaseStats)
	assert.InDelta(t, 14.08, records[0].BMI, 0.01)
	assert.True(t, records[0].IsDualType)

	// Dedup kept the first Pikachu.
	cur, err = curated.Find(ctx, store.Filter{store.Eq("name", "Pikachu")}, nil)
	require.NoError(t, err)
	records, err = store.DecodeAll[types.CuratedRecord](cur.All())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 220, records[0].TotalBaseStats)

	// Only Gyarados (440) clears the top-n threshold; Arcanine totals 375.
	cur, err = analytics.Find(ctx, store.Filter{store.Eq("pipeline", types.PipelineTopN)}, nil)
	require.NoError(t, err)
	tops, err := store.DecodeAll[types.TopEntry](cur.All())
	require.NoError(t, err)
	require.Len(t, tops, 1)
	assert.Equal(t, "Gyarados", tops[0].Name)
	assert.Equal(t, 1, tops[0].Rank)

	cur, err = analytics.Find(ctx, store.Filter{store.Eq("pipeline", types.PipelinePerTypeKPI)}, nil)
	require.NoError(t, err)
	kpis, err := store.DecodeAll[types.TypeKPI](cur.All())
	require.NoError(t, err)
	assert.Len(t, kpis, 4)

	// Ingest stats account for every dropped row.
	ingestStats := application.Stats().Stage(ingest.StageIngest)
	require.NotNil(t, ingestStats)
	assert.Equal(t, 7, ingestStats.RowsIn)
	assert.Equal(t, 4, ingestStats.RowsOut)
	assert.Equal(t, 1, ingestStats.Dropped[ingest.DropMissingRequired])
	assert.Equal(t, 1, ingestStats.Dropped[ingest.DropParseError])
	assert.Equal(t, 1, ingestStats.Dropped[ingest.DropDuplicateName])
}

func TestPipeline_StagedModesShareCatalog(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	cfg.Mode = config.ModeIngest
	application, err := app.New(cfg)
	require.NoError(t, err)
	require.NoError(t, application.Run(ctx, testRows()))
	application.Close()

	// A separate curate-then-aggregate process picks up the published
	// RAW snapshot.
	cfg.Mode = config.ModeCurate
	application, err = app.New(cfg)
	require.NoError(t, err)
	require.NoError(t, application.Run(ctx, nil))
	application.Close()

	cfg.Mode = config.ModeAggregate
	application, err = app.New(cfg)
	require.NoError(t, err)
	require.NoError(t, application.Run(ctx, nil))
	defer application.Close()

	_, _, analytics := application.Stores()
	n, err := analytics.Count(ctx)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestPipeline_RerunIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	application, err := app.New(cfg)
	require.NoError(t, err)
	defer application.Close()

	ctx := context.Background()
	require.NoError(t, application.Run(ctx, testRows()))

	_, curated, analytics := application.Stores()
	cur, err := curated.Find(ctx, nil, nil)
	require.NoError(t, err)
	curated1 := cur.All()
	cur, err = analytics.Find(ctx, nil, nil)
	require.NoError(t, err)
	analytics1 := cur.All()

	require.NoError(t, application.Run(ctx, testRows()))

	cur, err = curated.Find(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, curated1, cur.All())
	cur, err = analytics.Find(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, analytics1, cur.All())
}

func TestPipeline_ArchivesSnapshots(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive.Enabled = true

	application, err := app.New(cfg)
	require.NoError(t, err)
	defer application.Close()

	require.NoError(t, application.Run(context.Background(), testRows()))

	// One object per store under the archive prefix.
	archived := 0
	root := filepath.Join(cfg.DataDir, "archive", cfg.Archive.Prefix)
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			archived++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, archived)
}

func TestPipeline_OperatorUpdateAndDelete(t *testing.T) {
	cfg := testConfig(t)
	application, err := app.New(cfg)
	require.NoError(t, err)
	defer application.Close()

	ctx := context.Background()
	require.NoError(t, application.Run(ctx, testRows()))

	_, curated, _ := application.Stores()

	matched, modified, err := curated.Update(ctx,
		store.Filter{store.Eq("type_primary", "Fire")},
		map[string]interface{}{"growth_rate": "fast"})
	require.NoError(t, err)
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, modified)

	deleted, err := curated.Delete(ctx, store.Filter{store.Eq("name", "Pikachu")})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	n, err := curated.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
