package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/busgeo/route-geocoder/internal/geo"
	"github.com/busgeo/route-geocoder/internal/models"
)

func TestStatements_QuoteIdentifiers(t *testing.T) {
	s := NewWithPool(nil, Table{Name: "transit.bus_data", IDColumn: "id", NamesColumn: "routes"})

	assert.Equal(t, `SELECT "id", "routes" FROM "transit"."bus_data" ORDER BY "id"`, s.fetchSQL)
	assert.Contains(t, s.upsertSQL, `INSERT INTO "transit"."bus_data" ("id", "routes")`)
	assert.Contains(t, s.upsertSQL, `ON CONFLICT ("id") DO UPDATE`)
	assert.Contains(t, s.upsertSQL, `SET "routes" = EXCLUDED."routes"`)

	odd := NewWithPool(nil, Table{Name: `bus"data`, IDColumn: "id", NamesColumn: "routes"})
	assert.Contains(t, odd.fetchSQL, `FROM "bus""data"`)
}

func TestUpsertBatch_EmptyIsNoop(t *testing.T) {
	s := NewWithPool(nil, Table{Name: "bus_data", IDColumn: "id", NamesColumn: "routes"})
	assert.NoError(t, s.UpsertBatch(context.Background(), nil))
}

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("transit"),
		postgres.WithUsername("transit"),
		postgres.WithPassword("transit"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `CREATE TABLE bus_data (id bigint PRIMARY KEY, routes jsonb)`)
	require.NoError(t, err)
	return pool
}

func TestStore_RoundTrip(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO bus_data (id, routes) VALUES
		(1, '["Centro", " Estadio ", null]'),
		(2, '"not a list"'),
		(3, NULL)`)
	require.NoError(t, err)

	store := NewWithPool(pool, Table{Name: "bus_data", IDColumn: "id", NamesColumn: "routes"})

	records, err := store.FetchRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	names, ok := models.NameList(records[0].Names)
	require.True(t, ok)
	assert.Equal(t, []string{"Centro", " Estadio ", ""}, names)
	_, ok = models.NameList(records[1].Names)
	assert.False(t, ok)
	assert.Nil(t, records[2].Names)

	lat, lon := 6.25, -75.56
	idx := geo.Build([]models.ReferenceEntry{{Name: "Centro", Lat: &lat, Lon: &lon}})
	enriched := []models.EnrichedRecord{
		{ID: 1, Names: geo.Enrich(names, idx, nil)},
		{ID: 4, Names: geo.Enrich([]string{"Nuevo"}, idx, nil)},
	}
	require.NoError(t, store.UpsertBatch(ctx, enriched))

	row, err := store.GetRecord(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, row)

	var stops []models.EnrichedStop
	require.NoError(t, json.Unmarshal(row.Names, &stops))
	require.Len(t, stops, 3)
	assert.Equal(t, "Centro", stops[0].Name)
	assert.Equal(t, lat, *stops[0].Lat)
	assert.Equal(t, "Estadio", stops[1].Name)
	assert.Nil(t, stops[1].Lat)

	inserted, err := store.GetRecord(ctx, 4)
	require.NoError(t, err)
	require.NotNil(t, inserted)

	missing, err := store.GetRecord(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := store.ListRecords(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, int64(2), list[1].ID)

	// Re-reading enriched rows yields the same names.
	again, err := store.FetchRecords(ctx)
	require.NoError(t, err)
	renamed, ok := models.NameList(again[0].Names)
	require.True(t, ok)
	assert.Equal(t, []string{"Centro", "Estadio", ""}, renamed)
}

func TestStore_FailedBatchLeavesNoRows(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `ALTER TABLE bus_data ADD CONSTRAINT small_ids CHECK (id < 100)`)
	require.NoError(t, err)

	store := NewWithPool(pool, Table{Name: "bus_data", IDColumn: "id", NamesColumn: "routes"})
	err = store.UpsertBatch(ctx, []models.EnrichedRecord{
		{ID: 10, Names: []models.EnrichedStop{{Name: "A"}}},
		{ID: 500, Names: []models.EnrichedStop{{Name: "B"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert record 500")

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM bus_data`).Scan(&count))
	assert.Zero(t, count)
}
