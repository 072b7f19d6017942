package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/superbol/lightcurve"
	"github.com/timzifer/superbol/luminosity"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db, zerolog.Nop())
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func sampleLightcurve() lightcurve.Lightcurve {
	return lightcurve.Lightcurve{
		Strategy:  lightcurve.StrategyAugmented,
		Distance:  luminosity.Distance{Value: 3.0857e25, Uncertainty: 1e24},
		Explosion: &lightcurve.Explosion{Time: 51650, Uncertainty: 2},
		Points: []lightcurve.Point{
			{
				Time:       51663.3,
				Phase:      13.3,
				Flux:       luminosity.Flux{Value: 1.2e-12, Uncertainty: 3e-14},
				Luminosity: luminosity.Luminosity{Value: 1.4e41, Uncertainty: 5e39},
				Strategy:   lightcurve.StrategyAugmented,
				Detail: lightcurve.Detail{
					Points:          4,
					Temperature:     7200,
					ChiSquare:       1.5,
					Iterations:      12,
					QuasiBolometric: luminosity.Flux{Value: 8e-13},
					IR:              luminosity.Flux{Value: 2e-13},
					UV:              luminosity.Flux{Value: 2e-13},
					LinearUV:        true,
				},
			},
		},
		Skipped: []lightcurve.Skipped{{Time: 51670, Err: errors.New("insufficient fluxes")}},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var count int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	require.Equal(t, len(migrations), count)
}

func TestSaveAndLoadLightcurve(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	want := sampleLightcurve()
	id, err := store.SaveLightcurve(ctx, "SN2000cb", want)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := store.LoadLightcurve(ctx, "SN2000cb")
	require.NoError(t, err)
	require.Equal(t, want.Strategy, got.Strategy)
	require.Equal(t, want.Distance, got.Distance)
	require.Equal(t, want.Explosion, got.Explosion)
	require.Equal(t, want.Points, got.Points)
	require.Len(t, got.Skipped, 1)
	require.Equal(t, 51670.0, got.Skipped[0].Time)
	require.Equal(t, "insufficient fluxes", got.Skipped[0].Reason())
}

func TestLoadReturnsNewestRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := sampleLightcurve()
	_, err := store.SaveLightcurve(ctx, "SN2000cb", first)
	require.NoError(t, err)

	second := sampleLightcurve()
	second.Strategy = lightcurve.StrategyBC
	second.Explosion = nil
	second.Points[0].Phase = 0
	_, err = store.SaveLightcurve(ctx, "SN2000cb", second)
	require.NoError(t, err)

	got, err := store.LoadLightcurve(ctx, "SN2000cb")
	require.NoError(t, err)
	require.Equal(t, lightcurve.StrategyBC, got.Strategy)
	require.Nil(t, got.Explosion)

	objects, err := store.Objects(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"SN2000cb"}, objects)
}

func TestLoadMissingObject(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.LoadLightcurve(context.Background(), "SN1987A")
	require.ErrorIs(t, err, ErrNotFound)
}
