package garrisondb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garrison.ai/internal/sim/garrison"
)

func sampleRows() garrison.Rows {
	return garrison.Rows{
		Garrison:   &garrison.GarrisonRow{SiteLevelID: 258, FollowerActivationsRemaining: 1},
		Blueprints: []garrison.BlueprintRow{{BuildingID: 26}, {BuildingID: 40}},
		Buildings: []garrison.BuildingRow{
			{PlotInstanceID: 18, BuildingID: 26, TimeBuilt: 1_700_000_000, Active: true},
			{PlotInstanceID: 19, BuildingID: 40, TimeBuilt: 1_700_000_100, Active: false},
		},
	}
}

func setupMockStore(t *testing.T, driver string) (*sql.DB, sqlmock.Sqlmock, *Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewWithDB(db, driver)
}

func TestSave_DeletesThenInsertsInOneTx(t *testing.T) {
	db, mock, store := setupMockStore(t, DriverSQLite)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(qDeleteGarrison)).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(qDeleteBlueprints)).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(qDeleteBuildings)).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(qInsertGarrison)).WithArgs(int64(7), int64(258), int64(1)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(qInsertBlueprint)).WithArgs(int64(7), int64(26)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(qInsertBlueprint)).WithArgs(int64(7), int64(40)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(qInsertBuilding)).
		WithArgs(int64(7), int64(18), int64(26), int64(1_700_000_000), true).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(qInsertBuilding)).
		WithArgs(int64(7), int64(19), int64(40), int64(1_700_000_100), false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), 7, sampleRows()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_RollsBackOnError(t *testing.T) {
	db, mock, store := setupMockStore(t, DriverSQLite)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(qDeleteGarrison)).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(qDeleteBlueprints)).WithArgs(int64(7)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Save(context.Background(), 7, sampleRows())
	require.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_NilGarrisonOnlyDeletes(t *testing.T) {
	db, mock, store := setupMockStore(t, DriverSQLite)
	defer db.Close()

	mock.ExpectBegin()
	for _, q := range []string{qDeleteGarrison, qDeleteBlueprints, qDeleteBuildings} {
		mock.ExpectExec(regexp.QuoteMeta(q)).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), 9, garrison.Rows{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_PostgresPlaceholders(t *testing.T) {
	db, mock, store := setupMockStore(t, DriverPostgres)
	defer db.Close()

	mock.ExpectQuery(`FROM character_garrison WHERE guid = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"site_level_id", "follower_activations_remaining"}).AddRow(int64(258), int64(1)))
	mock.ExpectQuery(`FROM character_garrison_blueprints WHERE guid = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"building_id"}).AddRow(int64(26)))
	mock.ExpectQuery(`FROM character_garrison_buildings WHERE guid = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"plot_instance_id", "building_id", "time_built", "active"}).
			AddRow(int64(18), int64(26), int64(1_700_000_000), true))

	rows, err := store.Load(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, garrison.Rows{
		Garrison:   &garrison.GarrisonRow{SiteLevelID: 258, FollowerActivationsRemaining: 1},
		Blueprints: []garrison.BlueprintRow{{BuildingID: 26}},
		Buildings:  []garrison.BuildingRow{{PlotInstanceID: 18, BuildingID: 26, TimeBuilt: 1_700_000_000, Active: true}},
	}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_NoGarrison(t *testing.T) {
	db, mock, store := setupMockStore(t, DriverSQLite)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(qSelectGarrison)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"site_level_id", "follower_activations_remaining"}))

	rows, err := store.Load(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, rows.Garrison)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	assert.Equal(t,
		`INSERT INTO character_garrison (guid, site_level_id, follower_activations_remaining) VALUES ($1, $2, $3)`,
		pg.rebind(qInsertGarrison))
	lite := &Store{driver: DriverSQLite}
	assert.Equal(t, qInsertGarrison, lite.rebind(qInsertGarrison))
}

func TestSQLite_RoundTrip(t *testing.T) {
	store, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "db", "garrison.sqlite"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, 7, sampleRows()))
	got, err := store.Load(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, sampleRows(), got)

	// A second save replaces, it does not accumulate.
	smaller := sampleRows()
	smaller.Blueprints = smaller.Blueprints[:1]
	smaller.Buildings = nil
	require.NoError(t, store.Save(ctx, 7, smaller))
	got, err = store.Load(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, smaller, got)

	other, err := store.Load(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, other.Garrison)
}

func TestIssueToken_ReplacesOldToken(t *testing.T) {
	db, mock, store := setupMockStore(t, DriverSQLite)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(qDeleteToken)).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(qInsertToken)).WithArgs(int64(7), "resume_b", "HORDE").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.IssueToken(context.Background(), "resume_b", 7, garrison.TeamHorde))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveToken_PostgresPlaceholders(t *testing.T) {
	db, mock, store := setupMockStore(t, DriverPostgres)
	defer db.Close()

	mock.ExpectQuery(`FROM character_resume_tokens WHERE token = \$1`).
		WithArgs("resume_a").
		WillReturnRows(sqlmock.NewRows([]string{"guid", "team"}).AddRow(int64(7), "ALLIANCE"))
	mock.ExpectQuery(`FROM character_resume_tokens WHERE token = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"guid", "team"}))

	id, team, ok, err := store.ResolveToken(context.Background(), "resume_a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, garrison.TeamAlliance, team)

	_, _, ok, err = store.ResolveToken(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_TokenRotation(t *testing.T) {
	store, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "garrison.sqlite"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.IssueToken(ctx, "resume_a", 7, garrison.TeamHorde))
	require.NoError(t, store.IssueToken(ctx, "resume_b", 7, garrison.TeamHorde))

	_, _, ok, err := store.ResolveToken(ctx, "resume_a")
	require.NoError(t, err)
	assert.False(t, ok, "old token is revoked")

	id, team, ok, err := store.ResolveToken(ctx, "resume_b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, garrison.TeamHorde, team)

	// A token belongs to one player only.
	assert.Error(t, store.IssueToken(ctx, "resume_b", 8, garrison.TeamAlliance))
}

func TestOpen_Rejects(t *testing.T) {
	_, err := Open(DriverSQLite, "")
	require.Error(t, err)
	_, err = Open("mysql", "x")
	require.ErrorContains(t, err, "unsupported")
}
