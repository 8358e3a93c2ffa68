// Package garrisondb persists garrison rows keyed by owner id. SQLite is the
// default backend; postgres is supported through lib/pq.
package garrisondb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"garrison.ai/internal/sim/garrison"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	qSelectGarrison   = `SELECT site_level_id, follower_activations_remaining FROM character_garrison WHERE guid = ?`
	qSelectBlueprints = `SELECT building_id FROM character_garrison_blueprints WHERE guid = ? ORDER BY building_id`
	qSelectBuildings  = `SELECT plot_instance_id, building_id, time_built, active FROM character_garrison_buildings WHERE guid = ? ORDER BY plot_instance_id`

	qDeleteGarrison   = `DELETE FROM character_garrison WHERE guid = ?`
	qDeleteBlueprints = `DELETE FROM character_garrison_blueprints WHERE guid = ?`
	qDeleteBuildings  = `DELETE FROM character_garrison_buildings WHERE guid = ?`

	qInsertGarrison  = `INSERT INTO character_garrison (guid, site_level_id, follower_activations_remaining) VALUES (?, ?, ?)`
	qInsertBlueprint = `INSERT INTO character_garrison_blueprints (guid, building_id) VALUES (?, ?)`
	qInsertBuilding  = `INSERT INTO character_garrison_buildings (guid, plot_instance_id, building_id, time_built, active) VALUES (?, ?, ?, ?, ?)`

	qSelectToken = `SELECT guid, team FROM character_resume_tokens WHERE token = ?`
	qDeleteToken = `DELETE FROM character_resume_tokens WHERE guid = ?`
	qInsertToken = `INSERT INTO character_resume_tokens (guid, token, team) VALUES (?, ?, ?)`
)

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to dsn and creates the schema if needed. For sqlite, dsn is
// a file path.
func Open(driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty db dsn")
	}
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, err
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if err := initPragmas(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, driver: driver}, nil
}

// NewWithDB wraps an open handle without touching the schema.
func NewWithDB(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS character_garrison (
			guid BIGINT PRIMARY KEY,
			site_level_id INTEGER NOT NULL,
			follower_activations_remaining INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS character_garrison_blueprints (
			guid BIGINT NOT NULL,
			building_id INTEGER NOT NULL,
			PRIMARY KEY (guid, building_id)
		);`,
		`CREATE TABLE IF NOT EXISTS character_garrison_buildings (
			guid BIGINT NOT NULL,
			plot_instance_id INTEGER NOT NULL,
			building_id INTEGER NOT NULL,
			time_built BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (guid, plot_instance_id)
		);`,
		`CREATE TABLE IF NOT EXISTS character_resume_tokens (
			guid BIGINT PRIMARY KEY,
			token TEXT NOT NULL UNIQUE,
			team TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Load reads everything stored for ownerID. A missing garrison yields
// Rows with a nil Garrison and no error.
func (s *Store) Load(ctx context.Context, ownerID uint64) (garrison.Rows, error) {
	var rows garrison.Rows
	guid := int64(ownerID)

	var g garrison.GarrisonRow
	err := s.db.QueryRowContext(ctx, s.rebind(qSelectGarrison), guid).
		Scan(&g.SiteLevelID, &g.FollowerActivationsRemaining)
	if errors.Is(err, sql.ErrNoRows) {
		return rows, nil
	}
	if err != nil {
		return rows, fmt.Errorf("load garrison %d: %w", ownerID, err)
	}
	rows.Garrison = &g

	bp, err := s.db.QueryContext(ctx, s.rebind(qSelectBlueprints), guid)
	if err != nil {
		return rows, fmt.Errorf("load blueprints %d: %w", ownerID, err)
	}
	defer bp.Close()
	for bp.Next() {
		var r garrison.BlueprintRow
		if err := bp.Scan(&r.BuildingID); err != nil {
			return rows, err
		}
		rows.Blueprints = append(rows.Blueprints, r)
	}
	if err := bp.Err(); err != nil {
		return rows, err
	}

	bl, err := s.db.QueryContext(ctx, s.rebind(qSelectBuildings), guid)
	if err != nil {
		return rows, fmt.Errorf("load buildings %d: %w", ownerID, err)
	}
	defer bl.Close()
	for bl.Next() {
		var r garrison.BuildingRow
		if err := bl.Scan(&r.PlotInstanceID, &r.BuildingID, &r.TimeBuilt, &r.Active); err != nil {
			return rows, err
		}
		rows.Buildings = append(rows.Buildings, r)
	}
	return rows, bl.Err()
}

// Save replaces everything stored for ownerID with rows in one transaction.
// A nil rows.Garrison deletes the owner's garrison.
func (s *Store) Save(ctx context.Context, ownerID uint64, rows garrison.Rows) error {
	guid := int64(ownerID)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{qDeleteGarrison, qDeleteBlueprints, qDeleteBuildings} {
		if _, err := tx.ExecContext(ctx, s.rebind(q), guid); err != nil {
			return fmt.Errorf("save garrison %d: %w", ownerID, err)
		}
	}

	if g := rows.Garrison; g != nil {
		if _, err := tx.ExecContext(ctx, s.rebind(qInsertGarrison),
			guid, int64(g.SiteLevelID), int64(g.FollowerActivationsRemaining)); err != nil {
			return fmt.Errorf("save garrison %d: %w", ownerID, err)
		}
		for _, b := range rows.Blueprints {
			if _, err := tx.ExecContext(ctx, s.rebind(qInsertBlueprint), guid, int64(b.BuildingID)); err != nil {
				return fmt.Errorf("save blueprint %d: %w", b.BuildingID, err)
			}
		}
		for _, b := range rows.Buildings {
			if _, err := tx.ExecContext(ctx, s.rebind(qInsertBuilding),
				guid, int64(b.PlotInstanceID), int64(b.BuildingID), b.TimeBuilt, b.Active); err != nil {
				return fmt.Errorf("save building on plot %d: %w", b.PlotInstanceID, err)
			}
		}
	}
	return tx.Commit()
}

// ResolveToken maps a resume token to the player it was issued to.
func (s *Store) ResolveToken(ctx context.Context, token string) (uint64, garrison.Team, bool, error) {
	var (
		guid int64
		name string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(qSelectToken), token).Scan(&guid, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("resolve token: %w", err)
	}
	team, ok := garrison.ParseTeam(name)
	if !ok {
		return 0, 0, false, fmt.Errorf("resolve token: player %d has bad team %q", guid, name)
	}
	return uint64(guid), team, true, nil
}

// IssueToken makes token the only resume token of playerID.
func (s *Store) IssueToken(ctx context.Context, token string, playerID uint64, team garrison.Team) error {
	guid := int64(playerID)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(qDeleteToken), guid); err != nil {
		return fmt.Errorf("issue token %d: %w", playerID, err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(qInsertToken), guid, token, team.String()); err != nil {
		return fmt.Errorf("issue token %d: %w", playerID, err)
	}
	return tx.Commit()
}

// rebind rewrites ? placeholders as $n for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
