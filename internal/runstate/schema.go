package runstate

import (
	"context"
	"database/sql"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS runs (
	       key         TEXT PRIMARY KEY,
	       run_id      TEXT NOT NULL UNIQUE,
	       name        TEXT NOT NULL,
	       notes       TEXT NOT NULL,
	       step        INTEGER NOT NULL DEFAULT 0 CHECK (step >= 0),
	       created_at  INTEGER NOT NULL,
	       updated_at  INTEGER NOT NULL
	   );`

	selectRunSQL = `
    SELECT key, run_id, name, notes, step, created_at
    FROM runs
    WHERE key = ?`

	upsertRunSQL = `
    INSERT INTO runs (key, run_id, name, notes, step, created_at, updated_at)
    VALUES (?, ?, ?, ?, 0, ?, ?)
    ON CONFLICT (key) DO UPDATE SET
        run_id = excluded.run_id,
        name = excluded.name,
        notes = excluded.notes,
        step = 0,
        created_at = excluded.created_at,
        updated_at = excluded.updated_at`

	advanceRunSQL = `
    UPDATE runs SET step = step + 1, updated_at = ?
    WHERE run_id = ?`

	selectStepSQL = `SELECT step FROM runs WHERE run_id = ?`
)

// initSchema creates the tables and records the current version.
func initSchema(ctx context.Context, db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Debug().Int("version", SchemaVersion).Msg("Run state schema initialized")

	return nil
}

// schemaVersion returns the stored schema version, or 0 for a new database.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	errFactory := errors.New()

	var exists bool
	err := db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name='schema_versions'
        )
    `).Scan(&exists)
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRowContext(ctx, `
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// validateSchema recreates the schema when the stored version differs.
// Stored runs are discarded on mismatch; the next Resolve starts fresh.
func validateSchema(ctx context.Context, db *sql.DB, log logger.Logger) error {
	version, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	if version == SchemaVersion {
		log.Debug().Int("version", version).Msg("Run state schema is current")
		return nil
	}

	if version != 0 {
		log.Warn().
			Int("found", version).
			Int("expected", SchemaVersion).
			Msg("Run state schema version mismatch, recreating")
	}

	if err := dropTables(ctx, db, log); err != nil {
		return err
	}

	return initSchema(ctx, db, log)
}

func dropTables(ctx context.Context, db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback drop tables")
			}
		}
	}()

	for _, table := range []string{"runs", "schema_versions"} {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return errFactory.WithData(ErrSchemaMigrationFailed, struct {
				Phase string
				Table string
				Error string
			}{
				Phase: "drop_table",
				Table: table,
				Error: err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}
	committed = true

	return nil
}
