// Package runstate remembers remote reporting runs across restarts.
package runstate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const defaultDirPerm = 0o755

type store struct {
	db     *sql.DB
	logger logger.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// Open opens or creates the run state database at path.
func Open(ctx context.Context, path string, log logger.Logger) (Store, error) {
	errFactory := errors.New()

	if path == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  path,
			Error: err.Error(),
		})
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}
	db.SetMaxOpenConns(1)

	if err := validateSchema(ctx, db, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err).WithMessage("failed to prepare run state schema")
	}

	log.Debug().Str("path", path).Int("schema_version", SchemaVersion).Msg("Run state store opened")

	return &store{db: db, logger: log, now: time.Now}, nil
}

// Resolve returns the run to report into for key according to policy.
func (s *store) Resolve(ctx context.Context, key string, policy config.ResumePolicy, name, notes string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	switch policy {
	case config.ResumeMust:
		if existing == nil {
			return nil, errors.New().WithData(ErrNoRunToResume, key)
		}
		fallthrough
	case config.ResumeAllow:
		if existing != nil {
			existing.Resumed = true
			s.logger.Info().Str("run_id", existing.ID).Int64("step", existing.Step).Msg("Resuming remote run")
			return existing, nil
		}
	}

	return s.create(ctx, key, name, notes)
}

func (s *store) lookup(ctx context.Context, key string) (*Run, error) {
	var (
		run     Run
		created int64
	)

	err := s.db.QueryRowContext(ctx, selectRunSQL, key).
		Scan(&run.Key, &run.ID, &run.Name, &run.Notes, &run.Step, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New().Wrap(ErrTransactionFailed, err)
	}

	run.CreatedAt = time.Unix(created, 0)

	return &run, nil
}

func (s *store) create(ctx context.Context, key, name, notes string) (*Run, error) {
	now := s.now()
	run := &Run{
		Key:       key,
		ID:        uuid.NewString(),
		Name:      name,
		Notes:     notes,
		CreatedAt: time.Unix(now.Unix(), 0),
	}
	if run.Name == "" {
		run.Name = run.ID[:8]
	}

	if _, err := s.db.ExecContext(ctx, upsertRunSQL, key, run.ID, run.Name, run.Notes, now.Unix(), now.Unix()); err != nil {
		return nil, errors.New().Wrap(ErrTransactionFailed, err)
	}

	s.logger.Info().Str("run_id", run.ID).Str("name", run.Name).Msg("Started remote run")

	return run, nil
}

// Advance increments and returns the step counter of runID.
func (s *store) Advance(ctx context.Context, runID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	errFactory := errors.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Debug().Err(err).Msg("Failed to roll back transaction")
		}
	}()

	res, err := tx.ExecContext(ctx, advanceRunSQL, s.now().Unix(), runID)
	if err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, errFactory.WithData(ErrRunNotFound, runID)
	}

	var step int64
	if err := tx.QueryRowContext(ctx, selectStepSQL, runID).Scan(&step); err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}

	return step, nil
}

func (s *store) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to checkpoint run state")
	}

	if err := s.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}
