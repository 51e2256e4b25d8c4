package sink

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/render"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

const (
	logFilePerm = 0o644
	logDirPerm  = 0o755
)

// File appends one record per snapshot to a log file and syncs after each
// record. Existing content is never truncated.
type File struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewFile opens path for appending, creating it and its directory when
// missing. Failure here is process-fatal.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), logDirPerm); err != nil {
		return nil, errors.New().Wrap(errors.ErrOpenLog, err).WithData(path)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePerm)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrOpenLog, err).WithData(path)
	}

	return &File{path: path, f: f}, nil
}

func (*File) Name() string { return "file" }

// Path returns the log file location.
func (s *File) Path() string { return s.path }

func (s *File) Consume(ctx context.Context, snap *telemetry.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return errors.New().WithMessage(ErrWriteFailed, "log file is closed")
	}

	record := render.Snapshot(snap, render.Options{Timestamp: true, Separator: true})
	if _, err := s.f.WriteString(record); err != nil {
		return errors.New().Wrap(ErrWriteFailed, err).WithData(s.path)
	}
	if err := s.f.Sync(); err != nil {
		return errors.New().Wrap(ErrWriteFailed, err).WithData(s.path)
	}

	return nil
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}

	err := s.f.Close()
	s.f = nil
	if err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err).WithData(s.path)
	}

	return nil
}
