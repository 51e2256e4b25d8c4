// Package pid keeps a single sysmon process per log directory.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/sysmon/internal/errors"
	"golang.org/x/sys/unix"
)

const fileName = "sysmon.pid"

// File is a pid lock held by the current process.
type File struct {
	path string
}

// Path returns the pid file location for dir.
func Path(dir string) string {
	return filepath.Join(dir, fileName)
}

// Acquire writes the current process ID to dir. A pid file naming a live
// process fails with ErrAlreadyRunning; a stale one is replaced.
func Acquire(dir string) (*File, error) {
	errFactory := errors.New()
	path := Path(dir)

	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && alive(pid) {
			return nil, errFactory.WithData(errors.ErrAlreadyRunning, pid)
		}
	} else if !os.IsNotExist(err) {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	return &File{path: path}, nil
}

// Release removes the pid file.
func (f *File) Release() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(pid int) bool {
	if pid <= 0 || pid == os.Getpid() {
		return false
	}

	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
