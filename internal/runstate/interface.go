package runstate

import (
	"context"
	"time"

	"codeberg.org/mutker/sysmon/internal/config"
)

// Store persists the identity of remote runs so a restarted process can
// continue the same run.
type Store interface {
	Resolve(ctx context.Context, key string, policy config.ResumePolicy, name, notes string) (*Run, error)
	Advance(ctx context.Context, runID string) (int64, error)
	Close() error
}

// Run is one remote reporting session.
type Run struct {
	Key       string
	ID        string
	Name      string
	Notes     string
	Step      int64
	Resumed   bool
	CreatedAt time.Time
}
