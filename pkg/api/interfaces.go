// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/phuslu/log"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/sysconf/pkg/clocksync"
	"github.com/ssargent/sysconf/pkg/storage"
	"github.com/ssargent/sysconf/pkg/store"
)

// SnapshotService defines the snapshot history operations the API uses
type SnapshotService interface {
	Create(data []byte) (*storage.Snapshot, bool, error)
	Get(id ksuid.KSUID) ([]byte, *storage.Snapshot, error)
	List() ([]storage.Snapshot, error)
	Prune(keep int) (int, error)
}

// ClockSyncer runs one counter bias sync session
type ClockSyncer interface {
	Run(ctx context.Context) (*clocksync.Result, error)
}

// Dependencies are the collaborators a server operates on. Snapshots and
// Syncer may be nil.
type Dependencies struct {
	Storage   store.ReadWriter
	Snapshots SnapshotService
	Syncer    ClockSyncer
	Logger    *log.Logger
}

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves until ctx is cancelled
	StartServer(ctx context.Context, deps Dependencies, config ServerConfig) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
