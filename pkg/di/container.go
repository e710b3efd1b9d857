// Package di provides dependency injection container
package di

import (
	"github.com/phuslu/log"
	"github.com/ssargent/sysconf/pkg/api" //nolint:depguard
	"github.com/ssargent/sysconf/pkg/clocksync"
	"github.com/ssargent/sysconf/pkg/config"
	"github.com/ssargent/sysconf/pkg/storage"
	"github.com/ssargent/sysconf/pkg/store"
	"github.com/ssargent/sysconf/pkg/worldtime"
)

// TimeSourceFactory creates the reference time source used by sync
type TimeSourceFactory interface {
	CreateTimeSource(cfg config.TimeService, logger *log.Logger) clocksync.TimeSource
}

// StorageFactory opens the SYSCONF image and its snapshot history
type StorageFactory interface {
	OpenSysconf(path string, logger *log.Logger) store.ReadWriter
	// OpenSnapshots returns nil when snapshots are disabled
	OpenSnapshots(cfg config.Snapshots, logger *log.Logger) (*storage.SnapshotStore, error)
}

// DefaultTimeSourceFactory creates worldtime clients
type DefaultTimeSourceFactory struct{}

// CreateTimeSource creates a worldtime client for cfg
func (DefaultTimeSourceFactory) CreateTimeSource(cfg config.TimeService, logger *log.Logger) clocksync.TimeSource {
	return worldtime.NewClient(cfg.BaseURL, cfg.Timeout, worldtime.WithLogger(logger))
}

// DefaultStorageFactory opens files on disk and pebble snapshot stores
type DefaultStorageFactory struct{}

// OpenSysconf binds a file handle to path
func (DefaultStorageFactory) OpenSysconf(path string, logger *log.Logger) store.ReadWriter {
	return storage.NewFile(path, logger)
}

// OpenSnapshots opens the snapshot store described by cfg
func (DefaultStorageFactory) OpenSnapshots(cfg config.Snapshots, logger *log.Logger) (*storage.SnapshotStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	compression, err := storage.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	return storage.OpenSnapshotStore(cfg.Dir, compression, logger)
}

// Container holds all the dependencies for the application
type Container struct {
	timeSourceFactory TimeSourceFactory
	storageFactory    StorageFactory
	serverFactory     api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		timeSourceFactory: DefaultTimeSourceFactory{},
		storageFactory:    DefaultStorageFactory{},
		serverFactory:     api.NewServerFactory(),
	}
}

// GetTimeSourceFactory returns the time source factory
func (c *Container) GetTimeSourceFactory() TimeSourceFactory {
	return c.timeSourceFactory
}

// GetStorageFactory returns the storage factory
func (c *Container) GetStorageFactory() StorageFactory {
	return c.storageFactory
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetTimeSourceFactory allows overriding the time source factory (for testing)
func (c *Container) SetTimeSourceFactory(factory TimeSourceFactory) {
	c.timeSourceFactory = factory
}

// SetStorageFactory allows overriding the storage factory (for testing)
func (c *Container) SetStorageFactory(factory StorageFactory) {
	c.storageFactory = factory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}
