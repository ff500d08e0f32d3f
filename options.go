package sawitdb

import (
	"github.com/rs/zerolog"
)

// WALSyncPolicy controls how aggressively the WAL is fsynced.
type WALSyncPolicy int

const (
	// WALSyncNormal flushes and syncs once per committed Query call.
	WALSyncNormal WALSyncPolicy = iota
	// WALSyncFull flushes and syncs after every logical WAL append.
	WALSyncFull
	// WALSyncOff never syncs; durability is best-effort only.
	WALSyncOff
)

// Options configures Open. Open fills every unset (zero or nil) cache
// size, Hooks and Logger with its default, so the zero value behaves like
// DefaultOptions().
type Options struct {
	// EnableWAL turns on write-ahead logging and crash recovery.
	EnableWAL bool
	// WALSync is the fsync policy used when EnableWAL is true.
	WALSync WALSyncPolicy
	// PageCacheSize bounds the number of decoded heap pages kept in the
	// Pager's read-through page-object cache.
	PageCacheSize int
	// QueryCacheCapacity bounds the number of parsed command templates
	// kept in the LRU query cache.
	QueryCacheCapacity int
	// Hooks receives post-commit notifications. Defaults to NoopHooks.
	Hooks Hooks
	// Logger receives structured diagnostics from the storage engine. A
	// nil Logger defaults to a disabled logger (zerolog.Nop()).
	Logger *zerolog.Logger
}

// DefaultOptions returns the Options Open uses when none are supplied.
func DefaultOptions() Options {
	return Options{
		EnableWAL:          false,
		WALSync:            WALSyncNormal,
		PageCacheSize:       256,
		QueryCacheCapacity: 1000,
		Hooks:              NoopHooks{},
	}
}

func (o Options) withDefaults() Options {
	if o.PageCacheSize <= 0 {
		o.PageCacheSize = 256
	}
	if o.QueryCacheCapacity <= 0 {
		o.QueryCacheCapacity = 1000
	}
	if o.Hooks == nil {
		o.Hooks = NoopHooks{}
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}
