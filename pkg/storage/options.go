package storage

import "github.com/dgraph-io/badger/v4"

type EngineOption func(*Engine)

// WithDataDir sets the directory holding the badger database files.
func WithDataDir(dir string) EngineOption {
	return func(engine *Engine) {
		engine.dataDir = dir
	}
}

// WithInMemory runs the engine entirely in memory. Nothing is persisted;
// intended for tests and ephemeral deployments.
func WithInMemory() EngineOption {
	return func(engine *Engine) {
		engine.inMemory = true
	}
}

// WithSyncWrites forces an fsync on every commit (default: false, badger's
// async durability).
func WithSyncWrites(enabled bool) EngineOption {
	return func(engine *Engine) {
		engine.syncWrites = enabled
	}
}

// WithBadgerLogger routes badger's internal logging. The default is nil,
// which silences it.
func WithBadgerLogger(logger badger.Logger) EngineOption {
	return func(engine *Engine) {
		engine.logger = logger
	}
}
