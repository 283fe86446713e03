// Package storage implements the row store, index store and keyspace
// metadata store on top of BadgerDB. Badger provides the transaction
// boundary: every logical write runs inside a single badger update
// transaction, so row data and index entries become visible atomically
// together.
package storage

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

const indexSeqKey = "seq!index"

// Engine owns the badger database and the index insertion-order sequence.
// Engines are shared: every keyspace registered on a database handle issues
// its reads and writes through the same Engine.
type Engine struct {
	db *badger.DB

	dataDir    string
	inMemory   bool
	syncWrites bool
	logger     badger.Logger

	seqMu    sync.Mutex
	indexSeq *badger.Sequence
}

// NewEngine opens (or creates) a badger-backed engine.
func NewEngine(options ...EngineOption) (*Engine, error) {
	engine := &Engine{
		dataDir: "schemaless-data",
	}
	for _, option := range options {
		option(engine)
	}

	var opts badger.Options
	if engine.inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(engine.dataDir)
	}
	opts = opts.WithSyncWrites(engine.syncWrites)
	opts.Logger = engine.logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	engine.db = db

	// Insertion-order sequence for index entries. Badger persists the
	// sequence state itself, so ordering survives reopen; an aborted write
	// may burn a value, which only leaves a gap.
	seq, err := db.GetSequence([]byte(indexSeqKey), 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open index sequence: %w", err)
	}
	engine.indexSeq = seq

	return engine, nil
}

// Update runs fn inside one read-write badger transaction. Any error from fn
// rolls the transaction back and is returned as-is; commit failures
// (including write conflicts) are wrapped as StorageError.
func (e *Engine) Update(fn func(txn *Txn) error) error {
	var fnErr error
	err := e.db.Update(func(btxn *badger.Txn) error {
		fnErr = fn(&Txn{engine: e, txn: btxn, update: true})
		return fnErr
	})
	if err == nil {
		return nil
	}
	if err == fnErr {
		return fnErr
	}
	return &domain.StorageError{Op: "commit", Err: err}
}

// View runs fn inside a read-only badger transaction.
func (e *Engine) View(fn func(txn *Txn) error) error {
	return e.db.View(func(btxn *badger.Txn) error {
		return fn(&Txn{engine: e, txn: btxn})
	})
}

// nextIndexSeq allocates the next index insertion-order value.
func (e *Engine) nextIndexSeq() (uint64, error) {
	e.seqMu.Lock()
	defer e.seqMu.Unlock()
	return e.indexSeq.Next()
}

// Close releases the index sequence and closes the database.
func (e *Engine) Close() error {
	if err := e.indexSeq.Release(); err != nil {
		e.db.Close()
		return fmt.Errorf("failed to release index sequence: %w", err)
	}
	return e.db.Close()
}

// InMemory reports whether the engine was opened without a backing directory.
func (e *Engine) InMemory() bool { return e.inMemory }
