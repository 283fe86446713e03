// Package schemaless is a schemaless document store on top of a
// transactional embedded storage engine. JSON data is organized into named
// keyspaces holding integer-keyed rows of named columns. Secondary indexes
// extract a scalar from a JSON-path inside a column and stay transactionally
// consistent with the row data; registered handlers are notified
// synchronously on every column write.
package schemaless

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
	"github.com/ZuoMatthew/schemaless/pkg/jsonpath"
	"github.com/ZuoMatthew/schemaless/pkg/storage"
)

// DB is the database handle: a registry of keyspaces sharing one storage
// engine and one event bus. All methods are safe for concurrent use;
// concurrency of writes is bounded by the engine's conflict detection.
type DB struct {
	engine *storage.Engine
	events *eventBus

	mu        sync.RWMutex
	keyspaces map[string]*KeySpace
}

// Open creates a database handle over a new storage engine. Previously
// registered keyspaces are loaded from persisted metadata.
func Open(options ...storage.EngineOption) (*DB, error) {
	engine, err := storage.NewEngine(options...)
	if err != nil {
		return nil, err
	}
	db, err := New(engine)
	if err != nil {
		engine.Close()
		return nil, err
	}
	return db, nil
}

// New creates a database handle over an existing engine.
func New(engine *storage.Engine) (*DB, error) {
	db := &DB{
		engine:    engine,
		events:    newEventBus(),
		keyspaces: make(map[string]*KeySpace),
	}
	if err := db.loadKeySpaces(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) loadKeySpaces() error {
	return db.engine.View(func(txn *storage.Txn) error {
		names, err := txn.KeySpaceNames()
		if err != nil {
			return err
		}
		for _, name := range names {
			defs, _, err := txn.GetKeySpaceMeta(name)
			if err != nil {
				return err
			}
			db.keyspaces[name] = &KeySpace{db: db, name: name, defs: defs}
		}
		return nil
	})
}

// Close closes the underlying engine. Keyspace handles are invalid after
// Close.
func (db *DB) Close() error {
	return db.engine.Close()
}

// Handler registers a global handler: it fires for every column write in
// every keyspace, after that keyspace's own handlers.
func (db *DB) Handler(fn domain.HandlerFunc) {
	db.events.register("", fn)
}

// KeySpace registers (or reopens) a keyspace with the given index
// definitions. Declared definitions can only grow: re-registering with a
// definition dropped or changed fails with ErrIndexMismatch, while
// definitions not seen before are accepted and backfilled from the
// keyspace's existing rows inside the registration transaction. Existing
// handles observe the grown definition set.
func (db *DB) KeySpace(name string, indexes ...domain.IndexDefinition) (*KeySpace, error) {
	for _, def := range indexes {
		if !jsonpath.Valid(def.Path) {
			return nil, fmt.Errorf("invalid json path %q for index on column %q", def.Path, def.Column)
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if ks, ok := db.keyspaces[name]; ok && defsCompatible(ks.defs, indexes) {
		return ks, nil
	}

	err := db.engine.Update(func(txn *storage.Txn) error {
		persisted, _, err := txn.GetKeySpaceMeta(name)
		if err != nil {
			return err
		}
		for _, def := range persisted {
			if !containsDef(indexes, def) {
				return domain.ErrIndexMismatch
			}
		}
		for _, def := range indexes {
			if !containsDef(persisted, def) {
				if err := backfillIndex(txn, name, def); err != nil {
					return err
				}
			}
		}
		return txn.PutKeySpaceMeta(name, indexes)
	})
	if err != nil {
		return nil, err
	}

	if ks, ok := db.keyspaces[name]; ok {
		ks.defs = indexes
		return ks, nil
	}
	ks := &KeySpace{db: db, name: name, defs: indexes}
	db.keyspaces[name] = ks
	return ks, nil
}

// backfillIndex indexes every existing row of a keyspace under a newly
// declared definition. The scan collects matches first so no writes happen
// while the row iterator is open.
func backfillIndex(txn *storage.Txn, name string, def domain.IndexDefinition) error {
	type match struct {
		rowKey int64
		value  domain.Document
	}
	var matches []match
	err := txn.ScanRows(name, func(rowKey int64, column string, raw []byte) error {
		if column != def.Column {
			return nil
		}
		var doc domain.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		if value, ok := jsonpath.Extract(doc, def.Path); ok {
			matches = append(matches, match{rowKey: rowKey, value: value})
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := txn.Reindex(name, def, m.rowKey, nil, m.value); err != nil {
			return err
		}
	}
	return nil
}

func defsCompatible(a, b []domain.IndexDefinition) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsDef(defs []domain.IndexDefinition, def domain.IndexDefinition) bool {
	for _, d := range defs {
		if d == def {
			return true
		}
	}
	return false
}

// --- domain.Store facade for the API layer ---

func (db *DB) getKeySpace(name string) (*KeySpace, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ks, ok := db.keyspaces[name]
	if !ok {
		return nil, domain.ErrKeySpaceNotFound
	}
	return ks, nil
}

// CreateKeySpace registers a keyspace by name; part of the domain.Store
// facade consumed by the HTTP layer.
func (db *DB) CreateKeySpace(name string, defs []domain.IndexDefinition) error {
	_, err := db.KeySpace(name, defs...)
	return err
}

// KeySpaceNames lists registered keyspace names.
func (db *DB) KeySpaceNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.keyspaces))
	for name := range db.keyspaces {
		names = append(names, name)
	}
	return names
}

// CreateRow creates a row in the named keyspace.
func (db *DB) CreateRow(keyspace string, columns map[string]domain.Document) (int64, error) {
	ks, err := db.getKeySpace(keyspace)
	if err != nil {
		return 0, err
	}
	return ks.CreateRow(columns)
}

// UpdateRow updates columns of an existing row in the named keyspace.
func (db *DB) UpdateRow(keyspace string, rowKey int64, columns map[string]domain.Document) error {
	ks, err := db.getKeySpace(keyspace)
	if err != nil {
		return err
	}
	return ks.UpdateRow(rowKey, columns)
}

// DeleteRow removes a row from the named keyspace.
func (db *DB) DeleteRow(keyspace string, rowKey int64) error {
	ks, err := db.getKeySpace(keyspace)
	if err != nil {
		return err
	}
	return ks.DeleteRow(rowKey)
}

// DeleteColumn removes one column of a row in the named keyspace.
func (db *DB) DeleteColumn(keyspace string, rowKey int64, column string) error {
	ks, err := db.getKeySpace(keyspace)
	if err != nil {
		return err
	}
	return ks.DeleteColumn(rowKey, column)
}

// GetRow reads a full row from the named keyspace.
func (db *DB) GetRow(keyspace string, rowKey int64) (domain.Row, error) {
	ks, err := db.getKeySpace(keyspace)
	if err != nil {
		return domain.Row{}, err
	}
	return ks.Row(rowKey)
}

// GetColumn reads one column of a row in the named keyspace.
func (db *DB) GetColumn(keyspace string, rowKey int64, column string) (domain.Document, bool, error) {
	ks, err := db.getKeySpace(keyspace)
	if err != nil {
		return nil, false, err
	}
	return ks.Column(rowKey, column)
}

// AllRows returns every row of the named keyspace.
func (db *DB) AllRows(keyspace string) ([]domain.Row, error) {
	ks, err := db.getKeySpace(keyspace)
	if err != nil {
		return nil, err
	}
	return ks.All()
}

// QueryIndex materializes the rows matching value on one of the keyspace's
// declared indexes.
func (db *DB) QueryIndex(keyspace string, def domain.IndexDefinition, value domain.Document) ([]domain.Row, error) {
	ks, err := db.getKeySpace(keyspace)
	if err != nil {
		return nil, err
	}
	ix, err := ks.Index(def.Column, def.Path)
	if err != nil {
		return nil, err
	}
	return ix.QueryRows(value)
}
