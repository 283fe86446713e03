package schemaless

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
	"github.com/ZuoMatthew/schemaless/pkg/jsonpath"
	"github.com/ZuoMatthew/schemaless/pkg/storage"
)

// KeySpace is a named collection of rows sharing a fixed set of secondary
// index definitions and event handlers. All write methods run inside one
// storage transaction: the row data and every affected index entry become
// visible atomically together, and a storage failure rolls both back.
//
// Handlers fire synchronously inside the write, after the column and its
// index entries have been applied. Handlers that already observed a value
// are not "un-notified" when a later column in the same call fails, and a
// handler must not issue writes on the same database: nested transactions
// are undefined behavior.
type KeySpace struct {
	db   *DB
	name string
	defs []domain.IndexDefinition
}

// NewIndex builds an index definition for a keyspace registration.
func NewIndex(column, path string) domain.IndexDefinition {
	return domain.IndexDefinition{Column: column, Path: path}
}

// Name returns the keyspace name.
func (ks *KeySpace) Name() string { return ks.name }

// Indexes returns the keyspace's index definitions in registration order.
func (ks *KeySpace) Indexes() []domain.IndexDefinition {
	defs := make([]domain.IndexDefinition, len(ks.defs))
	copy(defs, ks.defs)
	return defs
}

// Handler registers fn for every column write in this keyspace.
// Keyspace-scoped handlers fire before global ones, in registration order.
func (ks *KeySpace) Handler(fn domain.HandlerFunc) {
	ks.db.events.register(ks.name, fn)
}

// CreateRow writes the given columns under a freshly allocated row key and
// returns the key. A returned *domain.HandlerError means the write itself
// committed and only handlers failed.
func (ks *KeySpace) CreateRow(columns map[string]domain.Document) (int64, error) {
	var rowKey int64
	var handlerErrs []error
	err := ks.db.engine.Update(func(txn *storage.Txn) error {
		var err error
		rowKey, err = txn.NextRowKey(ks.name)
		if err != nil {
			return err
		}
		return ks.writeColumns(txn, rowKey, columns, false, &handlerErrs)
	})
	if err != nil {
		return 0, err
	}
	if len(handlerErrs) > 0 {
		return rowKey, &domain.HandlerError{Errors: handlerErrs}
	}
	return rowKey, nil
}

// CreateRowWithKey writes the given columns under a caller-chosen row key.
// Fails with ErrRowExists when the key is taken.
func (ks *KeySpace) CreateRowWithKey(rowKey int64, columns map[string]domain.Document) error {
	if rowKey <= 0 {
		return fmt.Errorf("row key must be positive, got %d", rowKey)
	}
	var handlerErrs []error
	err := ks.db.engine.Update(func(txn *storage.Txn) error {
		exists, err := txn.RowExists(ks.name, rowKey)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrRowExists
		}
		if err := txn.BumpRowKeyCounter(ks.name, rowKey); err != nil {
			return err
		}
		return ks.writeColumns(txn, rowKey, columns, false, &handlerErrs)
	})
	if err != nil {
		return err
	}
	if len(handlerErrs) > 0 {
		return &domain.HandlerError{Errors: handlerErrs}
	}
	return nil
}

// UpdateRow overwrites a subset of an existing row's columns. Fails with
// ErrRowNotFound when the row does not exist. For every indexed column the
// prior document is read back and its extracted value passed to the index
// store, so stale entries are removed before the new value is indexed.
func (ks *KeySpace) UpdateRow(rowKey int64, columns map[string]domain.Document) error {
	var handlerErrs []error
	err := ks.db.engine.Update(func(txn *storage.Txn) error {
		exists, err := txn.RowExists(ks.name, rowKey)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrRowNotFound
		}
		return ks.writeColumns(txn, rowKey, columns, true, &handlerErrs)
	})
	if err != nil {
		return err
	}
	if len(handlerErrs) > 0 {
		return &domain.HandlerError{Errors: handlerErrs}
	}
	return nil
}

// writeColumns is the write orchestration shared by create and update: for
// each column in deterministic (sorted) order, read the prior document when
// updating, persist the new document, reindex every definition watching the
// column, then dispatch events. Must run inside an update transaction.
func (ks *KeySpace) writeColumns(txn *storage.Txn, rowKey int64, columns map[string]domain.Document, readOld bool, handlerErrs *[]error) error {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, column := range names {
		value := columns[column]
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("column %q is not JSON-serializable: %w", column, err)
		}

		// The prior extracted value must be known before the overwrite,
		// otherwise stale index entries are left behind.
		var oldDoc domain.Document
		var haveOld bool
		if readOld && ks.columnIndexed(column) {
			oldRaw, ok, err := txn.GetColumn(ks.name, rowKey, column)
			if err != nil {
				return err
			}
			if ok {
				if err := json.Unmarshal(oldRaw, &oldDoc); err != nil {
					return fmt.Errorf("stored document for column %q is unreadable: %w", column, err)
				}
				haveOld = true
			}
		}

		if err := txn.PutColumn(ks.name, rowKey, column, raw); err != nil {
			return err
		}

		for _, def := range ks.defs {
			if def.Column != column {
				continue
			}
			var oldValue domain.Document
			if haveOld {
				if v, ok := jsonpath.Extract(oldDoc, def.Path); ok {
					oldValue = v
				}
			}
			var newValue domain.Document
			if v, ok := jsonpath.Extract(value, def.Path); ok {
				newValue = v
			}
			if err := txn.Reindex(ks.name, def, rowKey, oldValue, newValue); err != nil {
				return err
			}
		}

		*handlerErrs = append(*handlerErrs, ks.db.events.dispatch(ks.name, rowKey, column, value)...)
	}
	return nil
}

func (ks *KeySpace) columnIndexed(column string) bool {
	for _, def := range ks.defs {
		if def.Column == column {
			return true
		}
	}
	return false
}

// DeleteColumn removes one column from a row and drops any index entries
// derived from it. Deleting an absent column is a no-op; no events fire.
func (ks *KeySpace) DeleteColumn(rowKey int64, column string) error {
	return ks.db.engine.Update(func(txn *storage.Txn) error {
		return ks.deleteColumn(txn, rowKey, column)
	})
}

func (ks *KeySpace) deleteColumn(txn *storage.Txn, rowKey int64, column string) error {
	oldRaw, ok, err := txn.GetColumn(ks.name, rowKey, column)
	if err != nil || !ok {
		return err
	}
	var oldDoc domain.Document
	if err := json.Unmarshal(oldRaw, &oldDoc); err != nil {
		return fmt.Errorf("stored document for column %q is unreadable: %w", column, err)
	}
	for _, def := range ks.defs {
		if def.Column != column {
			continue
		}
		if oldValue, ok := jsonpath.Extract(oldDoc, def.Path); ok {
			if err := txn.Reindex(ks.name, def, rowKey, oldValue, nil); err != nil {
				return err
			}
		}
	}
	return txn.DeleteColumn(ks.name, rowKey, column)
}

// DeleteRow removes every column of a row and its index entries. Fails with
// ErrRowNotFound when the row does not exist; no events fire.
func (ks *KeySpace) DeleteRow(rowKey int64) error {
	return ks.db.engine.Update(func(txn *storage.Txn) error {
		columns, err := txn.GetRow(ks.name, rowKey)
		if err != nil {
			return err
		}
		for column := range columns {
			if err := ks.deleteColumn(txn, rowKey, column); err != nil {
				return err
			}
		}
		return nil
	})
}

// Row reads all columns of a row.
func (ks *KeySpace) Row(rowKey int64) (domain.Row, error) {
	row := domain.Row{Key: rowKey}
	err := ks.db.engine.View(func(txn *storage.Txn) error {
		var err error
		row.Columns, err = ks.readRow(txn, rowKey)
		return err
	})
	return row, err
}

func (ks *KeySpace) readRow(txn *storage.Txn, rowKey int64) (map[string]domain.Document, error) {
	rawColumns, err := txn.GetRow(ks.name, rowKey)
	if err != nil {
		return nil, err
	}
	columns := make(map[string]domain.Document, len(rawColumns))
	for column, raw := range rawColumns {
		var doc domain.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("stored document for column %q is unreadable: %w", column, err)
		}
		columns[column] = doc
	}
	return columns, nil
}

// Column reads a single column of a row. The second return is false when the
// column was never written.
func (ks *KeySpace) Column(rowKey int64, column string) (domain.Document, bool, error) {
	var doc domain.Document
	var found bool
	err := ks.db.engine.View(func(txn *storage.Txn) error {
		raw, ok, err := txn.GetColumn(ks.name, rowKey, column)
		if err != nil || !ok {
			return err
		}
		found = true
		return json.Unmarshal(raw, &doc)
	})
	return doc, found, err
}

// All returns every row of the keyspace in ascending row key order.
func (ks *KeySpace) All() ([]domain.Row, error) {
	var rows []domain.Row
	err := ks.db.engine.View(func(txn *storage.Txn) error {
		var cur *domain.Row
		err := txn.ScanRows(ks.name, func(rowKey int64, column string, raw []byte) error {
			if cur == nil || cur.Key != rowKey {
				if cur != nil {
					rows = append(rows, *cur)
				}
				cur = &domain.Row{Key: rowKey, Columns: make(map[string]domain.Document)}
			}
			var doc domain.Document
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("stored document for column %q is unreadable: %w", column, err)
			}
			cur.Columns[column] = doc
			return nil
		})
		if err != nil {
			return err
		}
		if cur != nil {
			rows = append(rows, *cur)
		}
		return nil
	})
	return rows, err
}

// Index returns a query handle for one of the keyspace's declared index
// definitions.
func (ks *KeySpace) Index(column, path string) (*Index, error) {
	for _, def := range ks.defs {
		if def.Column == column && def.Path == path {
			return &Index{ks: ks, def: def}, nil
		}
	}
	return nil, fmt.Errorf("no index on (%s, %s) in keyspace %s: %w", column, path, ks.name, domain.ErrIndexMismatch)
}

// Index is a query handle for a single secondary index.
type Index struct {
	ks  *KeySpace
	def domain.IndexDefinition
}

// Definition returns the index definition behind the handle.
func (ix *Index) Definition() domain.IndexDefinition { return ix.def }

// Query returns the keys of rows whose extracted value equals value, in
// order of first indexing.
func (ix *Index) Query(value domain.Document) ([]int64, error) {
	var keys []int64
	err := ix.ks.db.engine.View(func(txn *storage.Txn) error {
		var err error
		keys, err = txn.QueryIndex(ix.ks.name, ix.def, value)
		return err
	})
	return keys, err
}

// QueryRows materializes the matching rows instead of just their keys.
func (ix *Index) QueryRows(value domain.Document) ([]domain.Row, error) {
	var rows []domain.Row
	err := ix.ks.db.engine.View(func(txn *storage.Txn) error {
		keys, err := txn.QueryIndex(ix.ks.name, ix.def, value)
		if err != nil {
			return err
		}
		for _, rowKey := range keys {
			columns, err := ix.ks.readRow(txn, rowKey)
			if err != nil {
				return err
			}
			rows = append(rows, domain.Row{Key: rowKey, Columns: columns})
		}
		return nil
	})
	return rows, err
}
