package storage

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

// Txn is a transaction-scoped view of the row store, index store and
// keyspace metadata. All methods operate on the same underlying badger
// transaction, so a write and its index maintenance either commit together
// or roll back together.
type Txn struct {
	engine *Engine
	txn    *badger.Txn
	update bool
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.StorageError{Op: op, Err: err}
}

// --- Row store ---

// PutColumn writes (or overwrites) a column's raw JSON document.
func (t *Txn) PutColumn(keyspace string, rowKey int64, column string, raw []byte) error {
	return storageErr("put", t.txn.Set(rowColumnKey(keyspace, rowKey, column), raw))
}

// GetColumn reads a column's raw JSON document. The second return is false
// when the column was never written.
func (t *Txn) GetColumn(keyspace string, rowKey int64, column string) ([]byte, bool, error) {
	item, err := t.txn.Get(rowColumnKey(keyspace, rowKey, column))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get", err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, storageErr("get", err)
	}
	return raw, true, nil
}

// DeleteColumn removes a column's document. Index maintenance is the
// caller's responsibility (Reindex with an absent new value, before the
// delete, while the old document is still readable).
func (t *Txn) DeleteColumn(keyspace string, rowKey int64, column string) error {
	return storageErr("delete", t.txn.Delete(rowColumnKey(keyspace, rowKey, column)))
}

// RowExists reports whether any column has been written for the row.
func (t *Txn) RowExists(keyspace string, rowKey int64) (bool, error) {
	prefix := rowKeyPrefix(keyspace, rowKey)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := t.txn.NewIterator(opts)
	defer it.Close()
	it.Rewind()
	return it.Valid(), nil
}

// GetRow returns all columns of a row as raw JSON documents, or
// ErrRowNotFound if no column exists.
func (t *Txn) GetRow(keyspace string, rowKey int64) (map[string][]byte, error) {
	prefix := rowKeyPrefix(keyspace, rowKey)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := t.txn.NewIterator(opts)
	defer it.Close()

	ksPrefixLen := len(keyspaceRowPrefix(keyspace))
	columns := make(map[string][]byte)
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		_, column, err := splitRowColumnKey(item.KeyCopy(nil), ksPrefixLen)
		if err != nil {
			return nil, storageErr("scan", err)
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return nil, storageErr("scan", err)
		}
		columns[column] = raw
	}
	if len(columns) == 0 {
		return nil, domain.ErrRowNotFound
	}
	return columns, nil
}

// ScanRows walks every (rowKey, column, document) triple of a keyspace in
// ascending row key order, columns in byte order within a row.
func (t *Txn) ScanRows(keyspace string, fn func(rowKey int64, column string, raw []byte) error) error {
	prefix := keyspaceRowPrefix(keyspace)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		rowKey, column, err := splitRowColumnKey(item.KeyCopy(nil), len(prefix))
		if err != nil {
			return storageErr("scan", err)
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return storageErr("scan", err)
		}
		if err := fn(rowKey, column, raw); err != nil {
			return err
		}
	}
	return nil
}

// NextRowKey allocates the next row key for a keyspace from its
// transactional counter. The counter write commits with the rest of the
// transaction, so an aborted create leaves no gap; concurrent creates on the
// same keyspace conflict at commit and surface a StorageError.
func (t *Txn) NextRowKey(keyspace string) (int64, error) {
	var next int64 = 1
	item, err := t.txn.Get(counterKey(keyspace))
	if err == nil {
		err = item.Value(func(val []byte) error {
			next = int64(binary.BigEndian.Uint64(val)) + 1
			return nil
		})
	}
	if err != nil && err != badger.ErrKeyNotFound {
		return 0, storageErr("counter", err)
	}
	return next, t.setRowKeyCounter(keyspace, next)
}

func (t *Txn) setRowKeyCounter(keyspace string, value int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(value))
	return storageErr("counter", t.txn.Set(counterKey(keyspace), buf[:]))
}

// RowKeyCounter reads the current counter value (0 when untouched).
func (t *Txn) RowKeyCounter(keyspace string) (int64, error) {
	item, err := t.txn.Get(counterKey(keyspace))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("counter", err)
	}
	var v int64
	err = item.Value(func(val []byte) error {
		v = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return v, storageErr("counter", err)
}

// BumpRowKeyCounter raises the counter to at least value. Used when a row is
// created with an explicit key so later automatic keys stay unique.
func (t *Txn) BumpRowKeyCounter(keyspace string, value int64) error {
	cur, err := t.RowKeyCounter(keyspace)
	if err != nil {
		return err
	}
	if value <= cur {
		return nil
	}
	return t.setRowKeyCounter(keyspace, value)
}

// --- Index store ---

// Reindex moves a row between index entries after its extracted value
// changed. oldValue/newValue are the extracted scalars, nil meaning absent.
// Equal old and new values are a no-op, which keeps the original insertion
// sequence (and makes idempotent puts leave the index untouched). A missing
// entry for a present old value is index corruption and surfaces as
// IndexConsistencyError.
func (t *Txn) Reindex(keyspace string, def domain.IndexDefinition, rowKey int64, oldValue, newValue domain.Document) error {
	oldEnc, oldOK := encodeIndexValue(oldValue)
	newEnc, newOK := encodeIndexValue(newValue)
	if oldOK && newOK && bytes.Equal(oldEnc, newEnc) {
		return nil
	}

	if oldOK {
		key := indexEntryKey(keyspace, def.Column, def.Path, oldEnc, rowKey)
		if _, err := t.txn.Get(key); err == badger.ErrKeyNotFound {
			return &domain.IndexConsistencyError{KeySpace: keyspace, Def: def, RowKey: rowKey}
		} else if err != nil {
			return storageErr("reindex", err)
		}
		if err := t.txn.Delete(key); err != nil {
			return storageErr("reindex", err)
		}
	}

	if newOK {
		seq, err := t.engine.nextIndexSeq()
		if err != nil {
			return storageErr("reindex", err)
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], seq)
		key := indexEntryKey(keyspace, def.Column, def.Path, newEnc, rowKey)
		if err := t.txn.Set(key, buf[:]); err != nil {
			return storageErr("reindex", err)
		}
	}
	return nil
}

// QueryIndex returns the keys of rows whose extracted value equals value, in
// order of first indexing. A fresh call re-reads current state.
func (t *Txn) QueryIndex(keyspace string, def domain.IndexDefinition, value domain.Document) ([]int64, error) {
	enc, ok := encodeIndexValue(value)
	if !ok {
		return nil, nil
	}
	prefix := indexValuePrefix(keyspace, def.Column, def.Path, enc)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := t.txn.NewIterator(opts)
	defer it.Close()

	type entry struct {
		rowKey int64
		seq    uint64
	}
	var entries []entry
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		var seq uint64
		err := item.Value(func(val []byte) error {
			seq = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return nil, storageErr("query", err)
		}
		entries = append(entries, entry{rowKey: rowKeyFromSuffix(key), seq: seq})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	rowKeys := make([]int64, len(entries))
	for i, e := range entries {
		rowKeys[i] = e.rowKey
	}
	return rowKeys, nil
}

// --- Keyspace metadata ---

// GetKeySpaceMeta reads the persisted index definitions of a keyspace. The
// second return is false when the keyspace was never registered.
func (t *Txn) GetKeySpaceMeta(keyspace string) ([]domain.IndexDefinition, bool, error) {
	item, err := t.txn.Get(metaKey(keyspace))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("meta", err)
	}
	var defs []domain.IndexDefinition
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &defs)
	})
	if err != nil {
		return nil, false, storageErr("meta", err)
	}
	return defs, true, nil
}

// PutKeySpaceMeta persists a keyspace's index definitions.
func (t *Txn) PutKeySpaceMeta(keyspace string, defs []domain.IndexDefinition) error {
	raw, err := msgpack.Marshal(defs)
	if err != nil {
		return storageErr("meta", err)
	}
	return storageErr("meta", t.txn.Set(metaKey(keyspace), raw))
}

// KeySpaceNames lists every registered keyspace in byte order.
func (t *Txn) KeySpaceNames() ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte{tagMeta}

	it := t.txn.NewIterator(opts)
	defer it.Close()

	var names []string
	for it.Rewind(); it.Valid(); it.Next() {
		key := it.Item().KeyCopy(nil)
		n, sz := binary.Uvarint(key[1:])
		if sz <= 0 {
			continue
		}
		names = append(names, string(key[1+sz:1+sz+int(n)]))
	}
	return names, nil
}
