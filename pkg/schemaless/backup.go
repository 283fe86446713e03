package schemaless

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
	"github.com/ZuoMatthew/schemaless/pkg/jsonpath"
	"github.com/ZuoMatthew/schemaless/pkg/storage"
)

// Export writes a consistent snapshot of the whole database to w:
// keyspace metadata, row key counters and every column document, read in a
// single read transaction, msgpack-encoded and lz4-compressed behind a
// magic/version header. Index entries are not exported; Import rebuilds
// them, so "order of first indexing" restarts at import.
func (db *DB) Export(w io.Writer) error {
	snapshot := storage.NewSnapshotData()

	err := db.engine.View(func(txn *storage.Txn) error {
		names, err := txn.KeySpaceNames()
		if err != nil {
			return err
		}
		for _, name := range names {
			defs, _, err := txn.GetKeySpaceMeta(name)
			if err != nil {
				return err
			}
			records := make([]storage.IndexDefinitionRecord, len(defs))
			for i, def := range defs {
				records[i] = storage.IndexDefinitionRecord{Column: def.Column, Path: def.Path}
			}
			snapshot.Meta[name] = records

			counter, err := txn.RowKeyCounter(name)
			if err != nil {
				return err
			}
			if counter > 0 {
				snapshot.Counters[name] = counter
			}

			err = txn.ScanRows(name, func(rowKey int64, column string, raw []byte) error {
				snapshot.Rows = append(snapshot.Rows, storage.RowRecord{
					KeySpace: name,
					RowKey:   rowKey,
					Column:   column,
					Value:    raw,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	msgpackData, err := msgpack.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	compressedData := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, compressedData, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}

	var flags uint8
	body := compressedData[:n]
	if n == 0 {
		// lz4 reports the body incompressible; store it raw.
		flags = storage.FlagUncompressed
		body = msgpackData
	}

	if err := storage.WriteHeader(w, flags); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(len(msgpackData)))
	if _, err := w.Write(sizeBuf[:]); err != nil {
		return fmt.Errorf("failed to write size: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write snapshot body: %w", err)
	}
	return nil
}

// Import restores a snapshot produced by Export into this database and
// rebuilds every secondary index from the restored rows. The database must
// be empty: restoring over existing keyspaces would leave their index
// entries stale, so Import refuses instead. Restored keyspaces join the
// registry.
func (db *DB) Import(r io.Reader) error {
	var existing []string
	err := db.engine.View(func(txn *storage.Txn) error {
		var err error
		existing, err = txn.KeySpaceNames()
		return err
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("import requires an empty database, found %d keyspace(s)", len(existing))
	}

	header, err := storage.ReadHeader(r)
	if err != nil {
		return fmt.Errorf("invalid snapshot header: %w", err)
	}
	var sizeBuf [8]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return fmt.Errorf("failed to read size: %w", err)
	}
	uncompressedSize := binary.LittleEndian.Uint64(sizeBuf[:])

	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot body: %w", err)
	}
	msgpackData := body
	if header.Flags&storage.FlagUncompressed == 0 {
		msgpackData = make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(body, msgpackData)
		if err != nil {
			return fmt.Errorf("failed to decompress snapshot: %w", err)
		}
		msgpackData = msgpackData[:n]
	}

	var snapshot storage.SnapshotData
	if err := msgpack.Unmarshal(msgpackData, &snapshot); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	meta := make(map[string][]domain.IndexDefinition, len(snapshot.Meta))
	for name, records := range snapshot.Meta {
		defs := make([]domain.IndexDefinition, len(records))
		for i, rec := range records {
			defs[i] = domain.IndexDefinition{Column: rec.Column, Path: rec.Path}
		}
		meta[name] = defs
	}

	err = db.engine.Update(func(txn *storage.Txn) error {
		for name, defs := range meta {
			if err := txn.PutKeySpaceMeta(name, defs); err != nil {
				return err
			}
		}
		for name, counter := range snapshot.Counters {
			if err := txn.BumpRowKeyCounter(name, counter); err != nil {
				return err
			}
		}
		for _, rec := range snapshot.Rows {
			if err := txn.PutColumn(rec.KeySpace, rec.RowKey, rec.Column, rec.Value); err != nil {
				return err
			}
			for _, def := range meta[rec.KeySpace] {
				if def.Column != rec.Column {
					continue
				}
				var doc domain.Document
				if err := json.Unmarshal(rec.Value, &doc); err != nil {
					return fmt.Errorf("snapshot document for (%s, %d, %s) is unreadable: %w",
						rec.KeySpace, rec.RowKey, rec.Column, err)
				}
				if value, ok := jsonpath.Extract(doc, def.Path); ok {
					if err := txn.Reindex(rec.KeySpace, def, rec.RowKey, nil, value); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for name, defs := range meta {
		if _, ok := db.keyspaces[name]; !ok {
			db.keyspaces[name] = &KeySpace{db: db, name: name, defs: defs}
		}
	}
	return nil
}
