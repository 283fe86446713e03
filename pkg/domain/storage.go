package domain

import "io"

// Store is the core business interface the API layer consumes. The
// schemaless database handle implements it.
type Store interface {
	CreateKeySpace(name string, defs []IndexDefinition) error
	KeySpaceNames() []string

	CreateRow(keyspace string, columns map[string]Document) (int64, error)
	UpdateRow(keyspace string, rowKey int64, columns map[string]Document) error
	DeleteRow(keyspace string, rowKey int64) error
	DeleteColumn(keyspace string, rowKey int64, column string) error

	GetRow(keyspace string, rowKey int64) (Row, error)
	GetColumn(keyspace string, rowKey int64, column string) (Document, bool, error)
	AllRows(keyspace string) ([]Row, error)
	QueryIndex(keyspace string, def IndexDefinition, value Document) ([]Row, error)

	Export(w io.Writer) error
}
