package domain

// Document is an arbitrary JSON value: object, array, string, number, bool
// or nil. The store treats documents as opaque; only the JSON-path extractor
// interprets their structure.
type Document = interface{}

// Row is an integer-keyed collection of named JSON columns within a KeySpace.
type Row struct {
	Key     int64               `json:"row_key"`
	Columns map[string]Document `json:"columns"`
}

// IndexDefinition describes a secondary index: the column it watches and the
// JSON-path whose extracted value becomes the index key. Two definitions are
// distinct if either field differs; the set of definitions for a KeySpace is
// fixed at registration time.
type IndexDefinition struct {
	Column string `json:"column" msgpack:"column" yaml:"column"`
	Path   string `json:"path" msgpack:"path" yaml:"path"`
}

// HandlerFunc is invoked synchronously for every column write in its scope.
// A non-nil return is collected into a HandlerError; it never rolls back the
// write that triggered it.
type HandlerFunc func(rowKey int64, column string, value Document) error
