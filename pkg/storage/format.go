package storage

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Magic bytes identifying a snapshot file
	MagicBytes = "SLDB"
	// Current snapshot format version
	FormatVersion = 1
	// File extension for snapshot files
	FileExtension = ".sldb"
	// FlagUncompressed marks a snapshot whose body is raw msgpack. Written
	// when lz4 reports the body incompressible.
	FlagUncompressed = 1
)

// FileHeader is the fixed header of a snapshot stream.
type FileHeader struct {
	Magic    [4]byte // "SLDB"
	Version  uint8   // Format version
	Flags    uint8   // Compression flags
	Reserved [2]byte // Reserved for future use
}

// WriteHeader writes the snapshot header to the given writer.
func WriteHeader(w io.Writer, flags uint8) error {
	header := FileHeader{
		Magic:    [4]byte{'S', 'L', 'D', 'B'},
		Version:  FormatVersion,
		Flags:    flags,
		Reserved: [2]byte{0, 0},
	}
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the snapshot header.
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid snapshot format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", header.Version)
	}

	return &header, nil
}

// SnapshotData is the msgpack body of a snapshot: keyspace metadata, row key
// counters and every raw column document.
type SnapshotData struct {
	Meta     map[string][]IndexDefinitionRecord `msgpack:"meta"`
	Counters map[string]int64                   `msgpack:"counters"`
	Rows     []RowRecord                        `msgpack:"rows"`
}

// IndexDefinitionRecord mirrors domain.IndexDefinition in the snapshot body.
type IndexDefinitionRecord struct {
	Column string `msgpack:"column"`
	Path   string `msgpack:"path"`
}

// RowRecord is one (keyspace, row, column) document in a snapshot.
type RowRecord struct {
	KeySpace string `msgpack:"keyspace"`
	RowKey   int64  `msgpack:"row_key"`
	Column   string `msgpack:"column"`
	Value    []byte `msgpack:"value"`
}

// NewSnapshotData creates an empty snapshot body.
func NewSnapshotData() *SnapshotData {
	return &SnapshotData{
		Meta:     make(map[string][]IndexDefinitionRecord),
		Counters: make(map[string]int64),
	}
}
