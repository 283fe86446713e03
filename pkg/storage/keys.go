package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Key layout. Every key starts with a namespace tag byte, followed by
// length-prefixed string components and, where present, a fixed 8-byte
// big-endian row key suffix so that prefix scans stay within one logical
// table and rows iterate in ascending key order.
//
//	'r' | ks | rowKey | column            -> raw JSON document
//	'i' | ks | column | path | value | rowKey -> 8-byte insertion sequence
//	'm' | ks                              -> msgpack keyspace metadata
//	'k' | ks                              -> 8-byte row key counter
const (
	tagRow     = 'r'
	tagIndex   = 'i'
	tagMeta    = 'm'
	tagCounter = 'k'
)

func appendComponent(dst []byte, s []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendRowKey(dst []byte, rowKey int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(rowKey))
}

func rowKeyPrefix(keyspace string, rowKey int64) []byte {
	return appendRowKey(keyspaceRowPrefix(keyspace), rowKey)
}

func rowColumnKey(keyspace string, rowKey int64, column string) []byte {
	return appendComponent(rowKeyPrefix(keyspace, rowKey), []byte(column))
}

func keyspaceRowPrefix(keyspace string) []byte {
	return appendComponent([]byte{tagRow}, []byte(keyspace))
}

func indexValuePrefix(keyspace, column, path string, encValue []byte) []byte {
	k := []byte{tagIndex}
	k = appendComponent(k, []byte(keyspace))
	k = appendComponent(k, []byte(column))
	k = appendComponent(k, []byte(path))
	return appendComponent(k, encValue)
}

func indexEntryKey(keyspace, column, path string, encValue []byte, rowKey int64) []byte {
	return appendRowKey(indexValuePrefix(keyspace, column, path, encValue), rowKey)
}

func metaKey(keyspace string) []byte {
	return appendComponent([]byte{tagMeta}, []byte(keyspace))
}

func counterKey(keyspace string) []byte {
	return appendComponent([]byte{tagCounter}, []byte(keyspace))
}

// rowKeyFromSuffix decodes the trailing 8-byte row key of an index entry or
// row key.
func rowKeyFromSuffix(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// splitRowColumnKey decodes the row key and column name from a full row
// column key, given the keyspace prefix length.
func splitRowColumnKey(key []byte, prefixLen int) (int64, string, error) {
	rest := key[prefixLen:]
	if len(rest) < 8 {
		return 0, "", fmt.Errorf("short row key %x", key)
	}
	rowKey := int64(binary.BigEndian.Uint64(rest[:8]))
	rest = rest[8:]
	n, sz := binary.Uvarint(rest)
	if sz <= 0 || int(n) != len(rest)-sz {
		return 0, "", fmt.Errorf("malformed column component in key %x", key)
	}
	return rowKey, string(rest[sz : sz+int(n)]), nil
}

// Index value encoding. The encoding only has to be injective for equality
// lookups; it is not order-preserving. Numbers are normalized to float64 so
// that a value written as int and read back as a JSON number land on the
// same entry.
const (
	valString = 's'
	valNumber = 'f'
	valBool   = 'b'
	valJSON   = 'j'
)

// encodeIndexValue returns the index key bytes for an extracted value. The
// second return is false for absent values (nil): nulls are never indexed.
func encodeIndexValue(v interface{}) ([]byte, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return append([]byte{valString}, t...), true
	case bool:
		if t {
			return []byte{valBool, 1}, true
		}
		return []byte{valBool, 0}, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return append([]byte{valString}, t.String()...), true
		}
		return encodeFloat(f), true
	case float64:
		return encodeFloat(t), true
	case float32:
		return encodeFloat(float64(t)), true
	case int:
		return encodeFloat(float64(t)), true
	case int32:
		return encodeFloat(float64(t)), true
	case int64:
		return encodeFloat(float64(t)), true
	case uint64:
		return encodeFloat(float64(t)), true
	default:
		// Composite values (objects, arrays) index by their canonical JSON
		// text. json.Marshal sorts object keys, so equal values encode
		// equally.
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, false
		}
		return append([]byte{valJSON}, raw...), true
	}
}

func encodeFloat(f float64) []byte {
	if f == 0 {
		f = 0 // collapse -0 and +0 onto one entry
	}
	var buf [9]byte
	buf[0] = valNumber
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(f))
	return buf[:]
}
