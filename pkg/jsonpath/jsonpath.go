// Package jsonpath evaluates a small JSON-path dialect against decoded JSON
// values. Paths look like `$.location.state` or `$.tags[0].name`: an optional
// leading `$.`, dot-separated object fields, and `[n]` array subscripts.
//
// Extraction is deterministic and side-effect free. A missing field, an
// out-of-range subscript, a subscript applied to a non-array, or a JSON null
// leaf all yield "absent": null values are never indexed.
package jsonpath

import (
	"strconv"
	"strings"
)

// Extract evaluates path against doc. The second return is false when the
// path does not resolve or resolves to JSON null.
func Extract(doc interface{}, path string) (interface{}, bool) {
	segs, err := parse(path)
	if err != nil {
		return nil, false
	}

	cur := doc
	for _, seg := range segs {
		switch {
		case seg.field != "":
			obj, ok := cur.(map[string]interface{})
			if !ok {
				return nil, false
			}
			cur, ok = obj[seg.field]
			if !ok {
				return nil, false
			}
		default:
			arr, ok := cur.([]interface{})
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.index]
		}
	}

	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Valid reports whether path is well formed.
func Valid(path string) bool {
	_, err := parse(path)
	return err == nil
}

type segment struct {
	field string
	index int
}

type parseError string

func (e parseError) Error() string { return "jsonpath: " + string(e) }

func parse(path string) ([]segment, error) {
	p := strings.TrimPrefix(path, "$")
	p = strings.TrimPrefix(p, ".")
	if p == "" {
		return nil, nil
	}

	var segs []segment
	for _, part := range strings.Split(p, ".") {
		if part == "" {
			return nil, parseError("empty path segment in " + strconv.Quote(path))
		}
		// A part may carry trailing subscripts: `tags[0][1]`.
		field := part
		var subs string
		if i := strings.IndexByte(part, '['); i >= 0 {
			field, subs = part[:i], part[i:]
		}
		if field != "" {
			segs = append(segs, segment{field: field})
		}
		for subs != "" {
			end := strings.IndexByte(subs, ']')
			if !strings.HasPrefix(subs, "[") || end < 0 {
				return nil, parseError("malformed subscript in " + strconv.Quote(path))
			}
			n, err := strconv.Atoi(subs[1:end])
			if err != nil || n < 0 {
				return nil, parseError("bad array index in " + strconv.Quote(path))
			}
			segs = append(segs, segment{index: n})
			subs = subs[end+1:]
			if subs != "" && !strings.HasPrefix(subs, "[") {
				return nil, parseError("trailing garbage after subscript in " + strconv.Quote(path))
			}
		}
	}
	return segs, nil
}
