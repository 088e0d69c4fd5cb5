package transform

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/postroc/pkg/custom"
)

// Apply reshapes a node's raw data according to cfg. It never fails:
// a missing path yields nil and a failing transform expression yields data
// unchanged.
func Apply(data map[string]any, cfg custom.ExportConfig) any {
	switch c := cfg.(type) {
	case nil, custom.ExportFull:
		return data
	case custom.ExportField:
		return ExtractField(data, c.Path)
	case custom.ExportArray:
		if c.Path == "" {
			return data
		}
		return ExtractArrayField(data, c.Path)
	case custom.ExportTransform:
		if strings.TrimSpace(c.Expression) == "" {
			return data
		}
		v, err := Evaluate(data, c.Expression)
		if err != nil {
			return data
		}
		return v
	default:
		panic(fmt.Sprintf("transform: unreachable export config %T", c))
	}
}

// ExtractField walks a dotted path through nested maps. Numeric segments
// index into lists. An empty path returns data itself; any missing segment
// returns nil.
func ExtractField(data any, path string) any {
	if path == "" {
		return data
	}
	cur := data
	for _, seg := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil
			}
			cur = v[i]
		default:
			return nil
		}
	}
	return cur
}

// ExtractArrayField picks one key from every element of an array in data.
// The path is split on its last dot into the array path and the leaf key.
// Without a dot the leaf is the whole path and the array is the first
// top-level list value, in sorted key order. Elements lacking the key, or
// holding nil under it, are dropped. No matching array yields an empty
// slice.
func ExtractArrayField(data map[string]any, path string) []any {
	var (
		source []any
		leaf   = path
	)
	if i := strings.LastIndex(path, "."); i >= 0 {
		leaf = path[i+1:]
		source, _ = ExtractField(data, path[:i]).([]any)
	} else {
		for _, k := range slices.Sorted(maps.Keys(data)) {
			if arr, ok := data[k].([]any); ok {
				source = arr
				break
			}
		}
	}

	out := make([]any, 0, len(source))
	for _, item := range source {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if v := obj[leaf]; v != nil {
			out = append(out, v)
		}
	}
	return out
}
