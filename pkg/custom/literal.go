package custom

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseLiteral converts a field's literal text into a typed value according
// to its kind. Numbers with integral text come back as int, other numbers as
// float64. Booleans are true for "true" and "1". Arrays are split on commas
// and each trimmed item is parsed by the array's item kind; object and mixed
// items stay strings. Object and fetch literals hold a cached payload and
// are decoded as JSON when possible.
func ParseLiteral(k Kind, literal string) (any, error) {
	switch kind := k.(type) {
	case nil:
		return literal, nil
	case Primitive:
		return parsePrimitive(kind.Type, literal)
	case Array:
		parts := strings.Split(literal, ",")
		items := make([]any, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			t, ok := kind.Item.Primitive()
			if !ok {
				items = append(items, p)
				continue
			}
			v, err := parsePrimitive(t, p)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case Object, Fetch:
		var v any
		if err := json.Unmarshal([]byte(literal), &v); err == nil {
			return v, nil
		}
		return literal, nil
	case Reference:
		return literal, nil
	default:
		panic(fmt.Sprintf("custom: unreachable field kind %T", k))
	}
}

func parsePrimitive(t PrimitiveType, s string) (any, error) {
	switch t {
	case Number:
		s = strings.TrimSpace(s)
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", s)
		}
		return f, nil
	case Boolean:
		return s == "true" || s == "1", nil
	default:
		return s, nil
	}
}
