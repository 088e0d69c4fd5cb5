package populate

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/env"
	perrors "github.com/matzehuels/postroc/pkg/errors"
	"github.com/matzehuels/postroc/pkg/fetch"
)

// Infer returns the field kind for a decoded JSON value. Null and unknown
// values are treated as strings.
func Infer(v any) custom.Kind {
	switch val := v.(type) {
	case bool:
		return custom.Primitive{Type: custom.Boolean}
	case float64, float32, int, int64, json.Number:
		return custom.Primitive{Type: custom.Number}
	case []any:
		return custom.Array{Item: itemKind(val), Count: len(val)}
	case map[string]any:
		return custom.Object{}
	default:
		return custom.Primitive{Type: custom.String}
	}
}

// itemKind is the shared kind of all items, or mixed when they differ.
// String items containing commas are mixed too since the comma-joined
// literal form could not hold them.
func itemKind(items []any) custom.ItemKind {
	if len(items) == 0 {
		return custom.ItemString
	}
	var kind custom.ItemKind
	for _, it := range items {
		var k custom.ItemKind
		switch v := Infer(it).(type) {
		case custom.Primitive:
			k = custom.ItemKind(v.Type)
		case custom.Object:
			k = custom.ItemObject
		default:
			return custom.ItemMixed
		}
		if s, ok := it.(string); ok && strings.Contains(s, ",") {
			return custom.ItemMixed
		}
		if kind != "" && k != kind {
			return custom.ItemMixed
		}
		kind = k
	}
	return kind
}

// Fields converts a JSON object into exported field templates, ordered by
// key. Scalars become literals, objects become nested children, and arrays
// keep their length with either a literal list, an object template taken
// from the first item, or one child per item when the items are mixed.
func Fields(data map[string]any) []custom.Field {
	if len(data) == 0 {
		return nil
	}
	fields := make([]custom.Field, 0, len(data))
	for _, key := range slices.Sorted(maps.Keys(data)) {
		fields = append(fields, field(key, data[key]))
	}
	return fields
}

func field(key string, v any) custom.Field {
	f := custom.Field{ID: uuid.NewString(), Key: key, Kind: Infer(v), Exported: true}
	switch val := v.(type) {
	case nil:
	case map[string]any:
		f.Children = Fields(val)
	case []any:
		switch f.Kind.(custom.Array).Item {
		case custom.ItemObject:
			f.Children = Fields(val[0].(map[string]any))
		case custom.ItemMixed:
			for i, it := range val {
				f.Children = append(f.Children, field(strconv.Itoa(i), it))
			}
		default:
			parts := make([]string, len(val))
			for i, it := range val {
				parts[i] = scalar(it)
			}
			f.Literal = strings.Join(parts, ",")
		}
	default:
		f.Literal = scalar(val)
	}
	return f
}

func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// Template picks the object that represents one record of an API response.
// It unwraps the common envelopes: a "data" object or array, non-empty
// "results" or "items" arrays, and a top-level array. Only the first item
// of an array is used. Anything else yields an empty map.
func Template(response any) map[string]any {
	switch val := response.(type) {
	case []any:
		if len(val) > 0 {
			if m, ok := val[0].(map[string]any); ok {
				return m
			}
		}
		return map[string]any{}
	case map[string]any:
		switch data := val["data"].(type) {
		case map[string]any:
			return data
		case []any:
			if len(data) > 0 {
				if m, ok := data[0].(map[string]any); ok {
					return m
				}
			}
			return val
		}
		for _, key := range []string{"results", "items"} {
			if items, ok := val[key].([]any); ok && len(items) > 0 {
				if m, ok := items[0].(map[string]any); ok {
					return m
				}
			}
		}
		return val
	default:
		return map[string]any{}
	}
}

// MergeInto adds the incoming fields whose keys are not yet used among
// the children of parentID ("" for top-level fields). Existing fields are
// never overwritten.
func MergeInto(a *custom.Arena, parentID string, incoming []custom.Field) error {
	for _, f := range incoming {
		if _, taken := a.Lookup(parentID, f.Key); taken {
			continue
		}
		if _, err := a.Add(parentID, f); err != nil {
			return err
		}
	}
	return nil
}

// Capture stores a fetched body on the fetch field id as its offline
// template: records become children, scalars a literal.
func Capture(a *custom.Arena, id string, body any) error {
	switch body.(type) {
	case map[string]any, []any:
		return MergeInto(a, id, Fields(Template(body)))
	default:
		return a.Update(id, func(f *custom.Field) { f.Literal = scalar(body) })
	}
}

// Field fetches the endpoint of n's top-level fetch field named key once
// and captures the response as that field's template.
func Field(ctx context.Context, fr fetch.Fetcher, e *env.Environment, n custom.Node, key string) (custom.Node, error) {
	a := custom.NewArena(n.Fields)
	id, ok := a.Lookup("", key)
	if !ok {
		return n, perrors.New(perrors.ErrCodeNotFound, "node %q has no field %q", n.DisplayName(), key)
	}
	f, _ := a.Get(id)
	k, ok := f.Kind.(custom.Fetch)
	if !ok || k.Endpoint == "" {
		return n, perrors.New(perrors.ErrCodeInvalidField, "field %q is not a fetch field with an endpoint", key)
	}
	resp, err := fr.Fetch(ctx, k.Endpoint, e)
	if err != nil {
		return n, err
	}
	if err := Capture(a, id, resp.Body); err != nil {
		return n, err
	}
	n.Fields = a.Fields()
	return n, nil
}

// Endpoint fetches endpoint once and merges the fields of the returned
// record into n.
func Endpoint(ctx context.Context, fr fetch.Fetcher, e *env.Environment, n custom.Node, endpoint string) (custom.Node, error) {
	resp, err := fr.Fetch(ctx, endpoint, e)
	if err != nil {
		return n, err
	}
	a := custom.NewArena(n.Fields)
	if err := MergeInto(a, "", Fields(Template(resp.Body))); err != nil {
		return n, err
	}
	n.Fields = a.Fields()
	return n, nil
}
