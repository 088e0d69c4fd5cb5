// Package custom defines the data model of the resolution engine: nodes
// ("Customs"), their fields and export configurations.
//
// # Overview
//
// A [Node] is a named template producing one JSON document. Its [Field]s are
// a tagged union over [Kind]:
//
//   - [Primitive]: string, number or boolean
//   - [Array]: a list of primitives, objects, or independently templated items
//   - [Object]: nested properties given by the field's children
//   - [Reference]: another node's resolved output, optionally projected
//   - [Fetch]: a value pulled from an HTTP endpoint
//
// Kinds are a closed set. Code switching over them ends in a default case
// that panics, so adding a variant surfaces in tests rather than silently
// resolving to nil.
//
// # Persisted Form
//
// [Document] and [FieldDocument] are the flat form used by workspace files,
// snapshot stores and the HTTP API. [Document.Node] validates and converts;
// [NewDocument] goes the other way:
//
//	var doc custom.Document
//	if err := json.Unmarshal(data, &doc); err != nil {
//	    return err
//	}
//	node, err := doc.Node()
//
// # Editing
//
// [Arena] holds a field tree flat, keyed by id, with parent/child links.
// Editors add, update, move and remove nested fields by id without walking
// the tree, then call [Arena.Fields] to get the ordered tree back.
package custom
