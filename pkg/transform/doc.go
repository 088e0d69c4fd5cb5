// Package transform reshapes a node's resolved data for consumers.
//
// An export config picks the whole document, a single dotted path, one key
// out of every element of an array, or the result of a user expression.
// Expressions use the HCL native expression syntax with the document bound
// to data:
//
//	data.items[*].id
//	[for u in data.users : u.email if u.active]
//	{ total = length(data.items), first = data.items[0].name }
//
// Only the function table listed by [Functions] is available, and the only
// variable is data. The evaluator has no access to the filesystem, network
// or environment.
package transform
