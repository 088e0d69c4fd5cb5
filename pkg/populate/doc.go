// Package populate builds field templates from sample API responses.
//
// A response is first reduced to one representative record with
// [Template], then converted with [Fields]. [Field] and [Endpoint] do the
// fetch as well, either capturing the record as an api-fetch field's
// offline template or merging it into a node's top-level fields.
package populate
